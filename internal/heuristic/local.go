package heuristic

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/foodshare/internal/model"
)

// SpoilageKeywords signal an unsafe item when found in the name or description.
// Order is preserved in the reported risk factors.
var SpoilageKeywords = []string{"mold", "rotten", "spoiled", "sour", "bad", "expired"}

// PerishableKeywords mark foods that need refrigeration. They take precedence
// over ShelfStableKeywords.
var PerishableKeywords = []string{"milk", "meat", "fish"}

// ShelfStableKeywords mark foods with a long shelf life.
var ShelfStableKeywords = []string{"canned", "packaged"}

// imageNote is appended to reasons when an image was supplied but no model analysed it.
const imageNote = " (image provided but analysis failed)"

// Input carries what the local classifier needs about an item.
type Input struct {
	FoodName    string
	Description string
	DaysLeft    int
	HadImage    bool
}

// band is one row of a days-left table: items with at least MinDays left get
// the row's outcome.
type band struct {
	MinDays         int
	Status          model.Status
	Confidence      float64
	Reason          string // format verb receives days left
	RiskFactors     []string
	Recommendations []string
}

// perishableBands applies to milk, meat and fish.
var perishableBands = []band{
	{7, model.StatusSafeToDonate, 0.85, "SAFE: Perishable but fresh", []string{"perishable"}, []string{"Keep refrigerated"}},
	{3, model.StatusConsumeSoon, 0.90, "CONSUME SOON: Perishable, eat within %d days", []string{"perishable", "time_sensitive"}, []string{"Consume quickly", "Keep cold"}},
	{math.MinInt, model.StatusReject, 0.88, "REJECT: Perishable, only %d days left", []string{"perishable", "too_close"}, []string{"Do not donate"}},
}

// generalBands applies to everything that is neither perishable nor shelf-stable.
var generalBands = []band{
	{7, model.StatusSafeToDonate, 0.85, "GOOD: %d days until expiry", nil, []string{"Safe for donation"}},
	{3, model.StatusConsumeSoon, 0.80, "CONSUME SOON: Should be eaten within %d days", []string{"approaching_expiry"}, []string{"Consume quickly"}},
	{math.MinInt, model.StatusReject, 0.90, "REJECT: Too close to expiry (%d days)", []string{"too_close"}, []string{"Do not donate"}},
}

// Classify runs the local decision table. It never fails.
func Classify(in Input) model.Verdict {
	note := ""
	if in.HadImage {
		note = imageNote
	}

	if in.DaysLeft < 0 {
		return localVerdict(model.StatusReject, 0.99,
			fmt.Sprintf("EXPIRED: %d days past expiry%s", -in.DaysLeft, note),
			[]string{"expired"}, []string{"Do not consume"})
	}

	text := normalizeText(in.FoodName + " " + in.Description)

	if issues := MatchKeywords(text, SpoilageKeywords); len(issues) > 0 {
		return localVerdict(model.StatusReject, 0.95,
			fmt.Sprintf("UNSAFE: %s detected%s", strings.Join(issues, ", "), note),
			issues, []string{"Do not donate"})
	}

	switch {
	case containsAny(text, PerishableKeywords):
		return fromBands(perishableBands, in.DaysLeft, note)
	case containsAny(text, ShelfStableKeywords):
		return localVerdict(model.StatusSafeToDonate, 0.95,
			"EXCELLENT: Long shelf life"+note,
			nil, []string{"Good for donation"})
	default:
		return fromBands(generalBands, in.DaysLeft, note)
	}
}

// MatchKeywords returns the keywords that occur as substrings of text, in
// table order. text is expected to be lower-cased already.
func MatchKeywords(text string, keywords []string) []string {
	var out []string
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			out = append(out, kw)
		}
	}
	return out
}

func containsAny(text string, keywords []string) bool {
	return len(MatchKeywords(text, keywords)) > 0
}

func normalizeText(s string) string {
	return cases.Lower(language.Und).String(s)
}

func fromBands(bands []band, daysLeft int, note string) model.Verdict {
	for _, b := range bands {
		if daysLeft < b.MinDays {
			continue
		}
		reason := b.Reason
		if strings.Contains(reason, "%d") {
			reason = fmt.Sprintf(reason, daysLeft)
		}
		return localVerdict(b.Status, b.Confidence, reason+note, b.RiskFactors, b.Recommendations)
	}
	// Unreachable: the last band of every table has MinDays = math.MinInt.
	return LastResort()
}

func localVerdict(status model.Status, conf float64, reason string, risks, recs []string) model.Verdict {
	return model.Verdict{
		Status:          status,
		Confidence:      conf,
		Reason:          reason,
		RiskFactors:     append([]string{}, risks...),
		Recommendations: append([]string{}, recs...),
		Source:          model.Source{Tier: model.TierLocal},
	}
}
