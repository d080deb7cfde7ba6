package heuristic

import (
	"fmt"
	"time"

	"github.com/sells-group/foodshare/internal/model"
)

// Fallback decides from the expiry window alone, ignoring keywords and
// categories. It is used when the cascade cannot start. If expiry does not
// parse, the last-resort verdict is returned.
func Fallback(expiry string, today time.Time) model.Verdict {
	exp, err := ParseExpiry(expiry)
	if err != nil {
		return LastResort()
	}
	return FallbackDays(DaysLeft(exp, today))
}

// FallbackDays is Fallback for an already computed days-left value.
func FallbackDays(daysLeft int) model.Verdict {
	v := model.Verdict{
		Source:          model.Source{Tier: model.TierFallback},
		RiskFactors:     []string{},
		Recommendations: []string{},
	}
	switch {
	case daysLeft < 0:
		v.Status, v.Confidence = model.StatusReject, 0.99
		v.Reason = fmt.Sprintf("Expired %d days ago", -daysLeft)
		v.RiskFactors = []string{"expired"}
		v.Recommendations = []string{"Do not consume"}
	case daysLeft >= 7:
		v.Status, v.Confidence = model.StatusSafeToDonate, 0.85
		v.Reason = fmt.Sprintf("Good shelf life (%d days)", daysLeft)
		v.Recommendations = []string{"Safe for donation"}
	case daysLeft >= 3:
		v.Status, v.Confidence = model.StatusConsumeSoon, 0.80
		v.Reason = fmt.Sprintf("Should be eaten soon (%d days)", daysLeft)
		v.RiskFactors = []string{"approaching_expiry"}
		v.Recommendations = []string{"Consume quickly"}
	default:
		v.Status, v.Confidence = model.StatusReject, 0.90
		v.Reason = fmt.Sprintf("Too close to expiry (%d days)", daysLeft)
		v.RiskFactors = []string{"too_close"}
		v.Recommendations = []string{"Do not donate"}
	}
	return v
}

// LastResort is the terminal verdict when even the expiry date is unusable.
func LastResort() model.Verdict {
	return model.Verdict{
		Status:          model.StatusSafeToDonate,
		Confidence:      0.5,
		Reason:          "Default safe classification",
		RiskFactors:     []string{"system_error"},
		Recommendations: []string{"Check manually"},
		Source:          model.Source{Tier: model.TierFallback},
	}
}
