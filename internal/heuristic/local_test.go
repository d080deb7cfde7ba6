package heuristic

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/foodshare/internal/model"
)

func TestClassify_DecisionTable(t *testing.T) {
	tests := []struct {
		name       string
		in         Input
		wantStatus model.Status
		wantConf   float64
		wantRisks  []string
	}{
		{"expired", Input{FoodName: "Bread", DaysLeft: -3}, model.StatusReject, 0.99, []string{"expired"}},
		{"expired beats spoilage", Input{FoodName: "Rotten eggs", DaysLeft: -1}, model.StatusReject, 0.99, []string{"expired"}},
		{"spoilage in description", Input{FoodName: "Bananas", Description: "moldy spots", DaysLeft: 2}, model.StatusReject, 0.95, []string{"mold"}},
		{"spoilage in name, case-insensitive", Input{FoodName: "SOUR Cream", DaysLeft: 10}, model.StatusReject, 0.95, []string{"sour"}},
		{"multiple spoilage words in table order", Input{FoodName: "Cheese", Description: "spoiled and a bit of mold", DaysLeft: 10}, model.StatusReject, 0.95, []string{"mold", "spoiled"}},
		{"perishable fresh", Input{FoodName: "Whole Milk", DaysLeft: 7}, model.StatusSafeToDonate, 0.85, []string{"perishable"}},
		{"perishable soon", Input{FoodName: "Fresh Milk", Description: "Unopened carton", DaysLeft: 5}, model.StatusConsumeSoon, 0.90, []string{"perishable", "time_sensitive"}},
		{"perishable too close", Input{FoodName: "Ground meat", DaysLeft: 2}, model.StatusReject, 0.88, []string{"perishable", "too_close"}},
		{"perishable wins over shelf-stable", Input{FoodName: "Canned fish", DaysLeft: 4}, model.StatusConsumeSoon, 0.90, []string{"perishable", "time_sensitive"}},
		{"shelf stable", Input{FoodName: "Canned Soup", DaysLeft: 400}, model.StatusSafeToDonate, 0.95, []string{}},
		{"shelf stable ignores window", Input{FoodName: "Packaged crackers", DaysLeft: 0}, model.StatusSafeToDonate, 0.95, []string{}},
		{"general fresh", Input{FoodName: "Apples", DaysLeft: 14}, model.StatusSafeToDonate, 0.85, []string{}},
		{"general soon", Input{FoodName: "Apples", DaysLeft: 3}, model.StatusConsumeSoon, 0.80, []string{"approaching_expiry"}},
		{"general today", Input{FoodName: "Apples", DaysLeft: 0}, model.StatusReject, 0.90, []string{"too_close"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Classify(tt.in)
			assert.Equal(t, tt.wantStatus, v.Status)
			assert.InDelta(t, tt.wantConf, v.Confidence, 1e-9)
			assert.Equal(t, tt.wantRisks, v.RiskFactors)
			assert.NotEmpty(t, v.Reason)
			assert.NotNil(t, v.Recommendations)
			assert.Equal(t, model.TierLocal, v.Source.Tier)
			assert.Empty(t, v.Source.ModelID)
		})
	}
}

func TestClassify_ImageNote(t *testing.T) {
	v := Classify(Input{FoodName: "Apples", DaysLeft: 10, HadImage: true})
	assert.Contains(t, v.Reason, "image provided but analysis failed")

	v = Classify(Input{FoodName: "Apples", DaysLeft: 10})
	assert.NotContains(t, v.Reason, "image provided")
}

func TestClassify_ReasonMentionsDays(t *testing.T) {
	v := Classify(Input{FoodName: "Yogurt", DaysLeft: -4})
	assert.Equal(t, "EXPIRED: 4 days past expiry", v.Reason)

	v = Classify(Input{FoodName: "Fish fillet", DaysLeft: 1})
	assert.Equal(t, "REJECT: Perishable, only 1 days left", v.Reason)
}

func TestClassify_DoesNotAliasTables(t *testing.T) {
	v := Classify(Input{FoodName: "Milk", DaysLeft: 10})
	v.RiskFactors[0] = "mutated"

	again := Classify(Input{FoodName: "Milk", DaysLeft: 10})
	assert.Equal(t, []string{"perishable"}, again.RiskFactors)
}

func TestMatchKeywords(t *testing.T) {
	assert.Equal(t, []string{"rotten", "bad"}, MatchKeywords("a bad rotten apple", SpoilageKeywords))
	assert.Nil(t, MatchKeywords("fresh bread", SpoilageKeywords))
}

func TestNormalizeText_Unicode(t *testing.T) {
	assert.Equal(t, "crème fraîche milk", normalizeText("CRÈME FRAÎCHE MILK"))
}
