package model

// Status is the food safety decision for a donated item.
type Status string

const (
	StatusSafeToDonate Status = "safe_to_donate"
	StatusConsumeSoon  Status = "consume_soon"
	StatusReject       Status = "reject"
)

// Valid reports whether s is one of the three canonical statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusSafeToDonate, StatusConsumeSoon, StatusReject:
		return true
	default:
		return false
	}
}

// Tier identifies which stage of the classification cascade produced a verdict.
type Tier string

const (
	TierVision   Tier = "vision"
	TierText     Tier = "text"
	TierLocal    Tier = "local"
	TierFallback Tier = "fallback"
)

// Source records where a verdict came from. ModelID is empty for the local
// and fallback tiers.
type Source struct {
	Tier    Tier   `json:"tier"`
	ModelID string `json:"model_id,omitempty"`
}

// Verdict is the normalized safety decision returned by every tier.
type Verdict struct {
	Status          Status   `json:"status"`
	Confidence      float64  `json:"confidence"`
	Reason          string   `json:"reason"`
	RiskFactors     []string `json:"risk_factors"`
	Recommendations []string `json:"recommendations"`
	VisualFindings  []string `json:"visual_findings,omitempty"`
	Source          Source   `json:"source"`
	ImageConsidered bool     `json:"image_considered"`
}

// Clone returns a deep copy of v so cached or shared verdicts are never aliased.
func (v Verdict) Clone() Verdict {
	out := v
	out.RiskFactors = append([]string{}, v.RiskFactors...)
	out.Recommendations = append([]string{}, v.Recommendations...)
	if v.VisualFindings != nil {
		out.VisualFindings = append([]string{}, v.VisualFindings...)
	}
	return out
}
