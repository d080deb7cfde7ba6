package waterfall

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/foodshare/internal/model"
	"github.com/sells-group/foodshare/internal/resilience"
)

const defaultModelConfidence = 0.8

// statusAliases maps upper-cased model output to canonical statuses.
var statusAliases = map[string]model.Status{
	"SAFE_TO_DONATE": model.StatusSafeToDonate,
	"CONSUME_SOON":   model.StatusConsumeSoon,
	"REJECT":         model.StatusReject,
}

// Normalize turns a free-form model reply into a verdict. Replies without a
// decodable JSON object yield a degraded verdict instead of an error. The
// model id and tier always come from the caller, never from the reply.
func Normalize(raw, modelID string, tier model.Tier) model.Verdict {
	fields, err := decodeReply(raw, modelID)
	if err != nil {
		return degradedVerdict(modelID, tier)
	}

	v := model.Verdict{
		Status:          parseStatus(fields["status"]),
		Confidence:      parseConfidence(fields["confidence"]),
		Reason:          stringField(fields["reason"]),
		RiskFactors:     stringList(fields["risk_factors"]),
		Recommendations: stringList(fields["recommendations"]),
		Source:          model.Source{Tier: tier, ModelID: modelID},
	}
	if findings, ok := fields["visual_findings"]; ok {
		v.VisualFindings = stringList(findings)
	}
	if v.Reason == "" {
		v.Reason = "Analyzed by " + providerOf(modelID)
	}
	return v
}

// decodeReply extracts and decodes the JSON object embedded in raw.
func decodeReply(raw, modelID string) (map[string]any, error) {
	obj := extractJSON(raw)
	if obj == "" {
		return nil, &resilience.MalformedResponseError{Model: modelID}
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return nil, &resilience.MalformedResponseError{Model: modelID, Err: err}
	}
	if fields == nil {
		return nil, &resilience.MalformedResponseError{Model: modelID}
	}
	return fields, nil
}

// extractJSON returns the substring from the first '{' to the last '}', after
// stripping markdown code fences. It returns "" when there is no such span.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func degradedVerdict(modelID string, tier model.Tier) model.Verdict {
	return model.Verdict{
		Status:          model.StatusSafeToDonate,
		Confidence:      0.7,
		Reason:          "AI analysis completed (" + string(tier) + " mode)",
		RiskFactors:     []string{"ai_analyzed"},
		Recommendations: []string{"Check manually if unsure"},
		Source:          model.Source{Tier: tier, ModelID: modelID},
	}
}

func parseStatus(v any) model.Status {
	s, ok := v.(string)
	if !ok {
		return model.StatusSafeToDonate
	}
	if st, ok := statusAliases[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return st
	}
	return model.StatusSafeToDonate
}

func parseConfidence(v any) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return defaultModelConfidence
		}
		f = parsed
	default:
		return defaultModelConfidence
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return defaultModelConfidence
	}
	return clamp01(f)
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

func stringField(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// stringList keeps the string entries of a JSON array. Anything else yields
// an empty list.
func stringList(v any) []string {
	out := []string{}
	items, ok := v.([]any)
	if !ok {
		return out
	}
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// providerOf returns the vendor prefix of a model id ("google/gemini" → "google").
func providerOf(modelID string) string {
	if i := strings.Index(modelID, "/"); i > 0 {
		return modelID[:i]
	}
	return modelID
}
