package waterfall

import (
	"fmt"
	"time"
)

const (
	visionSystemPrompt = "You are a food safety expert analyzing food images for donation safety."
	textSystemPrompt   = "You are a food safety expert analyzing donated food items."
)

const visionUserPrompt = `Analyze this food image for donation safety:

Food: %s
Description: %s
Expiry: %s (%d days from %s)

Examine the image for:
1. Visible spoilage (mold, discoloration)
2. Packaging condition
3. Freshness signs

Respond with JSON:
{
    "status": "safe_to_donate|consume_soon|reject",
    "confidence": 0.85,
    "reason": "Analysis based on image",
    "visual_findings": ["what", "you", "see"],
    "risk_factors": ["key", "risks"],
    "recommendations": ["actions"]
}`

const textUserPrompt = `FOOD SAFETY ANALYSIS:

FOOD: %s
DESCRIPTION: %s
EXPIRY: %s (%d days from today: %s)

CONTEXT: Food bank donation for vulnerable populations.

ANALYSIS REQUEST:
1. Assess perishability based on food type
2. Consider days remaining
3. Evaluate description for quality clues

SAFETY CATEGORIES:
- SAFE_TO_DONATE: Fresh and safe
- CONSUME_SOON: Should be eaten within 3 days
- REJECT: Unsafe or too close to expiry

RESPONSE FORMAT (JSON only):
{
    "status": "SAFE_TO_DONATE|CONSUME_SOON|REJECT",
    "confidence": 0.85,
    "reason": "Explanation based on food type and expiry",
    "risk_factors": ["key", "risks"],
    "recommendations": ["actionable", "steps"]
}`

func describe(description string) string {
	if description == "" {
		return "No description"
	}
	return description
}

func buildVisionPrompt(req Request, daysLeft int, today time.Time) string {
	return fmt.Sprintf(visionUserPrompt, req.FoodName, describe(req.Description), req.ExpiryDate, daysLeft, today.Format(time.DateOnly))
}

func buildTextPrompt(req Request, daysLeft int, today time.Time) string {
	return fmt.Sprintf(textUserPrompt, req.FoodName, describe(req.Description), req.ExpiryDate, daysLeft, today.Format(time.DateOnly))
}
