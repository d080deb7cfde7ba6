package waterfall

import (
	"time"

	"github.com/sells-group/foodshare/internal/model"
)

// Request is the input to one classification. It is not retained after
// Classify returns.
type Request struct {
	FoodName    string `json:"food_name"`
	ExpiryDate  string `json:"expiry_date"` // YYYY-MM-DD
	Description string `json:"description,omitempty"`
	Image       []byte `json:"-"`
}

// HasImage reports whether the request carries image data.
func (r Request) HasImage() bool {
	return len(r.Image) > 0
}

// Image is an image payload ready for an outbound model call.
type Image struct {
	Data     []byte
	MIMEType string
}

// Call is a single attempt against a single model.
type Call struct {
	Model   string
	Tier    model.Tier
	System  string
	Prompt  string
	Image   *Image
	Timeout time.Duration
}

// ExpiredPolicy controls which model tiers run for items already past expiry.
type ExpiredPolicy string

const (
	// ExpiredSkipText tries the vision tier but skips the text tier.
	ExpiredSkipText ExpiredPolicy = "skip_text"
	// ExpiredLocalOnly decides expired items locally without any model call.
	ExpiredLocalOnly ExpiredPolicy = "local_only"
	// ExpiredAll runs every tier regardless of expiry.
	ExpiredAll ExpiredPolicy = "all"
)

// Valid reports whether p is a known policy.
func (p ExpiredPolicy) Valid() bool {
	switch p {
	case ExpiredSkipText, ExpiredLocalOnly, ExpiredAll:
		return true
	default:
		return false
	}
}
