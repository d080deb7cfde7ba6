package model

import (
	"time"
)

// ListingStatus tracks a donation through its lifecycle.
type ListingStatus string

const (
	ListingAvailable ListingStatus = "available"
	ListingClaimed   ListingStatus = "claimed"
	ListingDelivered ListingStatus = "delivered"
	ListingExpired   ListingStatus = "expired"
)

// Valid reports whether s is a known listing status.
func (s ListingStatus) Valid() bool {
	switch s {
	case ListingAvailable, ListingClaimed, ListingDelivered, ListingExpired:
		return true
	default:
		return false
	}
}

// Classification is the persisted subset of a verdict attached to a listing.
type Classification struct {
	Status     Status  `json:"status"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
	Tier       Tier    `json:"tier,omitempty"`
	ModelID    string  `json:"model_id,omitempty"`
}

// ClassificationFrom extracts the persisted fields from a verdict.
func ClassificationFrom(v Verdict) Classification {
	return Classification{
		Status:     v.Status,
		Confidence: v.Confidence,
		Reason:     v.Reason,
		Tier:       v.Source.Tier,
		ModelID:    v.Source.ModelID,
	}
}

// Location is an optional point plus a free-form address.
type Location struct {
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
	Address string   `json:"address"`
}

// Listing is a food donation offered by a donor.
type Listing struct {
	ID               string         `json:"id"`
	DonorName        string         `json:"donor_name"`
	DonorContact     string         `json:"donor_contact,omitempty"`
	FoodName         string         `json:"food_name"`
	Description      string         `json:"description"`
	Quantity         int            `json:"quantity"`
	Unit             string         `json:"unit"`
	ExpiryDate       string         `json:"expiry_date"` // YYYY-MM-DD
	FoodType         string         `json:"food_type,omitempty"`
	Location         Location       `json:"location"`
	StorageCondition string         `json:"storage_condition,omitempty"`
	Packaging        string         `json:"packaging,omitempty"`
	ImageURL         string         `json:"image_url"`
	AI               Classification `json:"ai_classification"`
	Status           ListingStatus  `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// DaysUntilExpiry returns whole calendar days from today to the expiry date.
// ok is false when the stored date does not parse.
func (l Listing) DaysUntilExpiry(today time.Time) (days int, ok bool) {
	exp, err := time.Parse(time.DateOnly, l.ExpiryDate)
	if err != nil {
		return 0, false
	}
	y, m, d := today.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int(exp.Sub(start).Hours() / 24), true
}

// IsExpired reports whether the expiry date is before today.
func (l Listing) IsExpired(today time.Time) bool {
	days, ok := l.DaysUntilExpiry(today)
	return ok && days < 0
}

// ListingFilter narrows ListListings. Zero values match everything.
type ListingFilter struct {
	Status   ListingStatus
	AIStatus Status
	Limit    int
}
