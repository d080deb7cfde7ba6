package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestListing_DaysUntilExpiry(t *testing.T) {
	today := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)

	tests := []struct {
		expiry string
		days   int
		ok     bool
	}{
		{"2026-03-01", 0, true},
		{"2026-03-08", 7, true},
		{"2026-02-27", -2, true},
		{"2027-03-01", 365, true},
		{"", 0, false},
		{"03/01/2026", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.expiry, func(t *testing.T) {
			days, ok := Listing{ExpiryDate: tt.expiry}.DaysUntilExpiry(today)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.days, days)
		})
	}
}

func TestListing_IsExpired(t *testing.T) {
	today := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, Listing{ExpiryDate: "2026-02-28"}.IsExpired(today))
	assert.False(t, Listing{ExpiryDate: "2026-03-01"}.IsExpired(today))
	assert.False(t, Listing{ExpiryDate: "bogus"}.IsExpired(today))
}

func TestClassificationFrom(t *testing.T) {
	v := Verdict{
		Status:     StatusConsumeSoon,
		Confidence: 0.9,
		Reason:     "soon",
		Source:     Source{Tier: TierText, ModelID: "a/b"},
	}
	assert.Equal(t, Classification{
		Status:     StatusConsumeSoon,
		Confidence: 0.9,
		Reason:     "soon",
		Tier:       TierText,
		ModelID:    "a/b",
	}, ClassificationFrom(v))
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusReject.Valid())
	assert.False(t, Status("REJECT").Valid())
	assert.True(t, ListingExpired.Valid())
	assert.False(t, ListingStatus("gone").Valid())
}
