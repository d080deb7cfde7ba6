package waterfall

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheKey(t *testing.T) {
	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	base := Request{FoodName: "Milk", ExpiryDate: "2026-05-04", Description: "1L"}

	key := CacheKey(base, day)
	assert.True(t, strings.HasPrefix(key, "verdict:"))
	assert.Equal(t, key, CacheKey(base, day.Add(5*time.Hour)))

	variants := []Request{
		{FoodName: "Milk ", ExpiryDate: "2026-05-04", Description: "1L"},
		{FoodName: "Milk", ExpiryDate: "2026-05-05", Description: "1L"},
		{FoodName: "Milk", ExpiryDate: "2026-05-04", Description: "2L"},
		{FoodName: "Milk", ExpiryDate: "2026-05-04", Description: "1L", Image: []byte{1}},
		// Field boundaries are separated.
		{FoodName: "Mil", ExpiryDate: "2026-05-04", Description: "k1L"},
	}
	for _, v := range variants {
		assert.NotEqual(t, key, CacheKey(v, day))
	}
	assert.NotEqual(t, key, CacheKey(base, day.AddDate(0, 0, 1)))
}
