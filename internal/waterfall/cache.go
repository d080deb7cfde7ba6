package waterfall

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/sells-group/foodshare/internal/model"
)

// Cache stores model-tier verdicts. Implementations swallow and log their own
// errors; a failing cache behaves like an empty one.
type Cache interface {
	Get(ctx context.Context, key string) (model.Verdict, bool)
	Set(ctx context.Context, key string, v model.Verdict)
}

// CacheKey derives a cache key from every input that can change a verdict,
// including the day it was computed on.
func CacheKey(req Request, today time.Time) string {
	h := sha256.New()
	for _, part := range []string{req.FoodName, req.Description, req.ExpiryDate, today.Format(time.DateOnly)} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	img := sha256.Sum256(req.Image)
	h.Write(img[:])
	return "verdict:" + hex.EncodeToString(h.Sum(nil))
}
