package waterfall

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/foodshare/internal/heuristic"
	"github.com/sells-group/foodshare/internal/imagestore"
	"github.com/sells-group/foodshare/internal/model"
	"github.com/sells-group/foodshare/internal/resilience"
)

// Executor runs the classification cascade: vision models, then text models,
// then the local heuristic. It holds no per-request state and is safe for
// concurrent use.
type Executor struct {
	cfg     Config
	invoker Invoker
	cache   Cache
	clock   func() time.Time
}

// NewExecutor creates a cascade executor. A nil invoker disables both model
// tiers so every request is decided locally.
func NewExecutor(cfg Config, inv Invoker) *Executor {
	return &Executor{
		cfg:     cfg.withDefaults(),
		invoker: inv,
		clock:   time.Now,
	}
}

// WithNow sets a fixed time for testing.
func (e *Executor) WithNow(t time.Time) *Executor {
	e.clock = func() time.Time { return t }
	return e
}

// WithCache enables verdict caching for model-tier results.
func (e *Executor) WithCache(c Cache) *Executor {
	e.cache = c
	return e
}

// Config returns a copy of the executor configuration.
func (e *Executor) Config() Config {
	out := e.cfg
	out.Tiers = e.cfg.Tiers.clone()
	return out
}

// Classify decides whether a donated item is safe. It never returns an error
// and never panics: model failures fall through to the next model or tier,
// bad input yields the simple fallback, and anything unexpected yields the
// fallback for the request's expiry date.
func (e *Executor) Classify(ctx context.Context, req Request) (v model.Verdict) {
	today := e.clock()
	log := zap.L().With(zap.String("food_name", req.FoodName))

	defer func() {
		if r := recover(); r != nil {
			log.Error("waterfall: classify panicked, using fallback", zap.Any("panic", r))
			v = heuristic.Fallback(req.ExpiryDate, today)
			v.ImageConsidered = false
		}
		v = finalize(v)
	}()

	expiry, err := heuristic.ParseExpiry(req.ExpiryDate)
	if err != nil {
		log.Warn("waterfall: invalid request, using fallback", zap.Error(err))
		return heuristic.Fallback(req.ExpiryDate, today)
	}
	daysLeft := heuristic.DaysLeft(expiry, today)
	hasImage := req.HasImage()

	if e.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Deadline)
		defer cancel()
	}

	var key string
	if e.cache != nil {
		key = CacheKey(req, today)
		if cached, ok := e.cache.Get(ctx, key); ok {
			log.Debug("waterfall: cache hit", zap.String("tier", string(cached.Source.Tier)))
			return cached.Clone()
		}
	}

	if hasImage && e.visionAllowed(daysLeft) {
		img := &Image{Data: req.Image, MIMEType: imagestore.DetectMIME(req.Image)}
		prompt := buildVisionPrompt(req, daysLeft, today)
		if res, ok := e.tryTier(ctx, model.TierVision, e.cfg.Tiers.Vision, visionSystemPrompt, prompt, img, e.cfg.VisionTimeout); ok {
			res.ImageConsidered = true
			e.remember(ctx, key, res)
			return res
		}
	}

	if e.textAllowed(daysLeft) {
		prompt := buildTextPrompt(req, daysLeft, today)
		if res, ok := e.tryTier(ctx, model.TierText, e.cfg.Tiers.Text, textSystemPrompt, prompt, nil, e.cfg.TextTimeout); ok {
			res.ImageConsidered = hasImage
			e.remember(ctx, key, res)
			return res
		}
	} else {
		log.Debug("waterfall: text tier skipped",
			zap.Int("days_left", daysLeft),
			zap.String("expired_policy", string(e.cfg.ExpiredPolicy)),
		)
	}

	res := heuristic.Classify(heuristic.Input{
		FoodName:    req.FoodName,
		Description: req.Description,
		DaysLeft:    daysLeft,
		HadImage:    hasImage,
	})
	res.ImageConsidered = hasImage
	log.Debug("waterfall: decided locally", zap.String("status", string(res.Status)))
	return res
}

func (e *Executor) visionAllowed(daysLeft int) bool {
	if e.invoker == nil || len(e.cfg.Tiers.Vision) == 0 {
		return false
	}
	return daysLeft >= 0 || e.cfg.ExpiredPolicy != ExpiredLocalOnly
}

func (e *Executor) textAllowed(daysLeft int) bool {
	if e.invoker == nil || len(e.cfg.Tiers.Text) == 0 {
		return false
	}
	return daysLeft >= 0 || e.cfg.ExpiredPolicy == ExpiredAll
}

// tryTier calls each model in order and returns the first reply, normalized.
// A failed model is never retried.
func (e *Executor) tryTier(ctx context.Context, tier model.Tier, models []string, system, prompt string, img *Image, timeout time.Duration) (model.Verdict, bool) {
	for i, m := range models {
		if err := ctx.Err(); err != nil {
			zap.L().Warn("waterfall: deadline reached, skipping remaining models",
				zap.String("tier", string(tier)),
				zap.Int("skipped", len(models)-i),
				zap.Error(err),
			)
			return model.Verdict{}, false
		}

		start := time.Now()
		raw, err := e.invoke(ctx, Call{
			Model:   m,
			Tier:    tier,
			System:  system,
			Prompt:  prompt,
			Image:   img,
			Timeout: timeout,
		})
		if err != nil {
			zap.L().Warn("waterfall: model failed",
				zap.String("tier", string(tier)),
				zap.String("model", m),
				zap.String("kind", resilience.Kind(err)),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err),
			)
			continue
		}

		v := Normalize(raw, m, tier)
		zap.L().Debug("waterfall: model answered",
			zap.String("tier", string(tier)),
			zap.String("model", m),
			zap.String("status", string(v.Status)),
			zap.Float64("confidence", v.Confidence),
			zap.Duration("elapsed", time.Since(start)),
		)
		return v, true
	}
	return model.Verdict{}, false
}

// invoke isolates the cascade from a misbehaving invoker: a panic counts as a
// failure of that model only.
func (e *Executor) invoke(ctx context.Context, call Call) (raw string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("waterfall: invoker panicked: %v", r)
		}
	}()
	return e.invoker.Invoke(ctx, call)
}

func (e *Executor) remember(ctx context.Context, key string, v model.Verdict) {
	if e.cache == nil || key == "" {
		return
	}
	e.cache.Set(ctx, key, v.Clone())
}

// finalize guarantees a fully populated verdict.
func finalize(v model.Verdict) model.Verdict {
	if !v.Status.Valid() {
		v.Status = model.StatusSafeToDonate
	}
	v.Confidence = clamp01(v.Confidence)
	if v.Reason == "" {
		v.Reason = "Default safe classification"
	}
	if v.RiskFactors == nil {
		v.RiskFactors = []string{}
	}
	if v.Recommendations == nil {
		v.Recommendations = []string{}
	}
	if v.Source.Tier == "" {
		v.Source.Tier = model.TierFallback
	}
	return v
}
