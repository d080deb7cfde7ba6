package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/foodshare/internal/cache"
	"github.com/sells-group/foodshare/internal/donation"
	"github.com/sells-group/foodshare/internal/fetcher"
	"github.com/sells-group/foodshare/internal/imagestore"
	"github.com/sells-group/foodshare/internal/store"
	"github.com/sells-group/foodshare/internal/waterfall"
	anthropicpkg "github.com/sells-group/foodshare/pkg/anthropic"
	"github.com/sells-group/foodshare/pkg/openrouter"
)

// appEnv holds the store, classifier, and service needed by the serve and
// batch commands.
type appEnv struct {
	Store    store.Store
	Executor *waterfall.Executor
	Images   *imagestore.Store
	Service  *donation.Service
	cache    *cache.RedisCache // may be nil
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.cache != nil {
		_ = e.cache.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initApp validates config for mode, opens and migrates the store, and builds
// the classifier and donation service. Callers should defer env.Close().
func initApp(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	images, err := imagestore.New(cfg.Uploads.Dir, "/uploads", cfg.Uploads.MaxBytes)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	exec, rc, err := initExecutor(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	svc := donation.New(st, exec, images).WithRemoteImages(newImageFetcher())

	return &appEnv{
		Store:    st,
		Executor: exec,
		Images:   images,
		Service:  svc,
		cache:    rc,
	}, nil
}

// newImageFetcher downloads remote listing photos under the upload size limit.
func newImageFetcher() *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		MaxBytes: int64(cfg.Uploads.MaxBytes),
	})
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "foodshare.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initExecutor builds the cascade. A configured but unreachable redis is
// logged and skipped; classification works without a cache.
func initExecutor(ctx context.Context) (*waterfall.Executor, *cache.RedisCache, error) {
	tiers, err := classifierTiers()
	if err != nil {
		return nil, nil, err
	}

	wcfg := waterfall.Config{
		Tiers:         tiers,
		VisionTimeout: cfg.Classifier.VisionTimeout(),
		TextTimeout:   cfg.Classifier.TextTimeout(),
		Deadline:      cfg.Classifier.Deadline(),
		ExpiredPolicy: waterfall.ExpiredPolicy(cfg.Classifier.ExpiredPolicy),
	}
	exec := waterfall.NewExecutor(wcfg, initInvoker())

	var rc *cache.RedisCache
	if cfg.Redis.URL != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		rc, err = cache.Open(pingCtx, cfg.Redis.URL, cfg.Classifier.CacheTTL())
		if err != nil {
			zap.L().Warn("redis unavailable, verdict cache disabled", zap.Error(err))
			rc = nil
		} else {
			exec.WithCache(rc)
			zap.L().Info("verdict cache enabled", zap.Duration("ttl", cfg.Classifier.CacheTTL()))
		}
	}

	return exec, rc, nil
}

// classifierTiers returns the model lists from the tiers file when one is
// configured, otherwise from the classifier section.
func classifierTiers() (waterfall.Tiers, error) {
	if cfg.Classifier.TiersFile != "" {
		tiers, err := waterfall.LoadTiers(cfg.Classifier.TiersFile)
		if err != nil {
			return waterfall.Tiers{}, err
		}
		zap.L().Info("loaded model tiers",
			zap.String("file", cfg.Classifier.TiersFile),
			zap.Int("vision", len(tiers.Vision)),
			zap.Int("text", len(tiers.Text)),
		)
		return tiers, nil
	}
	return waterfall.Tiers{
		Vision: cfg.Classifier.VisionModels,
		Text:   cfg.Classifier.TextModels,
	}, nil
}

// initInvoker returns the model backend, or nil when the provider is local or
// its key is missing. A nil invoker makes every verdict local.
func initInvoker() waterfall.Invoker {
	switch cfg.Classifier.Provider {
	case "openrouter":
		if cfg.OpenRouter.Key == "" {
			zap.L().Warn("FOODSHARE_OPENROUTER_KEY not set, classifying locally")
			return nil
		}
		opts := []openrouter.Option{
			openrouter.WithBaseURL(cfg.OpenRouter.BaseURL),
			openrouter.WithAppInfo(cfg.OpenRouter.Referer, cfg.OpenRouter.Title),
		}
		if cfg.OpenRouter.RatePerSec > 0 {
			opts = append(opts, openrouter.WithRateLimit(cfg.OpenRouter.RatePerSec, 1))
		}
		return waterfall.NewOpenRouterInvoker(openrouter.NewClient(cfg.OpenRouter.Key, opts...))
	case "anthropic":
		if cfg.Anthropic.Key == "" {
			zap.L().Warn("FOODSHARE_ANTHROPIC_KEY not set, classifying locally")
			return nil
		}
		return waterfall.NewAnthropicInvoker(anthropicpkg.NewClient(cfg.Anthropic.Key))
	default:
		zap.L().Info("classifier provider is local, model tiers disabled")
		return nil
	}
}
