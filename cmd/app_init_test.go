package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/foodshare/internal/config"
	"github.com/sells-group/foodshare/internal/model"
	"github.com/sells-group/foodshare/internal/waterfall"
)

// withConfig installs c as the global config for the duration of the test.
func withConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	c := &config.Config{}
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(dir, "foodshare.db")
	c.Classifier.Provider = "local"
	c.Classifier.ExpiredPolicy = "skip_text"
	c.Classifier.VisionTimeoutSecs = 20
	c.Classifier.TextTimeoutSecs = 15
	c.Uploads.Dir = filepath.Join(dir, "uploads")
	c.Server.Port = 8080
	c.Reclassify.Concurrency = 2
	return c
}

func TestInitStore_SQLite(t *testing.T) {
	withConfig(t, testConfig(t))

	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
}

func TestInitStore_UnknownDriver(t *testing.T) {
	c := testConfig(t)
	c.Store.Driver = "mysql"
	withConfig(t, c)

	_, err := initStore(context.Background())
	assert.Error(t, err)
}

func TestInitInvoker(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		orKey    string
		antKey   string
		want     any
	}{
		{"local", "local", "", "", nil},
		{"openrouter without key", "openrouter", "", "", nil},
		{"openrouter", "openrouter", "sk-or", "", &waterfall.OpenRouterInvoker{}},
		{"anthropic without key", "anthropic", "", "", nil},
		{"anthropic", "anthropic", "", "sk-ant", &waterfall.AnthropicInvoker{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testConfig(t)
			c.Classifier.Provider = tt.provider
			c.OpenRouter.Key = tt.orKey
			c.OpenRouter.RatePerSec = 2
			c.Anthropic.Key = tt.antKey
			withConfig(t, c)

			inv := initInvoker()
			if tt.want == nil {
				assert.Nil(t, inv)
				return
			}
			assert.IsType(t, tt.want, inv)
		})
	}
}

func TestClassifierTiers(t *testing.T) {
	c := testConfig(t)
	c.Classifier.VisionModels = []string{"v/one"}
	c.Classifier.TextModels = []string{"t/one", "t/two"}
	withConfig(t, c)

	tiers, err := classifierTiers()
	require.NoError(t, err)
	assert.Equal(t, []string{"v/one"}, tiers.Vision)
	assert.Equal(t, []string{"t/one", "t/two"}, tiers.Text)

	path := filepath.Join(t.TempDir(), "tiers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("waterfall:\n  vision: [file/vision]\n  text: [file/text]\n"), 0o644))
	c.Classifier.TiersFile = path

	tiers, err = classifierTiers()
	require.NoError(t, err)
	assert.Equal(t, []string{"file/vision"}, tiers.Vision)
	assert.Equal(t, []string{"file/text"}, tiers.Text)

	c.Classifier.TiersFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = classifierTiers()
	assert.Error(t, err)
}

func TestInitExecutor_LocalProvider(t *testing.T) {
	withConfig(t, testConfig(t))

	exec, rc, err := initExecutor(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rc)

	v := exec.Classify(context.Background(), waterfall.Request{
		FoodName:   "Canned Beans",
		ExpiryDate: time.Now().AddDate(0, 0, 30).Format(time.DateOnly),
	})
	assert.Equal(t, model.StatusSafeToDonate, v.Status)
	assert.Equal(t, model.TierLocal, v.Source.Tier)
}

func TestInitExecutor_UnreachableRedisIsSkipped(t *testing.T) {
	c := testConfig(t)
	c.Redis.URL = "redis://127.0.0.1:1/0"
	c.Classifier.CacheTTLHours = 1
	withConfig(t, c)

	exec, rc, err := initExecutor(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rc)
	assert.NotNil(t, exec)
}

func TestInitApp(t *testing.T) {
	withConfig(t, testConfig(t))
	ctx := context.Background()

	env, err := initApp(ctx, "batch")
	require.NoError(t, err)
	defer env.Close()

	seeded, err := env.Service.Seed(ctx)
	require.NoError(t, err)
	assert.True(t, seeded)

	stats, err := env.Service.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalDonations)
	assert.Equal(t, 1, stats.Organizations)

	res, err := env.Service.Reclassify(ctx, cfg.Reclassify.Concurrency)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Updated)
}

func TestInitApp_InvalidConfig(t *testing.T) {
	c := testConfig(t)
	c.Reclassify.Concurrency = 0
	withConfig(t, c)

	_, err := initApp(context.Background(), "batch")
	assert.Error(t, err)
}
