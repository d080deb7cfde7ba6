package waterfall

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Default per-call budgets. Vision payloads are larger and get more time.
const (
	DefaultVisionTimeout = 20 * time.Second
	DefaultTextTimeout   = 15 * time.Second
)

// Tiers is the ordered model list per tier. Order is priority: the first
// model to answer wins.
type Tiers struct {
	Vision []string `yaml:"vision"`
	Text   []string `yaml:"text"`
}

func (t Tiers) clone() Tiers {
	return Tiers{
		Vision: append([]string(nil), t.Vision...),
		Text:   append([]string(nil), t.Text...),
	}
}

// Config is the cascade configuration. It is read once at startup and never
// modified afterwards.
type Config struct {
	Tiers         Tiers
	VisionTimeout time.Duration
	TextTimeout   time.Duration

	// Deadline caps the whole cascade. Zero means each call is bounded only
	// by its own timeout.
	Deadline time.Duration

	ExpiredPolicy ExpiredPolicy
}

// DefaultConfig returns a config with no models configured.
func DefaultConfig() Config {
	return Config{
		VisionTimeout: DefaultVisionTimeout,
		TextTimeout:   DefaultTextTimeout,
		ExpiredPolicy: ExpiredSkipText,
	}
}

func (c Config) withDefaults() Config {
	out := c
	out.Tiers = c.Tiers.clone()
	if out.VisionTimeout <= 0 {
		out.VisionTimeout = DefaultVisionTimeout
	}
	if out.TextTimeout <= 0 {
		out.TextTimeout = DefaultTextTimeout
	}
	if !out.ExpiredPolicy.Valid() {
		out.ExpiredPolicy = ExpiredSkipText
	}
	return out
}

// LoadTiers reads a tier list from a YAML file of the form
//
//	waterfall:
//	  vision: [model-a, model-b]
//	  text: [model-c]
func LoadTiers(path string) (Tiers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tiers{}, eris.Wrapf(err, "waterfall: read tiers %s", path)
	}

	var wrapper struct {
		Waterfall Tiers `yaml:"waterfall"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return Tiers{}, eris.Wrap(err, "waterfall: parse tiers")
	}

	tiers := wrapper.Waterfall
	if len(tiers.Vision) == 0 && len(tiers.Text) == 0 {
		return Tiers{}, eris.Errorf("waterfall: tiers file %s lists no models", path)
	}
	return tiers, nil
}
