package testsupport

import (
	"path/filepath"
	"testing"

	"cloudpose/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.LoadTest.ImageDir = filepath.Join(base, "images")
	cfgVal.UI.ImageDir = filepath.Join(base, "images")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBaseURL points the config at a (usually fake) pose service.
func WithBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pose.BaseURL = url
	}
}

// WithLoadTest overrides the load generator sizing.
func WithLoadTest(users, spawnRate, durationSeconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LoadTest.Users = users
		b.cfg.LoadTest.SpawnRate = spawnRate
		b.cfg.LoadTest.DurationSeconds = durationSeconds
		b.cfg.LoadTest.WaitMinMillis = 0
		b.cfg.LoadTest.WaitMaxMillis = 5
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
