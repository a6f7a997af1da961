package testsupport

import (
	"path/filepath"
	"testing"

	"qupload/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Upload.Endpoint = "http://127.0.0.1:0/stimuli"
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.HistoryDB = filepath.Join(base, "history.db")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithEndpoint overrides the backend endpoint on the test config.
func WithEndpoint(endpoint string) ConfigOption {
	return func(c *config.Config) {
		c.Upload.Endpoint = endpoint
	}
}

// WithMaxConcurrent overrides the in-flight upload bound on the test config.
func WithMaxConcurrent(limit int) ConfigOption {
	return func(c *config.Config) {
		c.Upload.MaxConcurrent = limit
	}
}

// WithAutoRetries sets the automatic retry budget on the test config.
func WithAutoRetries(retries int) ConfigOption {
	return func(c *config.Config) {
		c.Upload.AutoRetries = retries
	}
}

// WithAcceptedTypes restricts the validation gate on the test config.
func WithAcceptedTypes(types ...string) ConfigOption {
	return func(c *config.Config) {
		c.Policy.AcceptedTypes = types
	}
}

// WithMaxFileSizeMB sets the validation gate size limit on the test config.
func WithMaxFileSizeMB(limit int64) ConfigOption {
	return func(c *config.Config) {
		c.Policy.MaxFileSizeMB = limit
	}
}
