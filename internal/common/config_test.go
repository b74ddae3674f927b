package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanDomain(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"example.com", "example.com"},
		{"https://example.com", "example.com"},
		{"http://example.com/", "example.com"},
		{"HTTPS://Example.COM/", "example.com"},
		{"  example.com  ", "example.com"},
		{"127.0.0.1:8080", "127.0.0.1:8080"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, CleanDomain(tt.raw), "CleanDomain(%q)", tt.raw)
	}
}

func TestSeedURL(t *testing.T) {
	assert.Equal(t, "https://example.com/", SeedURL("example.com"), "https is assumed when no scheme is given")
	assert.Equal(t, "https://example.com/", SeedURL("https://example.com/"))
	assert.Equal(t, "http://example.com/", SeedURL("http://example.com"), "an explicit http scheme is preserved")
	assert.Equal(t, "http://127.0.0.1:8080/", SeedURL("http://127.0.0.1:8080"))
}

func TestParseMaxPages(t *testing.T) {
	assert.Equal(t, 50, ParseMaxPages("50", DefaultMaxPages))
	assert.Equal(t, DefaultMaxPages, ParseMaxPages("abc", DefaultMaxPages), "non-numeric input falls back to the default")
	assert.Equal(t, DefaultMaxPages, ParseMaxPages("0", DefaultMaxPages), "zero is not a valid limit")
	assert.Equal(t, DefaultMaxPages, ParseMaxPages("-3", DefaultMaxPages))
}

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 5, config.Crawler.Concurrency)
	assert.Equal(t, DefaultMaxPages, config.Crawler.MaxPages)
	assert.Equal(t, 3, config.Crawler.CheckpointEvery)
	assert.Equal(t, 10, config.Verifier.Concurrency)
	assert.Equal(t, 10*time.Second, config.Verifier.CheckTimeout)
	assert.Equal(t, 2, config.Verifier.RetryCount)
	assert.Equal(t, 100, config.Cache.Capacity)
	assert.Equal(t, 10, config.Audits.Keep)
	assert.Equal(t, "info", config.Logging.Level)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "siteaudit.toml")
	content := `
data_dir = "/var/lib/siteaudit"

[crawler]
concurrency = 12
max_pages = 500

[verifier]
retry_count = 5

[audits]
keep = 3

[logging]
level = "debug"
output = ["stdout", "file"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/siteaudit", config.DataDir)
	assert.Equal(t, 12, config.Crawler.Concurrency)
	assert.Equal(t, 500, config.Crawler.MaxPages)
	assert.Equal(t, 5, config.Verifier.RetryCount)
	assert.Equal(t, 3, config.Audits.Keep)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, []string{"stdout", "file"}, config.Logging.Output)

	// Untouched sections keep their defaults.
	assert.Equal(t, 3, config.Crawler.CheckpointEvery)
	assert.Equal(t, 10, config.Verifier.Concurrency)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err, "an explicitly named config file must exist")
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[crawler\nconcurrency ="), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
