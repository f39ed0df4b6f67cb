package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultOutput, cfg.Output)
	assert.Equal(t, 90*time.Second, cfg.Timeouts.Draft)
	assert.Equal(t, 130*time.Second, cfg.Timeouts.Execute)
	assert.Equal(t, 35*time.Second, cfg.Timeouts.Answer)
	assert.Equal(t, 120*time.Second, cfg.Timeouts.Visualize)
	assert.Equal(t, DefaultServeAddr, cfg.Serve.Addr)
	assert.Empty(t, cfg.FileUsed)
	assert.Error(t, cfg.Validate())
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clinsight.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_url: https://api.example.org
user_id: demo
timeouts:
  draft: 10s
dashboards: boards/dashboards.yaml
`), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.org", cfg.BaseURL)
	assert.Equal(t, "demo", cfg.UserID)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Draft)
	// Unset stages keep their defaults.
	assert.Equal(t, 130*time.Second, cfg.Timeouts.Execute)
	// Relative dashboards path resolves against the config file.
	assert.Equal(t, filepath.Join(dir, "boards", "dashboards.yaml"), cfg.Dashboards)
	assert.Equal(t, path, cfg.FileUsed)
	assert.NoError(t, cfg.Validate())
}

func TestLoadUpwardSearch(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "clinsight.yml"), []byte("base_url: https://up.example.org\n"), 0o644))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://up.example.org", cfg.BaseURL)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clinsight.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: https://file.example.org\n"), 0o644))
	t.Setenv("CLINSIGHT_BASE_URL", "https://env.example.org")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.org", cfg.BaseURL)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CLINSIGHT_BASE_URL", "https://env.example.org")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("base-url", "", "")
	flags.String("state", "", "")
	flags.String("addr", "", "")
	flags.Bool("persist", false, "")
	require.NoError(t, flags.Parse([]string{
		"--base-url", "https://flag.example.org",
		"--state", "custom.db",
		"--addr", ":9000",
		"--persist",
	}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "https://flag.example.org", cfg.BaseURL)
	assert.Equal(t, "custom.db", cfg.StatePath)
	assert.Equal(t, ":9000", cfg.Serve.Addr)
	assert.True(t, cfg.Persist)
}

func TestLoadUnchangedFlagsIgnored(t *testing.T) {
	t.Chdir(t.TempDir())

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("base-url", "https://default-flag.example.org", "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	// A flag left at its default does not override anything.
	assert.Empty(t, cfg.BaseURL)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clinsight.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: [broken"), 0o644))

	_, err := Load(path, nil)
	assert.Error(t, err)
}
