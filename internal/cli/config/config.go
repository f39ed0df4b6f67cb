// Package config loads CLI configuration for clinsight.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/leapstack-labs/clinsight/internal/api"
	"github.com/spf13/pflag"
)

// maxUpwardSearchLevels limits how far up the directory tree the config
// file search goes.
const maxUpwardSearchLevels = 10

// Default configuration values.
const (
	DefaultOutput     = "auto" // Auto-detect: TTY=table, non-TTY=markdown
	DefaultDashboards = "dashboards.yaml"
	DefaultServeAddr  = ":8765"
)

// ServeConfig holds the serve command's options.
type ServeConfig struct {
	Addr       string `koanf:"addr"`
	SessionKey string `koanf:"session_key"`
	// SecureCookies is off by default; the local server speaks plain
	// HTTP. Turn it on when serving behind TLS.
	SecureCookies bool `koanf:"secure_cookies"`
}

// Config holds all CLI configuration options.
type Config struct {
	BaseURL    string       `koanf:"base_url"`
	Token      string       `koanf:"token"`
	UserID     string       `koanf:"user_id"`
	Output     string       `koanf:"output"`
	Verbose    bool         `koanf:"verbose"`
	Persist    bool         `koanf:"persist"`
	StatePath  string       `koanf:"state_path"`
	Dashboards string       `koanf:"dashboards"`
	Timeouts   api.Timeouts `koanf:"timeouts"`
	Serve      ServeConfig  `koanf:"serve"`

	// FileUsed is the config file that was loaded, "" when none.
	FileUsed string `koanf:"-"`
}

// Validate checks the fields every backend call needs.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("base_url is required (flag --base-url, env CLINSIGHT_BASE_URL, or clinsight.yaml)")
	}
	return nil
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".clinsight", "clinsight.db")
	}
	return filepath.Join(home, ".clinsight", "clinsight.db")
}

func configExistsIn(dir string) string {
	for _, name := range []string{"clinsight.yaml", "clinsight.yml"} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findConfigFile searches upward from the working directory for a
// clinsight config file. Returns "" when none is found.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if found := configExistsIn(dir); found != "" {
			return found
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// Load loads configuration from file, environment variables, and flags.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"output":             DefaultOutput,
		"verbose":            false,
		"persist":            false,
		"state_path":         defaultStatePath(),
		"dashboards":         DefaultDashboards,
		"timeouts.draft":     "90s",
		"timeouts.execute":   "130s",
		"timeouts.answer":    "35s",
		"timeouts.visualize": "120s",
		"serve.addr":         DefaultServeAddr,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file (explicit path, or upward search)
	fileUsed := findConfigFile(cfgFile)
	if fileUsed != "" {
		if err := k.Load(file.Provider(fileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", fileUsed, err)
		}
	}

	// 3. Environment variables: CLINSIGHT_BASE_URL -> base_url
	if err := k.Load(env.Provider("CLINSIGHT_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "CLINSIGHT_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags, explicitly set only
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			if key == "state" {
				return "state_path", posflag.FlagVal(flags, f)
			}
			if key == "addr" {
				return "serve.addr", posflag.FlagVal(flags, f)
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.FileUsed = fileUsed

	// Relative paths in the config file resolve against its directory.
	if fileUsed != "" {
		base := filepath.Dir(fileUsed)
		if cfg.Dashboards != "" && !filepath.IsAbs(cfg.Dashboards) {
			cfg.Dashboards = filepath.Join(base, cfg.Dashboards)
		}
	}
	return &cfg, nil
}
