package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Loader is a lightweight wrapper around koanf for loading configuration
// from files and environment variables
type Loader struct {
	k          *koanf.Koanf
	configPath string
}

// NewLoader creates a new configuration loader that reads from a file
// and overlays environment variable overrides with IDPSYNC_ prefix.
//
// The file format (JSON, YAML, or TOML) is auto-detected from the extension.
// If configPath is empty, only environment variables and defaults are loaded.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (IDPSYNC_*)
//  2. Configuration file (if provided)
//  3. Built-in defaults
func NewLoader(configPath string) (*Loader, error) {
	return newLoader(configPath, nil)
}

// NewLoaderWithFlags creates a new configuration loader with command-line
// flag support. Flags take precedence over environment variables.
func NewLoaderWithFlags(configPath string, flags *pflag.FlagSet) (*Loader, error) {
	return newLoader(configPath, flags)
}

// getDefaults returns the default configuration values
func getDefaults() map[string]interface{} {
	return map[string]interface{}{
		"UpdateIntervalSeconds": 21600,
		"server.http_port":      8080,
		"server.static_dir":     "static",
	}
}

// newLoader is the internal loader implementation
func newLoader(configPath string, flags *pflag.FlagSet) (*Loader, error) {
	k := koanf.New(".")

	// Load defaults (lowest precedence)
	if err := k.Load(confmap.Provider(getDefaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Load from file if provided. A missing or unreadable file is fatal.
	if configPath != "" {
		parser, err := getParserForFile(configPath)
		if err != nil {
			return nil, err
		}

		if err := k.Load(file.Provider(configPath), parser); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Load environment variable overrides with IDPSYNC_ prefix.
	// Double underscore (__) nests: IDPSYNC_SERVER__HTTP_PORT -> server.http_port
	if err := k.Load(env.Provider("IDPSYNC_", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Load command-line flags (highest precedence)
	if flags != nil {
		flagMapping := GetFlagMapping()

		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			configKey, ok := flagMapping[f.Name]
			if !ok {
				return "", nil
			}
			// Only override if the flag was explicitly set
			if !f.Changed {
				return "", nil
			}
			return configKey, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load command-line flags: %w", err)
		}
	}

	return &Loader{
		k:          k,
		configPath: configPath,
	}, nil
}

// Get unmarshals the configuration into a Config struct
func (l *Loader) Get() (*Config, error) {
	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

// RegisterFlags registers all config override flags on the given flag set
func RegisterFlags(flags *pflag.FlagSet) {
	flags.Int("http-port", 8080, "Port for the status/static HTTP listener")
	flags.String("static-dir", "static", "Directory served for non-status requests")
	flags.Int("update-interval-seconds", 21600, "Seconds between reconciliation ticks")
}

// GetFlagMapping maps flag names to config keys
func GetFlagMapping() map[string]string {
	return map[string]string{
		"http-port":               "server.http_port",
		"static-dir":              "server.static_dir",
		"update-interval-seconds": "UpdateIntervalSeconds",
	}
}

// getParserForFile returns the appropriate koanf parser based on file extension
func getParserForFile(path string) (koanf.Parser, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json, .toml)", ext)
	}
}

// legacyKeys maps lowercased env-var names onto the legacy CamelCase keys
// of the config file format
var legacyKeys = map[string]string{
	"update_interval_seconds": "UpdateIntervalSeconds",
	"idps":                    "IdPs",
	"couchdbservers":          "CouchDBservers",
}

// envTransform transforms environment variable names to config keys:
//
//	IDPSYNC_SERVER__HTTP_PORT       -> server.http_port
//	IDPSYNC_UPDATE_INTERVAL_SECONDS -> UpdateIntervalSeconds
func envTransform(s string) string {
	s = strings.TrimPrefix(s, "IDPSYNC_")
	s = strings.ToLower(s)
	if key, ok := legacyKeys[s]; ok {
		return key
	}
	return strings.ReplaceAll(s, "__", ".")
}
