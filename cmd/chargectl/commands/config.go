package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/chargectl/internal/app"
)

// envPrefix is stripped from environment variables during config loading (e.g., CHARGECTL_VEHICLE__ID → vehicle.id)
const envPrefix = "CHARGECTL_"

// loadDotenv exports variables from a dotenv file without overriding the
// real environment. A missing default file is not an error; a missing file
// that was asked for explicitly is.
func loadDotenv(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !explicit {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file: %w", err)
	}
	return nil
}

// resolveConfigPath returns the explicit config path, or the per-user default
// when it exists.
func resolveConfigPath(configPath string) string {
	if configPath != "" {
		return configPath
	}
	defaultPath, err := app.DefaultConfigFile()
	if err != nil {
		return ""
	}
	if _, err := os.Stat(defaultPath); err != nil {
		return ""
	}
	return defaultPath
}

// configLayer is one source of configuration values.
type configLayer struct {
	name     string
	provider koanf.Provider
	parser   koanf.Parser
}

// loadConfig merges chargectl's configuration layers, each overriding the
// ones before it:
//
//	TOML config file → CHARGECTL_* environment (dotenv values included) → explicitly set flags
//
// Unset keys then take their defaults and the result is validated. The dotenv
// file has already been exported into the process environment by loadDotenv,
// so it never outranks a real variable.
func loadConfig(configPath string, cmd *cli.Command, environFunc func() []string) (*app.Config, error) {
	var layers []configLayer
	if configPath != "" {
		layers = append(layers, configLayer{name: "config file", provider: file.Provider(configPath), parser: toml.Parser()})
	}
	layers = append(layers, configLayer{name: "environment variables", provider: envLayer(environFunc)})
	if cmd != nil {
		layers = append(layers, configLayer{name: "CLI flags", provider: confmap.Provider(configFlagValues(cmd), ".")})
	}

	k := koanf.New(".")
	for _, layer := range layers {
		if err := k.Load(layer.provider, layer.parser); err != nil {
			return nil, fmt.Errorf("loading %s: %w", layer.name, err)
		}
	}

	config := &app.Config{}
	if err := k.UnmarshalWithConf("", config, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := config.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// envLayer reads CHARGECTL_* variables, with a double underscore separating
// sections (CHARGECTL_AUTH__STORAGE → auth.storage).
func envLayer(environFunc func() []string) koanf.Provider {
	return env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return configKey(strings.TrimPrefix(key, envPrefix), "__", "_"), value
		},
		EnvironFunc: environFunc,
	})
}

// localFlags are command options, not configuration, and never reach koanf.
var localFlags = map[string]bool{
	"config":   true,
	"c":        true,
	"env-file": true,
	"type":     true,
	"t":        true,
	"ttl":      true,
	"reveal":   true,
}

// configFlagValues collects the configuration flags the user set on cmd or
// any of its parents, keyed like the config file (--vehicle--id → vehicle.id).
// Flags left at their default do not override earlier layers.
func configFlagValues(cmd *cli.Command) map[string]any {
	values := make(map[string]any)
	for _, name := range cmd.FlagNames() {
		if localFlags[name] || !cmd.IsSet(name) {
			continue
		}
		if value := cmd.Value(name); value != nil {
			values[configKey(name, "--", "-")] = value
		}
	}
	return values
}

// configKey maps a flag or variable name onto a dotted config key: sep marks
// a section boundary and word separates words within a key.
func configKey(name, sep, word string) string {
	key := strings.ReplaceAll(name, sep, ".")
	key = strings.ReplaceAll(key, word, "_")
	return strings.ToLower(key)
}
