// Package config loads the broker's typed configuration, grounded on the
// teacher's internal/infrastructure/configs (koanf, file+env, a
// DetermineConfigPath-style search), extended with a posflag layer for
// the start subcommand's CLI flags.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	flag "github.com/spf13/pflag"
)

const envPrefix = "SYNCBROKER_"

type ServerConfig struct {
	Port     int    `koanf:"port"`
	Hostname string `koanf:"hostname"`
}

type LoggerConfig struct {
	RunMode string `koanf:"runmode"`
}

// TracingConfig, AuditConfig and EventsConfig leaf names avoid internal
// underscores on purpose: the env layer maps SYNCBROKER_A_B to "a.b", so a
// multi-word leaf like "jaeger_endpoint" would collide with that dotting.
type TracingConfig struct {
	JaegerEndpoint string `koanf:"jaegerendpoint"`
	OTLPEndpoint   string `koanf:"otlpendpoint"`
	ServiceName    string `koanf:"servicename"`
}

type AuditConfig struct {
	MongoURI string `koanf:"mongouri"`
	Database string `koanf:"database"`
}

type EventsConfig struct {
	AMQPURL string `koanf:"amqpurl"`
}

// Config is the broker's full typed configuration tree.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Logger  LoggerConfig  `koanf:"logger"`
	Tracing TracingConfig `koanf:"tracing"`
	Audit   AuditConfig   `koanf:"audit"`
	Events  EventsConfig  `koanf:"events"`
}

var builtinDefaults = map[string]any{
	"server.port":         8100,
	"server.hostname":     "localhost",
	"logger.runmode":      "production",
	"tracing.servicename": "syncbroker",
	"audit.database":      "syncbroker",
}

// findConfigFile mirrors the teacher's DetermineConfigPath: an explicit
// path wins, then a short list of conventional locations.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}

	candidates := []string{
		"./config.yaml",
		"./config.yml",
		"/etc/syncbroker/config.yaml",
		"/app/config.yaml",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Load builds the final Config from, in ascending precedence: built-in
// defaults, an optional YAML file, SYNCBROKER_-prefixed environment
// variables, and CLI flags (flagSet may be nil to skip that layer).
func Load(configPath string, flagSet *flag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(builtinDefaults, "."), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path := findConfigFile(configPath); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	envKeyMap := func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}
	if err := k.Load(env.Provider(envPrefix, ".", envKeyMap), nil); err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}

	if flagSet != nil {
		// The start subcommand's flags are flat (--port, --hostname) while
		// the config tree nests them under "server"; map that explicitly
		// rather than renaming the user-facing flags to match the tree.
		flagKey := func(f *flag.Flag) (string, any) {
			switch f.Name {
			case "port", "hostname":
				return "server." + f.Name, f.Value.String()
			default:
				return f.Name, f.Value.String()
			}
		}
		if err := k.Load(posflag.ProviderWithFlag(flagSet, ".", k, flagKey), nil); err != nil {
			return nil, fmt.Errorf("config: load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}
