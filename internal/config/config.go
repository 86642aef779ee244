package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix = "SELFBOT"

	DefaultLogDir     = "Logs"
	DefaultGatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"
	DefaultAPIURL     = "https://discord.com/api/v10"
)

// DefaultExtensions is the fixed, ordered extension list loaded at startup.
var DefaultExtensions = []string{
	"cmds",
	"cogs",
	"debug",
	"google",
	"info",
	"log",
	"mal",
	"misc",
	"msg",
	"tools",
}

// Config is the typed view of the document, read once at startup.
type Config struct {
	Prefix         []string `mapstructure:"-"`
	Token          string   `mapstructure:"token"`
	Extensions     []string `mapstructure:"extensions"`
	LogDir         string   `mapstructure:"log_dir"`
	MetricsAddr    string   `mapstructure:"metrics_addr"`
	GatewayURL     string   `mapstructure:"gateway_url"`
	APIURL         string   `mapstructure:"api_url"`
}

// Load builds a Config from the store contents, defaults and SELFBOT_*
// environment overrides.
func Load(store *Store, v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	v.SetDefault(KeyToken, "")
	v.SetDefault(KeyExtensions, DefaultExtensions)
	v.SetDefault(KeyLogDir, DefaultLogDir)
	v.SetDefault(KeyMetricsAddr, "")
	v.SetDefault(KeyGatewayURL, DefaultGatewayURL)
	v.SetDefault(KeyAPIURL, DefaultAPIURL)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.MergeConfigMap(store.Snapshot()); err != nil {
		return Config{}, fmt.Errorf("merge config document: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Prefix = stringList(v.Get(KeyPrefix))

	if cfg.Token == "" {
		return Config{}, ErrMissingToken
	}
	return cfg, nil
}

// stringList accepts the two shapes "prefix" takes: a single string or a list.
func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
