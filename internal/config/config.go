// Package config resolves the runtime configuration of the formwizard
// binaries from flags, environment (FORMWIZARD_ prefix) and an optional
// config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// StoreType selects the progress store backend.
type StoreType string

const (
	StoreMemory StoreType = "memory"
	StoreRedis  StoreType = "redis"
	StoreSQLite StoreType = "sqlite"
)

// EnvPrefix namespaces the environment overrides.
const EnvPrefix = "FORMWIZARD"

// Config is the resolved runtime configuration.
type Config struct {
	LogLevel    string
	LogEncoding string

	ConfigDir  string
	ListenAddr string

	Store      StoreType
	Codec      string
	RedisAddrs []string
	RedisDB    int
	RedisPass  string
	Namespace  string
	SQLitePath string
	StashTTL   time.Duration

	ServicesURL   string
	ServicesToken string
	ReturnURL     string

	EmailFrom   string
	EmailStream string
	LayoutsDir  string

	PlaceholderFallback string
	EventsPerSecond     float64
	EventBurst          int
}

// BindFlags registers the shared flags on fs and binds them to v.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	fs.String("config-file", "", "Path to config file.")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("log-encoding", "json", "log encoding (json or console)")
	fs.String("config-dir", "./configs", "directory holding application documents")
	fs.String("listen-addr", ":8080", "HTTP listen address")
	fs.String("store", string(StoreMemory), "progress store backend (memory, redis, sqlite)")
	fs.String("codec", "json", "snapshot codec (json or msgpack)")
	fs.String("redis-addr", "localhost:6379", "comma separated list of redis host:port")
	fs.Int("redis-db", 0, "redis database index")
	fs.String("redis-password", "", "redis password")
	fs.String("namespace", "formwizard", "namespace used in storage keys")
	fs.String("sqlite-path", "formwizard.db", "sqlite database file")
	fs.Duration("stash-ttl", 2*time.Hour, "lifetime of the payment stash")
	fs.String("services-url", "", "base URL of the backend services")
	fs.String("services-token", "", "bearer token for the backend services")
	fs.String("return-url", "", "payment return URL template ({session}, {app} placeholders)")
	fs.String("email-from", "", "default email sender")
	fs.String("email-stream", "outbound", "default email message stream")
	fs.String("layouts-dir", "", "directory of pongo2 email layouts")
	fs.String("placeholder-fallback", "", "text substituted for unresolved placeholders")
	fs.Float64("events-per-second", 10, "per-session event rate limit")
	fs.Int("event-burst", 20, "per-session event burst")
	return v.BindPFlags(fs)
}

// Load reads the optional config file, applies environment overrides and
// returns the validated configuration.
func Load(v *viper.Viper) (Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config-file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("config: read %s: %w", file, err)
			}
		}
	}

	cfg := Config{
		LogLevel:            v.GetString("log-level"),
		LogEncoding:         v.GetString("log-encoding"),
		ConfigDir:           v.GetString("config-dir"),
		ListenAddr:          v.GetString("listen-addr"),
		Store:               StoreType(strings.ToLower(v.GetString("store"))),
		Codec:               strings.ToLower(v.GetString("codec")),
		RedisAddrs:          splitList(v.GetString("redis-addr")),
		RedisDB:             v.GetInt("redis-db"),
		RedisPass:           v.GetString("redis-password"),
		Namespace:           v.GetString("namespace"),
		SQLitePath:          v.GetString("sqlite-path"),
		StashTTL:            v.GetDuration("stash-ttl"),
		ServicesURL:         v.GetString("services-url"),
		ServicesToken:       v.GetString("services-token"),
		ReturnURL:           v.GetString("return-url"),
		EmailFrom:           v.GetString("email-from"),
		EmailStream:         v.GetString("email-stream"),
		LayoutsDir:          v.GetString("layouts-dir"),
		PlaceholderFallback: v.GetString("placeholder-fallback"),
		EventsPerSecond:     v.GetFloat64("events-per-second"),
		EventBurst:          v.GetInt("event-burst"),
	}
	return cfg, cfg.Validate()
}

// Validate rejects unknown backends and codecs.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreSQLite:
	case StoreRedis:
		if len(c.RedisAddrs) == 0 {
			return errors.New("config: redis store needs at least one redis-addr")
		}
	default:
		return fmt.Errorf("config: unknown store %q", c.Store)
	}
	switch c.Codec {
	case "json", "msgpack":
	default:
		return fmt.Errorf("config: unknown codec %q", c.Codec)
	}
	if c.StashTTL <= 0 {
		return errors.New("config: stash-ttl must be positive")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
