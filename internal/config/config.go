package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Store struct {
	// Driver is "memory" or "sqlite".
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	PoolSize int    `mapstructure:"pool_size"`
}

// ICE is handed to clients unchanged before matching starts.
type ICE struct {
	STUNURLs   []string `mapstructure:"stun_urls"`
	TURNServer string   `mapstructure:"turn_server"`
	TURNUser   string   `mapstructure:"turn_user"`
	TURNSecret string   `mapstructure:"turn_secret"`
	// SharedSecret switches to time-limited HMAC credentials.
	SharedSecret  string        `mapstructure:"turn_shared_secret"`
	CredentialTTL time.Duration `mapstructure:"credential_ttl"`
}

type Rooms struct {
	DefaultNamespace string `mapstructure:"default_namespace"`
	// IdleTTL of zero keeps waiting rooms forever.
	IdleTTL      time.Duration `mapstructure:"idle_ttl"`
	ReapInterval time.Duration `mapstructure:"reap_interval"`
}

type Match struct {
	RateLimit  int           `mapstructure:"rate_limit"`
	RateWindow time.Duration `mapstructure:"rate_window"`
}

type Config struct {
	Mode           string        `mapstructure:"mode"`
	Port           int           `mapstructure:"port"`
	LogLevel       string        `mapstructure:"log_level"`
	Secret         string        `mapstructure:"secret"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`

	Store Store `mapstructure:"store"`
	ICE   ICE   `mapstructure:"ice"`
	Rooms Rooms `mapstructure:"rooms"`
	Match Match `mapstructure:"match"`
}

// Load reads config/config.<CONFIG_ENV>.yaml (dev by default) and applies
// environment overrides.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile is Load with an explicit file. A missing file is not an error.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)

	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("store", cfg.Store.Driver).Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("secret", "")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("allowed_origins", []string{"*"})

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.path", "./db/chatrooms.db")
	v.SetDefault("store.pool_size", 0)

	v.SetDefault("ice.stun_urls", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("ice.turn_server", "")
	v.SetDefault("ice.turn_user", "")
	v.SetDefault("ice.turn_secret", "")
	v.SetDefault("ice.turn_shared_secret", "")
	v.SetDefault("ice.credential_ttl", "24h")

	v.SetDefault("rooms.default_namespace", "dafRoulette")
	v.SetDefault("rooms.idle_ttl", "0s")
	v.SetDefault("rooms.reap_interval", "1m")

	v.SetDefault("match.rate_limit", 10)
	v.SetDefault("match.rate_window", "1m")
}

// bindEnv maps DAFCHAT_* variables plus the bare names the deployment
// already exports for the relay and the port.
func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix("DAFCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string][]string{
		"port":            {"DAFCHAT_PORT", "PORT"},
		"ice.turn_server": {"DAFCHAT_ICE_TURN_SERVER", "TURN_SERVER"},
		"ice.turn_user":   {"DAFCHAT_ICE_TURN_USER", "TURN_USER"},
		"ice.turn_secret": {"DAFCHAT_ICE_TURN_SECRET", "TURN_SECRET"},
	}
	for key, names := range bindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Mode {
	case "release", "debug", "test":
	default:
		errs = append(errs, fmt.Errorf("mode must be release, debug or test, got %q", c.Mode))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be in [1, 65535], got %d", c.Port))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.ReadLimit <= 0 {
		errs = append(errs, errors.New("read_limit must be positive"))
	}
	if c.PingPeriod <= 0 {
		errs = append(errs, errors.New("ping_period must be positive"))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, errors.New("send_buffer must be positive"))
	}
	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver must be memory or sqlite, got %q", c.Store.Driver))
	}
	if c.ICE.SharedSecret != "" && c.ICE.CredentialTTL <= 0 {
		errs = append(errs, errors.New("ice.credential_ttl must be positive with a shared secret"))
	}
	switch c.Rooms.DefaultNamespace {
	case "":
		errs = append(errs, errors.New("rooms.default_namespace is required"))
	case "private":
		errs = append(errs, errors.New("rooms.default_namespace must not be the reserved private namespace"))
	}
	if c.Mode == "release" && c.Secret == "" {
		errs = append(errs, errors.New("secret is required in release mode (set DAFCHAT_SECRET)"))
	}
	if c.Rooms.IdleTTL < 0 {
		errs = append(errs, errors.New("rooms.idle_ttl must not be negative"))
	}
	if c.Rooms.IdleTTL > 0 && c.Rooms.ReapInterval <= 0 {
		errs = append(errs, errors.New("rooms.reap_interval must be positive when idle_ttl is set"))
	}
	if c.Match.RateLimit < 0 {
		errs = append(errs, errors.New("match.rate_limit must not be negative"))
	}
	if c.Match.RateLimit > 0 && c.Match.RateWindow <= 0 {
		errs = append(errs, errors.New("match.rate_window must be positive when rate_limit is set"))
	}
	return errors.Join(errs...)
}
