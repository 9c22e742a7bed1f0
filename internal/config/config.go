// Package config loads wallet settings from an optional YAML file and
// DEVICEWALLET_* environment variables.
package config

import (
	"strings"
	"time"

	"github.com/OKaluzny/devicewallet/internal/coin"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// DEVICEWALLET_BACKEND_URL for backend.url.
const EnvPrefix = "DEVICEWALLET"

// Config holds all configurable parameters of the wallet.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
	Listener ListenerConfig `mapstructure:"listener"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

type BackendConfig struct {
	URL       string        `mapstructure:"url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit int           `mapstructure:"rate_limit"` // requests per second, 0 = unlimited
	PageSize  int           `mapstructure:"page_size"`
}

type WalletConfig struct {
	Coin string `mapstructure:"coin"`
	// Mnemonic seeds the software device.
	Mnemonic   string `mapstructure:"mnemonic"`
	Passphrase string `mapstructure:"passphrase"`
	// MaxAccounts caps discovery, 0 = until the first unused account.
	MaxAccounts uint32 `mapstructure:"max_accounts"`
	// Validity is the default transaction validity window, 0 = chain default.
	Validity time.Duration `mapstructure:"validity"`
}

type ListenerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxPages     int           `mapstructure:"max_pages"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("backend.url", "http://127.0.0.1:50001/api/")
	v.SetDefault("backend.timeout", 30*time.Second)
	v.SetDefault("backend.rate_limit", 0)
	v.SetDefault("backend.page_size", 10)

	v.SetDefault("wallet.coin", "Stellar")
	v.SetDefault("wallet.mnemonic", "")
	v.SetDefault("wallet.passphrase", "")
	v.SetDefault("wallet.max_accounts", 0)
	v.SetDefault("wallet.validity", 0)

	v.SetDefault("listener.poll_interval", 10*time.Second)
	v.SetDefault("listener.max_pages", 1)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Default returns the built-in defaults, ignoring files and environment.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Load reads file when given, otherwise devicewallet.yaml from the working
// directory or ./config if present, then applies environment overrides.
func Load(file string) (Config, error) {
	v := newViper()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("devicewallet")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, errors.Wrap(err, "read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values no component can work without.
func (c Config) Validate() error {
	if _, err := coin.Get(c.Wallet.Coin); err != nil {
		return errors.WithMessage(err, "wallet.coin")
	}
	if c.Backend.URL == "" {
		return errors.New("backend.url is empty")
	}
	if c.Backend.RateLimit < 0 || c.Backend.PageSize < 0 || c.Listener.MaxPages < 0 {
		return errors.New("rate_limit, page_size and max_pages must not be negative")
	}
	return nil
}
