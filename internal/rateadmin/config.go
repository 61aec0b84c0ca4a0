package rateadmin

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/marcus-miao/tagqueue/pkg/rvadmission"
	"github.com/spf13/viper"
)

// Config holds the admin HTTP server's tunables. Values come from the
// defaults below, then the optional YAML file passed to LoadConfig, and are
// overridable by TAGQUEUE_* environment variables (including any loaded
// from .env through godotenv before viper reads them).
type Config struct {
	Addr              string        `mapstructure:"admin_addr"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	EpochInterval     time.Duration `mapstructure:"epoch_interval"`
	MaxDeferredEpochs int64         `mapstructure:"max_deferred_epochs"`
	BurstMultiplier   float64       `mapstructure:"burst_multiplier"`
	MetricsPath       string        `mapstructure:"metrics_path"`
}

func defaultConfig() Config {
	return Config{
		Addr:              ":8080",
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
		EpochInterval:     100 * time.Millisecond,
		MaxDeferredEpochs: 50,
		BurstMultiplier:   rvadmission.DefaultBurstMultiplier,
		MetricsPath:       "/metrics",
	}
}

// LoadConfig reads .env (if present, silently skipped otherwise) into the
// process environment, then layers a YAML config file named by configFile
// on top of the defaults. An empty configFile skips the file read entirely,
// leaving the defaults (and any TAGQUEUE_* env overrides) in effect.
func LoadConfig(configFile string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("tagqueue")
	v.AutomaticEnv()

	cfg := defaultConfig()
	v.SetDefault("admin_addr", cfg.Addr)
	v.SetDefault("read_timeout", cfg.ReadTimeout)
	v.SetDefault("write_timeout", cfg.WriteTimeout)
	v.SetDefault("epoch_interval", cfg.EpochInterval)
	v.SetDefault("max_deferred_epochs", cfg.MaxDeferredEpochs)
	v.SetDefault("burst_multiplier", cfg.BurstMultiplier)
	v.SetDefault("metrics_path", cfg.MetricsPath)

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read admin config %q: %w", configFile, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal admin config: %w", err)
	}
	return cfg, nil
}
