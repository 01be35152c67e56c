package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	DB          DBConfig          `mapstructure:"db"`
	Cron        CronConfig        `mapstructure:"cron"`
	Scenarios   ScenariosConfig   `mapstructure:"scenarios"`
	Simulation  SimulationConfig  `mapstructure:"simulation"`
	Causal      CausalConfig      `mapstructure:"causal"`
	SearchTerms SearchTermsConfig `mapstructure:"search_terms"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	AutoAdvance string `mapstructure:"auto_advance"`
	BatchSize   int    `mapstructure:"batch_size"`
}

type ScenariosConfig struct {
	SeedDir string `mapstructure:"seed_dir"`
}

type SimulationConfig struct {
	DefaultDurationDays int   `mapstructure:"default_duration_days"`
	MaxSeed             int64 `mapstructure:"max_seed"`
}

type CausalConfig struct {
	CacheSize            int     `mapstructure:"cache_size"`
	FlatThresholdPct     float64 `mapstructure:"flat_threshold_pct"`
	IntentShiftPoints    float64 `mapstructure:"intent_shift_points"`
	CrisisLowIntentPct   float64 `mapstructure:"crisis_low_intent_pct"`
	RecoveryLowIntentPct float64 `mapstructure:"recovery_low_intent_pct"`
	EarlyWindowDays      int     `mapstructure:"early_window_days"`
}

type SearchTermsConfig struct {
	ReportLimit int `mapstructure:"report_limit"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ADSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", false)
	v.SetDefault("cron.auto_advance", "@every 1m")
	v.SetDefault("cron.batch_size", 20)
	v.SetDefault("scenarios.seed_dir", "config/scenarios")
	v.SetDefault("simulation.default_duration_days", 7)
	v.SetDefault("simulation.max_seed", 2147483647)
	v.SetDefault("causal.cache_size", 512)
	v.SetDefault("causal.flat_threshold_pct", 1.0)
	v.SetDefault("causal.intent_shift_points", 10.0)
	v.SetDefault("causal.crisis_low_intent_pct", 35.0)
	v.SetDefault("causal.recovery_low_intent_pct", 30.0)
	v.SetDefault("causal.early_window_days", 3)
	v.SetDefault("search_terms.report_limit", 500)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
