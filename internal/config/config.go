package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	SMTP         SMTPConfig
	JWT          JWTConfig
	Scheduler    SchedulerConfig
	SLA          SLAConfig
	Notification NotificationConfig
	Sequence     SequenceConfig
}

type ServerConfig struct {
	Port           int  `mapstructure:"port"`
	TimeoutSeconds int  `mapstructure:"timeoutSeconds"`
	MemoryStore    bool `mapstructure:"memory_store"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	URL          string `mapstructure:"url"`
	MaxRetries   int    `mapstructure:"max_retries"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	// Domain builds a fallback address for user recipients.
	Domain string `mapstructure:"domain"`
	// RoleAddresses maps recipient roles to shared mailboxes.
	RoleAddresses map[string]string `mapstructure:"role_addresses"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type SchedulerConfig struct {
	SweepIntervalMinutes   int `mapstructure:"sweep_interval_minutes"`
	DrainIntervalMinutes   int `mapstructure:"drain_interval_minutes"`
	RollupIntervalHours    int `mapstructure:"rollup_interval_hours"`
	CleanupIntervalDays    int `mapstructure:"cleanup_interval_days"`
	RetentionDays          int `mapstructure:"retention_days"`
	RuleCacheRefreshMinute int `mapstructure:"rule_cache_refresh_minutes"`
}

func (c SchedulerConfig) SweepInterval() time.Duration {
	return time.Duration(orDefault(c.SweepIntervalMinutes, 15)) * time.Minute
}

func (c SchedulerConfig) DrainInterval() time.Duration {
	return time.Duration(orDefault(c.DrainIntervalMinutes, 2)) * time.Minute
}

func (c SchedulerConfig) RollupInterval() time.Duration {
	return time.Duration(orDefault(c.RollupIntervalHours, 24)) * time.Hour
}

func (c SchedulerConfig) CleanupInterval() time.Duration {
	return time.Duration(orDefault(c.CleanupIntervalDays, 7)) * 24 * time.Hour
}

func (c SchedulerConfig) Retention() time.Duration {
	return time.Duration(orDefault(c.RetentionDays, 30)) * 24 * time.Hour
}

func (c SchedulerConfig) RuleCacheRefresh() time.Duration {
	return time.Duration(orDefault(c.RuleCacheRefreshMinute, 5)) * time.Minute
}

type SLAConfig struct {
	WarningLookaheadHours int `mapstructure:"warning_lookahead_hours"`
	WarningDedupHours     int `mapstructure:"warning_dedup_hours"`
}

func (c SLAConfig) WarningLookahead() time.Duration {
	return time.Duration(orDefault(c.WarningLookaheadHours, 4)) * time.Hour
}

func (c SLAConfig) WarningDedup() time.Duration {
	return time.Duration(orDefault(c.WarningDedupHours, 2)) * time.Hour
}

type NotificationConfig struct {
	BatchSize          int `mapstructure:"batch_size"`
	MaxAttempts        int `mapstructure:"max_attempts"`
	SendTimeoutSeconds int `mapstructure:"send_timeout_seconds"`
	RatePerSecond      int `mapstructure:"rate_per_second"`
}

func (c NotificationConfig) SendTimeout() time.Duration {
	return time.Duration(orDefault(c.SendTimeoutSeconds, 10)) * time.Second
}

type SequenceConfig struct {
	Prefix string `mapstructure:"prefix"`
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Sequence.Prefix == "" {
		config.Sequence.Prefix = "VESPL"
	}

	return &config, nil
}
