package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// Cfg 全局可访问的配置实例
var Cfg *Config

// LoadConfig 从文件加载配置并填充到 Cfg
func LoadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")

	viper.SetDefault("support.poll.max_timeout_seconds", 8)
	viper.SetDefault("support.poll.interval_ms", 500)
	viper.SetDefault("support.poll.lock_grace_seconds", 2)
	viper.SetDefault("support.sla.warn_seconds", 120)
	viper.SetDefault("support.sla.breach_seconds", 600)
	viper.SetDefault("support.presence.online_window_minutes", 5)
	viper.SetDefault("support.janitor.idle_close_hours", 72)

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("config file not found: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	Normalize(&cfg)
	Cfg = &cfg

	return nil
}

// Normalize 收敛非法配置，保证分级阈值恒有 warn < breach
func Normalize(cfg *Config) {
	if cfg.Support.SLA.WarnSeconds < 30 {
		cfg.Support.SLA.WarnSeconds = 30
	}
	if cfg.Support.SLA.BreachSeconds < cfg.Support.SLA.WarnSeconds+60 {
		cfg.Support.SLA.BreachSeconds = cfg.Support.SLA.WarnSeconds + 60
	}

	if cfg.Support.Poll.MaxTimeoutSeconds <= 0 {
		cfg.Support.Poll.MaxTimeoutSeconds = 8
	}
	if cfg.Support.Poll.IntervalMs <= 0 {
		cfg.Support.Poll.IntervalMs = 500
	}
	if cfg.Support.Poll.LockGraceSeconds <= 0 {
		cfg.Support.Poll.LockGraceSeconds = 2
	}
	if cfg.Support.Presence.OnlineWindowMinutes <= 0 {
		cfg.Support.Presence.OnlineWindowMinutes = 5
	}
	if cfg.Support.Janitor.IdleCloseHours <= 0 {
		cfg.Support.Janitor.IdleCloseHours = 72
	}
}
