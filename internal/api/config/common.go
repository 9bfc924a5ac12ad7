package config

// Config 配置主体
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	DB      DBConfig      `mapstructure:"database"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Support SupportConfig `mapstructure:"support"`
}

// ServerConfig Server配置
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DBConfig 数据库配置
type DBConfig struct {
	DSN         string `mapstructure:"dsn"`
	MaxIdle     int    `mapstructure:"max_idle"`
	MaxOpen     int    `mapstructure:"max_open"`
	MaxLifetime int    `mapstructure:"max_lifetime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// SupportConfig 客服会话引擎配置
type SupportConfig struct {
	Poll     PollConfig     `mapstructure:"poll"`
	SLA      SLAConfig      `mapstructure:"sla"`
	Presence PresenceConfig `mapstructure:"presence"`
	Push     PushConfig     `mapstructure:"push"`
	Janitor  JanitorConfig  `mapstructure:"janitor"`
}

// PollConfig 长轮询参数
type PollConfig struct {
	MaxTimeoutSeconds int `mapstructure:"max_timeout_seconds"` // 服务端硬上限
	IntervalMs        int `mapstructure:"interval_ms"`         // 空闲休眠间隔
	LockGraceSeconds  int `mapstructure:"lock_grace_seconds"`  // 锁 TTL 宽限
}

// SLAConfig 排队分级阈值
type SLAConfig struct {
	WarnSeconds   int `mapstructure:"warn_seconds"`
	BreachSeconds int `mapstructure:"breach_seconds"`
}

type PresenceConfig struct {
	OnlineWindowMinutes int `mapstructure:"online_window_minutes"`
}

// PushConfig Web Push 配置
type PushConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	VAPIDPublicKey  string `mapstructure:"vapid_public_key"`
	VAPIDPrivateKey string `mapstructure:"vapid_private_key"`
	Subject         string `mapstructure:"subject"`
	ClickURLBase    string `mapstructure:"click_url_base"`
}

type JanitorConfig struct {
	IdleCloseHours int `mapstructure:"idle_close_hours"`
}
