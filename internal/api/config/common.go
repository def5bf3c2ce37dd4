package config

import (
	"time"

	"Ephemera/internal/pkg/decay"
	"Ephemera/internal/pkg/tier"
)

// Config 配置主体
type Config struct {
	Server              ServerConfig        `mapstructure:"server"`
	DB                  DBConfig            `mapstructure:"database"`
	Redis               RedisConfig         `mapstructure:"redis"`
	Mongo               MongoConfig         `mapstructure:"mongo"`
	Kafka               KafkaConfig         `mapstructure:"kafka"`
	KafkaNotifyConsumer KafkaNotifyConsumer `mapstructure:"kafka_notify_consumer"`
	Logstash            LogstashConfig      `mapstructure:"logstash"`
	JWT                 JWTConfig           `mapstructure:"jwt"`
	Chat                ChatConfig          `mapstructure:"chat"`
	Push                PushConfig          `mapstructure:"push"`
	Tiers               tier.Table          `mapstructure:"tiers"`
}

// ServerConfig Server配置
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
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

type MongoConfig struct {
	URL      string `mapstructure:"url"`
	Database string `mapstructure:"database"`
}

type KafkaConfig struct {
	Brokers  []string       `mapstructure:"brokers"`
	Sasl     SaslConfig     `mapstructure:"sasl"`
	Consumer ConsumerConfig `mapstructure:"consumer"`
}

type SaslConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type ConsumerConfig struct {
	SessionTimeout    int `mapstructure:"session_timeout"`
	HeartbeatInterval int `mapstructure:"heartbeat_interval"`
	RebalanceTimeout  int `mapstructure:"rebalance_timeout"`
	MaxProcessingTime int `mapstructure:"max_processing_time"`
}

// KafkaNotifyConsumer 新消息推送通知消费者
type KafkaNotifyConsumer struct {
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// LogstashConfig 远程日志，Addr 为空时只输出到标准输出
type LogstashConfig struct {
	Addr  string `mapstructure:"addr"`
	Level string `mapstructure:"level"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// ChatConfig 消息生命周期参数
type ChatConfig struct {
	EditWindow      time.Duration `mapstructure:"edit_window"`
	Decay           decay.Policy  `mapstructure:"decay"`
	TickInterval    time.Duration `mapstructure:"tick_interval"`
	UnknownRefRetry time.Duration `mapstructure:"unknown_ref_retry"`
	PruneCron       string        `mapstructure:"prune_cron"`
}

// PushConfig Expo 推送
type PushConfig struct {
	Enable  bool          `mapstructure:"enable"`
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}
