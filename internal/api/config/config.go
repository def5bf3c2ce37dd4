package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"Ephemera/internal/pkg/decay"
	"Ephemera/internal/pkg/tier"
)

// Cfg 全局可访问的配置实例
var Cfg *Config

const envPrefix = "EPHEMERA"

// LoadConfig 从 ./configs/config.yaml 加载服务端配置并填充到 Cfg
func LoadConfig() error {
	cfg, err := Load("./configs", "config")
	if err != nil {
		return err
	}
	Cfg = cfg
	return nil
}

// Load 从 dir/name.yaml 读取服务端配置，环境变量 EPHEMERA_* 覆盖文件
func Load(dir, name string) (*Config, error) {
	v := newViper(dir, name)
	setServerDefaults(v)
	if err := read(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Chat.Decay.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadClientConfig 读取终端客户端配置
func LoadClientConfig(dir, name string) (*ClientConfig, error) {
	v := newViper(dir, name)
	setChatDefaults(v)
	v.SetDefault("gateway.base_url", "http://localhost:8080")
	v.SetDefault("gateway.timeout", 5)
	v.SetDefault("log_level", "info")
	v.SetDefault("push.url", "https://exp.host/--/api/v2/push/send")
	v.SetDefault("push.timeout", 5*time.Second)
	if err := read(v); err != nil {
		return nil, err
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal client config: %w", err)
	}
	if err := cfg.Chat.Decay.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newViper(dir, name string) *viper.Viper {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func read(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("config file not found: %w", err)
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

func setChatDefaults(v *viper.Viper) {
	p := decay.DefaultPolicy()
	v.SetDefault("chat.edit_window", 15*time.Second)
	v.SetDefault("chat.decay.text_grace", p.TextGrace)
	v.SetDefault("chat.decay.text_decay", p.TextDecay)
	v.SetDefault("chat.decay.emoji_lifespan", p.EmojiLifespan)
	v.SetDefault("chat.tick_interval", time.Second)
	v.SetDefault("chat.unknown_ref_retry", 5*time.Second)
	v.SetDefault("chat.prune_cron", "@every 1m")
}

func setServerDefaults(v *viper.Viper) {
	setChatDefaults(v)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("jwt.issuer", "Ephemera")
	v.SetDefault("jwt.ttl", 24*time.Hour)
	v.SetDefault("kafka_notify_consumer.topic", "ephemera-message-created")
	v.SetDefault("kafka_notify_consumer.group_id", "ephemera-notify")
	v.SetDefault("kafka.consumer.session_timeout", 10)
	v.SetDefault("kafka.consumer.heartbeat_interval", 3)
	v.SetDefault("kafka.consumer.rebalance_timeout", 60)
	v.SetDefault("kafka.consumer.max_processing_time", 1)
	v.SetDefault("push.url", "https://exp.host/--/api/v2/push/send")
	v.SetDefault("push.timeout", 5*time.Second)
}

// TierResolver 构建表情等级解析器，未配置时使用默认表
func TierResolver(t tier.Table) (*tier.Resolver, error) {
	if len(t) == 0 {
		t = tier.DefaultTable()
	}
	return tier.New(t)
}
