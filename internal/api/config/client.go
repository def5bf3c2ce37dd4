package config

import "Ephemera/internal/pkg/tier"

// ClientConfig 终端客户端配置
type ClientConfig struct {
	Gateway   GatewayConfig  `mapstructure:"gateway"`
	SelfID    uint64         `mapstructure:"self_id"`
	PeerID    uint64         `mapstructure:"peer_id"`
	PushToken string         `mapstructure:"push_token"`
	LogLevel  string         `mapstructure:"log_level"`
	Chat      ChatConfig     `mapstructure:"chat"`
	Push      PushConfig     `mapstructure:"push"`
	Tiers     tier.Table     `mapstructure:"tiers"`
}

// GatewayConfig 同步网关地址与凭证
type GatewayConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
	Timeout int    `mapstructure:"timeout"`
}
