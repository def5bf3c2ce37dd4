package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Ephemera/internal/pkg/decay"
	"Ephemera/internal/pkg/tier"
)

func writeYAML(t *testing.T, name, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(body), 0o600))
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	dir := writeYAML(t, "config", "server:\n  port: 9090\n")

	cfg, err := Load(dir, "config")
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Chat.EditWindow)
	assert.Equal(t, decay.DefaultPolicy(), cfg.Chat.Decay)
	assert.Equal(t, "ephemera-message-created", cfg.KafkaNotifyConsumer.Topic)
	assert.Equal(t, 24*time.Hour, cfg.JWT.TTL)
}

func TestLoad_OverridesAndTiers(t *testing.T) {
	dir := writeYAML(t, "config", `
chat:
  edit_window: 30s
  decay:
    text_grace: 1m
    text_decay: 2m
    emoji_lifespan: 90s
tiers:
  heart:
    - {threshold: 0, glyph: "a"}
    - {threshold: 10, glyph: "b"}
`)

	cfg, err := Load(dir, "config")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Chat.EditWindow)
	assert.Equal(t, time.Minute, cfg.Chat.Decay.TextGrace)
	assert.Equal(t, 90*time.Second, cfg.Chat.Decay.EmojiLifespan)
	require.Len(t, cfg.Tiers["heart"], 2)
	assert.Equal(t, tier.Level{Threshold: 10, Glyph: "b"}, cfg.Tiers["heart"][1])

	// 缺少其他分类：启动时报错
	_, err = TierResolver(cfg.Tiers)
	require.ErrorIs(t, err, tier.ErrConfiguration)
}

func TestLoad_InvalidDecay(t *testing.T) {
	dir := writeYAML(t, "config", "chat:\n  decay:\n    text_decay: 0s\n")
	_, err := Load(dir, "config")
	require.ErrorIs(t, err, decay.ErrInvalidPolicy)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(t.TempDir(), "config")
	require.Error(t, err)
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := writeYAML(t, "config", "server:\n  port: 9090\n")
	t.Setenv("EPHEMERA_SERVER_PORT", "7070")

	cfg, err := Load(dir, "config")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadClientConfig(t *testing.T) {
	dir := writeYAML(t, "client", `
self_id: 1
peer_id: 2
gateway:
  token: abc
`)
	cfg, err := LoadClientConfig(dir, "client")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cfg.SelfID)
	assert.Equal(t, uint64(2), cfg.PeerID)
	assert.Equal(t, "http://localhost:8080", cfg.Gateway.BaseURL)
	assert.Equal(t, "abc", cfg.Gateway.Token)
	assert.Equal(t, time.Second, cfg.Chat.TickInterval)

	r, err := TierResolver(cfg.Tiers)
	require.NoError(t, err)
	assert.NotEmpty(t, r.For("heart", 0))
}
