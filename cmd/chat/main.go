package main

import (
	"bufio"
	"context"
	"errors"
	log "log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"Ephemera/internal/api/config"
	"Ephemera/internal/chat"
	"Ephemera/internal/client"
	"Ephemera/internal/pkg/logger"
	"Ephemera/internal/pkg/push"
)

const usage = `commands:
  <text>             type text, a trailing space is added
  /erase <n>         delete the last n characters from the field
  /emoji <category>  send heart | smile | angry | wink
  /open <peer id>    switch conversation
  /quit              exit
`

func main() {
	cfg, err := config.LoadClientConfig("./configs", "client")
	if err != nil {
		log.Error("Fatal error: failed to load client configuration", "err", err)
		panic(err)
	}
	logger.InitClientLogger(cfg.LogLevel, os.Stderr)

	tiers, err := config.TierResolver(cfg.Tiers)
	if err != nil {
		log.Error("Fatal error: invalid tier table", "err", err)
		panic(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	gw := client.NewHTTPGateway(cfg.Gateway)
	if cfg.PushToken != "" {
		if err = gw.RegisterPushToken(ctx, cfg.PushToken); err != nil {
			log.Warn("register push token failed", "err", err)
		}
	}

	var opts []chat.Option
	if cfg.Push.Enable && cfg.PushToken != "" {
		opts = append(opts, chat.WithNotifier(push.NewExpoNotifier(cfg.Push.URL, cfg.Push.Timeout)))
	}

	renderer := client.NewTerminalRenderer(os.Stdout, cfg.SelfID, true)
	session := chat.NewSession(chat.Config{
		SelfID:          cfg.SelfID,
		EditWindow:      cfg.Chat.EditWindow,
		Policy:          cfg.Chat.Decay,
		TickInterval:    cfg.Chat.TickInterval,
		UnknownRefRetry: cfg.Chat.UnknownRefRetry,
		WriteTimeout:    time.Duration(cfg.Gateway.Timeout) * time.Second,
		PushToken:       cfg.PushToken,
	}, gw, tiers, renderer, opts...)

	runErr := make(chan error, 1)
	go func() { runErr <- session.Run(ctx) }()
	if cfg.PeerID != 0 {
		session.Open(cfg.PeerID)
	}

	go readCommands(ctx, cancel, session, renderer)

	if err = <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		log.Error("chat session exited with error", "err", err)
		os.Exit(1)
	}
}

func readCommands(ctx context.Context, cancel context.CancelFunc, session *chat.Session, renderer *client.TerminalRenderer) {
	defer cancel()
	_, _ = os.Stderr.WriteString(usage)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()
		cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")

		switch cmd {
		case "/quit":
			return
		case "/open":
			peerID, err := strconv.ParseUint(arg, 10, 64)
			if err != nil {
				log.Warn("invalid peer id", "value", arg)
				continue
			}
			session.Open(peerID)
		case "/emoji":
			session.SendEmoji(strings.TrimSpace(arg))
		case "/erase":
			n, err := strconv.Atoi(arg)
			if err != nil || n <= 0 {
				continue
			}
			field := []rune(renderer.Field())
			if n > len(field) {
				n = len(field)
			}
			session.Type(string(field[:len(field)-n]))
		default:
			if line == "" {
				continue
			}
			session.Type(renderer.Field() + line + " ")
		}
	}
}
