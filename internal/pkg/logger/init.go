package logger

import (
	"io"
	log "log/slog"
	"net"
	"os"
	"strings"
	"time"

	"Ephemera/internal/api/config"
)

// ParseLevel 解析日志级别，未知值按 info 处理
func ParseLevel(s string) log.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.LevelDebug
	case "warn", "warning":
		return log.LevelWarn
	case "error":
		return log.LevelError
	default:
		return log.LevelInfo
	}
}

// InitLogger 服务端日志：JSON 输出到标准输出，配置了 Logstash 时同时上报带 trace_id 的记录
func InitLogger(cfg config.LogstashConfig) io.Closer {
	opts := &log.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var final log.Handler = log.NewJSONHandler(os.Stdout, opts)

	var closer io.Closer = nopCloser{}
	if cfg.Addr != "" {
		conn, err := net.DialTimeout("tcp", cfg.Addr, 3*time.Second)
		if err != nil {
			log.Warn("Failed to connect to Logstash, logging to stdout only", "addr", cfg.Addr, "err", err)
		} else {
			remote := log.NewJSONHandler(conn, opts).WithAttrs([]log.Attr{log.String("service", "ephemera")})
			final = NewTeeHandler(final, &RemoteFilterHandler{next: remote})
			closer = conn
		}
	}

	log.SetDefault(log.New(&ContextHandler{final}))
	return closer
}

// InitClientLogger 终端客户端日志：文本格式写入 w，避免干扰界面输出
func InitClientLogger(level string, w io.Writer) {
	h := log.NewTextHandler(w, &log.HandlerOptions{Level: ParseLevel(level)})
	log.SetDefault(log.New(&ContextHandler{h}))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
