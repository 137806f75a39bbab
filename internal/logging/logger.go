package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"asaas-contaazul-relay/internal/config"
	"github.com/grafana/loki-client-go/loki"
	slogloki "github.com/samber/slog-loki/v3"
)

func GetLogger(cfg config.Logs) *slog.Logger {
	if cfg.LokiURL == "" {
		return localLogger(cfg)
	}

	return remoteLogger(cfg)
}

func localLogger(cfg config.Logs) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Level)})
	return slog.New(&ContextHandler{Handler: handler})
}

func remoteLogger(cfg config.Logs) *slog.Logger {
	lokiConfig, _ := loki.NewDefaultConfig(cfg.LokiURL)
	client, _ := loki.New(lokiConfig)

	return slog.New(slogloki.Option{
		Level:  parseLevel(cfg.Level),
		Client: client,
		AttrFromContext: []func(ctx context.Context) []slog.Attr{
			func(ctx context.Context) []slog.Attr {
				var attrs []slog.Attr
				if v, ok := ctx.Value(slogFields).([]slog.Attr); ok {
					attrs = append(attrs, v...)
				}
				return attrs
			},
		},
	}.NewLokiHandler()).With("service", "asaas-contaazul-relay")
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
