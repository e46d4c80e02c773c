package router

import (
	"time"

	"github.com/opensplit/splitbot/core/logger"
	tg "github.com/opensplit/splitbot/core/telegram"
	"github.com/opensplit/splitbot/core/telegram/middleware"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// CommandRoutes prepares command handlers wrapped with shared middleware.
func CommandRoutes(reg *tg.Registry) []tg.Route {
	if reg == nil {
		return nil
	}

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for cmd, def := range reg.Commands() {
		h := def.Handler
		name := normalizeHandlerName(cmd)
		h = wrapSummary(name, h)
		h = middleware.RecoverMiddleware(h)
		h = middleware.LoggerMiddleware(h)
		h = middleware.MessageMetricsMiddleware(h)
		routes = append(routes, tg.Route{
			Endpoint: cmd,
			Handler:  h,
		})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(reg.Commands())),
	)

	return routes
}

func wrapSummary(name string, h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		start := time.Now()
		return handleWithSummary(c, name, start, "", "", func() error {
			return h(c)
		})
	}
}
