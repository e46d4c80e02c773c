package router

import (
	"context"
	"time"

	tg "github.com/opensplit/splitbot/core/telegram"
	tghelpers "github.com/opensplit/splitbot/core/telegram/helpers"
	"github.com/opensplit/splitbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Dialog defines the minimal interface for a per-chat dialog manager.
type Dialog interface {
	InProgress(ctx context.Context, chatID int64) bool
	HandleText(c tele.Context) error
}

// TextOptions controls fallback behaviour for free-text updates.
type TextOptions struct {
	UnknownText tele.HandlerFunc
}

// TextRoutes builds the handler for plain text messages. An active dialog
// in the chat takes priority over command lookup and fallbacks.
func TextRoutes(dlg Dialog, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if dlg != nil && c.Chat() != nil && dlg.InProgress(tghelpers.BuildContext(c), c.Chat().ID) {
			return handleWithSummary(c, "dialog", start, "", "", func() error {
				return dlg.HandleText(c)
			})
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				name := normalizeHandlerName(key)
				return handleWithSummary(c, name, start, "", "", func() error {
					return cmd.Handler(c)
				})
			}
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, "", "", func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", "", func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.MessageMetricsMiddleware(middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler))),
		},
	}
}
