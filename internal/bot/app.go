// Package bot assembles the OpenSplit Telegram front-end: configuration,
// the dialog machine, the backend gateway, and the routing table.
package bot

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"github.com/opensplit/splitbot/core/bootstrap"
	"github.com/opensplit/splitbot/core/config"
	"github.com/opensplit/splitbot/core/logger"
	"github.com/opensplit/splitbot/core/telegram"
	"github.com/opensplit/splitbot/core/telegram/commands"
	tghelpers "github.com/opensplit/splitbot/core/telegram/helpers"
	"github.com/opensplit/splitbot/core/telegram/middleware"
	"github.com/opensplit/splitbot/core/telegram/router"
	"github.com/opensplit/splitbot/internal/backend"
	"github.com/opensplit/splitbot/internal/dialog"
)

// App wires all components of the bot and exposes the telegram run options.
type App struct {
	cfg      *config.Config
	db       *sqlx.DB
	gateway  *backend.Client
	machine  *dialog.Machine
	registry *telegram.Registry
	helpText string
	// botID is the bot's own Telegram ID, captured once the bot is built.
	botID int64
}

// New bootstraps infrastructure and builds the application.
func New(cfg *config.Config) (*App, error) {
	boot, err := bootstrap.Run(bootstrap.Options{Config: cfg})
	if err != nil {
		return nil, err
	}

	// The gateway keeps its own plain HTTP client. The retrying transport
	// used for Telegram calls must never carry the expense POST, which is
	// not idempotent.
	gw, err := backend.New(
		backend.Config{BaseURL: cfg.Backend.BaseURL, Timeout: cfg.Backend.Timeout()},
	)
	if err != nil {
		return nil, fmt.Errorf("bot: gateway init failed: %w", err)
	}

	var store dialog.Store
	if cfg.Dialog.Store == config.StorePostgres {
		store = dialog.NewPostgresStore(boot.DB)
	} else {
		store = dialog.NewMemoryStore()
	}

	machine := dialog.NewMachine(dialog.Options{
		Store:           store,
		Gateway:         gw,
		AllowZeroAmount: cfg.Dialog.ZeroAmountAllowed(),
		SubmitTimeout:   cfg.Backend.Timeout(),
	})

	helpText, err := LoadHelp(cfg.HelpFile)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		db:       boot.DB,
		gateway:  gw,
		machine:  machine,
		helpText: helpText,
	}
	a.registry = a.buildRegistry()
	return a, nil
}

func (a *App) buildRegistry() *telegram.Registry {
	reg := telegram.NewRegistry()
	reg.RegisterCommand("/add_expense", commands.Command{
		Handler:     a.handleAddExpense,
		Description: "Add a shared expense to this group",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     a.handleCancel,
		Description: "Cancel the expense being added",
	})
	reg.RegisterCommand("/balance", commands.Command{
		Handler:     a.guardDialog(a.handleBalance),
		Description: "Show the current balance",
	})
	reg.RegisterCommand("/calculate_exchanges", commands.Command{
		Handler:     a.guardDialog(a.handleExchanges),
		Description: "Suggest payments that settle the group",
		Aliases:     []string{"exchanges"},
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     a.guardDialog(a.handleHelp),
		Description: "Show what this bot can do",
	})
	reg.RegisterCommand("/web_login", commands.Command{
		Handler:     a.guardDialog(a.handleWebLogin),
		Description: "Get a link to the OpenSplit web interface",
	})
	return reg
}

// guardDialog routes a command into the running dialog as a regular turn, so
// the conversation keeps the chat until it finishes or is canceled. /cancel
// and /add_expense stay unguarded; the machine handles both itself.
func (a *App) guardDialog(h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		chat := c.Chat()
		if chat != nil && a.machine.InProgress(tghelpers.BuildContext(c), chat.ID) {
			return a.HandleText(c)
		}
		return h(c)
	}
}

// TelegramRunOptions builds the routing table and lifecycle hooks for RunTelegram.
func (a *App) TelegramRunOptions() (telegram.RunOptions, error) {
	routes := router.CommandRoutes(a.registry)
	routes = append(routes, router.TextRoutes(a, a.registry, router.TextOptions{})...)
	routes = append(routes, telegram.Route{
		Endpoint: tele.OnUserJoined,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(a.handleUserJoined)),
	})

	return telegram.RunOptions{
		Config:      a.cfg,
		Registry:    a.registry,
		Middlewares: telegram.DefaultMiddlewares(a.cfg, nil),
		Routes:      routes,
		OnStart:     a.captureIdentity,
		OnStop: func(ctx context.Context, rt telegram.Runtime) error {
			if a.db != nil {
				if err := a.db.Close(); err != nil {
					logger.DB.Error("db close failed")
					return err
				}
			}
			return nil
		},
	}, nil
}

// captureIdentity records the bot's own user ID so the membership handler can
// tell the bot's join event apart from other members joining.
func (a *App) captureIdentity(ctx context.Context, rt telegram.Runtime) error {
	if rt.Bot != nil && rt.Bot.Me != nil {
		a.botID = rt.Bot.Me.ID
	}
	return nil
}
