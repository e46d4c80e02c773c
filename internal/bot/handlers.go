package bot

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/opensplit/splitbot/core/telegram/helpers"
	"github.com/opensplit/splitbot/internal/dialog"
	"github.com/opensplit/splitbot/internal/render"
)

const (
	groupOnlyText   = "Sorry, this function is only available for group chats."
	noUsernameText  = "You need a Telegram username to check your personal balance."
	gatewayDownText = "Something went wrong talking to OpenSplit. Please try again later."
	noWebText       = "The OpenSplit web interface is not configured."

	registeredFmt = "%s added to OpenSplit."
	webLoginFmt   = "Log in to OpenSplit here: %s"
)

// InProgress reports whether the chat currently runs an expense dialog.
func (a *App) InProgress(ctx context.Context, chatID int64) bool {
	return a.machine.InProgress(ctx, chatID)
}

// HandleText feeds a free-text message into the dialog machine.
func (a *App) HandleText(c tele.Context) error {
	chat := c.Chat()
	if chat == nil || c.Message() == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	reply, handled, err := a.machine.HandleMessage(ctx, chat.ID, c.Message())
	if !handled {
		return nil
	}
	if sendErr := sendReply(c, reply); sendErr != nil && err == nil {
		err = sendErr
	}
	return err
}

func (a *App) handleAddExpense(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "add_expense")
	reply, err := a.machine.Start(ctx, c.Chat())
	if sendErr := sendReply(c, reply); sendErr != nil && err == nil {
		err = sendErr
	}
	return err
}

func (a *App) handleCancel(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	ctx := tghelpers.WithHandler(c, "cancel")
	reply, err := a.machine.Cancel(ctx, chat.ID)
	if sendErr := sendReply(c, reply); sendErr != nil && err == nil {
		err = sendErr
	}
	return err
}

func (a *App) handleBalance(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "balance")
	chat := c.Chat()
	if chat == nil {
		return nil
	}

	if chat.Type == tele.ChatPrivate {
		sender := c.Sender()
		if sender == nil || sender.Username == "" {
			return tghelpers.SendText(c, noUsernameText)
		}
		view, err := a.gateway.UserBalance(ctx, sender.Username)
		if err != nil {
			_ = tghelpers.SendText(c, gatewayDownText)
			return err
		}
		return tghelpers.SendText(c, render.UserBalance(view))
	}

	view, err := a.gateway.GroupBalance(ctx, chat.ID)
	if err != nil {
		_ = tghelpers.SendText(c, gatewayDownText)
		return err
	}
	return tghelpers.SendText(c, render.GroupBalance(view))
}

func (a *App) handleExchanges(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "calculate_exchanges")
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	if chat.Type != tele.ChatGroup && chat.Type != tele.ChatSuperGroup {
		return tghelpers.SendText(c, groupOnlyText)
	}

	list, err := a.gateway.Exchanges(ctx, chat.ID)
	if err != nil {
		_ = tghelpers.SendText(c, gatewayDownText)
		return err
	}
	return tghelpers.SendText(c, render.Exchanges(list))
}

func (a *App) handleHelp(c tele.Context) error {
	tghelpers.WithHandler(c, "help")
	return tghelpers.SendText(c, a.helpText)
}

func (a *App) handleWebLogin(c tele.Context) error {
	tghelpers.WithHandler(c, "web_login")
	if a.cfg.Backend.WebURL == "" {
		return tghelpers.SendText(c, noWebText)
	}
	return tghelpers.SendText(c, fmt.Sprintf(webLoginFmt, a.cfg.Backend.WebURL))
}

// handleUserJoined registers the group when the bot itself is added to a chat.
func (a *App) handleUserJoined(c tele.Context) error {
	msg := c.Message()
	chat := c.Chat()
	if msg == nil || chat == nil || a.botID == 0 {
		return nil
	}
	if !botJoined(msg, a.botID) {
		return nil
	}

	ctx := tghelpers.WithHandler(c, "register_group")
	if err := a.gateway.RegisterGroup(ctx, chat.ID, chat.Title); err != nil {
		_ = tghelpers.SendText(c, gatewayDownText)
		return err
	}
	return tghelpers.SendText(c, fmt.Sprintf(registeredFmt, chat.Title))
}

func botJoined(msg *tele.Message, botID int64) bool {
	if msg.UserJoined != nil && msg.UserJoined.ID == botID {
		return true
	}
	for _, u := range msg.UsersJoined {
		if u.ID == botID {
			return true
		}
	}
	return false
}

func sendReply(c tele.Context, reply dialog.Reply) error {
	if reply.Text == "" {
		return nil
	}
	if reply.ForceReply {
		return tghelpers.SendForceReply(c, reply.Text)
	}
	return tghelpers.SendText(c, reply.Text)
}
