// Package telegram connects the chat core to the Telegram Bot API using
// long polling.
package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/Alexander-D-Karpov/tandem/internal/common/config"
	apperr "github.com/Alexander-D-Karpov/tandem/internal/common/errors"
	"github.com/Alexander-D-Karpov/tandem/internal/transport"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// botAPI is the part of *tgbotapi.BotAPI the client uses.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Client struct {
	api     botAPI
	cfg     config.TelegramConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

func New(cfg config.TelegramConfig, logger *zap.Logger) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("connect to bot api: %w", err)
	}
	api.Debug = cfg.Debug

	logger.Info("authorized on telegram", zap.String("username", api.Self.UserName))
	return newClient(api, cfg, logger), nil
}

func newClient(api botAPI, cfg config.TelegramConfig, logger *zap.Logger) *Client {
	limit := rate.Inf
	if cfg.SendRate > 0 {
		limit = rate.Limit(cfg.SendRate)
	}
	burst := cfg.SendBurst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		api:     api,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// SetCommands publishes the command menu shown by Telegram clients.
func (c *Client) SetCommands(commands []transport.CommandInfo) error {
	botCommands := make([]tgbotapi.BotCommand, 0, len(commands))
	for _, cmd := range commands {
		botCommands = append(botCommands, tgbotapi.BotCommand{Command: cmd.Name, Description: cmd.Description})
	}
	if _, err := c.api.Request(tgbotapi.NewSetMyCommands(botCommands...)); err != nil {
		return fmt.Errorf("set commands: %w", err)
	}
	return nil
}

// Run polls for updates and hands each one to h until ctx is done. Updates
// from one participant are handled in order; different participants are
// handled concurrently.
func (c *Client) Run(ctx context.Context, h transport.Handler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = c.cfg.PollTimeout
	updates := c.api.GetUpdatesChan(u)

	dispatcher := transport.NewDispatcher(h)
	defer dispatcher.Wait()

	c.logger.Info("telegram polling started", zap.Int("timeout", c.cfg.PollTimeout))

	for {
		select {
		case <-ctx.Done():
			c.api.StopReceivingUpdates()
			c.logger.Info("telegram polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			in, ok := Translate(update)
			if !ok {
				c.logger.Debug("ignoring update", zap.Int("update_id", update.UpdateID))
				continue
			}
			dispatcher.Dispatch(ctx, in)
		}
	}
}

func (c *Client) SendText(ctx context.Context, to int64, text string) error {
	return c.do(ctx, transport.OpSendText, to, tgbotapi.NewMessage(to, text))
}

func (c *Client) SendActivity(ctx context.Context, to int64, activity transport.Activity) error {
	return c.do(ctx, transport.OpSendActivity, to, tgbotapi.NewChatAction(to, string(activity)))
}

// Forward copies the message rather than forwarding it, so the recipient
// never sees who sent it.
func (c *Client) Forward(ctx context.Context, to, from int64, content transport.Content) error {
	if content.Kind == transport.ContentText && content.MessageID == 0 {
		return c.SendText(ctx, to, content.Text)
	}
	return c.do(ctx, transport.OpForward, to, tgbotapi.NewCopyMessage(to, from, content.MessageID))
}

func (c *Client) do(ctx context.Context, op string, to int64, msg tgbotapi.Chattable) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return apperr.Delivery(op, to, err)
	}
	if _, err := c.api.Request(msg); err != nil {
		return apperr.Delivery(op, to, err)
	}
	return nil
}

// Translate converts a Bot API update. Only private-chat messages that are
// commands, text, photos or stickers are kept.
func Translate(update tgbotapi.Update) (transport.Inbound, bool) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
		return transport.Inbound{}, false
	}

	in := transport.Inbound{From: msg.Chat.ID}
	if msg.From != nil {
		in.From = msg.From.ID
	}

	switch {
	case msg.IsCommand():
		in.Command = strings.ToLower(msg.Command())
		in.Args = msg.CommandArguments()
	case msg.Text != "":
		in.Content = transport.Content{Kind: transport.ContentText, Text: msg.Text, MessageID: msg.MessageID}
	case len(msg.Photo) > 0:
		largest := msg.Photo[len(msg.Photo)-1]
		in.Content = transport.Content{Kind: transport.ContentPhoto, MessageID: msg.MessageID, FileID: largest.FileID}
	case msg.Sticker != nil:
		in.Content = transport.Content{Kind: transport.ContentSticker, MessageID: msg.MessageID, FileID: msg.Sticker.FileID}
	default:
		return transport.Inbound{}, false
	}
	return in, true
}
