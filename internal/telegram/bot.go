// Package telegram adapts the Telegram Bot API to the bot's transport
// interfaces.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/alovak/cardgen-bot/genbot/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/exp/slog"
)

const pollTimeout = 60

// Bot implements genbot.Transport on top of long polling.
type Bot struct {
	api      *tgbotapi.BotAPI
	logger   *slog.Logger
	stopOnce sync.Once
	polling  bool
}

// New authenticates with token against the public API.
func New(logger *slog.Logger, token string) (*Bot, error) {
	return NewWithEndpoint(logger, token, tgbotapi.APIEndpoint, &http.Client{})
}

// NewWithEndpoint is New against a custom endpoint, formatted like
// tgbotapi.APIEndpoint.
func NewWithEndpoint(logger *slog.Logger, token, endpoint string, client *http.Client) (*Bot, error) {
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	logger = logger.With(slog.String("component", "telegram"))
	logger.Info("authorized", slog.String("bot", api.Self.UserName))
	return &Bot{api: api, logger: logger}, nil
}

// Updates starts long polling. The returned channel closes after Stop or
// when ctx is done.
func (b *Bot) Updates(ctx context.Context) (<-chan models.Update, error) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeout
	src := b.api.GetUpdatesChan(cfg)
	b.polling = true

	out := make(chan models.Update)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-src:
				if !ok {
					return
				}
				upd, ok := convert(u)
				if !ok {
					continue
				}
				select {
				case out <- upd:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Stop ends long polling. It is safe to call more than once.
func (b *Bot) Stop() {
	b.stopOnce.Do(func() {
		if b.polling {
			b.api.StopReceivingUpdates()
		}
	})
}

// Send posts a message, optionally as Markdown with an inline keyboard.
// Link previews are always disabled.
func (b *Bot) Send(ctx context.Context, reply models.Reply) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(reply.ChatID, reply.Text)
	msg.DisableWebPagePreview = true
	if reply.Markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	if len(reply.Buttons) > 0 {
		msg.ReplyMarkup = keyboard(reply.Buttons)
	}
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("sending message to %d: %w", reply.ChatID, err)
	}
	return nil
}

// AnswerCallback acknowledges a button press; an empty text just clears the
// client's loading state.
func (b *Bot) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("answering callback: %w", err)
	}
	return nil
}

// IsMember reports whether userID currently belongs to channel ("@name").
func (b *Bot) IsMember(ctx context.Context, channel string, userID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: channel,
			UserID:             userID,
		},
	})
	if err != nil {
		return false, fmt.Errorf("getting chat member: %w", err)
	}
	switch {
	case member.IsCreator(), member.IsAdministrator(), member.Status == "member":
		return true, nil
	case member.Status == "restricted":
		return member.IsMember, nil
	default:
		return false, nil
	}
}

func keyboard(rows [][]models.Button) tgbotapi.InlineKeyboardMarkup {
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Data))
		}
		out = append(out, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(out...)
}

// convert maps the updates the bot understands; anything else is dropped.
func convert(u tgbotapi.Update) (models.Update, bool) {
	switch {
	case u.Message != nil && u.Message.From != nil && u.Message.Chat != nil:
		m := u.Message
		msg := &models.Message{
			ChatID:    m.Chat.ID,
			UserID:    m.From.ID,
			Username:  m.From.UserName,
			FirstName: m.From.FirstName,
			Text:      m.Text,
		}
		if m.ReplyToMessage != nil {
			msg.ReplyToText = m.ReplyToMessage.Text
			if msg.ReplyToText == "" {
				msg.ReplyToText = m.ReplyToMessage.Caption
			}
		}
		return models.Update{Message: msg}, true
	case u.CallbackQuery != nil && u.CallbackQuery.From != nil:
		q := u.CallbackQuery
		cb := &models.Callback{
			ID:        q.ID,
			UserID:    q.From.ID,
			Username:  q.From.UserName,
			FirstName: q.From.FirstName,
			Data:      q.Data,
		}
		if q.Message != nil && q.Message.Chat != nil {
			cb.ChatID = q.Message.Chat.ID
		}
		return models.Update{Callback: cb}, true
	default:
		return models.Update{}, false
	}
}
