package genbot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/alovak/cardgen-bot/genbot/models"
	"github.com/alovak/cardgen-bot/internal/access"
	"golang.org/x/exp/slog"
)

const (
	actionApprove = "approve"
	actionBan     = "ban"
)

// Sender delivers replies to the chat platform.
type Sender interface {
	Send(ctx context.Context, reply models.Reply) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Notifier implements access.Notifier on top of a Sender.
type Notifier struct {
	sender Sender
	admin  access.Admin
	logger *slog.Logger
}

func NewNotifier(logger *slog.Logger, sender Sender, admin access.Admin) *Notifier {
	return &Notifier{sender: sender, admin: admin, logger: logger}
}

func (n *Notifier) NotifyRequester(ctx context.Context, r access.Requester) error {
	return n.sender.Send(ctx, models.Reply{ChatID: r.ChatID, Text: textPendingFirst})
}

// NotifyAdmin sends the request with approve/ban buttons. A repeated request
// also reminds the requester. Without a numeric admin id there is no chat to
// deliver to, so the request is only logged.
func (n *Notifier) NotifyAdmin(ctx context.Context, r access.Requester, alreadyPending bool) error {
	if alreadyPending {
		n.notifyUser(ctx, r.ChatID, textPendingAgain)
	}
	if n.admin.ID == 0 {
		n.logger.Warn("admin id not configured, access request not delivered",
			slog.Int64("user_id", r.ID),
			slog.Bool("already_pending", alreadyPending),
		)
		return nil
	}
	return n.sender.Send(ctx, models.Reply{
		ChatID:   n.admin.ID,
		Text:     formatAccessRequest(r, alreadyPending),
		Markdown: true,
		Buttons: [][]models.Button{{
			{Text: "✅ Approve", Data: callbackData(actionApprove, r.ID)},
			{Text: "🚫 Ban", Data: callbackData(actionBan, r.ID)},
		}},
	})
}

// notifyUser sends text to a chat, logging failures. Private chat ids equal
// user ids, so admin decisions are delivered with the user id.
func (n *Notifier) notifyUser(ctx context.Context, id int64, text string) {
	if err := n.sender.Send(ctx, models.Reply{ChatID: id, Text: text}); err != nil {
		n.logger.Warn("notifying user", slog.Int64("chat_id", id), "err", err)
	}
}

func callbackData(action string, id int64) string {
	return action + ":" + strconv.FormatInt(id, 10)
}

func parseCallbackData(data string) (string, int64, error) {
	action, raw, ok := strings.Cut(data, ":")
	if !ok {
		return "", 0, fmt.Errorf("malformed callback data %q", data)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed callback id %q: %w", raw, err)
	}
	switch action {
	case actionApprove, actionBan:
		return action, id, nil
	default:
		return "", 0, fmt.Errorf("unknown callback action %q", action)
	}
}
