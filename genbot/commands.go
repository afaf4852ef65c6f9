package genbot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alovak/cardgen-bot/genbot/models"
	"github.com/alovak/cardgen-bot/internal/access"
	"github.com/alovak/cardgen-bot/internal/batch"
	"github.com/alovak/cardgen-bot/internal/cardgen"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// MembershipChecker reports whether a user has joined a channel.
type MembershipChecker interface {
	IsMember(ctx context.Context, channel string, userID int64) (bool, error)
}

// Commands routes chat updates to the Service and renders the replies.
type Commands struct {
	service  *Service
	sender   Sender
	notifier *Notifier
	members  MembershipChecker
	channel  string
	logger   *slog.Logger
}

// NewCommands builds the router. members may be nil when channel is empty.
func NewCommands(logger *slog.Logger, service *Service, sender Sender, notifier *Notifier, members MembershipChecker, channel string) *Commands {
	return &Commands{
		service:  service,
		sender:   sender,
		notifier: notifier,
		members:  members,
		channel:  channel,
		logger:   logger,
	}
}

// Handle processes one update. Errors are reported to the user or logged,
// never returned.
func (c *Commands) Handle(ctx context.Context, upd models.Update) {
	logger := c.logger.With(slog.String("request_id", uuid.NewString()))

	switch {
	case upd.Message != nil:
		c.handleMessage(ctx, logger, upd.Message)
	case upd.Callback != nil:
		c.handleCallback(ctx, logger, upd.Callback)
	}
}

func (c *Commands) handleMessage(ctx context.Context, logger *slog.Logger, m *models.Message) {
	cmd, args := parseCommand(m.Text)
	if cmd == "" {
		return
	}
	r := access.Requester{ID: m.UserID, Username: m.Username, FirstName: m.FirstName, ChatID: m.ChatID}
	logger = logger.With(slog.String("cmd", cmd), slog.Int64("user_id", r.ID))
	logger.Debug("command received")

	switch cmd {
	case "/start":
		c.reply(ctx, logger, m.ChatID, textStart, false)
	case "/gen":
		c.generate(ctx, logger, r, args)
	case "/approve", "/ban", "/remove":
		c.adminMutation(ctx, logger, r, cmd, args)
	case "/users":
		c.users(ctx, logger, r)
	case "/chk":
		c.checkOne(ctx, logger, r, strings.Join(args, " "))
	case "/mchk":
		text := m.ReplyToText
		if text == "" {
			text = strings.Join(args, "\n")
		}
		c.checkBatch(ctx, logger, r, text)
	}
}

func (c *Commands) generate(ctx context.Context, logger *slog.Logger, r access.Requester, args []string) {
	if len(args) == 0 {
		c.reply(ctx, logger, r.ChatID, textUsage, false)
		return
	}
	count := 0
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			c.reply(ctx, logger, r.ChatID, c.countUsage(), false)
			return
		}
		count = n
	}
	if count > c.service.config.GenMaxCount {
		c.reply(ctx, logger, r.ChatID, c.countUsage(), false)
		return
	}
	if _, err := ParsePrefix(args[0]); err != nil {
		c.reply(ctx, logger, r.ChatID, textUsage, false)
		return
	}
	if !c.memberOK(ctx, logger, r) {
		return
	}

	decision, gen, err := c.service.Generate(ctx, r, args[0], count)
	if c.gated(ctx, logger, r, decision, err) {
		return
	}
	switch {
	case err == nil:
		logger.Info("cards generated",
			slog.String("prefix", gen.Prefix),
			slog.Int("count", len(gen.Cards)),
			slog.String("source", string(gen.Record.Source)),
		)
		c.reply(ctx, logger, r.ChatID, formatGeneration(gen), true)
	case errors.Is(err, cardgen.ErrInvalidPrefix):
		c.reply(ctx, logger, r.ChatID, textUsage, false)
	case errors.Is(err, ErrCountOutOfRange):
		c.reply(ctx, logger, r.ChatID, c.countUsage(), false)
	case errors.Is(err, cardgen.ErrGenerationExhausted):
		logger.Warn("generation exhausted", "err", err)
		c.reply(ctx, logger, r.ChatID, "⚠️ Could not generate valid cards for this BIN, try another one.", false)
	default:
		logger.Error("generating cards", "err", err)
		c.reply(ctx, logger, r.ChatID, textTryAgain, false)
	}
}

func (c *Commands) countUsage() string {
	return fmt.Sprintf("⚠️ Count must be a number between 1 and %d\nExample: /gen 515462 10", c.service.config.GenMaxCount)
}

func (c *Commands) adminMutation(ctx context.Context, logger *slog.Logger, r access.Requester, cmd string, args []string) {
	// Usage errors would reveal the command exists, so authorize first.
	if c.service.AuthorizeAdmin(r) != access.AdminGranted {
		logger.Debug("privileged command ignored")
		return
	}
	var id int64
	var err error
	if len(args) == 1 {
		id, err = strconv.ParseInt(args[0], 10, 64)
	}
	if len(args) != 1 || err != nil {
		c.reply(ctx, logger, r.ChatID, fmt.Sprintf(textAdminIDUsage, cmd), false)
		return
	}

	var userText, adminText string
	switch cmd {
	case "/approve":
		_, err = c.service.Approve(ctx, r, id)
		userText, adminText = textApproved, "✅ User `%d` approved."
	case "/ban":
		_, err = c.service.Ban(ctx, r, id)
		userText, adminText = textBannedNotice, "🚫 User `%d` banned."
	case "/remove":
		_, err = c.service.Remove(ctx, r, id)
		adminText = "🗑 User `%d` removed."
	}
	if err != nil {
		logger.Error("updating access list", slog.Int64("target", id), "err", err)
		c.reply(ctx, logger, r.ChatID, textTryAgain, false)
		return
	}

	logger.Info("access list updated", slog.Int64("target", id))
	c.reply(ctx, logger, r.ChatID, fmt.Sprintf(adminText, id), true)
	if userText != "" {
		c.notifier.notifyUser(ctx, id, userText)
	}
}

func (c *Commands) users(ctx context.Context, logger *slog.Logger, r access.Requester) {
	outcome, doc := c.service.Users(r)
	if outcome != access.AdminGranted {
		logger.Debug("privileged command ignored")
		return
	}
	c.reply(ctx, logger, r.ChatID, formatUsers(doc), true)
}

func (c *Commands) checkOne(ctx context.Context, logger *slog.Logger, r access.Requester, line string) {
	if _, err := batch.ParseCandidate(line); err != nil {
		c.reply(ctx, logger, r.ChatID, textNoCandidates, false)
		return
	}
	if !c.memberOK(ctx, logger, r) {
		return
	}
	decision, report, err := c.service.CheckOne(ctx, r, line)
	if c.gated(ctx, logger, r, decision, err) {
		return
	}
	if err != nil {
		c.reply(ctx, logger, r.ChatID, textNoCandidates, false)
		return
	}
	c.reply(ctx, logger, r.ChatID, formatReport("Card check", report), true)
}

func (c *Commands) checkBatch(ctx context.Context, logger *slog.Logger, r access.Requester, text string) {
	if strings.TrimSpace(text) == "" {
		c.reply(ctx, logger, r.ChatID, textMchkUsage, false)
		return
	}
	items := batch.ExtractCandidates(text)
	if len(items) == 0 {
		c.reply(ctx, logger, r.ChatID, textNoCandidates, false)
		return
	}
	if len(items) > c.service.config.BatchMaxItems {
		c.reply(ctx, logger, r.ChatID, c.batchLimit(), false)
		return
	}
	if !c.memberOK(ctx, logger, r) {
		return
	}
	decision, report, err := c.service.CheckBatch(ctx, r, text)
	if c.gated(ctx, logger, r, decision, err) {
		return
	}
	switch {
	case err == nil:
		logger.Info("batch checked", slog.Int("items", len(report.Results)))
		c.reply(ctx, logger, r.ChatID, formatReport("Batch check", report), true)
	case errors.Is(err, ErrTooManyItems):
		c.reply(ctx, logger, r.ChatID, c.batchLimit(), false)
	default:
		c.reply(ctx, logger, r.ChatID, textNoCandidates, false)
	}
}

func (c *Commands) batchLimit() string {
	return fmt.Sprintf("⚠️ Too many cards, the limit is %d per batch.", c.service.config.BatchMaxItems)
}

func (c *Commands) handleCallback(ctx context.Context, logger *slog.Logger, cb *models.Callback) {
	r := access.Requester{ID: cb.UserID, Username: cb.Username, FirstName: cb.FirstName, ChatID: cb.ChatID}
	logger = logger.With(slog.String("callback", cb.Data), slog.Int64("user_id", r.ID))

	if c.service.AuthorizeAdmin(r) != access.AdminGranted {
		logger.Debug("privileged callback ignored")
		c.answer(ctx, logger, cb.ID, "")
		return
	}

	action, id, err := parseCallbackData(cb.Data)
	if err != nil {
		logger.Warn("parsing callback", "err", err)
		c.answer(ctx, logger, cb.ID, "")
		return
	}

	var userText, answer string
	switch action {
	case actionApprove:
		_, err = c.service.Approve(ctx, r, id)
		userText, answer = textApproved, fmt.Sprintf("✅ User %d approved", id)
	case actionBan:
		_, err = c.service.Ban(ctx, r, id)
		userText, answer = textBannedNotice, fmt.Sprintf("🚫 User %d banned", id)
	}
	if err != nil {
		logger.Error("updating access list", slog.Int64("target", id), "err", err)
		c.answer(ctx, logger, cb.ID, textTryAgain)
		return
	}

	logger.Info("access list updated", slog.Int64("target", id))
	c.answer(ctx, logger, cb.ID, answer)
	c.notifier.notifyUser(ctx, id, userText)
}

// gated replies for decisions that stop the command and reports whether it did.
func (c *Commands) gated(ctx context.Context, logger *slog.Logger, r access.Requester, decision access.Decision, err error) bool {
	if decision.Permitted() {
		return false
	}
	switch {
	case errors.Is(err, access.ErrPersist):
		logger.Error("registering access request", "err", err)
		c.reply(ctx, logger, r.ChatID, textTryAgain, false)
	case err != nil:
		logger.Warn("access notification failed", "err", err)
	}
	if decision == access.DecisionBanned {
		c.reply(ctx, logger, r.ChatID, textBanned, false)
	}
	logger.Info("command gated", slog.String("decision", decision.String()))
	return true
}

// memberOK enforces the required channel for everyone but the admin.
func (c *Commands) memberOK(ctx context.Context, logger *slog.Logger, r access.Requester) bool {
	if c.channel == "" || c.members == nil || c.service.Admin().Matches(r.ID, r.Username) {
		return true
	}
	ok, err := c.members.IsMember(ctx, c.channel, r.ID)
	if err != nil {
		logger.Warn("checking channel membership", slog.String("channel", c.channel), "err", err)
		c.reply(ctx, logger, r.ChatID, textMembershipErr, false)
		return false
	}
	if !ok {
		c.reply(ctx, logger, r.ChatID, fmt.Sprintf(textJoinChannel, c.channel), false)
	}
	return ok
}

func (c *Commands) reply(ctx context.Context, logger *slog.Logger, chatID int64, text string, markdown bool) {
	if err := c.sender.Send(ctx, models.Reply{ChatID: chatID, Text: text, Markdown: markdown}); err != nil {
		logger.Error("sending reply", slog.Int64("chat_id", chatID), "err", err)
	}
}

func (c *Commands) answer(ctx context.Context, logger *slog.Logger, callbackID, text string) {
	if err := c.sender.AnswerCallback(ctx, callbackID, text); err != nil {
		logger.Warn("answering callback", "err", err)
	}
}

// parseCommand splits "/cmd@bot a b" into "/cmd" and its arguments.
func parseCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(cmd), fields[1:]
}
