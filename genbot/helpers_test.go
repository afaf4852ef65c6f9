package genbot_test

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alovak/cardgen-bot/genbot"
	"github.com/alovak/cardgen-bot/genbot/models"
	"github.com/alovak/cardgen-bot/internal/access"
	"github.com/alovak/cardgen-bot/internal/batch"
	"github.com/alovak/cardgen-bot/internal/binlookup"
	"github.com/alovak/cardgen-bot/internal/cardgen"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

const (
	adminID   int64 = 1
	adminName       = "boss"
)

var testNow = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

type fakeTransport struct {
	mu        sync.Mutex
	replies   []models.Reply
	answers   map[string]string
	updates   chan models.Update
	member    bool
	memberErr error
	// updatesErr makes Updates fail, as a transport that cannot start polling.
	updatesErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		answers: map[string]string{},
		updates: make(chan models.Update, 16),
		member:  true,
	}
}

func (f *fakeTransport) Send(_ context.Context, r models.Reply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, r)
	return nil
}

func (f *fakeTransport) AnswerCallback(_ context.Context, id, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers[id] = text
	return nil
}

func (f *fakeTransport) IsMember(context.Context, string, int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.member, f.memberErr
}

func (f *fakeTransport) Updates(context.Context) (<-chan models.Update, error) {
	if f.updatesErr != nil {
		return nil, f.updatesErr
	}
	return f.updates, nil
}

func (f *fakeTransport) Stop() {}

func (f *fakeTransport) Replies() []models.Reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Reply(nil), f.replies...)
}

// RepliesTo returns replies sent to chatID in order.
func (f *fakeTransport) RepliesTo(chatID int64) []models.Reply {
	var out []models.Reply
	for _, r := range f.Replies() {
		if r.ChatID == chatID {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeTransport) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = nil
}

type testBot struct {
	commands  *genbot.Commands
	service   *genbot.Service
	store     *access.Store
	transport *fakeTransport
}

func testConfig(t *testing.T) *genbot.Config {
	cfg := genbot.DefaultConfig()
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.Admin = access.Admin{ID: adminID, Username: adminName}
	cfg.AccessFile = filepath.Join(t.TempDir(), "users.json")
	cfg.BINAPIURL = ""
	return cfg
}

func newTestBot(t *testing.T, cfg *genbot.Config) *testBot {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	transport := newFakeTransport()

	store, err := access.Open(context.Background(), access.NewFilePersister(cfg.AccessFile))
	require.NoError(t, err)

	notifier := genbot.NewNotifier(logger, transport, cfg.Admin)
	policy := access.NewPolicy(store, cfg.Admin, notifier)
	resolver := binlookup.NewResolver(logger, nil, nil, nil, 0)
	checker := batch.LocalChecker{Now: func() time.Time { return testNow }}
	service := genbot.NewService(policy, cardgen.NewGenerator(cfg.GenMaxAttempts), resolver, checker, cfg)
	commands := genbot.NewCommands(logger, service, transport, notifier, transport, cfg.RequiredChannel)

	return &testBot{commands: commands, service: service, store: store, transport: transport}
}

func (b *testBot) send(userID int64, username, text string) {
	b.sendReply(userID, username, text, "")
}

func (b *testBot) sendReply(userID int64, username, text, replyTo string) {
	b.commands.Handle(context.Background(), models.Update{Message: &models.Message{
		ChatID:      userID,
		UserID:      userID,
		Username:    username,
		FirstName:   "Test",
		Text:        text,
		ReplyToText: replyTo,
	}})
}

func (b *testBot) press(userID int64, username, id, data string) {
	b.commands.Handle(context.Background(), models.Update{Callback: &models.Callback{
		ID:       id,
		ChatID:   userID,
		UserID:   userID,
		Username: username,
		Data:     data,
	}})
}

func requester(id int64, username string) access.Requester {
	return access.Requester{ID: id, Username: username, ChatID: id}
}
