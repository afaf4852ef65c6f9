package genbot_test

import (
	"context"
	"strings"
	"testing"

	"github.com/alovak/cardgen-bot/genbot"
	"github.com/alovak/cardgen-bot/internal/access"
	"github.com/alovak/cardgen-bot/internal/batch"
	"github.com/alovak/cardgen-bot/internal/binlookup"
	"github.com/alovak/cardgen-bot/internal/cardgen"
	"github.com/stretchr/testify/require"
)

func TestGenerate_CuratedPrefix(t *testing.T) {
	bot := newTestBot(t, testConfig(t))
	ctx := context.Background()

	decision, gen, err := bot.service.Generate(ctx, requester(adminID, adminName), "515462", 0)
	require.NoError(t, err)
	require.Equal(t, access.DecisionAdmin, decision)
	require.NotNil(t, gen)

	require.Len(t, gen.Cards, 20)
	for _, c := range gen.Cards {
		require.Len(t, c.Number, 16)
		require.True(t, strings.HasPrefix(c.Number, "515462"))
		require.True(t, cardgen.LuhnValid(c.Number), c.Number)
	}
	require.Equal(t, "Example Bank", gen.Record.Bank)
	require.Equal(t, "United States", gen.Record.Country)
	require.Equal(t, binlookup.SourceCurated, gen.Record.Source)
}

func TestGenerate_Validation(t *testing.T) {
	bot := newTestBot(t, testConfig(t))
	ctx := context.Background()
	admin := requester(adminID, adminName)

	t.Run("non-digits are ignored", func(t *testing.T) {
		_, gen, err := bot.service.Generate(ctx, admin, "5154-62xx", 3)
		require.NoError(t, err)
		require.Equal(t, "515462", gen.Prefix)
		require.Len(t, gen.Cards, 3)
	})

	t.Run("short prefix", func(t *testing.T) {
		_, gen, err := bot.service.Generate(ctx, admin, "12345", 0)
		require.ErrorIs(t, err, cardgen.ErrInvalidPrefix)
		require.Nil(t, gen)
	})

	t.Run("count above max", func(t *testing.T) {
		_, _, err := bot.service.Generate(ctx, admin, "515462", 51)
		require.ErrorIs(t, err, genbot.ErrCountOutOfRange)
	})

	t.Run("unknown prefix falls back", func(t *testing.T) {
		_, gen, err := bot.service.Generate(ctx, admin, "999999", 1)
		require.NoError(t, err)
		require.Equal(t, binlookup.Unknown(), gen.Record)
	})
}

func TestGenerate_Gated(t *testing.T) {
	bot := newTestBot(t, testConfig(t))
	ctx := context.Background()

	decision, gen, err := bot.service.Generate(ctx, requester(42, "joe"), "515462", 0)
	require.NoError(t, err)
	require.Equal(t, access.DecisionPending, decision)
	require.Nil(t, gen)
	require.Equal(t, access.StatePending, bot.store.State(42))

	require.NoError(t, bot.store.Ban(ctx, 42))
	decision, gen, err = bot.service.Generate(ctx, requester(42, "joe"), "515462", 0)
	require.NoError(t, err)
	require.Equal(t, access.DecisionBanned, decision)
	require.Nil(t, gen)

	require.NoError(t, bot.store.Approve(ctx, 42))
	decision, gen, err = bot.service.Generate(ctx, requester(42, "joe"), "515462", 2)
	require.NoError(t, err)
	require.Equal(t, access.DecisionAllow, decision)
	require.Len(t, gen.Cards, 2)
}

func TestAdminMutations(t *testing.T) {
	bot := newTestBot(t, testConfig(t))
	ctx := context.Background()
	admin := requester(adminID, "")
	stranger := requester(7, "mallory")

	outcome, err := bot.service.Approve(ctx, stranger, 7)
	require.NoError(t, err)
	require.Equal(t, access.AdminDeniedSilently, outcome)
	require.Equal(t, access.StateUnregistered, bot.store.State(7))

	outcome, err = bot.service.Approve(ctx, admin, 42)
	require.NoError(t, err)
	require.Equal(t, access.AdminGranted, outcome)
	require.Equal(t, access.StateApproved, bot.store.State(42))

	_, err = bot.service.Ban(ctx, admin, 42)
	require.NoError(t, err)
	require.Equal(t, access.StateBanned, bot.store.State(42))

	// username match works without the numeric id
	_, err = bot.service.Remove(ctx, requester(999, "@BOSS"), 42)
	require.NoError(t, err)
	require.Equal(t, access.StateUnregistered, bot.store.State(42))

	outcome, doc := bot.service.Users(stranger)
	require.Equal(t, access.AdminDeniedSilently, outcome)
	require.Empty(t, doc.Approved)
}

func TestCheckBatch(t *testing.T) {
	cfg := testConfig(t)
	cfg.BatchMaxItems = 3
	bot := newTestBot(t, cfg)
	ctx := context.Background()
	admin := requester(adminID, adminName)

	text := "first 4532015112830366|12|2030|123\n" +
		"junk 4111111111111110|12|2030|123\n" +
		"4532015112830366|01|2020|123"

	_, report, err := bot.service.CheckBatch(ctx, admin, text)
	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	require.Equal(t, batch.StatusValid, report.Results[0].Status)
	require.Equal(t, batch.StatusInvalid, report.Results[1].Status)
	require.Equal(t, batch.StatusExpired, report.Results[2].Status)

	_, _, err = bot.service.CheckBatch(ctx, admin, "nothing here")
	require.ErrorIs(t, err, genbot.ErrNoCandidates)

	_, _, err = bot.service.CheckBatch(ctx, admin, strings.Repeat("4532015112830366|12|2030|123\n", 4))
	require.ErrorIs(t, err, genbot.ErrTooManyItems)
}

func TestCheckOne(t *testing.T) {
	bot := newTestBot(t, testConfig(t))
	ctx := context.Background()

	_, report, err := bot.service.CheckOne(ctx, requester(adminID, adminName), "4532015112830366|12|2030|123")
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	require.Equal(t, batch.StatusValid, report.Results[0].Status)

	_, _, err = bot.service.CheckOne(ctx, requester(adminID, adminName), "not-a-card")
	require.ErrorIs(t, err, genbot.ErrNoCandidates)
}

func TestMalformedInputLeavesAccessListUntouched(t *testing.T) {
	bot := newTestBot(t, testConfig(t))
	ctx := context.Background()
	stranger := requester(77, "eve")

	_, gen, err := bot.service.Generate(ctx, stranger, "abc", 0)
	require.ErrorIs(t, err, cardgen.ErrInvalidPrefix)
	require.Nil(t, gen)

	_, _, err = bot.service.Generate(ctx, stranger, "515462", 51)
	require.ErrorIs(t, err, genbot.ErrCountOutOfRange)

	_, _, err = bot.service.CheckOne(ctx, stranger, "hello")
	require.ErrorIs(t, err, genbot.ErrNoCandidates)

	_, _, err = bot.service.CheckBatch(ctx, stranger, "nothing here")
	require.ErrorIs(t, err, genbot.ErrNoCandidates)

	require.Equal(t, access.StateUnregistered, bot.store.State(77))
	require.Empty(t, bot.transport.Replies())
}
