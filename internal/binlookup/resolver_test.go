package binlookup

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fetcherFunc func(ctx context.Context, bin string) (Record, error)

func (f fetcherFunc) Fetch(ctx context.Context, bin string) (Record, error) { return f(ctx, bin) }

func TestLookup_CuratedHitSkipsRemote(t *testing.T) {
	remote := fetcherFunc(func(ctx context.Context, bin string) (Record, error) {
		t.Fatalf("remote called for curated bin %s", bin)
		return Record{}, nil
	})
	r := NewResolver(discardLogger(), NewTable(nil), nil, remote, time.Second)

	rec := r.Lookup(context.Background(), "515462")

	want := DefaultRecords()["515462"]
	want.Source = SourceCurated
	require.Equal(t, want, rec)
	require.Equal(t, "Example Bank", rec.Bank)
	require.Equal(t, "United States", rec.Country)
}

func TestLookup_RemoteFailureFallsBack(t *testing.T) {
	remote := fetcherFunc(func(ctx context.Context, bin string) (Record, error) {
		return Record{}, errors.New("connection refused")
	})
	r := NewResolver(discardLogger(), NewTable(nil), nil, remote, time.Second)

	rec := r.Lookup(context.Background(), "999999")

	require.Equal(t, Unknown(), rec)
	require.Equal(t, UnknownBank, rec.Bank)
	require.Equal(t, UnknownCountry, rec.Country)
	require.Equal(t, "", rec.CountryEmoji)
	require.Equal(t, UnknownScheme, rec.Scheme)
	require.Equal(t, UnknownType, rec.CardType)
	require.Equal(t, UnknownLevel, rec.Level)
}

func TestLookup_UsesFirstEightDigits(t *testing.T) {
	var got string
	remote := fetcherFunc(func(ctx context.Context, bin string) (Record, error) {
		got = bin
		return Unknown(), nil
	})
	r := NewResolver(discardLogger(), NewTable(nil), nil, remote, time.Second)
	r.Lookup(context.Background(), "4571736012345")
	require.Equal(t, "45717360", got)
}

func TestLookup_RemoteOverHTTP(t *testing.T) {
	seen := make(chan [2]string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		seen <- [2]string{req.URL.Path, req.Header.Get("Accept-Version")}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"scheme":"visa","type":"debit","country":{"name":"Denmark","emoji":"🇩🇰"}}`)
	}))
	defer srv.Close()

	r := NewResolver(discardLogger(), NewTable(nil), nil, NewClient(srv.URL, srv.Client()), time.Second)
	rec := r.Lookup(context.Background(), "45717360")

	require.Equal(t, [2]string{"/45717360", "3"}, <-seen)
	require.Equal(t, SourceRemote, rec.Source)
	require.Equal(t, "VISA", rec.Scheme)
	require.Equal(t, "DEBIT", rec.CardType)
	require.Equal(t, "Denmark", rec.Country)
	require.Equal(t, "🇩🇰", rec.CountryEmoji)
	require.Equal(t, UnknownBank, rec.Bank)
	require.Equal(t, UnknownLevel, rec.Level)
}

func TestLookup_MalformedAndErrorResponses(t *testing.T) {
	for name, handler := range map[string]http.HandlerFunc{
		"malformed json": func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, `{"scheme":`) },
		"not found":      func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) },
		"slow": func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		},
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			r := NewResolver(discardLogger(), NewTable(nil), nil, NewClient(srv.URL, srv.Client()), 100*time.Millisecond)
			require.Equal(t, Unknown(), r.Lookup(context.Background(), "123456"))
		})
	}
}

func TestLookup_CachesRemoteResults(t *testing.T) {
	var calls int32
	remote := fetcherFunc(func(ctx context.Context, bin string) (Record, error) {
		atomic.AddInt32(&calls, 1)
		return Record{Bank: "Remote Bank", Source: SourceRemote}, nil
	})
	r := NewResolver(discardLogger(), NewTable(nil), NewMemoryCache(time.Minute), remote, time.Second)

	require.Equal(t, "Remote Bank", r.Lookup(context.Background(), "222100").Bank)
	require.Equal(t, "Remote Bank", r.Lookup(context.Background(), "222100").Bank)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestLookup_FailuresAreNotCached(t *testing.T) {
	var calls int32
	remote := fetcherFunc(func(ctx context.Context, bin string) (Record, error) {
		atomic.AddInt32(&calls, 1)
		return Record{}, errors.New("boom")
	})
	r := NewResolver(discardLogger(), NewTable(nil), NewMemoryCache(time.Minute), remote, time.Second)

	r.Lookup(context.Background(), "222100")
	r.Lookup(context.Background(), "222100")
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestMemoryCache_Expires(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache(time.Minute)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(context.Background(), "222100", Record{Bank: "B"}))
	_, ok, err := c.Get(context.Background(), "222100")
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, err = c.Get(context.Background(), "222100")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTable_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bins.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"45717360": {"bank": "Jyske Bank", "country": "Denmark", "emoji": "🇩🇰", "scheme": "Visa", "type": "Debit", "level": "Classic"},
		"515462": {"bank": "Override Bank", "country": "United States", "scheme": "Visa", "type": "Credit", "level": "Standard"}
	}`), 0o644))

	table := NewTable(nil)
	require.NoError(t, table.LoadFile(path))

	rec, ok := table.Get("45717360")
	require.True(t, ok)
	require.Equal(t, "Jyske Bank", rec.Bank)
	require.Equal(t, SourceCurated, rec.Source)

	rec, ok = table.Get("515462")
	require.True(t, ok)
	require.Equal(t, "Override Bank", rec.Bank)

	_, ok = table.Get("401288")
	require.True(t, ok)
}

func TestTable_LoadFileRejectsBadKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bins.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"12ab": {"bank": "x"}}`), 0o644))

	table := NewTable(nil)
	require.Error(t, table.LoadFile(path))
	require.Equal(t, 3, table.Len())
}

func TestTable_WatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bins.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	table := NewTable(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, table.Watch(ctx, discardLogger(), path))

	require.NoError(t, os.WriteFile(path, []byte(`{"37828224": {"bank": "Watched Bank"}}`), 0o644))

	require.Eventually(t, func() bool {
		rec, ok := table.Get("37828224")
		return ok && rec.Bank == "Watched Bank"
	}, 2*time.Second, 20*time.Millisecond)
}
