package binlookup

import (
	"context"
	"time"

	"golang.org/x/exp/slog"
)

// Fetcher is the remote half of the resolver; *Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, bin string) (Record, error)
}

type Resolver struct {
	table   *Table
	cache   Cache
	remote  Fetcher
	timeout time.Duration
	logger  *slog.Logger
}

// NewResolver wires the lookup layers. cache and remote may be nil.
func NewResolver(logger *slog.Logger, table *Table, cache Cache, remote Fetcher, timeout time.Duration) *Resolver {
	if table == nil {
		table = NewTable(nil)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Resolver{
		table:   table,
		cache:   cache,
		remote:  remote,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "binlookup")),
	}
}

// Lookup returns metadata for prefix. It never fails: when nothing is known
// the result is Unknown().
func (r *Resolver) Lookup(ctx context.Context, prefix string) Record {
	key := Key(prefix)

	if rec, ok := r.table.Get(key); ok {
		return rec
	}

	if r.cache != nil {
		rec, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			r.logger.Warn("bin cache get", slog.String("bin", key), "err", err)
		} else if ok {
			return rec
		}
	}

	if r.remote == nil {
		return Unknown()
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rec, err := r.remote.Fetch(ctx, key)
	if err != nil {
		r.logger.Warn("bin lookup failed, using fallback", slog.String("bin", key), "err", err)
		return Unknown()
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, rec); err != nil {
			r.logger.Warn("bin cache set", slog.String("bin", key), "err", err)
		}
	}
	return rec
}
