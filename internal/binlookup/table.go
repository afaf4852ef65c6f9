package binlookup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/exp/slog"
)

// DefaultRecords is the built-in curated mapping.
func DefaultRecords() map[string]Record {
	return map[string]Record{
		"515462": {
			Bank:         "Example Bank",
			Country:      "United States",
			CountryEmoji: "🇺🇸",
			Scheme:       "Visa",
			CardType:     "Credit",
			Level:        "Standard",
		},
		"401288": {
			Bank:         "Another Bank",
			Country:      "United Kingdom",
			CountryEmoji: "🇬🇧",
			Scheme:       "Visa",
			CardType:     "Debit",
			Level:        "Gold",
		},
		"510510": {
			Bank:         "Sample Bank",
			Country:      "Canada",
			CountryEmoji: "🇨🇦",
			Scheme:       "MasterCard",
			CardType:     "Credit",
			Level:        "Platinum",
		},
	}
}

// Table is the curated BIN mapping. It is authoritative: a hit here is
// returned without any network call.
type Table struct {
	mu      sync.RWMutex
	base    map[string]Record
	records map[string]Record
}

// NewTable builds a table from records. A nil map yields DefaultRecords.
func NewTable(records map[string]Record) *Table {
	if records == nil {
		records = DefaultRecords()
	}
	base := make(map[string]Record, len(records))
	for k, v := range records {
		v.Source = SourceCurated
		base[k] = v
	}
	return &Table{base: base, records: base}
}

// Get looks up the literal key.
func (t *Table) Get(key string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.records[key]
	return r, ok
}

// Len returns the number of curated entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// LoadFile merges a JSON object of key -> Record over the base records.
// Entries from the file override base entries with the same key.
func (t *Table) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading bin table %s: %w", path, err)
	}
	var extra map[string]Record
	if err := json.Unmarshal(b, &extra); err != nil {
		return fmt.Errorf("decoding bin table %s: %w", path, err)
	}

	merged := make(map[string]Record, len(t.base)+len(extra))
	for k, v := range t.base {
		merged[k] = v
	}
	for k, v := range extra {
		if !isDigits(k) || len(k) < 6 || len(k) > 8 {
			return fmt.Errorf("bin table %s: invalid key %q", path, k)
		}
		v.Source = SourceCurated
		merged[k] = v
	}

	t.mu.Lock()
	t.records = merged
	t.mu.Unlock()
	return nil
}

// Watch reloads the table whenever path is written or recreated, until ctx
// is done. The directory is watched so editors that replace the file are
// picked up.
func (t *Table) Watch(ctx context.Context, logger *slog.Logger, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := t.LoadFile(path); err != nil {
					logger.Error("reloading bin table", "err", err)
					continue
				}
				logger.Info("bin table reloaded", slog.String("path", path), slog.Int("entries", t.Len()))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("bin table watcher", "err", err)
			}
		}
	}()
	return nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
