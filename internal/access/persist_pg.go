package access

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgconn"
	"github.com/lib/pq"
)

// ErrTransient marks database errors worth retrying: connection loss,
// serialization failures and deadlocks.
var ErrTransient = errors.New("transient database error")

// PGPersister keeps the access list as a single jsonb row.
type PGPersister struct {
	db *sql.DB
}

// NewPGPersister constructs a db-backed persister. Migrate must have run.
func NewPGPersister(db *sql.DB) *PGPersister {
	return &PGPersister{db: db}
}

// Migrate creates the table if missing.
func (p *PGPersister) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS access_list (
            id         int PRIMARY KEY,
            doc        jsonb NOT NULL,
            updated_at timestamptz NOT NULL DEFAULT now()
        )`)
	return classify(err)
}

func (p *PGPersister) Load(ctx context.Context) (Document, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx, `SELECT doc FROM access_list WHERE id=1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, nil
	}
	if err != nil {
		return Document{}, classify(err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("decoding access list: %w", err)
	}
	return doc, nil
}

func (p *PGPersister) Save(ctx context.Context, doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding access list: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
        INSERT INTO access_list(id, doc) VALUES (1, $1)
        ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()
    `, string(raw))
	return classify(err)
}

func (p *PGPersister) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if isTransient(err) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return err
}

func isTransient(err error) bool {
	if errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var code string
	var pe *pq.Error
	var pgerr *pgconn.PgError
	switch {
	case errors.As(err, &pe):
		code = string(pe.Code)
	case errors.As(err, &pgerr):
		code = pgerr.Code
	default:
		return false
	}
	// 08xxx connection exceptions, 40001 serialization_failure, 40P01 deadlock_detected
	return strings.HasPrefix(code, "08") || code == "40001" || code == "40P01"
}
