package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"embed-delivery/internal/media"

	"github.com/google/uuid"
)

// SQLitePolicyStore reads policy records from the access_policies table.
type SQLitePolicyStore struct {
	db *sql.DB
}

var _ PolicyStore = (*SQLitePolicyStore)(nil)

// NewSQLitePolicyStore wraps an open, migrated database.
func NewSQLitePolicyStore(db *sql.DB) *SQLitePolicyStore {
	return &SQLitePolicyStore{db: db}
}

// FindPolicy implements PolicyStore.
func (s *SQLitePolicyStore) FindPolicy(ctx context.Context, domain string) (Policy, error) {
	p := Policy{Domain: domain}
	var disposition string
	err := s.db.QueryRowContext(ctx,
		"SELECT record_id, disposition FROM access_policies WHERE domain = ?", domain,
	).Scan(&p.RecordID, &disposition)
	if errors.Is(err, sql.ErrNoRows) {
		return Policy{}, ErrNoPolicy
	}
	if err != nil {
		return Policy{}, fmt.Errorf("%w: %v", media.ErrStoreUnavailable, err)
	}
	p.Disposition = ParseDisposition(disposition)
	return p, nil
}

// UpsertPolicy creates or replaces the record for p.Domain. A new record gets a
// generated RecordID; an existing record keeps its RecordID.
func (s *SQLitePolicyStore) UpsertPolicy(ctx context.Context, p Policy) (Policy, error) {
	if p.RecordID == "" {
		p.RecordID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO access_policies (domain, record_id, disposition) VALUES (?, ?, ?)
		ON CONFLICT(domain) DO UPDATE SET disposition = excluded.disposition`,
		p.Domain, p.RecordID, string(p.Disposition),
	)
	if err != nil {
		return Policy{}, fmt.Errorf("%w: %v", media.ErrStoreUnavailable, err)
	}
	return s.FindPolicy(ctx, p.Domain)
}

// SQLiteAuditSink appends audit events to the access_log table.
type SQLiteAuditSink struct {
	db *sql.DB
}

// NewSQLiteAuditSink wraps an open, migrated database.
func NewSQLiteAuditSink(db *sql.DB) *SQLiteAuditSink {
	return &SQLiteAuditSink{db: db}
}

// WriteEvent implements AuditSink.
func (s *SQLiteAuditSink) WriteEvent(ctx context.Context, e Event) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO access_log (id, domain, record_id, allowed, reason, resource_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.Domain, nullString(e.RecordID), e.Allowed, e.Reason, nullString(e.ResourceID), e.At,
	)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
