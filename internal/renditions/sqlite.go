package renditions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"embed-delivery/internal/media"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteRepository implements Repository on the tables created by database.Migrate.
type SQLiteRepository struct {
	db  *sql.DB
	log *slog.Logger
}

var _ Repository = (*SQLiteRepository)(nil)

// NewSQLiteRepository wraps an open, migrated database.
func NewSQLiteRepository(db *sql.DB, log *slog.Logger) *SQLiteRepository {
	return &SQLiteRepository{db: db, log: log}
}

// CreateResource implements Repository.CreateResource.
func (r *SQLiteRepository) CreateResource(ctx context.Context, res media.Resource) error {
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO resources (id, duration, created_at) VALUES (?, ?, ?)",
		res.ID, res.Duration, res.CreatedAt,
	)
	if err != nil {
		if isConstraint(err) {
			return fmt.Errorf("resource %s: %w", res.ID, ErrDuplicate)
		}
		return unavailable(err)
	}
	return nil
}

// GetResource implements Repository.GetResource.
func (r *SQLiteRepository) GetResource(ctx context.Context, id string) (media.Resource, error) {
	var res media.Resource
	err := r.db.QueryRowContext(ctx,
		"SELECT id, duration, created_at FROM resources WHERE id = ?", id,
	).Scan(&res.ID, &res.Duration, &res.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return media.Resource{}, media.ErrNotFound
		}
		return media.Resource{}, unavailable(err)
	}
	return res, nil
}

// DeleteResource implements Repository.DeleteResource. Renditions go with it
// through the ON DELETE CASCADE foreign key.
func (r *SQLiteRepository) DeleteResource(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM resources WHERE id = ?", id); err != nil {
		return unavailable(err)
	}
	return nil
}

// CreateRendition implements Repository.CreateRendition.
func (r *SQLiteRepository) CreateRendition(ctx context.Context, rend media.Rendition) error {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM resources WHERE id = ?", rend.ResourceID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("resource %s: %w", rend.ResourceID, media.ErrNotFound)
	}
	if err != nil {
		return unavailable(err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO renditions (resource_id, quality, filepath, filesize) VALUES (?, ?, ?, ?)",
		rend.ResourceID, rend.Quality, rend.FilePath, rend.FileSize,
	)
	if err != nil {
		if isConstraint(err) {
			return fmt.Errorf("quality %d: %w", rend.Quality, ErrDuplicate)
		}
		return unavailable(err)
	}
	return nil
}

// FindRenditions implements Repository.FindRenditions.
func (r *SQLiteRepository) FindRenditions(ctx context.Context, resourceID string, minQuality int) ([]media.Rendition, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT resource_id, quality, filepath, filesize FROM renditions WHERE resource_id = ? AND quality >= ? ORDER BY quality ASC",
		resourceID, minQuality,
	)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	var out []media.Rendition
	for rows.Next() {
		var rend media.Rendition
		if err := rows.Scan(&rend.ResourceID, &rend.Quality, &rend.FilePath, &rend.FileSize); err != nil {
			return nil, unavailable(err)
		}
		out = append(out, rend)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

// DeleteRenditions implements Repository.DeleteRenditions.
func (r *SQLiteRepository) DeleteRenditions(ctx context.Context, resourceID string) (int, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM renditions WHERE resource_id = ?", resourceID)
	if err != nil {
		return 0, unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable(err)
	}
	return int(n), nil
}

// ResourceCount returns the number of stored resources, or 0 if the count fails.
func (r *SQLiteRepository) ResourceCount() int {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM resources").Scan(&n); err != nil {
		r.log.Warn("count resources failed", slog.String("error", err.Error()))
		return 0
	}
	return n
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", media.ErrStoreUnavailable, err)
}

func isConstraint(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
