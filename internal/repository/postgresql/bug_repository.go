package postgresql

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bruhbug-service/internal/entity"
)

// MaxListLimit bounds every list query.
const MaxListLimit = 50

// ErrNotFound is kept as an alias so callers can match either name.
var ErrNotFound = entity.ErrNotFound

type BugRepository struct {
	pool *pgxpool.Pool
}

func NewBugRepository(pool *pgxpool.Pool) *BugRepository {
	return &BugRepository{pool: pool}
}

const bugColumns = `id, owner_id, description, display_name, display_handle, avatar_ref, result, shared, created_at, updated_at`

// Create writes rec keyed by rec.ID. A second write to the same key replaces the
// content (last write wins) and keeps the original created_at.
func (r *BugRepository) Create(ctx context.Context, rec *entity.BugRecord) error {
	const q = `
INSERT INTO bugs (id, owner_id, description, display_name, display_handle, avatar_ref, result, shared)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
    owner_id = EXCLUDED.owner_id,
    description = EXCLUDED.description,
    display_name = EXCLUDED.display_name,
    display_handle = EXCLUDED.display_handle,
    avatar_ref = EXCLUDED.avatar_ref,
    result = EXCLUDED.result,
    shared = EXCLUDED.shared,
    updated_at = now()
RETURNING created_at, updated_at;
`
	var createdAt, updatedAt time.Time
	if err := r.pool.QueryRow(ctx, q,
		rec.ID,
		rec.OwnerID,
		rec.Description,
		rec.DisplayName,
		rec.DisplayHandle,
		rec.AvatarRef,
		rec.Result,
		rec.Shared,
	).Scan(&createdAt, &updatedAt); err != nil {
		return err
	}
	rec.CreatedAt = createdAt
	rec.UpdatedAt = updatedAt
	return nil
}

func (r *BugRepository) GetByID(ctx context.Context, id string) (*entity.BugRecord, error) {
	q := `SELECT ` + bugColumns + ` FROM bugs WHERE id = $1;`

	rec, err := scanBug(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// ListByOwner returns the owner's records, newest first.
func (r *BugRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*entity.BugRecord, error) {
	q := `SELECT ` + bugColumns + `
FROM bugs
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2;`

	return r.list(ctx, q, ownerID, clampLimit(limit))
}

// ListPublic returns shared records that carry a result, newest first.
// A non-empty excludeOwnerID drops that owner's records.
func (r *BugRepository) ListPublic(ctx context.Context, excludeOwnerID string, limit int) ([]*entity.BugRecord, error) {
	q := `SELECT ` + bugColumns + `
FROM bugs
WHERE shared
  AND result IS NOT NULL
  AND btrim(result) <> ''
  AND ($1 = '' OR owner_id <> $1)
ORDER BY created_at DESC
LIMIT $2;`

	return r.list(ctx, q, excludeOwnerID, clampLimit(limit))
}

func (r *BugRepository) list(ctx context.Context, q string, args ...any) ([]*entity.BugRecord, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*entity.BugRecord, 0)
	for rows.Next() {
		rec, err := scanBug(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanBug(row pgx.Row) (*entity.BugRecord, error) {
	var (
		rec    entity.BugRecord
		result *string // NULL => nil
	)
	if err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.Description,
		&rec.DisplayName,
		&rec.DisplayHandle,
		&rec.AvatarRef,
		&result,
		&rec.Shared,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rec.Result = result
	return &rec, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
