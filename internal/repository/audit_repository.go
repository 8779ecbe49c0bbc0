package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"smartclinic/api/internal/models"
)

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Insert(ctx context.Context, entry models.AuditLog) error {
	const query = `
		INSERT INTO audit_logs (id, user_type, user_id, action, details, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`

	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.UserType,
		entry.UserID,
		entry.Action,
		entry.Details,
	)
	return err
}

// List returns entries newest first; empty filter values are ignored.
func (r *AuditRepository) List(ctx context.Context, userType, action string, from, to time.Time, limit int) ([]models.AuditLog, error) {
	const query = `
		SELECT id, user_type, user_id, action, details, created_at
		FROM audit_logs
		WHERE ($1 = '' OR user_type = $1)
		  AND ($2 = '' OR action = $2)
		  AND ($3::timestamptz IS NULL OR created_at >= $3)
		  AND ($4::timestamptz IS NULL OR created_at <= $4)
		ORDER BY created_at DESC
		LIMIT $5
	`

	var fromArg, toArg any
	if !from.IsZero() {
		fromArg = from
	}
	if !to.IsZero() {
		toArg = to
	}

	rows, err := r.pool.Query(ctx, query, userType, action, fromArg, toArg, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AuditLog
	for rows.Next() {
		var e models.AuditLog
		if err := rows.Scan(&e.ID, &e.UserType, &e.UserID, &e.Action, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *AuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM audit_logs WHERE created_at < $1`
	cmd, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
