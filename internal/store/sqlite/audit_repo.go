package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"chatd/internal/domain"
)

type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

var _ domain.AuditRepository = (*AuditRepo)(nil)

func (r *AuditRepo) Record(ctx context.Context, ev domain.AuditEvent) error {
	query := `INSERT INTO audit_logs (actor, action, detail) VALUES (?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, ev.Actor, ev.Action, ev.Detail); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (r *AuditRepo) Recent(ctx context.Context, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, at, actor, action, detail
		FROM audit_logs
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var res []domain.AuditEvent
	for rows.Next() {
		var ev domain.AuditEvent
		if err := rows.Scan(&ev.ID, &ev.At, &ev.Actor, &ev.Action, &ev.Detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		res = append(res, ev)
	}
	return res, rows.Err()
}
