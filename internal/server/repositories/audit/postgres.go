package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/careconnect/internal/dbx"
	"github.com/dmitrijs2005/careconnect/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, e *models.AuditEntry) error {
	query :=
		`INSERT INTO vault_document_audit (document_id, user_id, action)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`

	userID := sql.NullString{String: e.UserID, Valid: e.UserID != ""}
	err := r.db.QueryRowContext(ctx, query, e.DocumentID, userID, string(e.Action)).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByDocument(ctx context.Context, documentID string) ([]*models.AuditEntry, error) {
	query :=
		`SELECT id, document_id, user_id, action, created_at
		 FROM vault_document_audit
		 WHERE document_id = $1
		 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.AuditEntry
	for rows.Next() {
		e := &models.AuditEntry{}
		var userID sql.NullString
		var action string
		if err := rows.Scan(&e.ID, &e.DocumentID, &userID, &action, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		e.UserID = userID.String
		e.Action = models.AuditAction(action)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}
