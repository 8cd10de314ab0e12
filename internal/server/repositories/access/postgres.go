package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/careconnect/internal/common"
	"github.com/dmitrijs2005/careconnect/internal/dbx"
	"github.com/dmitrijs2005/careconnect/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Grant inserts or replaces the role of a user on a document.
func (r *PostgresRepository) Grant(ctx context.Context, g *models.AccessGrant) error {
	query :=
		`INSERT INTO vault_document_access (document_id, user_id, role)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (document_id, user_id) DO UPDATE SET role = EXCLUDED.role`

	if _, err := r.db.ExecContext(ctx, query, g.DocumentID, g.UserID, string(g.Role)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, documentID, userID string) (*models.AccessGrant, error) {
	query :=
		`SELECT document_id, user_id, role FROM vault_document_access
		 WHERE document_id = $1 AND user_id = $2`

	g := &models.AccessGrant{}
	var role string
	err := r.db.QueryRowContext(ctx, query, documentID, userID).Scan(&g.DocumentID, &g.UserID, &role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	g.Role = models.Role(role)
	return g, nil
}
