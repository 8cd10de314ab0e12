package shopping

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

func (r *PostgresRepository) Create(ctx context.Context, item *models.ShoppingItem) (*models.ShoppingItem, error) {
	query :=
		`INSERT INTO shopping_items (user_id, name, quantity)
		 VALUES ($1, $2, $3)
		 RETURNING id, done, created_at`

	err := r.db.QueryRowContext(ctx, query, item.UserID, item.Name, item.Quantity).
		Scan(&item.ID, &item.Done, &item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return item, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.ShoppingItem, error) {
	query :=
		`SELECT id, user_id, name, quantity, done, created_at
		 FROM shopping_items WHERE user_id = $1
		 ORDER BY done, created_at`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.ShoppingItem
	for rows.Next() {
		it := &models.ShoppingItem{}
		if err := rows.Scan(&it.ID, &it.UserID, &it.Name, &it.Quantity, &it.Done, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) SetDone(ctx context.Context, id, userID string, done bool) (*models.ShoppingItem, error) {
	query :=
		`UPDATE shopping_items SET done = $3
		 WHERE id = $1 AND user_id = $2
		 RETURNING id, user_id, name, quantity, done, created_at`

	it := &models.ShoppingItem{}
	err := r.db.QueryRowContext(ctx, query, id, userID, done).
		Scan(&it.ID, &it.UserID, &it.Name, &it.Quantity, &it.Done, &it.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return it, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM shopping_items WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("db error: %w", err)
	} else if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
