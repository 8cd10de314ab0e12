package readings

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/careconnect/internal/dbx"
	"github.com/dmitrijs2005/careconnect/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Add(ctx context.Context, h *models.HealthReading) (*models.HealthReading, error) {
	query :=
		`INSERT INTO health_readings (user_id, metric, value_num, value_json, unit, taken_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`

	var num sql.NullFloat64
	if h.ValueNum != nil {
		num = sql.NullFloat64{Float64: *h.ValueNum, Valid: true}
	}
	var js []byte
	if len(h.ValueJSON) > 0 {
		js = h.ValueJSON
	}

	err := r.db.QueryRowContext(ctx, query, h.UserID, h.Metric, num, js, h.Unit, h.TakenAt.UTC()).Scan(&h.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return h, nil
}

func (r *PostgresRepository) Recent(ctx context.Context, userID string, since time.Time, limit int) ([]*models.HealthReading, error) {
	query :=
		`SELECT id, user_id, metric, value_num, value_json, unit, taken_at
		 FROM health_readings
		 WHERE user_id = $1 AND taken_at >= $2
		 ORDER BY taken_at DESC
		 LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, userID, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.HealthReading
	for rows.Next() {
		h := &models.HealthReading{}
		var num sql.NullFloat64
		var js []byte
		if err := rows.Scan(&h.ID, &h.UserID, &h.Metric, &num, &js, &h.Unit, &h.TakenAt); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		if num.Valid {
			v := num.Float64
			h.ValueNum = &v
		}
		if len(js) > 0 {
			h.ValueJSON = js
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}
