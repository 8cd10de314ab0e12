package schedules

import (
	"context"
	"database/sql"
	"encoding/json"
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

const columns = `id, user_id, medication_id, timezone, rule, start_date, end_date, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row scanner) (*models.MedicationSchedule, error) {
	s := &models.MedicationSchedule{}
	var rule []byte
	var end sql.NullTime
	if err := row.Scan(&s.ID, &s.UserID, &s.MedicationID, &s.Timezone, &rule, &s.StartDate, &end, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rule, &s.Rule); err != nil {
		return nil, fmt.Errorf("decode rule: %w", err)
	}
	if end.Valid {
		t := end.Time
		s.EndDate = &t
	}
	return s, nil
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.MedicationSchedule) (*models.MedicationSchedule, error) {
	query :=
		`INSERT INTO medication_schedules (user_id, medication_id, timezone, rule, start_date, end_date)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`

	rule, err := json.Marshal(s.Rule)
	if err != nil {
		return nil, fmt.Errorf("encode rule: %w", err)
	}
	var end sql.NullTime
	if s.EndDate != nil {
		end = sql.NullTime{Time: *s.EndDate, Valid: true}
	}

	err = r.db.QueryRowContext(ctx, query, s.UserID, s.MedicationID, s.Timezone, rule, s.StartDate, end).
		Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.MedicationSchedule, error) {
	s, err := scanSchedule(r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM medication_schedules WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.MedicationSchedule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+columns+` FROM medication_schedules WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.MedicationSchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// Delete removes a schedule owned by userID; its reminders cascade.
func (r *PostgresRepository) Delete(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM medication_schedules WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
