package reminders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/careconnect/internal/common"
	"github.com/dmitrijs2005/careconnect/internal/dbx"
	"github.com/dmitrijs2005/careconnect/internal/server/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReminder(row scanner, extra ...any) (*models.Reminder, error) {
	r := &models.Reminder{}
	var status string
	var sent, ack sql.NullTime
	dest := append([]any{&r.ID, &r.ScheduleID, &r.DueAt, &status, &sent, &ack}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	r.Status = models.ReminderStatus(status)
	if sent.Valid {
		t := sent.Time
		r.SentAt = &t
	}
	if ack.Valid {
		t := ack.Time
		r.AckAt = &t
	}
	return r, nil
}

func (r *PostgresRepository) InsertIfAbsent(ctx context.Context, scheduleID string, dueAt []time.Time) (int64, error) {
	query :=
		`INSERT INTO medication_reminders (id, schedule_id, due_at, status)
		 VALUES ($1, $2, $3, 'pending')
		 ON CONFLICT (schedule_id, due_at) DO NOTHING`

	var inserted int64
	for _, at := range dueAt {
		res, err := r.db.ExecContext(ctx, query, uuid.NewString(), scheduleID, at.UTC())
		if err != nil {
			return inserted, fmt.Errorf("db error: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("db error: %w", err)
		}
		inserted += n
	}
	return inserted, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Reminder, error) {
	query :=
		`SELECT id, schedule_id, due_at, status, sent_at, ack_at
		 FROM medication_reminders WHERE id = $1`

	rem, err := scanReminder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rem, nil
}

func (r *PostgresRepository) List(ctx context.Context, f models.ReminderFilter) ([]*models.Reminder, error) {
	var (
		sb   strings.Builder
		args []any
		cond []string
	)
	sb.WriteString(`SELECT r.id, r.schedule_id, r.due_at, r.status, r.sent_at, r.ack_at
		 FROM medication_reminders r
		 JOIN medication_schedules s ON s.id = r.schedule_id`)

	if f.UserID != "" {
		args = append(args, f.UserID)
		cond = append(cond, fmt.Sprintf("s.user_id = $%d", len(args)))
	}
	if f.From != nil {
		args = append(args, f.From.UTC())
		cond = append(cond, fmt.Sprintf("r.due_at >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, f.To.UTC())
		cond = append(cond, fmt.Sprintf("r.due_at <= $%d", len(args)))
	}
	if len(cond) > 0 {
		sb.WriteString("\n\t\t WHERE ")
		sb.WriteString(strings.Join(cond, " AND "))
	}
	sb.WriteString("\n\t\t ORDER BY r.due_at ASC, r.id")

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		out = append(out, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// Acknowledge is allowed from any status; ack is the furthest state, so it
// never moves a reminder backwards. An empty userID skips the ownership check.
func (r *PostgresRepository) Acknowledge(ctx context.Context, id, userID string, at time.Time) (*models.Reminder, error) {
	query :=
		`UPDATE medication_reminders r
		 SET status = 'ack', ack_at = COALESCE(r.ack_at, $2)
		 FROM medication_schedules s
		 WHERE r.id = $1 AND s.id = r.schedule_id AND ($3::text = '' OR s.user_id::text = $3::text)
		 RETURNING r.id, r.schedule_id, r.due_at, r.status, r.sent_at, r.ack_at`

	rem, err := scanReminder(r.db.QueryRowContext(ctx, query, id, at.UTC(), userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rem, nil
}

func (r *PostgresRepository) ListDue(ctx context.Context, before time.Time, limit int) ([]*models.DueReminder, error) {
	query :=
		`SELECT r.id, r.schedule_id, r.due_at, r.status, r.sent_at, r.ack_at,
		        s.user_id, u.email, m.name, m.dosage, s.timezone
		 FROM medication_reminders r
		 JOIN medication_schedules s ON s.id = r.schedule_id
		 JOIN medications m ON m.id = s.medication_id
		 JOIN users u ON u.id = s.user_id
		 WHERE r.status = 'pending' AND r.due_at <= $1
		 ORDER BY r.due_at ASC
		 LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, before.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.DueReminder
	for rows.Next() {
		d := &models.DueReminder{}
		rem, err := scanReminder(rows, &d.UserID, &d.Email, &d.MedicationName, &d.Dosage, &d.Timezone)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		d.Reminder = *rem
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) MarkSent(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE medication_reminders SET status = 'sent', sent_at = $2 WHERE id = $1 AND status = 'pending'`,
		id, at.UTC())
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) MarkMissed(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE medication_reminders SET status = 'missed' WHERE status = 'pending' AND due_at < $1`,
		before.UTC())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
