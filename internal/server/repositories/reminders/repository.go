package reminders

import (
	"context"
	"time"

	"github.com/dmitrijs2005/careconnect/internal/server/models"
)

type Repository interface {
	// InsertIfAbsent inserts one pending reminder per instant and returns
	// how many rows were actually created; existing (schedule_id, due_at)
	// pairs are left untouched.
	InsertIfAbsent(ctx context.Context, scheduleID string, dueAt []time.Time) (int64, error)
	Get(ctx context.Context, id string) (*models.Reminder, error)
	List(ctx context.Context, f models.ReminderFilter) ([]*models.Reminder, error)
	// Acknowledge sets status ack. The first ack time is kept on repeat calls.
	Acknowledge(ctx context.Context, id, userID string, at time.Time) (*models.Reminder, error)
	ListDue(ctx context.Context, before time.Time, limit int) ([]*models.DueReminder, error)
	// MarkSent moves a pending reminder to sent. It reports false when the
	// reminder is no longer pending (acknowledged meanwhile).
	MarkSent(ctx context.Context, id string, at time.Time) (bool, error)
	MarkMissed(ctx context.Context, before time.Time) (int64, error)
}
