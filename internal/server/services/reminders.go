package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/careconnect/internal/common"
	"github.com/dmitrijs2005/careconnect/internal/dbx"
	"github.com/dmitrijs2005/careconnect/internal/logging"
	"github.com/dmitrijs2005/careconnect/internal/server/models"
	"github.com/dmitrijs2005/careconnect/internal/server/recurrence"
	"github.com/dmitrijs2005/careconnect/internal/server/repositories/repomanager"
)

const (
	MinGenerateDays = 1
	MaxGenerateDays = 90
)

type ScheduleInput struct {
	MedicationID string
	Timezone     string
	Times        []string
	DaysOfWeek   []int
	StartDate    time.Time
	EndDate      *time.Time
}

type ReminderService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
	now         func() time.Time
}

func NewReminderService(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger) *ReminderService {
	return &ReminderService{
		db:          db,
		repomanager: m,
		log:         l.With("module", "reminders"),
		now:         time.Now,
	}
}

// CreateSchedule validates the rule, timezone and date range and stores the
// rule in normalized form (sorted, without duplicates).
func (s *ReminderService) CreateSchedule(ctx context.Context, userID string, in ScheduleInput) (*models.MedicationSchedule, error) {
	rule, err := recurrence.ParseRule(in.Times, in.DaysOfWeek)
	if err != nil {
		return nil, err
	}
	tz := strings.TrimSpace(in.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", common.ErrValidation, tz)
	}
	if in.StartDate.IsZero() {
		return nil, fmt.Errorf("%w: start date is required", common.ErrValidation)
	}
	if in.EndDate != nil && in.EndDate.Before(in.StartDate) {
		return nil, fmt.Errorf("%w: end date is before start date", common.ErrValidation)
	}
	unknownMed := fmt.Errorf("%w: unknown medication %q", common.ErrValidation, in.MedicationID)
	if !validID(in.MedicationID) {
		return nil, unknownMed
	}

	med, err := s.repomanager.Medications(s.db).Get(ctx, in.MedicationID)
	if errors.Is(err, common.ErrorNotFound) || (err == nil && med.UserID != userID) {
		return nil, unknownMed
	}
	if err != nil {
		return nil, err
	}

	sched := &models.MedicationSchedule{
		UserID:       userID,
		MedicationID: med.ID,
		Timezone:     tz,
		Rule:         models.ScheduleRule{Times: rule.TimeStrings(), DaysOfWeek: rule.DayNumbers()},
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
	}
	return s.repomanager.Schedules(s.db).Create(ctx, sched)
}

func (s *ReminderService) GetSchedule(ctx context.Context, id, userID string) (*models.MedicationSchedule, error) {
	if !validID(id) {
		return nil, common.ErrorNotFound
	}
	sched, err := s.repomanager.Schedules(s.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID != "" && sched.UserID != userID {
		return nil, common.ErrorNotFound
	}
	return sched, nil
}

func (s *ReminderService) ListSchedules(ctx context.Context, userID string) ([]*models.MedicationSchedule, error) {
	return s.repomanager.Schedules(s.db).ListByUser(ctx, userID)
}

func (s *ReminderService) DeleteSchedule(ctx context.Context, id, userID string) error {
	if !validID(id) {
		return common.ErrorNotFound
	}
	return s.repomanager.Schedules(s.db).Delete(ctx, id, userID)
}

// Generate expands the schedule up to now+days and inserts the missing
// reminders in one transaction. It returns how many reminders were created;
// reminders that already exist for the same instant are kept as they are,
// so overlapping runs never duplicate.
func (s *ReminderService) Generate(ctx context.Context, scheduleID, userID string, days int) (int64, error) {
	if days < MinGenerateDays || days > MaxGenerateDays {
		return 0, fmt.Errorf("%w: days must be between %d and %d", common.ErrValidation, MinGenerateDays, MaxGenerateDays)
	}
	if !validID(scheduleID) {
		return 0, common.ErrorNotFound
	}

	now := s.now()
	count, err := dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (int64, error) {
		sched, err := s.repomanager.Schedules(tx).Get(ctx, scheduleID)
		if err != nil {
			return 0, err
		}
		if userID != "" && sched.UserID != userID {
			return 0, common.ErrorNotFound
		}

		rule, err := recurrence.ParseRule(sched.Rule.Times, sched.Rule.DaysOfWeek)
		if err != nil {
			return 0, fmt.Errorf("schedule %s: %w", sched.ID, err)
		}
		loc, err := time.LoadLocation(sched.Timezone)
		if err != nil {
			return 0, fmt.Errorf("%w: schedule %s has unknown timezone %q", common.ErrValidation, sched.ID, sched.Timezone)
		}

		instants := recurrence.Expand(rule, recurrence.Window{
			Start:   sched.StartDate,
			End:     sched.EndDate,
			Horizon: now.Add(time.Duration(days) * 24 * time.Hour),
			Now:     now,
		}, loc)
		if len(instants) == 0 {
			return 0, nil
		}
		return s.repomanager.Reminders(tx).InsertIfAbsent(ctx, sched.ID, instants)
	})
	if err != nil {
		return 0, err
	}

	s.log.Info(ctx, "reminders generated", "schedule_id", scheduleID, "days", days, "generated", count)
	return count, nil
}

// ListReminders returns reminders ordered by due time, ascending.
func (s *ReminderService) ListReminders(ctx context.Context, f models.ReminderFilter) ([]*models.Reminder, error) {
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, fmt.Errorf("%w: 'to' is before 'from'", common.ErrValidation)
	}
	return s.repomanager.Reminders(s.db).List(ctx, f)
}

// Acknowledge marks a reminder as acknowledged. Repeated calls keep the
// first ack time; a sent reminder stays acknowledged afterwards because the
// notifier only ever moves pending reminders.
func (s *ReminderService) Acknowledge(ctx context.Context, id, userID string) (*models.Reminder, error) {
	if !validID(id) {
		return nil, common.ErrorNotFound
	}
	return s.repomanager.Reminders(s.db).Acknowledge(ctx, id, userID, s.now())
}

// MarkMissed moves reminders still pending grace after their due time to
// missed.
func (s *ReminderService) MarkMissed(ctx context.Context, grace time.Duration) (int64, error) {
	n, err := s.repomanager.Reminders(s.db).MarkMissed(ctx, s.now().Add(-grace))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info(ctx, "reminders marked missed", "count", n)
	}
	return n, nil
}
