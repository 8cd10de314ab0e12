package services

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/careconnect/internal/common"
	"github.com/dmitrijs2005/careconnect/internal/logging"
	"github.com/dmitrijs2005/careconnect/internal/server/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Monday 2024-01-01, before the first dose.
var mondayMorning = time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)

func newReminders(t *testing.T, now time.Time) (*ReminderService, *fakeRepoManager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newSQLMockDB(t)
	rm := newFakeRepoManager()
	svc := NewReminderService(db, rm, logging.Nop())
	svc.now = func() time.Time { return now }
	return svc, rm, mock
}

func seedSchedule(rm *fakeRepoManager, userID, tz string, rule models.ScheduleRule) *models.MedicationSchedule {
	s := &models.MedicationSchedule{
		ID:           uuid.NewString(),
		UserID:       userID,
		MedicationID: uuid.NewString(),
		Timezone:     tz,
		Rule:         rule,
		StartDate:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	rm.schedules.byID[s.ID] = s
	return s
}

var monWedFri = models.ScheduleRule{Times: []string{"08:00", "20:00"}, DaysOfWeek: []int{1, 3, 5}}

func TestGenerate_CountsInsertedRows(t *testing.T) {
	svc, rm, mock := newReminders(t, mondayMorning)
	sched := seedSchedule(rm, ownerID, "UTC", monWedFri)

	mock.ExpectBegin()
	mock.ExpectCommit()
	n, err := svc.Generate(context.Background(), sched.ID, ownerID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n, "Mon 08:00, Mon 20:00, Wed 08:00, Wed 20:00")

	assert.Equal(t, []string{
		reminderKey(sched.ID, time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)),
		reminderKey(sched.ID, time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)),
		reminderKey(sched.ID, time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC)),
		reminderKey(sched.ID, time.Date(2024, 1, 3, 20, 0, 0, 0, time.UTC)),
	}, rm.reminders.keys())
}

func TestGenerate_IsIdempotentOverOverlappingHorizons(t *testing.T) {
	once, onceRM, onceMock := newReminders(t, mondayMorning)
	s1 := seedSchedule(onceRM, ownerID, "Europe/Riga", monWedFri)
	onceMock.ExpectBegin()
	onceMock.ExpectCommit()
	_, err := once.Generate(context.Background(), s1.ID, ownerID, 7)
	require.NoError(t, err)

	twice, twiceRM, twiceMock := newReminders(t, mondayMorning)
	s2 := *s1
	twiceRM.schedules.byID[s2.ID] = &s2

	for _, days := range []int{3, 7, 7} {
		twiceMock.ExpectBegin()
		twiceMock.ExpectCommit()
		_, err := twice.Generate(context.Background(), s2.ID, ownerID, days)
		require.NoError(t, err)
	}

	assert.Equal(t, onceRM.reminders.keys(), twiceRM.reminders.keys())

	twiceMock.ExpectBegin()
	twiceMock.ExpectCommit()
	n, err := twice.Generate(context.Background(), s2.ID, ownerID, 7)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGenerate_DropsInstantsBeforeNow(t *testing.T) {
	mondayEvening := time.Date(2024, 1, 1, 19, 0, 0, 0, time.UTC)
	svc, rm, mock := newReminders(t, mondayEvening)
	sched := seedSchedule(rm, ownerID, "UTC", monWedFri)

	mock.ExpectBegin()
	mock.ExpectCommit()
	n, err := svc.Generate(context.Background(), sched.ID, ownerID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NotContains(t, rm.reminders.byKey, reminderKey(sched.ID, time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)))
}

func TestGenerate_Validation(t *testing.T) {
	svc, rm, mock := newReminders(t, mondayMorning)
	sched := seedSchedule(rm, ownerID, "UTC", monWedFri)

	for _, days := range []int{0, -1, 91} {
		_, err := svc.Generate(context.Background(), sched.ID, ownerID, days)
		assert.ErrorIs(t, err, common.ErrValidation, "days=%d", days)
	}

	_, err := svc.Generate(context.Background(), "bogus", ownerID, 1)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.Generate(context.Background(), sched.ID, otherID, 1)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.Generate(context.Background(), uuid.NewString(), "", 1)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	assert.Empty(t, rm.reminders.byKey)
}

func TestGenerate_InsertFailureRollsBack(t *testing.T) {
	svc, rm, mock := newReminders(t, mondayMorning)
	sched := seedSchedule(rm, ownerID, "UTC", monWedFri)
	rm.reminders.insertErr = errBoom{}

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err := svc.Generate(context.Background(), sched.ID, ownerID, 7)
	assert.ErrorIs(t, err, errBoom{})
}

func TestGenerate_BadStoredTimezone(t *testing.T) {
	svc, rm, mock := newReminders(t, mondayMorning)
	sched := seedSchedule(rm, ownerID, "Mars/Olympus", monWedFri)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err := svc.Generate(context.Background(), sched.ID, ownerID, 7)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestCreateSchedule(t *testing.T) {
	svc, rm, _ := newReminders(t, mondayMorning)
	med := rm.meds.add(ownerID, "Aspirin")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	sched, err := svc.CreateSchedule(context.Background(), ownerID, ScheduleInput{
		MedicationID: med.ID,
		Timezone:     "Europe/Riga",
		Times:        []string{"20:00", "8:00", "08:00"},
		DaysOfWeek:   []int{5, 1},
		StartDate:    start,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00", "20:00"}, sched.Rule.Times)
	assert.Equal(t, []int{1, 5}, sched.Rule.DaysOfWeek)
	assert.Equal(t, "Europe/Riga", sched.Timezone)

	got, err := svc.GetSchedule(context.Background(), sched.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, sched.ID, got.ID)

	_, err = svc.GetSchedule(context.Background(), sched.ID, otherID)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	list, err := svc.ListSchedules(context.Background(), ownerID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.ErrorIs(t, svc.DeleteSchedule(context.Background(), sched.ID, otherID), common.ErrorNotFound)
	require.NoError(t, svc.DeleteSchedule(context.Background(), sched.ID, ownerID))
}

func TestCreateSchedule_Validation(t *testing.T) {
	svc, rm, _ := newReminders(t, mondayMorning)
	med := rm.meds.add(ownerID, "Aspirin")
	foreign := rm.meds.add(otherID, "Ibuprofen")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	before := start.AddDate(0, 0, -1)

	tests := []struct {
		name string
		in   ScheduleInput
	}{
		{name: "no times", in: ScheduleInput{MedicationID: med.ID, StartDate: start}},
		{name: "bad time", in: ScheduleInput{MedicationID: med.ID, Times: []string{"25:00"}, StartDate: start}},
		{name: "bad weekday", in: ScheduleInput{MedicationID: med.ID, Times: []string{"08:00"}, DaysOfWeek: []int{7}, StartDate: start}},
		{name: "bad timezone", in: ScheduleInput{MedicationID: med.ID, Timezone: "Nowhere/City", Times: []string{"08:00"}, StartDate: start}},
		{name: "no start", in: ScheduleInput{MedicationID: med.ID, Times: []string{"08:00"}}},
		{name: "end before start", in: ScheduleInput{MedicationID: med.ID, Times: []string{"08:00"}, StartDate: start, EndDate: &before}},
		{name: "unknown medication", in: ScheduleInput{MedicationID: uuid.NewString(), Times: []string{"08:00"}, StartDate: start}},
		{name: "malformed medication id", in: ScheduleInput{MedicationID: "x", Times: []string{"08:00"}, StartDate: start}},
		{name: "foreign medication", in: ScheduleInput{MedicationID: foreign.ID, Times: []string{"08:00"}, StartDate: start}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateSchedule(context.Background(), ownerID, tt.in)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
	assert.Empty(t, rm.schedules.byID)
}

func TestAcknowledge(t *testing.T) {
	svc, rm, mock := newReminders(t, mondayMorning)
	sched := seedSchedule(rm, ownerID, "UTC", monWedFri)
	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err := svc.Generate(context.Background(), sched.ID, ownerID, 1)
	require.NoError(t, err)

	list, err := svc.ListReminders(context.Background(), models.ReminderFilter{UserID: ownerID})
	require.NoError(t, err)
	require.NotEmpty(t, list)

	got, err := svc.Acknowledge(context.Background(), list[0].ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAck, got.Status)
	assert.Equal(t, mondayMorning, *got.AckAt)
	assert.Equal(t, ownerID, rm.reminders.ackUser)

	_, err = svc.Acknowledge(context.Background(), "nope", ownerID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestListReminders_RangeValidation(t *testing.T) {
	svc, _, _ := newReminders(t, mondayMorning)
	from := mondayMorning
	to := from.Add(-time.Hour)

	_, err := svc.ListReminders(context.Background(), models.ReminderFilter{From: &from, To: &to})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestMarkMissed(t *testing.T) {
	svc, rm, _ := newReminders(t, mondayMorning)

	_, err := svc.MarkMissed(context.Background(), 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, mondayMorning.Add(-2*time.Hour), rm.reminders.missBefore)
}
