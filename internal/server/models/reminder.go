package models

import "time"

// ScheduleRule is the persisted shape of a recurrence rule. It is validated
// by recurrence.ParseRule before it is written.
type ScheduleRule struct {
	Times      []string `json:"times"`
	DaysOfWeek []int    `json:"daysOfWeek,omitempty"`
}

type MedicationSchedule struct {
	ID           string
	UserID       string
	MedicationID string
	Timezone     string
	Rule         ScheduleRule
	StartDate    time.Time
	EndDate      *time.Time
	CreatedAt    time.Time
}

type ReminderStatus string

const (
	StatusPending ReminderStatus = "pending"
	StatusSent    ReminderStatus = "sent"
	StatusAck     ReminderStatus = "ack"
	StatusMissed  ReminderStatus = "missed"
)

type Reminder struct {
	ID         string
	ScheduleID string
	DueAt      time.Time
	Status     ReminderStatus
	SentAt     *time.Time
	AckAt      *time.Time
}

// ReminderFilter narrows ListReminders. Zero values mean "no restriction".
type ReminderFilter struct {
	UserID string
	From   *time.Time
	To     *time.Time
}

// DueReminder is a pending reminder joined with what the notifier needs to
// address and phrase the message.
type DueReminder struct {
	Reminder
	UserID         string
	Email          string
	MedicationName string
	Dosage         string
	Timezone       string
}
