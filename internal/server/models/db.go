// Package models defines server-side data models persisted in the database.
package models

import "time"

type User struct {
	ID          string
	Email       string
	DisplayName string
	CreatedAt   time.Time
}

type Medication struct {
	ID        string
	UserID    string
	Name      string
	Dosage    string
	Notes     string
	CreatedAt time.Time
}

type ShoppingItem struct {
	ID        string
	UserID    string
	Name      string
	Quantity  string
	Done      bool
	CreatedAt time.Time
}

type EmergencyContact struct {
	ID        string
	UserID    string
	Name      string
	Relation  string
	Phone     string
	Email     string
	CreatedAt time.Time
}
