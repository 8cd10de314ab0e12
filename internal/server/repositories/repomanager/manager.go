package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/careconnect/internal/dbx"
	"github.com/dmitrijs2005/careconnect/internal/server/repositories/access"
	"github.com/dmitrijs2005/careconnect/internal/server/repositories/audit"
	"github.com/dmitrijs2005/careconnect/internal/server/repositories/contacts"
	"github.com/dmitrijs2005/careconnect/internal/server/repositories/documents"
	"github.com/dmitrijs2005/careconnect/internal/server/repositories/medications"
	"github.com/dmitrijs2005/careconnect/internal/server/repositories/readings"
	"github.com/dmitrijs2005/careconnect/internal/server/repositories/reminders"
	"github.com/dmitrijs2005/careconnect/internal/server/repositories/schedules"
	"github.com/dmitrijs2005/careconnect/internal/server/repositories/shopping"
	"github.com/dmitrijs2005/careconnect/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to either the pool or an open
// transaction, so services can choose per call.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Medications(db dbx.DBTX) medications.Repository
	Documents(db dbx.DBTX) documents.Repository
	Access(db dbx.DBTX) access.Repository
	Audit(db dbx.DBTX) audit.Repository
	Schedules(db dbx.DBTX) schedules.Repository
	Reminders(db dbx.DBTX) reminders.Repository
	Readings(db dbx.DBTX) readings.Repository
	Shopping(db dbx.DBTX) shopping.Repository
	Contacts(db dbx.DBTX) contacts.Repository
}
