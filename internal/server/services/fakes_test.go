package services

import (
	"bytes"
	"context"
	"database/sql"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/careconnect/internal/common"
	"github.com/dmitrijs2005/careconnect/internal/cryptox"
	"github.com/dmitrijs2005/careconnect/internal/dbx"
	"github.com/dmitrijs2005/careconnect/internal/server/models"
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
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func testKeyRing(t *testing.T, current int, versions ...int) *cryptox.KeyRing {
	t.Helper()
	keys := map[int][]byte{}
	for _, v := range versions {
		keys[v] = bytes.Repeat([]byte{byte(v)}, cryptox.KeySize)
	}
	ring, err := cryptox.NewKeyRing(current, keys)
	require.NoError(t, err)
	return ring
}

var fixedCreatedAt = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// --- repository manager ---

type fakeRepoManager struct {
	users     *memUsers
	meds      *memMedications
	docs      *memDocuments
	access    *memAccess
	audit     *memAudit
	schedules *memSchedules
	reminders *memReminders
	readings  *memReadings
	shopping  *memShopping
	contacts  *memContacts
}

func newFakeRepoManager() *fakeRepoManager {
	acc := &memAccess{grants: map[[2]string]models.Role{}}
	return &fakeRepoManager{
		users:     &memUsers{},
		meds:      &memMedications{byID: map[string]*models.Medication{}},
		docs:      &memDocuments{byID: map[string]*models.VaultDocument{}, access: acc},
		access:    acc,
		audit:     &memAudit{},
		schedules: &memSchedules{byID: map[string]*models.MedicationSchedule{}},
		reminders: &memReminders{byKey: map[string]*models.Reminder{}},
		readings:  &memReadings{},
		shopping:  &memShopping{byID: map[string]*models.ShoppingItem{}},
		contacts:  &memContacts{byID: map[string]*models.EmergencyContact{}},
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return m.users }
func (m *fakeRepoManager) Medications(dbx.DBTX) medications.Repository  { return m.meds }
func (m *fakeRepoManager) Documents(dbx.DBTX) documents.Repository      { return m.docs }
func (m *fakeRepoManager) Access(dbx.DBTX) access.Repository            { return m.access }
func (m *fakeRepoManager) Audit(dbx.DBTX) audit.Repository              { return m.audit }
func (m *fakeRepoManager) Schedules(dbx.DBTX) schedules.Repository      { return m.schedules }
func (m *fakeRepoManager) Reminders(dbx.DBTX) reminders.Repository      { return m.reminders }
func (m *fakeRepoManager) Readings(dbx.DBTX) readings.Repository        { return m.readings }
func (m *fakeRepoManager) Shopping(dbx.DBTX) shopping.Repository        { return m.shopping }
func (m *fakeRepoManager) Contacts(dbx.DBTX) contacts.Repository        { return m.contacts }

// --- users ---

type memUsers struct {
	users.Repository
	created   []*models.User
	createErr error
}

func (r *memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	out := *u
	out.ID = uuid.NewString()
	out.CreatedAt = fixedCreatedAt
	r.created = append(r.created, &out)
	return &out, nil
}

func (r *memUsers) Get(_ context.Context, id string) (*models.User, error) {
	for _, u := range r.created {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

// --- medications ---

type memMedications struct {
	medications.Repository
	byID map[string]*models.Medication
}

func (r *memMedications) add(userID, name string) *models.Medication {
	m := &models.Medication{ID: uuid.NewString(), UserID: userID, Name: name, CreatedAt: fixedCreatedAt}
	r.byID[m.ID] = m
	return m
}

func (r *memMedications) Create(_ context.Context, m *models.Medication) (*models.Medication, error) {
	out := *m
	out.ID = uuid.NewString()
	out.CreatedAt = fixedCreatedAt
	r.byID[out.ID] = &out
	return &out, nil
}

func (r *memMedications) Get(_ context.Context, id string) (*models.Medication, error) {
	if m, ok := r.byID[id]; ok {
		return m, nil
	}
	return nil, common.ErrorNotFound
}

func (r *memMedications) ListByUser(_ context.Context, userID string) ([]*models.Medication, error) {
	var out []*models.Medication
	for _, m := range r.byID {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memMedications) Delete(_ context.Context, id, userID string) error {
	if m, ok := r.byID[id]; ok && m.UserID == userID {
		delete(r.byID, id)
		return nil
	}
	return common.ErrorNotFound
}

// --- vault ---

type memDocuments struct {
	documents.Repository
	byID      map[string]*models.VaultDocument
	access    *memAccess
	createErr error
}

func (r *memDocuments) Create(_ context.Context, d *models.VaultDocument) error {
	if r.createErr != nil {
		return r.createErr
	}
	d.CreatedAt = fixedCreatedAt
	cp := *d
	r.byID[d.ID] = &cp
	return nil
}

func (r *memDocuments) Get(_ context.Context, id string) (*models.VaultDocument, error) {
	if d, ok := r.byID[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, common.ErrorNotFound
}

func (r *memDocuments) GetForUser(ctx context.Context, id, userID string) (*models.VaultDocument, error) {
	if _, ok := r.access.grants[[2]string{id, userID}]; !ok {
		return nil, common.ErrorNotFound
	}
	return r.Get(ctx, id)
}

func (r *memDocuments) ListForUser(_ context.Context, userID string) ([]*models.VaultDocument, error) {
	var out []*models.VaultDocument
	for id, d := range r.byID {
		if _, ok := r.access.grants[[2]string{id, userID}]; ok {
			out = append(out, &models.VaultDocument{ID: d.ID, Name: d.Name, MimeType: d.MimeType, SizeBytes: d.SizeBytes, OwnerID: d.OwnerID, CreatedAt: d.CreatedAt})
		}
	}
	return out, nil
}

func (r *memDocuments) Delete(_ context.Context, id string) error {
	if _, ok := r.byID[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.byID, id)
	for k := range r.access.grants {
		if k[0] == id {
			delete(r.access.grants, k)
		}
	}
	return nil
}

type memAccess struct {
	access.Repository
	grants   map[[2]string]models.Role
	grantErr error
}

func (r *memAccess) Grant(_ context.Context, g *models.AccessGrant) error {
	if r.grantErr != nil {
		return r.grantErr
	}
	r.grants[[2]string{g.DocumentID, g.UserID}] = g.Role
	return nil
}

func (r *memAccess) Get(_ context.Context, documentID, userID string) (*models.AccessGrant, error) {
	role, ok := r.grants[[2]string{documentID, userID}]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &models.AccessGrant{DocumentID: documentID, UserID: userID, Role: role}, nil
}

type memAudit struct {
	audit.Repository
	entries   []*models.AuditEntry
	appendErr error
}

func (r *memAudit) Append(_ context.Context, e *models.AuditEntry) error {
	if r.appendErr != nil {
		return r.appendErr
	}
	e.ID = int64(len(r.entries) + 1)
	e.CreatedAt = fixedCreatedAt
	cp := *e
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *memAudit) ListByDocument(_ context.Context, documentID string) ([]*models.AuditEntry, error) {
	var out []*models.AuditEntry
	for _, e := range r.entries {
		if e.DocumentID == documentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memAudit) actions(documentID string) []models.AuditAction {
	var out []models.AuditAction
	for _, e := range r.entries {
		if e.DocumentID == documentID {
			out = append(out, e.Action)
		}
	}
	return out
}

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	putErr  error
}

func newMemBlobs() *memBlobs { return &memBlobs{objects: map[string][]byte{}} }

func (b *memBlobs) Put(_ context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.putErr != nil {
		return b.putErr
	}
	b.objects[key] = append([]byte(nil), data...)
	return nil
}

func (b *memBlobs) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return append([]byte(nil), data...), nil
}

func (b *memBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	b.deleted = append(b.deleted, key)
	return nil
}

// --- schedules and reminders ---

type memSchedules struct {
	schedules.Repository
	byID map[string]*models.MedicationSchedule
}

func (r *memSchedules) Create(_ context.Context, s *models.MedicationSchedule) (*models.MedicationSchedule, error) {
	out := *s
	out.ID = uuid.NewString()
	out.CreatedAt = fixedCreatedAt
	r.byID[out.ID] = &out
	return &out, nil
}

func (r *memSchedules) Get(_ context.Context, id string) (*models.MedicationSchedule, error) {
	if s, ok := r.byID[id]; ok {
		return s, nil
	}
	return nil, common.ErrorNotFound
}

func (r *memSchedules) ListByUser(_ context.Context, userID string) ([]*models.MedicationSchedule, error) {
	var out []*models.MedicationSchedule
	for _, s := range r.byID {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memSchedules) Delete(_ context.Context, id, userID string) error {
	if s, ok := r.byID[id]; ok && s.UserID == userID {
		delete(r.byID, id)
		return nil
	}
	return common.ErrorNotFound
}

// memReminders keys rows by (schedule_id, due_at) the way the unique
// constraint does.
type memReminders struct {
	reminders.Repository
	byKey      map[string]*models.Reminder
	insertErr  error
	ackAt      time.Time
	ackUser    string
	missBefore time.Time
}

func reminderKey(scheduleID string, due time.Time) string {
	return scheduleID + "|" + due.UTC().Format(time.RFC3339Nano)
}

func (r *memReminders) InsertIfAbsent(_ context.Context, scheduleID string, dueAt []time.Time) (int64, error) {
	if r.insertErr != nil {
		return 0, r.insertErr
	}
	var n int64
	for _, d := range dueAt {
		k := reminderKey(scheduleID, d)
		if _, ok := r.byKey[k]; ok {
			continue
		}
		r.byKey[k] = &models.Reminder{ID: uuid.NewString(), ScheduleID: scheduleID, DueAt: d, Status: models.StatusPending}
		n++
	}
	return n, nil
}

func (r *memReminders) keys() []string {
	out := make([]string, 0, len(r.byKey))
	for k := range r.byKey {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func (r *memReminders) List(_ context.Context, f models.ReminderFilter) ([]*models.Reminder, error) {
	var out []*models.Reminder
	for _, rem := range r.byKey {
		out = append(out, rem)
	}
	slices.SortFunc(out, func(a, b *models.Reminder) int { return a.DueAt.Compare(b.DueAt) })
	return out, nil
}

func (r *memReminders) Acknowledge(_ context.Context, id, userID string, at time.Time) (*models.Reminder, error) {
	r.ackAt, r.ackUser = at, userID
	for _, rem := range r.byKey {
		if rem.ID == id {
			rem.Status = models.StatusAck
			if rem.AckAt == nil {
				rem.AckAt = &at
			}
			return rem, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memReminders) MarkMissed(_ context.Context, before time.Time) (int64, error) {
	r.missBefore = before
	var n int64
	for _, rem := range r.byKey {
		if rem.Status == models.StatusPending && rem.DueAt.Before(before) {
			rem.Status = models.StatusMissed
			n++
		}
	}
	return n, nil
}

// --- readings ---

type memReadings struct {
	readings.Repository
	added     []*models.HealthReading
	recent    []*models.HealthReading
	recentErr error
	since     time.Time
}

func (r *memReadings) Add(_ context.Context, h *models.HealthReading) (*models.HealthReading, error) {
	out := *h
	out.ID = uuid.NewString()
	r.added = append(r.added, &out)
	return &out, nil
}

func (r *memReadings) Recent(_ context.Context, _ string, since time.Time, _ int) ([]*models.HealthReading, error) {
	r.since = since
	return r.recent, r.recentErr
}

// --- shopping and contacts ---

type memShopping struct {
	shopping.Repository
	byID map[string]*models.ShoppingItem
}

func (r *memShopping) Create(_ context.Context, it *models.ShoppingItem) (*models.ShoppingItem, error) {
	out := *it
	out.ID = uuid.NewString()
	r.byID[out.ID] = &out
	return &out, nil
}

func (r *memShopping) SetDone(_ context.Context, id, userID string, done bool) (*models.ShoppingItem, error) {
	it, ok := r.byID[id]
	if !ok || it.UserID != userID {
		return nil, common.ErrorNotFound
	}
	it.Done = done
	return it, nil
}

type memContacts struct {
	contacts.Repository
	byID map[string]*models.EmergencyContact
}

func (r *memContacts) Create(_ context.Context, c *models.EmergencyContact) (*models.EmergencyContact, error) {
	out := *c
	out.ID = uuid.NewString()
	r.byID[out.ID] = &out
	return &out, nil
}
