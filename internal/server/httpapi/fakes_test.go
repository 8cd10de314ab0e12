package httpapi

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/dmitrijs2005/careconnect/internal/logging"
	"github.com/dmitrijs2005/careconnect/internal/server/auth"
	"github.com/dmitrijs2005/careconnect/internal/server/metrics"
	"github.com/dmitrijs2005/careconnect/internal/server/models"
	"github.com/dmitrijs2005/careconnect/internal/server/notifier"
	"github.com/dmitrijs2005/careconnect/internal/server/services"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret"
	userID     = "11111111-1111-1111-1111-111111111111"
	docID      = "44444444-4444-4444-4444-444444444444"
)

var createdAt = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type fakeVault struct {
	Vault

	owner     string
	requester string
	input     services.UploadInput
	mode      services.ReadMode
	doc       *services.Document
	err       error
	grantee   string
	role      models.Role
}

func (f *fakeVault) Upload(_ context.Context, ownerID string, in services.UploadInput) (*services.UploadResult, error) {
	f.owner, f.input = ownerID, in
	if f.err != nil {
		return nil, f.err
	}
	return &services.UploadResult{ID: docID, CreatedAt: createdAt}, nil
}

func (f *fakeVault) Read(_ context.Context, _, requesterID string, mode services.ReadMode) (*services.Document, error) {
	f.requester, f.mode = requesterID, mode
	return f.doc, f.err
}

func (f *fakeVault) Delete(_ context.Context, _, requesterID string) error {
	f.requester = requesterID
	return f.err
}

func (f *fakeVault) List(context.Context, string) ([]*models.VaultDocument, error) {
	return []*models.VaultDocument{{ID: docID, Name: "scan.pdf", MimeType: "application/pdf", SizeBytes: 3, OwnerID: userID, KeyVersion: 1, CreatedAt: createdAt}}, f.err
}

func (f *fakeVault) Share(_ context.Context, _, requesterID, granteeID string, role models.Role) error {
	f.requester, f.grantee, f.role = requesterID, granteeID, role
	return f.err
}

func (f *fakeVault) Audit(context.Context, string, string) ([]*models.AuditEntry, error) {
	return []*models.AuditEntry{{DocumentID: docID, UserID: userID, Action: models.AuditUpload, CreatedAt: createdAt}}, f.err
}

type fakeReminders struct {
	Reminders

	userID    string
	days      int
	filter    models.ReminderFilter
	schedule  services.ScheduleInput
	ackID     string
	generated int64
	err       error
}

func (f *fakeReminders) CreateSchedule(_ context.Context, userID string, in services.ScheduleInput) (*models.MedicationSchedule, error) {
	f.userID, f.schedule = userID, in
	if f.err != nil {
		return nil, f.err
	}
	return &models.MedicationSchedule{
		ID:           "s1",
		UserID:       userID,
		MedicationID: in.MedicationID,
		Timezone:     in.Timezone,
		Rule:         models.ScheduleRule{Times: in.Times, DaysOfWeek: in.DaysOfWeek},
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
	}, nil
}

func (f *fakeReminders) Generate(_ context.Context, _, userID string, days int) (int64, error) {
	f.userID, f.days = userID, days
	return f.generated, f.err
}

func (f *fakeReminders) ListReminders(_ context.Context, filter models.ReminderFilter) ([]*models.Reminder, error) {
	f.filter = filter
	return []*models.Reminder{{ID: "r1", ScheduleID: "s1", DueAt: createdAt, Status: models.StatusPending}}, f.err
}

func (f *fakeReminders) Acknowledge(_ context.Context, id, userID string) (*models.Reminder, error) {
	f.ackID, f.userID = id, userID
	if f.err != nil {
		return nil, f.err
	}
	return &models.Reminder{ID: id, ScheduleID: "s1", DueAt: createdAt, Status: models.StatusAck, AckAt: &createdAt}, nil
}

type fakeHealth struct {
	Health

	window int
	result *services.AnalysisResult
	err    error
}

func (f *fakeHealth) Analyze(_ context.Context, _ string, windowMinutes int) (*services.AnalysisResult, error) {
	f.window = windowMinutes
	return f.result, f.err
}

type fakeCare struct {
	Care

	done *bool
	err  error
}

func (f *fakeCare) SetShoppingDone(_ context.Context, id, userID string, done bool) (*models.ShoppingItem, error) {
	f.done = &done
	return &models.ShoppingItem{ID: id, UserID: userID, Name: "milk", Done: done, CreatedAt: createdAt}, f.err
}

type fakeChat struct {
	reply string
	err   error
}

func (f *fakeChat) Chat(context.Context, string) (string, error) {
	return f.reply, f.err
}

type fakeUsers struct {
	Users

	email string
	err   error
}

func (f *fakeUsers) Register(_ context.Context, email, displayName string) (*models.User, string, error) {
	f.email = email
	if f.err != nil {
		return nil, "", f.err
	}
	return &models.User{ID: userID, Email: email, DisplayName: displayName, CreatedAt: createdAt}, "tok", nil
}

func (f *fakeUsers) Get(_ context.Context, id string) (*models.User, error) {
	return &models.User{ID: id, Email: "a@example.com", CreatedAt: createdAt}, f.err
}

type fakePoller struct {
	res notifier.Result
	err error
}

func (f *fakePoller) RunOnce(context.Context) (notifier.Result, error) {
	return f.res, f.err
}

func newHandler(t *testing.T, d Deps) (http.Handler, *metrics.Registry) {
	t.Helper()
	d.JWTSecret = testSecret
	if d.MaxUploadBytes == 0 {
		d.MaxUploadBytes = 1 << 20
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	return NewServer(d, logging.Nop()).NewRouter(), d.Metrics
}

func token(t *testing.T, id string, ttl time.Duration) string {
	t.Helper()
	tok, err := auth.GenerateToken(id, []byte(testSecret), ttl)
	require.NoError(t, err)
	return tok
}

func do(t *testing.T, h http.Handler, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+token(t, userID, time.Hour))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, h, method, path, bytes.NewBufferString(body), "application/json")
}

func multipartBody(t *testing.T, filename, mimeType string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		hdr.Set("Content-Type", mimeType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}
