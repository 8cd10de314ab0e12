// Package httpapi exposes CareConnect over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/dmitrijs2005/careconnect/internal/logging"
	"github.com/dmitrijs2005/careconnect/internal/server/metrics"
	"github.com/dmitrijs2005/careconnect/internal/server/models"
	"github.com/dmitrijs2005/careconnect/internal/server/notifier"
	"github.com/dmitrijs2005/careconnect/internal/server/services"
	"github.com/go-playground/validator/v10"
)

type Vault interface {
	Upload(ctx context.Context, ownerID string, in services.UploadInput) (*services.UploadResult, error)
	Read(ctx context.Context, documentID, requesterID string, mode services.ReadMode) (*services.Document, error)
	Delete(ctx context.Context, documentID, requesterID string) error
	List(ctx context.Context, userID string) ([]*models.VaultDocument, error)
	Share(ctx context.Context, documentID, requesterID, granteeID string, role models.Role) error
	Audit(ctx context.Context, documentID, requesterID string) ([]*models.AuditEntry, error)
}

type Reminders interface {
	CreateSchedule(ctx context.Context, userID string, in services.ScheduleInput) (*models.MedicationSchedule, error)
	GetSchedule(ctx context.Context, id, userID string) (*models.MedicationSchedule, error)
	ListSchedules(ctx context.Context, userID string) ([]*models.MedicationSchedule, error)
	DeleteSchedule(ctx context.Context, id, userID string) error
	Generate(ctx context.Context, scheduleID, userID string, days int) (int64, error)
	ListReminders(ctx context.Context, f models.ReminderFilter) ([]*models.Reminder, error)
	Acknowledge(ctx context.Context, id, userID string) (*models.Reminder, error)
}

type Health interface {
	AddReading(ctx context.Context, userID string, in services.ReadingInput) (*models.HealthReading, error)
	RecentReadings(ctx context.Context, userID string, since time.Time) ([]*models.HealthReading, error)
	Analyze(ctx context.Context, userID string, windowMinutes int) (*services.AnalysisResult, error)
}

type Care interface {
	CreateMedication(ctx context.Context, userID string, m *models.Medication) (*models.Medication, error)
	ListMedications(ctx context.Context, userID string) ([]*models.Medication, error)
	DeleteMedication(ctx context.Context, id, userID string) error

	AddShoppingItem(ctx context.Context, userID, name, quantity string) (*models.ShoppingItem, error)
	ListShopping(ctx context.Context, userID string) ([]*models.ShoppingItem, error)
	SetShoppingDone(ctx context.Context, id, userID string, done bool) (*models.ShoppingItem, error)
	DeleteShoppingItem(ctx context.Context, id, userID string) error

	AddContact(ctx context.Context, userID string, c *models.EmergencyContact) (*models.EmergencyContact, error)
	ListContacts(ctx context.Context, userID string) ([]*models.EmergencyContact, error)
	DeleteContact(ctx context.Context, id, userID string) error
}

type Chat interface {
	Chat(ctx context.Context, message string) (string, error)
}

type Users interface {
	Register(ctx context.Context, email, displayName string) (*models.User, string, error)
	Get(ctx context.Context, id string) (*models.User, error)
}

// Poller runs one reminder notification cycle on demand.
type Poller interface {
	RunOnce(ctx context.Context) (notifier.Result, error)
}

// Deps lists the collaborators of the HTTP layer. Metrics may be nil.
type Deps struct {
	Vault     Vault
	Reminders Reminders
	Health    Health
	Care      Care
	Chat      Chat
	Users     Users
	Poller    Poller
	Metrics   *metrics.Registry

	JWTSecret      string
	MaxUploadBytes int64
	AllowedOrigins []string
}

type Server struct {
	vault     Vault
	reminders Reminders
	health    Health
	care      Care
	chat      Chat
	users     Users
	poller    Poller
	metrics   *metrics.Registry

	jwtSecret      []byte
	maxUpload      int64
	allowedOrigins []string
	validate       *validator.Validate
	log            logging.Logger
}

func NewServer(d Deps, l logging.Logger) *Server {
	return &Server{
		vault:          d.Vault,
		reminders:      d.Reminders,
		health:         d.Health,
		care:           d.Care,
		chat:           d.Chat,
		users:          d.Users,
		poller:         d.Poller,
		metrics:        d.Metrics,
		jwtSecret:      []byte(d.JWTSecret),
		maxUpload:      d.MaxUploadBytes,
		allowedOrigins: d.AllowedOrigins,
		validate:       newValidator(),
		log:            l.With("module", "http_server"),
	}
}

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Run serves on address until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, address string) error {
	srv := &http.Server{
		Addr:              address,
		Handler:           s.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.log.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	s.log.Info(ctx, "Starting HTTP server", "address", address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
