// Package server wires the CareConnect components together and runs the
// HTTP API, the gRPC health endpoint and the reminder notifier until the
// process is asked to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/careconnect/internal/logging"
	"github.com/dmitrijs2005/careconnect/internal/server/ai"
	"github.com/dmitrijs2005/careconnect/internal/server/blobstore"
	"github.com/dmitrijs2005/careconnect/internal/server/config"
	"github.com/dmitrijs2005/careconnect/internal/server/httpapi"
	"github.com/dmitrijs2005/careconnect/internal/server/mailer"
	"github.com/dmitrijs2005/careconnect/internal/server/metrics"
	"github.com/dmitrijs2005/careconnect/internal/server/notifier"
	"github.com/dmitrijs2005/careconnect/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/careconnect/internal/server/services"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/careconnect/internal/server/grpc"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const readinessInterval = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	http   *httpapi.Server
	health *gs.HealthServer
	poller *notifier.Poller
	closer io.Closer
}

// NewApp connects to the database, applies migrations and builds every
// component. Configuration must already be validated.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	keys, err := c.KeyRing()
	if err != nil {
		return nil, err
	}
	for _, v := range keys.Versions() {
		fp, err := keys.Fingerprint(v)
		if err != nil {
			return nil, err
		}
		logger.Info(ctx, "master key loaded", "version", v, "fingerprint", fp, "current", v == keys.CurrentVersion())
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	blobs, err := newBlobStore(ctx, c)
	if err != nil {
		db.Close()
		return nil, err
	}
	sender, err := newSender(c, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	completer, closer, err := ai.New(ctx, ai.Options{Provider: c.AIProvider, APIKey: c.AIAPIKey, Model: c.AIModel})
	if err != nil {
		db.Close()
		return nil, err
	}
	advisor := ai.NewAdvisor(completer)

	reg := metrics.New()

	vault := services.NewVaultService(db, rm, keys, blobs, c.VaultMaxUploadBytes, logger)
	vault.SetMetrics(reg.Vault)
	reminders := services.NewReminderService(db, rm, logger)

	poller := notifier.New(rm.Reminders(db), reminders, sender, reg.Notifier, notifier.Options{
		Interval:    c.NotifierInterval,
		Lookahead:   c.NotifierLookahead,
		MissedGrace: c.MissedGrace,
		RatePerSec:  c.NotifierRatePerSec,
	}, logger)

	api := httpapi.NewServer(httpapi.Deps{
		Vault:          vault,
		Reminders:      reminders,
		Health:         services.NewHealthService(db, rm, advisor, logger),
		Care:           services.NewCareService(db, rm),
		Chat:           services.NewChatService(advisor, logger),
		Users:          services.NewUserService(db, rm, c),
		Poller:         poller,
		Metrics:        reg,
		JWTSecret:      c.JWTSecret,
		MaxUploadBytes: c.VaultMaxUploadBytes,
	}, logger)

	return &App{
		config: c,
		logger: logger,
		db:     db,
		http:   api,
		health: gs.NewHealthServer(c.GRPCHealthAddr, db.PingContext, readinessInterval, logger),
		poller: poller,
		closer: closer,
	}, nil
}

// newBlobStore returns nil when object storage is not configured. The
// result is an interface so a disabled store is a true nil.
func newBlobStore(ctx context.Context, c *config.Config) (blobstore.Store, error) {
	if !c.S3Enabled() {
		return nil, nil
	}
	s, err := blobstore.NewS3Store(ctx, blobstore.S3Options{
		Bucket:    c.S3Bucket,
		Region:    c.S3Region,
		Endpoint:  c.S3Endpoint,
		AccessKey: c.S3AccessKey,
		SecretKey: c.S3SecretKey,
	})
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}
	return s, nil
}

// newSender uses SMTP when a host is configured and logs notifications
// otherwise.
func newSender(c *config.Config, logger logging.Logger) (mailer.Sender, error) {
	if c.SMTPHost == "" {
		logger.Warn(context.Background(), "SMTP not configured, reminders are only logged")
		return mailer.NewLogSender(logger), nil
	}
	return mailer.NewSMTPSender(mailer.SMTPOptions{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		Username: c.SMTPUser,
		Password: c.SMTPPassword,
		From:     c.SMTPFrom,
	})
}

// Run blocks until SIGINT/SIGTERM/SIGQUIT or a component failure, then
// stops everything and releases resources.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.http.Run(ctx, app.config.HTTPAddr)
	})
	g.Go(func() error {
		return app.health.Run(ctx)
	})
	g.Go(func() error {
		app.poller.Start(ctx)
		<-ctx.Done()
		app.poller.Stop()
		return nil
	})

	err := g.Wait()

	if cerr := app.closer.Close(); cerr != nil {
		app.logger.Error(ctx, "AI client close failed", "error", cerr)
	}
	if cerr := app.db.Close(); cerr != nil {
		app.logger.Error(ctx, "db close failed", "error", cerr)
	}
	app.logger.Info(context.Background(), "App stopped")

	return err
}

// Main loads configuration from args, validates it and runs the app. It is
// the body of cmd/server.
func Main(ctx context.Context, args []string) error {
	c, err := config.LoadConfig(args)
	if err != nil {
		return err
	}
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	if err := c.Validate(); err != nil {
		return err
	}

	app, err := NewApp(ctx, c, logger)
	if err != nil {
		return err
	}
	return app.Run(ctx)
}
