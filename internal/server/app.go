// Package server wires the INDIEC API: it opens the relational and document
// stores, runs migrations, builds the services and serves HTTP until the
// process is signalled, then shuts everything down in order.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/indiec/internal/cryptox"
	"github.com/dmitrijs2005/indiec/internal/logging"
	"github.com/dmitrijs2005/indiec/internal/server/config"
	"github.com/dmitrijs2005/indiec/internal/server/documents"
	"github.com/dmitrijs2005/indiec/internal/server/httpapi"
	"github.com/dmitrijs2005/indiec/internal/server/hybrid"
	"github.com/dmitrijs2005/indiec/internal/server/metrics"
	"github.com/dmitrijs2005/indiec/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/indiec/internal/server/repositories/users"
	"github.com/dmitrijs2005/indiec/internal/server/retention"
	"github.com/dmitrijs2005/indiec/internal/server/services"
	"github.com/dmitrijs2005/indiec/internal/server/uploads"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	docs      documents.Store
	http      *http.Server
	limiter   *httpapi.RateLimiter
	scheduler *retention.Scheduler
}

// OpenDB opens the PostgreSQL pool described by c.
func OpenDB(c *config.Config) (*sql.DB, error) {
	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(c.DBMaxOpenConns)
	db.SetMaxIdleConns(c.DBMaxIdleConns)
	db.SetConnMaxIdleTime(c.DBConnMaxIdleTime)
	db.SetConnMaxLifetime(c.DBConnMaxLifetime)
	return db, nil
}

// NewRepositories builds the repository manager, encrypting sensitive user
// fields when c carries a usable secret. onFailure, when set, is told about
// every field that fails to encrypt or decrypt.
func NewRepositories(c *config.Config, logger logging.Logger, onFailure users.FailureHook) (repomanager.RepositoryManager, error) {
	var cipher *cryptox.FieldCipher
	if c.DegradedEncryption() {
		logger.Warn(context.Background(), "encryption secret missing or too short, sensitive fields will be stored in plaintext")
	} else {
		var err error
		if cipher, err = cryptox.NewFieldCipher(c.EncryptionSecret); err != nil {
			return nil, fmt.Errorf("field cipher: %w", err)
		}
	}
	codec := users.NewCodec(cipher, logger)
	codec.SetFailureHook(onFailure)
	return repomanager.NewPostgresRepositoryManager(codec), nil
}

func auditRetention(c *config.Config) time.Duration {
	return time.Duration(c.AuditRetentionDays) * 24 * time.Hour
}

// NewApp connects to both stores and assembles the HTTP server. Resources
// opened before a failure are released.
func NewApp(ctx context.Context, c *config.Config) (app *App, err error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(os.Stdout, c.LogLevel, c.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	db, err := OpenDB(c)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	defer func() {
		if err != nil {
			_ = db.Close()
		}
	}()

	docs, err := documents.Open(ctx, c.DocumentStoreURI, c.DocumentDatabase, auditRetention(c))
	if err != nil {
		return nil, fmt.Errorf("document store init error: %w", err)
	}
	defer func() {
		if err != nil {
			_ = docs.Close(context.Background())
		}
	}()
	if err := docs.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("document indexes: %w", err)
	}
	audit := services.NewAuditService(docs, logger)

	repos, err := NewRepositories(c, logger, audit.CodecFailure)
	if err != nil {
		return nil, err
	}
	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	store, err := uploads.New(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("upload store init error: %w", err)
	}

	coordinator := hybrid.New(db, logger,
		hybrid.WithCompensation(c.HybridCompensation),
		hybrid.WithObserver(metrics.ObserveHybrid),
	)
	deps := services.Deps{DB: db, Repos: repos, Docs: docs, Hybrid: coordinator, Audit: audit, Logger: logger}
	analytics := services.NewAnalyticsService(docs, logger)

	api := httpapi.NewServer([]byte(c.SecretKey), logger)
	api.Users = services.NewUserService(deps, cryptox.NewPasswordHasher(c.PasswordHashCost), c)
	api.Artists = services.NewArtistService(deps)
	api.Albums = services.NewAlbumService(deps)
	api.Songs = services.NewSongService(deps, analytics)
	api.Carts = services.NewCartService(deps, analytics)
	api.Sales = services.NewSaleService(deps, analytics)
	api.Contracts = services.NewContractService(deps)
	api.Analytics = analytics
	api.Catalogs = services.NewCatalogService(deps)
	api.Audit = audit
	api.Uploads = store
	api.UploadMaxBytes = c.UploadMaxBytes
	if local, ok := store.(*uploads.LocalStore); ok {
		api.UploadDir = local.Dir()
	}
	api.CORSOrigins = c.CORSOrigins
	api.Health["relational"] = httpapi.PingerFunc(db.PingContext)
	api.Health["documents"] = docs

	limiter := httpapi.NewRateLimiter(c.RateLimitRPS, c.RateLimitBurst, logger)

	scheduler := retention.New(logger)
	if c.AuditRetentionDays > 0 {
		if err := scheduler.AddAuditRetention(c.RetentionSchedule, audit, auditRetention(c)); err != nil {
			return nil, fmt.Errorf("retention schedule: %w", err)
		}
	}

	return &App{
		config: c,
		logger: logger,
		db:     db,
		docs:   docs,
		http: &http.Server{
			Addr:              c.ListenAddr,
			Handler:           api.Handler(limiter),
			ReadHeaderTimeout: 10 * time.Second,
		},
		limiter:   limiter,
		scheduler: scheduler,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	app.logger.Info(ctx, "listening", "addr", app.http.Addr)
	if err := app.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "http server failed", "error", err)
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)
	app.scheduler.Start()
	app.limiter.StartCleanup(ctx, time.Minute)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	<-ctx.Done()
	app.shutdown()
	wg.Wait()
}

func (app *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
	defer cancel()

	app.logger.Info(ctx, "shutting down")

	if err := app.http.Shutdown(ctx); err != nil {
		app.logger.Error(ctx, "http shutdown", "error", err)
	}
	if err := app.scheduler.Stop(ctx); err != nil {
		app.logger.Warn(ctx, "scheduler stop", "error", err)
	}
	if err := app.docs.Close(ctx); err != nil {
		app.logger.Warn(ctx, "document store close", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close", "error", err)
	}
}
