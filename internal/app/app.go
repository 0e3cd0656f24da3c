package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vigil/internal/config"
	"vigil/internal/database"
	"vigil/internal/infrastructure/errors"
	"vigil/internal/infrastructure/logging"
	"vigil/internal/repository"
	"vigil/internal/services"
	"vigil/internal/types"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

const (
	// earnedEventName is the runtime event emitted to the frontend when
	// a trophy is newly earned.
	earnedEventName = "trophy:earned"

	// defaultRetentionDays bounds how far back the activity timeline is
	// kept.
	defaultRetentionDays = 365
)

// App is the main application: it wires the database, repository,
// settings, tracking pipeline and trophy engine together and exposes
// the methods bound to the frontend.
type App struct {
	ctx         context.Context
	environment string
	logger      logging.Logger

	dbService  database.Service
	repository *repository.SQLiteRepository
	settings   *config.FileProvider
	watcher    *config.Watcher

	pipeline *services.ContinuityPipeline
	builder  *services.SessionBuilder
	engine   *services.TrophyEngine
	sampler  *services.Sampler
	fetcher  *services.LibraryFetcher

	persistenceEnabled bool
}

// NewApp creates the application for the given environment. A database
// failure degrades to unpersisted tracking instead of refusing to
// start.
func NewApp(env string) *App {
	logger := logging.NewDefaultLogger()
	errors.SetRetryLogger(errors.NewLoggerBridge(logger))

	a := &App{
		environment: env,
		logger:      logger,
		settings:    config.NewFileProvider(settingsPath(), logger),
		fetcher:     services.NewLibraryFetcher(logger),
	}

	if err := a.initializeDatabase(context.Background()); err != nil {
		logger.Error("Database initialization failed, continuing without persistence", "error", err)
	} else {
		a.persistenceEnabled = true
	}

	a.wireServices()
	return a
}

// initializeDatabase connects, migrates and recovers records left open
// by a previous crash.
func (a *App) initializeDatabase(ctx context.Context) error {
	dbConfig := database.ConfigForEnvironment(a.environment)

	dbService := database.NewSQLiteService(a.logger)
	if err := dbService.Connect(ctx, dbConfig); err != nil {
		return err
	}
	if err := dbService.Migrate(ctx); err != nil {
		dbService.Close()
		return err
	}

	a.dbService = dbService
	a.repository = repository.NewSQLiteRepository(dbService, a.logger)

	// A crash leaves the last session open; close it at its last seen
	// timestamp so the timeline never carries phantom time.
	closed, err := a.repository.CloseDanglingRecords(ctx)
	if err != nil {
		a.logger.Warn("Failed to close dangling records", "error", err)
	} else if closed > 0 {
		a.logger.Info("Recovered dangling activity records", "count", closed)
	}
	return nil
}

// wireServices builds the pipeline and engine over whatever persistence
// is available.
func (a *App) wireServices() {
	var repo repository.ActivityRepository
	var feeds repository.FeedReader
	if a.persistenceEnabled {
		repo = a.repository
		feeds = a.repository
	}

	classifier := services.NewClassifier(a.settings)
	a.builder = services.NewSessionBuilder(repo, a.logger)
	a.pipeline = services.NewContinuityPipeline(classifier, a.builder, a.settings, a.logger)

	if a.persistenceEnabled {
		metricsBuilder := services.NewMetricsBuilder(repo, feeds, a.settings, a.logger)
		a.engine = services.NewTrophyEngine(repo, metricsBuilder, services.NewTrophyRegistry(), a, a.logger)
		a.pipeline.AddSink(&evaluationTrigger{engine: a.engine})
	}

	a.sampler = services.NewSampler(a.pipeline, nil, a.logger)
}

// evaluationTrigger schedules a trophy evaluation for every accepted
// activity; the engine's debounce coalesces the 1 Hz stream into one
// scan per quiet period.
type evaluationTrigger struct {
	engine *services.TrophyEngine
}

func (t *evaluationTrigger) OnClassifiedActivity(activity types.ClassifiedActivity) {
	t.engine.ScheduleEvaluation("activity")
}

// EmitEarned implements services.NotificationSink over the Wails event
// bus.
func (a *App) EmitEarned(status types.TrophyStatus, reason string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, earnedEventName, status, reason)
}

// Startup is called at application startup
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx

	if a.watcher == nil {
		watcher, err := config.NewWatcher(a.settings, a.logger)
		if err != nil {
			a.logger.Warn("Settings watcher unavailable", "error", err)
		} else {
			a.watcher = watcher
			if err := a.watcher.Start(); err != nil {
				a.logger.Warn("Settings watcher failed to start", "error", err)
			}
		}
	}

	a.sampler.Start()
	if a.engine != nil {
		a.engine.ScheduleEvaluation("startup")
	}

	a.logger.Info("Application started", "environment", a.environment,
		"persistence", a.persistenceEnabled)
}

// DomReady is called after front-end resources have been loaded
func (a *App) DomReady(ctx context.Context) {
}

// BeforeClose is called when the application is about to quit
func (a *App) BeforeClose(ctx context.Context) (prevent bool) {
	return false
}

// Shutdown is called at application termination
func (a *App) Shutdown(ctx context.Context) {
	a.logger.Info("Starting shutdown sequence")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	a.sampler.Stop()
	if a.watcher != nil {
		a.watcher.Stop()
	}

	// Flush: no session may be left dangling.
	a.builder.Stop(shutdownCtx)

	if a.dbService != nil {
		if err := a.dbService.Close(); err != nil {
			a.logger.Error("Error closing database", "error", err)
		}
	}

	a.logger.Info("Shutdown completed")
}

// ReportExtensionSample is the entry point for observations reported by
// the browser extension.
func (a *App) ReportExtensionSample(appName, url, domain, windowTitle string, idleSeconds float64) error {
	obs := types.Observation{
		Timestamp:   time.Now(),
		Origin:      types.OriginExtension,
		AppName:     appName,
		WindowTitle: windowTitle,
		URL:         url,
		Domain:      domain,
		IdleSeconds: idleSeconds,
	}
	return a.pipeline.Handle(a.bindingContext(), obs)
}

// GetRecentActivity returns the most recent activity records.
func (a *App) GetRecentActivity(limit int) ([]types.ActivityRecord, error) {
	return a.builder.GetRecent(a.bindingContext(), limit)
}

// GetActivitySummary returns the bucketed timeline over a trailing
// window of hours.
func (a *App) GetActivitySummary(windowHours int) (*types.ActivitySummary, error) {
	return a.builder.GetSummary(a.bindingContext(), windowHours)
}

// ListTrophyStatuses evaluates and returns every trophy's standing.
func (a *App) ListTrophyStatuses() ([]types.TrophyStatus, error) {
	if a.engine == nil {
		return nil, a.persistenceError("ListTrophyStatuses")
	}
	return a.engine.ListStatuses(a.bindingContext())
}

// GetProfileSummary returns the trophy rollup for the profile.
func (a *App) GetProfileSummary(profile string) (*types.ProfileSummary, error) {
	if a.engine == nil {
		return nil, a.persistenceError("GetProfileSummary")
	}
	return a.engine.GetProfileSummary(a.bindingContext(), profile)
}

// SetPinnedTrophies replaces the pinned trophy list.
func (a *App) SetPinnedTrophies(ids []string) error {
	if a.engine == nil {
		return a.persistenceError("SetPinnedTrophies")
	}
	return a.engine.SetPinned(a.bindingContext(), ids)
}

// UpsertRemoteEarned reconciles an earned trophy reported by another
// device; the earliest earned timestamp wins.
func (a *App) UpsertRemoteEarned(id string, earnedAtUnix int64, meta string) error {
	if a.engine == nil {
		return a.persistenceError("UpsertRemoteEarned")
	}
	return a.engine.UpsertRemoteEarned(a.bindingContext(), id, time.Unix(earnedAtUnix, 0), meta)
}

// ResetTrophies wipes locally earned trophies and personal bests.
func (a *App) ResetTrophies() error {
	if a.engine == nil {
		return a.persistenceError("ResetTrophies")
	}
	return a.engine.ResetLocal(a.bindingContext())
}

// AddLibraryItem saves a URL to the library, fetching page metadata
// when possible. A failed fetch still saves the item.
func (a *App) AddLibraryItem(url, purpose, note string) (int64, error) {
	if !a.persistenceEnabled {
		return 0, a.persistenceError("AddLibraryItem")
	}

	item := types.LibraryItem{
		URL:     url,
		Purpose: purpose,
		Note:    note,
		AddedAt: time.Now(),
	}
	if result := a.fetcher.Fetch(url); result.Success {
		item.Title = result.Page.Title
		item.Description = result.Page.Description
	}

	return a.repository.AddLibraryItem(a.bindingContext(), item)
}

// MarkLibraryItemConsumed records a library item as consumed and logs
// the replacement in the consumption log.
func (a *App) MarkLibraryItemConsumed(id int64) error {
	if !a.persistenceEnabled {
		return a.persistenceError("MarkLibraryItemConsumed")
	}

	now := time.Now()
	ctx := a.bindingContext()
	if err := a.repository.MarkLibraryItemConsumed(ctx, id, now); err != nil {
		return err
	}
	if _, err := a.repository.AddConsumptionEntry(ctx, types.ConsumptionEntry{
		Kind:      types.ConsumptionLibraryItem,
		Day:       now.Format("2006-01-02"),
		Timestamp: now,
	}); err != nil {
		a.logger.Warn("Failed to log library consumption", "error", err)
	}
	if a.engine != nil {
		a.engine.ScheduleEvaluation("library-consumed")
	}
	return nil
}

// GetWalletBalance returns the current wallet balance.
func (a *App) GetWalletBalance() (int64, error) {
	if !a.persistenceEnabled {
		return 0, a.persistenceError("GetWalletBalance")
	}
	return a.repository.WalletBalance(a.bindingContext())
}

// CleanupOldData removes closed activity records older than the given
// retention, defaulting when non-positive.
func (a *App) CleanupOldData(retentionDays int) error {
	if !a.persistenceEnabled {
		return a.persistenceError("CleanupOldData")
	}
	if retentionDays <= 0 {
		retentionDays = defaultRetentionDays
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	return a.repository.DeleteRecordsBefore(a.bindingContext(), cutoff)
}

// GetLogger returns the application's structured logger.
func (a *App) GetLogger() logging.Logger {
	return a.logger
}

func (a *App) bindingContext() context.Context {
	if a.ctx != nil {
		return a.ctx
	}
	return context.Background()
}

func (a *App) persistenceError(op string) error {
	return errors.NewRepositoryError(op,
		fmt.Errorf("persistence unavailable"),
		errors.ErrCodeConnection)
}

// settingsPath places the settings file next to the user's config.
func settingsPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "vigil-settings.yaml"
	}
	return filepath.Join(configDir, "vigil", "settings.yaml")
}
