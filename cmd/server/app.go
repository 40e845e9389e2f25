package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/examgen-api/internal/config"
	"github.com/phrazzld/examgen-api/internal/events"
	"github.com/phrazzld/examgen-api/internal/platform/gemini"
	"github.com/phrazzld/examgen-api/internal/platform/postgres"
	"github.com/phrazzld/examgen-api/internal/protocol"
	"github.com/phrazzld/examgen-api/internal/service"
	"github.com/phrazzld/examgen-api/internal/service/auth"
	"github.com/phrazzld/examgen-api/internal/task"
	"github.com/phrazzld/examgen-api/internal/validation"
)

// staleJobSweepInterval controls how often the background reaper scans for
// abandoned generation jobs. Individual status reads also trigger a check, so
// this only bounds how long an unwatched section can stay stuck.
const staleJobSweepInterval = 2 * time.Minute

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config

	logger *slog.Logger
	db     *sql.DB

	sectionStore  *postgres.SectionStore
	questionStore *postgres.QuestionStore
	taskStore     *postgres.TaskStore

	jwtService        auth.JWTService
	generationService service.GenerationService
	reaper            *service.StaleJobReaper

	eventEmitter events.EventEmitter
	taskRunner   *task.TaskRunner

	reaperCancel context.CancelFunc
}

// newApplication creates a new application instance with all dependencies initialized.
// It accepts core dependencies like configuration, logger, and database connection that
// must be established before application initialization.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	app.sectionStore = postgres.NewSectionStore(db, logger)
	app.questionStore = postgres.NewQuestionStore(db, logger)
	app.taskStore = postgres.NewTaskStore(db, logger)

	generator, err := gemini.NewGenerator(
		ctx,
		logger.With("component", "llm_generator"),
		cfg.LLM,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM generator: %w", err)
	}
	logger.Info("LLM generator initialized successfully")

	protocols, err := protocol.NewDefaultRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to build protocol registry: %w", err)
	}

	validator, err := validation.NewQuestionValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to build question validator: %w", err)
	}

	app.taskRunner = task.NewTaskRunner(app.taskStore, task.TaskRunnerConfig{
		QueueSize:    cfg.Task.QueueSize,
		WorkerCount:  cfg.Task.WorkerCount,
		StuckTaskAge: time.Duration(cfg.Task.StuckTaskAgeMinutes) * time.Minute,
	}, logger)

	// The task factory needs a runner for continuation sub-jobs and the
	// generation service needs the factory's scheduler to enqueue them. The
	// closure breaks the cycle: the service is assigned before the runner
	// starts accepting work.
	continuationRunner := task.RunnerFunc(func(ctx context.Context, sectionID uuid.UUID, fromBatch int) error {
		_, err := app.generationService.ContinueGeneration(ctx, sectionID, fromBatch)
		return err
	})

	taskFactory, err := task.NewSectionGenerationTaskFactory(continuationRunner, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task factory: %w", err)
	}

	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(task.NewTaskFactoryEventHandler(taskFactory, app.taskRunner, logger))
	app.eventEmitter = emitter

	scheduler, err := task.NewContinuationScheduler(emitter, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create continuation scheduler: %w", err)
	}

	app.generationService, err = service.NewGenerationService(service.GenerationServiceParams{
		DB:         db,
		Sections:   app.sectionStore,
		Questions:  app.questionStore,
		Generator:  generator,
		Protocols:  protocols,
		Validator:  validator,
		Enqueuer:   scheduler,
		Generation: cfg.Generation,
		LLM:        cfg.LLM,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create generation service: %w", err)
	}

	// Tasks recovered from the database are rebuilt through the factory once
	// the generation service exists.
	app.taskStore.SetResolver(taskFactory)

	if err := app.taskRunner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start task runner: %w", err)
	}

	app.reaper = service.NewStaleJobReaper(app.sectionStore, app.questionStore, cfg.Generation, logger)
	app.startReaperLoop()

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// startReaperLoop launches the background sweep for stale generation jobs.
func (app *application) startReaperLoop() {
	ctx, cancel := context.WithCancel(context.Background())
	app.reaperCancel = cancel

	go func() {
		ticker := time.NewTicker(staleJobSweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := app.reaper.ReapAll(ctx); err != nil {
					app.logger.Error("stale job sweep failed", "error", err)
				}
			}
		}
	}()
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.reaperCancel != nil {
		app.reaperCancel()
	}

	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
