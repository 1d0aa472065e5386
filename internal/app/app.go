package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dcm-services/job-processor/internal/db"
	"github.com/dcm-services/job-processor/internal/domain/jobproc"
	apihttp "github.com/dcm-services/job-processor/internal/http"
	"github.com/dcm-services/job-processor/internal/http/handlers"
	"github.com/dcm-services/job-processor/internal/http/middleware"
	"github.com/dcm-services/job-processor/internal/jobs/adapters"
	jobrt "github.com/dcm-services/job-processor/internal/jobs/runtime"
	"github.com/dcm-services/job-processor/internal/jobs/orchestrator"
	"github.com/dcm-services/job-processor/internal/lock"
	"github.com/dcm-services/job-processor/internal/notify"
	"github.com/dcm-services/job-processor/internal/observability"
	"github.com/dcm-services/job-processor/internal/pkg/logger"
	"github.com/dcm-services/job-processor/internal/repos"
	"github.com/dcm-services/job-processor/internal/storage"
)

// App wires together every layer described across spec §4 and §6: the
// persistence layer, the eight orchestrator components, the ambient Redis
// lock/notifier, the artifact store, and the gin HTTP surface.
type App struct {
	Log    *logger.Logger
	DB     *gorm.DB
	Router *gin.Engine
	Cfg    Config

	Jobs        *repos.JobRepo
	Records     *repos.RecordRepo
	JobConfigs  *repos.JobConfigRepo
	Artifacts   *repos.ArtifactRepo

	Live      *orchestrator.LiveJobs
	JobRunner *orchestrator.JobRunner
	AbortHook *orchestrator.AbortHook

	Storage storage.ArtifactStore

	jobLock  *lock.JobLock
	notifier *notify.Notifier

	cancel context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	if err := pg.BootstrapSchema(cfg.DBLoadSchema, cfg.DBStrictSchemaVersion); err != nil {
		log.Sync()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	theDB := pg.DB()

	jobLock, err := lock.NewJobLock(log, cfg.RedisAddr, cfg.JobLockTTL)
	if err != nil {
		log.Warn("job lock disabled: redis unavailable", "error", err)
		jobLock = nil
	}
	notifier, err := notify.NewNotifierFromAddr(log, cfg.RedisAddr)
	if err != nil {
		log.Warn("progress notifier disabled: redis unavailable", "error", err)
		notifier = nil
	}

	artifactStore, err := storage.NewArtifactStore(context.Background(), log, cfg.Storage)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init artifact store: %w", err)
	}

	jobsRepo := repos.NewJobRepo(theDB)
	recordsRepo := repos.NewRecordRepo(theDB)
	iesRepo := repos.NewIERepo(theDB)
	artifactsRepo := repos.NewArtifactRepo(theDB)
	jobConfigsRepo := repos.NewJobConfigRepo(theDB)

	registry := adapters.NewRegistry(cfg.Hosts)
	postStage := orchestrator.NewPostStage(recordsRepo, iesRepo, artifactsRepo)
	stageRunner := orchestrator.NewStageRunner(registry, postStage, log)
	recordRunner := orchestrator.NewRecordRunner(stageRunner)
	jobCollector := orchestrator.NewJobCollector(recordsRepo, jobsRepo, artifactsRepo, stageRunner, postStage, log)
	live := orchestrator.NewLiveJobs()
	jobRunner := orchestrator.NewJobRunner(
		jobCollector,
		recordRunner,
		jobsRepo,
		live,
		jobLock,
		notifier,
		cfg.ProcessRecordConcurrency,
		cfg.ProcessInterval,
		log,
	)
	abortHook := orchestrator.NewAbortHook(live, jobsRepo, log)

	processHandler := handlers.NewProcessHandler(jobsRepo, jobConfigsRepo, abortHook, log)
	reportHandler := handlers.NewReportHandler(jobsRepo, live, log)

	var metrics *observability.Metrics
	if observability.Enabled() {
		metrics = observability.Init()
	}

	var authMiddleware *middleware.AuthMiddleware
	if cfg.AuthEnabled {
		authMiddleware = middleware.NewAuthMiddleware(log, cfg.JWTSecretKey)
	}

	router := apihttp.NewRouter(apihttp.RouterConfig{
		Process: processHandler,
		Report:  reportHandler,
		Metrics: metrics,
		Auth:    authMiddleware,
		Log:     log,
	})

	return &App{
		Log:           log,
		DB:            theDB,
		Router:        router,
		Cfg:           cfg,
		Jobs:          jobsRepo,
		Records:       recordsRepo,
		JobConfigs:    jobConfigsRepo,
		Artifacts:     artifactsRepo,
		Live:          live,
		JobRunner:     jobRunner,
		AbortHook:     abortHook,
		Storage:       artifactStore,
		jobLock:       jobLock,
		notifier:      notifier,
	}, nil
}

// Start launches the background worker poll loop when runWorker is true.
// runServer is accepted for symmetry with the binary's RUN_SERVER/RUN_WORKER
// switches even though serving itself happens in Run.
func (a *App) Start(runServer, runWorker bool) {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	if runWorker {
		go a.runWorkerLoop(ctx)
	}
}

// runWorkerLoop is the worker-per-process polling loop (spec §5): claim the
// oldest queued job, build its runtime Context, and drive it to completion
// one job at a time before claiming the next.
func (a *App) runWorkerLoop(ctx context.Context) {
	ticker := time.NewTicker(a.Cfg.ProcessInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.claimAndRun(ctx)
		}
	}
}

func (a *App) claimAndRun(ctx context.Context) {
	row, err := a.Jobs.ClaimNextQueued(ctx)
	if err != nil {
		return
	}

	cfg, err := a.JobConfigs.LoadTemplateAndJobConfig(ctx, row.JobConfigID)
	if err != nil {
		a.Log.Error("failed to load job config for claimed job", "token", row.Token, "error", err)
		now := time.Now()
		_ = a.Jobs.UpdateFields(ctx, row.Token, map[string]any{
			"status":         jobproc.JobAborted,
			"datetime_ended": &now,
		})
		return
	}
	cfg.ID = row.JobConfigID

	jobCtx := jobproc.JobContext{
		UserTriggered: row.UserTriggered,
		TriggerType:   row.TriggerType,
	}

	report := jobproc.NewReport(row.Token)
	runtimeCtx := jobrt.New(ctx, row.Token, cfg, jobCtx, report)
	a.JobRunner.Run(runtimeCtx, row.CallbackURL)
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.jobLock != nil {
		_ = a.jobLock.Close()
	}
	if a.notifier != nil {
		_ = a.notifier.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
