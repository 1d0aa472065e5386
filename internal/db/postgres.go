package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/dcm-services/job-processor/internal/domain/jobproc"
	"github.com/dcm-services/job-processor/internal/pkg/logger"
	"github.com/dcm-services/job-processor/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(logg *logger.Logger) (*PostgresService, error) {
	serviceLog := logg.With("service", "PostgresService")

	logg.Info("Loading environment variables...")
	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", logg)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", logg)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", logg)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", logg)
	postgresName := utils.GetEnv("POSTGRES_NAME", "job_processor", logg)
	logg.Debug("Environment variables loaded")

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		postgresUser,
		postgresPassword,
		postgresHost,
		postgresPort,
		postgresName,
	)

	// GORM logger: ignore "record not found" spam (critical for polling workers)
	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	logg.Info("Connecting to Postgres...")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		logg.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		logg.Error("Failed to enable uuid-ossp extension", "error", err)
		return nil, fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
	}
	logg.Info("uuid-ossp extension enabled")

	return &PostgresService{db: db, log: serviceLog}, nil
}

// AutoMigrateAll creates/updates every table the core reads or writes,
// including the four tables an upstream admin surface would normally own
// (templates, job_configs, user_configs, deployment) so a standalone
// deployment can seed and run against a database of its own.
func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")

	err := s.db.AutoMigrate(
		&jobproc.JobRow{},
		&jobproc.RecordRow{},
		&jobproc.IERow{},
		&jobproc.ArtifactRow{},
		&jobproc.TemplateRow{},
		&jobproc.JobConfigRow{},
		&jobproc.UserConfigRow{},
		&jobproc.DeploymentRow{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}

// CurrentSchemaVersion is the package's own notion of schema version,
// recorded into the deployment row the first time bootstrap runs.
const CurrentSchemaVersion = "1.0.0"

// BootstrapSchema implements the DB_LOAD_SCHEMA/DB_STRICT_SCHEMA_VERSION
// contract from spec §6: on first run it records the deployment row;
// thereafter it compares the stored schema version against this binary's,
// warning on mismatch unless strict mode demands a hard failure.
func (s *PostgresService) BootstrapSchema(loadSchema, strictVersion bool) error {
	if !loadSchema {
		return nil
	}

	var dep jobproc.DeploymentRow
	err := s.db.First(&dep).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		dep = jobproc.DeploymentRow{SchemaLoaded: true, SchemaVersion: CurrentSchemaVersion}
		if err := s.db.Create(&dep).Error; err != nil {
			return fmt.Errorf("record deployment bootstrap row: %w", err)
		}
		s.log.Info("schema bootstrap complete", "schema_version", CurrentSchemaVersion)
		return nil
	case err != nil:
		return fmt.Errorf("load deployment row: %w", err)
	}

	if dep.SchemaVersion != CurrentSchemaVersion {
		if strictVersion {
			return fmt.Errorf("schema version mismatch: running binary is %q, database carries %q", CurrentSchemaVersion, dep.SchemaVersion)
		}
		s.log.Warn("schema version mismatch", "binary_version", CurrentSchemaVersion, "database_version", dep.SchemaVersion)
	}
	return nil
}
