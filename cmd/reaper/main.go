// Command reaper periodically sweeps artifacts whose TTL has passed: it
// removes the backing storage object first, then the database row, so an
// object that fails to delete keeps its row and is retried on the next
// sweep.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dcm-services/job-processor/internal/db"
	"github.com/dcm-services/job-processor/internal/pkg/logger"
	"github.com/dcm-services/job-processor/internal/repos"
	"github.com/dcm-services/job-processor/internal/storage"
	"github.com/dcm-services/job-processor/internal/utils"
)

func main() {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("failed to init postgres", "error", err)
		os.Exit(1)
	}

	storageCfg, err := storage.ResolveConfigFromEnv()
	if err != nil {
		log.Error("failed to resolve artifact storage config", "error", err)
		os.Exit(1)
	}
	store, err := storage.NewArtifactStore(context.Background(), log, storageCfg)
	if err != nil {
		log.Error("failed to init artifact store", "error", err)
		os.Exit(1)
	}

	artifacts := repos.NewArtifactRepo(pg.DB())
	interval := time.Duration(utils.GetEnvAsInt("REAPER_INTERVAL_SECONDS", 300, log)) * time.Second

	log.Info("artifact reaper starting", "interval", interval.String())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sweep(context.Background(), log, artifacts, store)
	for range ticker.C {
		sweep(context.Background(), log, artifacts, store)
	}
}

func sweep(ctx context.Context, log *logger.Logger, artifacts *repos.ArtifactRepo, store storage.ArtifactStore) {
	now := time.Now()
	expired, err := artifacts.ListExpired(ctx, now)
	if err != nil {
		log.Error("failed to list expired artifacts", "error", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	removed := 0
	for _, row := range expired {
		if err := store.Delete(ctx, row.Path); err != nil {
			log.Warn("failed to delete artifact object, leaving row for retry", "path", row.Path, "error", err)
			continue
		}
		if err := artifacts.DeleteOne(ctx, row.ID); err != nil {
			log.Warn("failed to delete artifact row after removing object", "id", row.ID, "error", err)
			continue
		}
		removed++
	}
	log.Info("artifact reaper sweep complete", "expired", len(expired), "removed", removed)
}
