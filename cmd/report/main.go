package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/iris-knn/internal/config"
	"github.com/your-org/iris-knn/internal/datastore"
	"github.com/your-org/iris-knn/internal/learning"
	"github.com/your-org/iris-knn/internal/report"
	"github.com/your-org/iris-knn/pkg/logger"
)

// reportSaver stores an analyzed report.
type reportSaver interface {
	SaveTuningReport(ctx context.Context, r report.Report) error
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	dataset := flag.String("dataset", "", "Dataset to report on (defaults to dataset.name)")
	snapshotPath := flag.String("snapshot", "", "Read the dataset from a JSON snapshot instead of the database")
	save := flag.Bool("save", false, "Store the report in tuning_reports")
	interval := flag.Duration("interval", 0, "Regenerate the report at this interval; 0 runs once")
	flag.Parse()

	// --- Load Configuration ---
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		// If config fails to load, we can't even start the logger properly.
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// --- Logger Setup ---
	l := logger.NewLogger(cfg.LogLevel)
	name := currentDataset("", *dataset, l)

	ctx := context.Background()
	var (
		repo  datastore.Repository
		saver reportSaver
	)
	if *snapshotPath != "" {
		mem, err := loadSnapshotFile(ctx, *snapshotPath)
		if err != nil {
			l.Fatalf("Failed to read snapshot: %v", err)
		}
		repo = mem
	} else {
		// --- Database Connection ---
		dbpool, err := pgxpool.New(ctx, cfg.Database.URL())
		if err != nil {
			l.Fatalf("Unable to connect to database: %v", err)
		}
		defer dbpool.Close()
		repo = datastore.NewPostgresRepository(dbpool)
		if *save {
			saver = report.NewService(dbpool)
		}
	}

	// --- Initial Run ---
	if err := generateReport(ctx, repo, saver, name, os.Stdout, l); err != nil {
		l.Fatalf("Report generation failed: %v", err)
	}
	if *interval <= 0 {
		return
	}

	// --- Main Loop ---
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	l.Infof("Report generator started. Will run every %v.", *interval)
	for range ticker.C {
		l.Info("--- Running Report Generation ---")
		name = currentDataset(*configPath, *dataset, l)
		if err := generateReport(ctx, repo, saver, name, os.Stdout, l); err != nil {
			l.Errorf("Report generation failed: %v", err)
		}
	}
}

// currentDataset returns the dataset to report on: override when set,
// otherwise dataset.name of the current configuration. A non-empty configPath
// is re-read first; if that fails the previous configuration stays in effect.
func currentDataset(configPath, override string, l logger.Logger) string {
	if override != "" {
		return override
	}
	if configPath != "" {
		if _, err := config.ReloadConfig(configPath); err != nil {
			l.Warnf("Failed to reload configuration, keeping the previous one: %v", err)
		}
	}
	return config.GetConfig().Dataset.Name
}

// loadSnapshotFile reads a JSON snapshot into an in-memory repository.
func loadSnapshotFile(ctx context.Context, path string) (*datastore.InMemRepository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap learning.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}
	repo := datastore.NewInMemRepository()
	if err := repo.SaveTrainingData(ctx, &snap); err != nil {
		return nil, err
	}
	return repo, nil
}

// generateReport loads a dataset, analyzes its tuning history and writes the
// report as JSON. A dataset without evaluations is skipped.
func generateReport(ctx context.Context, repo datastore.Repository, saver reportSaver, name string, out io.Writer, l logger.Logger) error {
	// 1. Load the dataset
	snap, err := repo.LoadTrainingData(ctx, name)
	if err != nil {
		return err
	}

	// 2. Analyze its tuning history
	analysis, err := report.AnalyzeTuning(snap.Evaluations)
	if err != nil {
		if errors.Is(err, report.ErrNoEvaluations) {
			l.Warnf("Skipping report generation for %s: %v", name, err)
			return nil
		}
		return err
	}

	// 3. Write it out
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(analysis); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	// 4. Save the report
	if saver != nil {
		if err := saver.SaveTuningReport(ctx, analysis); err != nil {
			return err
		}
		l.Infof("Saved a tuning report from %d evaluations.", analysis.Evaluations)
	}
	return nil
}
