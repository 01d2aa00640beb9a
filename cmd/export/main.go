package main

import (
	"context"
	"flag"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/your-org/iris-knn/internal/config"
	"github.com/your-org/iris-knn/internal/csvwriter"
	"github.com/your-org/iris-knn/internal/datastore"
	"github.com/your-org/iris-knn/pkg/logger"
)

func main() {
	// --- Argument Parsing ---
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	dataset := flag.String("dataset", "", "Dataset whose evaluations are exported (defaults to dataset.name)")
	flag.Parse()

	// --- Config and Logger Setup ---
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load configuration to get DB settings: %v", err)
	}
	logger.SetGlobalLogLevel(cfg.LogLevel)
	name := *dataset
	if name == "" {
		name = cfg.Dataset.Name
	}

	// --- Database Connection ---
	ctx := context.Background()
	dbpool, err := pgxpool.New(ctx, cfg.Database.URL())
	if err != nil {
		logger.Fatalf("Unable to connect to database: %v", err)
	}
	defer dbpool.Close()

	logger.Infof("Successfully connected to the database. Exporting evaluations of %s...", name)

	rowCount, err := export(ctx, datastore.NewPostgresRepository(dbpool), name, os.Stdout, logger.Zap())
	if err != nil {
		logger.Fatalf("Export failed: %v", err)
	}
	logger.Infof("Successfully exported %d rows.", rowCount)
}

// export writes the tuning history of dataset name to out as CSV.
func export(ctx context.Context, repo datastore.Repository, name string, out io.Writer, l *zap.Logger) (int, error) {
	snap, err := repo.LoadTrainingData(ctx, name)
	if err != nil {
		return 0, err
	}

	writer := csvwriter.New(out, l)
	defer writer.Close()
	if err := writer.WriteEvaluations(ctx, snap.Evaluations); err != nil {
		return 0, err
	}
	return len(snap.Evaluations), nil
}
