// Package main is the entry point of the k-NN tuning harness. It loads a
// dataset, tests every configured k against it and reports the best one.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/your-org/iris-knn/internal/alert"
	"github.com/your-org/iris-knn/internal/config"
	"github.com/your-org/iris-knn/internal/csvwriter"
	"github.com/your-org/iris-knn/internal/datastore"
	"github.com/your-org/iris-knn/internal/dbwriter"
	"github.com/your-org/iris-knn/internal/http/handler"
	"github.com/your-org/iris-knn/internal/learning"
	"github.com/your-org/iris-knn/internal/metrics"
	"github.com/your-org/iris-knn/internal/report"
	"github.com/your-org/iris-knn/pkg/logger"
)

func main() {
	// --- Configuration ---
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	datasetPath := flag.String("dataset", "", "Path to the dataset CSV (overrides dataset.path)")
	outPath := flag.String("out", "", "Write every evaluation to this CSV file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *datasetPath != "" {
		cfg.Dataset.Path = *datasetPath
	}

	// --- Logger ---
	logger.SetGlobalLogLevel(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()
	logger.Infof("Loaded configuration from: %s", *configPath)

	// --- Graceful Shutdown Setup ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *outPath, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Learner failed: %v", err)
	}
	logger.Info("Learner shut down gracefully.")
}

// stores groups the persistence backends chosen by the configuration.
type stores struct {
	repo     datastore.Repository
	progress dbwriter.DBWriter
	reports  *report.Service
	close    func()
}

func openStores(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) (*stores, error) {
	if !bool(cfg.Database.Enabled) {
		logger.Info("Database disabled; datasets are kept in memory.")
		return &stores{
			repo:     datastore.NewInMemRepository(),
			progress: dbwriter.NewDummyWriter(logger.NewLogger(cfg.LogLevel)),
			close:    func() {},
		}, nil
	}

	dbURL := cfg.Database.URL()
	if err := datastore.Migrate(dbURL); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	// The progress writer owns its pool and closes it on shutdown.
	writerPool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	logger.Info("Database connection established.")

	return &stores{
		repo:     datastore.NewPostgresRepository(pool),
		progress: dbwriter.NewPostgresWriter(writerPool, cfg.DBWriter, zapLogger),
		reports:  report.NewService(pool),
		close:    pool.Close,
	}, nil
}

func loadDataset(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) (*learning.TrainingData, error) {
	if cfg.Dataset.Path == "" {
		return nil, errors.New("no dataset path configured")
	}
	recordCh, errCh := datastore.StreamRecordsFromCSV(ctx, cfg.Dataset.Path)
	records, err := datastore.CollectRecords(ctx, recordCh, errCh)
	if err != nil {
		return nil, err
	}

	td := learning.NewTrainingData(learning.NewRegistry(), cfg.Dataset.Name,
		learning.WithTestingEvery(cfg.Dataset.TestingEvery),
		learning.WithStrict(bool(cfg.Dataset.Strict)),
		learning.WithLogger(zapLogger),
	)
	if err := td.Load(records); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", cfg.Dataset.Path, err)
	}
	logger.Infof("Loaded %s: %d training, %d testing, %d rejected",
		cfg.Dataset.Name, len(td.Training()), len(td.Testing()), len(td.Rejected()))
	return td, nil
}

func run(ctx context.Context, cfg *config.Config, outPath string, stdout io.Writer) error {
	zapLogger := logger.Zap()

	td, err := loadDataset(ctx, cfg, zapLogger)
	if err != nil {
		return err
	}
	defer td.Destroy()

	st, err := openStores(ctx, cfg, zapLogger)
	if err != nil {
		return err
	}
	defer st.close()

	// --- Progress Forwarding ---
	stream := learning.NewInMemoryProgressStream(256)
	forwardCtx, stopForward := context.WithCancel(ctx)
	forwardDone, err := dbwriter.Forward(forwardCtx, stream, st.progress)
	if err != nil {
		stopForward()
		st.progress.Close()
		return err
	}
	defer func() {
		stopForward()
		<-forwardDone
		st.progress.Close()
	}()

	tuningMetrics := metrics.New()

	// --- HTTP Server (Optional) ---
	var srv *http.Server
	if bool(cfg.Server.Enabled) {
		srv = &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           handler.NewRouter(st.repo, stream, tuningMetrics.Handler(), zapLogger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Infof("HTTP server starting on %s", cfg.Server.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("HTTP server failed: %v", err)
			}
		}()
	}

	// --- Evaluation Sinks ---
	sinks := learning.Sinks{tuningMetrics}
	if outPath != "" {
		w, err := csvwriter.NewWriter(outPath, zapLogger)
		if err != nil {
			return err
		}
		defer w.Close()
		sinks = append(sinks, w)
	}

	// --- Tuning ---
	plan := learning.Plan{K: cfg.Classifier.K, Distance: cfg.Classifier.Distance}
	evaluations, runErr := learning.NewPipeline(stream, sinks, zapLogger).Run(ctx, td, plan)
	if runErr != nil {
		logger.Errorf("Tuning stopped early: %v", runErr)
	}
	logger.Infof("Finished %d of %d evaluations", len(evaluations), len(plan.K))

	if err := st.repo.SaveTrainingData(ctx, td.Snapshot()); err != nil {
		return fmt.Errorf("failed to save dataset: %w", err)
	}

	notifier := alert.NewNotifier(cfg.Alert, zapLogger)
	defer notifier.Close()
	if err := writeReport(ctx, td.Evaluations(), st.reports, notifier, stdout); err != nil {
		return err
	}

	if srv != nil {
		logger.Info("Serving reports until interrupted.")
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("HTTP server shutdown: %v", err)
		}
	}
	return runErr
}

// writeReport analyzes the tuning history, prints it as JSON, announces the
// outcome and, when reports is non-nil, stores it.
func writeReport(ctx context.Context, evs []learning.Evaluation, reports *report.Service, notifier alert.Notifier, out io.Writer) error {
	rep, err := report.AnalyzeTuning(evs)
	if errors.Is(err, report.ErrNoEvaluations) {
		logger.Warn("No evaluations were run; skipping report.")
		return nil
	}
	if err != nil {
		return err
	}
	var notice string
	if rep.Best != nil {
		notice = fmt.Sprintf("Tuning of %s finished: best k=%d distance=%s quality=%s%% (%d of %d evaluations failed)",
			rep.Dataset, rep.Best.K, rep.Best.Distance, rep.Best.Quality.Decimal.StringFixed(2), rep.Failed, rep.Evaluations)
		logger.Info(notice)
	} else {
		notice = fmt.Sprintf("Tuning of %s finished: all %d evaluations failed", rep.Dataset, rep.Evaluations)
		logger.Warn(notice)
	}
	for i, row := range rep.Ranking() {
		logger.Debugf("#%d k=%d distance=%s quality=%s%%", i+1, row.K, row.Distance, row.Quality.Decimal.StringFixed(2))
	}
	if err := notifier.Send(notice); err != nil {
		logger.Warnf("Failed to send tuning notice: %v", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if reports != nil {
		if err := reports.SaveTuningReport(ctx, rep); err != nil {
			return err
		}
		logger.Info("Tuning report saved.")
	}
	return nil
}
