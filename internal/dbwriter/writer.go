package dbwriter

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/your-org/iris-knn/internal/config"
	"github.com/your-org/iris-knn/internal/learning"
)

// ProgressRow はデータベースに保存する評価進捗の構造体です。
type ProgressRow struct {
	Time         time.Time `db:"time"`
	EvaluationID uuid.UUID `db:"evaluation_id"`
	Dataset      string    `db:"dataset"`
	K            int       `db:"k"`
	Distance     string    `db:"distance"`
	Processed    int       `db:"processed"`
	Total        int       `db:"total"`
	Passed       int       `db:"passed"`
	Quality      float64   `db:"quality"`
}

// NewProgressRow は進捗をテーブルの行に変換します。
func NewProgressRow(p learning.Progress) ProgressRow {
	return ProgressRow{
		Time:         p.Time,
		EvaluationID: p.EvaluationID,
		Dataset:      p.Dataset,
		K:            p.K,
		Distance:     p.Distance,
		Processed:    p.Processed,
		Total:        p.Total,
		Passed:       p.Passed,
		Quality:      p.Quality,
	}
}

var progressColumns = []string{
	"time", "evaluation_id", "dataset", "k", "distance", "processed", "total", "passed", "quality",
}

// Pool はテストのために pgxpool.Pool を抽象化したインターフェースです。
type Pool interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Close()
}

// PostgresWriter は評価進捗を PostgreSQL へバッチ書き込みします。
type PostgresWriter struct {
	pool           Pool
	logger         *zap.Logger
	config         config.DBWriterConfig
	progressBuffer []ProgressRow
	bufferMutex    sync.Mutex
	flushTicker    *time.Ticker
	shutdownChan   chan struct{}
	closeOnce      sync.Once
}

// NewPostgresWriter は新しいPostgresWriterインスタンスを作成します。
// このコンストラクタは、外部から提供されたDB接続プールを使用します。
func NewPostgresWriter(pool Pool, writerConfig config.DBWriterConfig, logger *zap.Logger) DBWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if writerConfig.WriteIntervalSeconds <= 0 {
		logger.Warn("WriteIntervalSeconds is zero or negative, defaulting to 1s.", zap.Int("originalValue", writerConfig.WriteIntervalSeconds))
		writerConfig.WriteIntervalSeconds = 1
	}
	if writerConfig.BatchSize <= 0 {
		logger.Warn("BatchSize is zero or negative, defaulting to 100.", zap.Int("originalValue", writerConfig.BatchSize))
		writerConfig.BatchSize = 100
	}

	writer := &PostgresWriter{
		pool:           pool,
		logger:         logger,
		config:         writerConfig,
		progressBuffer: make([]ProgressRow, 0, writerConfig.BatchSize),
		flushTicker:    time.NewTicker(time.Duration(writerConfig.WriteIntervalSeconds) * time.Second),
		shutdownChan:   make(chan struct{}),
	}
	go writer.run()
	logger.Info("Started progress batch writer",
		zap.Int("batchSize", writerConfig.BatchSize),
		zap.Int("writeIntervalSeconds", writerConfig.WriteIntervalSeconds))
	return writer
}

func (w *PostgresWriter) run() {
	for {
		select {
		case <-w.flushTicker.C:
			w.Flush()
		case <-w.shutdownChan:
			return
		}
	}
}

// SaveProgress は評価進捗をバッファに追加します。
func (w *PostgresWriter) SaveProgress(p learning.Progress) {
	w.bufferMutex.Lock()
	w.progressBuffer = append(w.progressBuffer, NewProgressRow(p))
	shouldFlush := len(w.progressBuffer) >= w.config.BatchSize
	w.bufferMutex.Unlock()

	if shouldFlush {
		w.Flush()
	}
}

// Flush はバッファの内容を書き込みます。
func (w *PostgresWriter) Flush() {
	w.bufferMutex.Lock()
	defer w.bufferMutex.Unlock()

	if len(w.progressBuffer) == 0 {
		return
	}
	w.batchInsertProgress(context.Background(), w.progressBuffer)
	w.progressBuffer = w.progressBuffer[:0]
}

// Close はバッファをフラッシュし、接続プールをクローズします。
func (w *PostgresWriter) Close() {
	w.closeOnce.Do(func() {
		w.logger.Info("Closing progress writer...")
		close(w.shutdownChan)
		w.flushTicker.Stop()

		// 最終フラッシュ
		w.Flush()

		w.pool.Close()
		w.logger.Info("Database connection pool closed")
	})
}

func (w *PostgresWriter) batchInsertProgress(ctx context.Context, rows []ProgressRow) {
	w.logger.Debug("Flushing progress rows", zap.Int("count", len(rows)))
	n, err := w.pool.CopyFrom(
		ctx,
		pgx.Identifier{"evaluation_progress"},
		progressColumns,
		pgx.CopyFromRows(toProgressInterfaces(rows)),
	)
	if err != nil {
		w.logger.Error("Failed to batch insert progress rows", zap.Int("count", len(rows)), zap.Error(err))
		return
	}
	w.logger.Debug("Flushed progress rows", zap.Int64("written", n))
}

func toProgressInterfaces(rows []ProgressRow) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, r := range rows {
		out[i] = []interface{}{r.Time, r.EvaluationID, r.Dataset, r.K, r.Distance, r.Processed, r.Total, r.Passed, r.Quality}
	}
	return out
}
