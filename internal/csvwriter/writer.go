package csvwriter

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/iris-knn/internal/learning"
)

// EvaluationHeader is the header row of an evaluation export.
var EvaluationHeader = []string{"id", "dataset", "k", "distance", "quality", "error", "tested_at"}

// Writer is a CSV writer for tuning histories. It implements
// learning.EvaluationSink, writing the header before the first row.
type Writer struct {
	closer        io.Closer
	writer        *csv.Writer
	logger        *zap.Logger
	mu            sync.Mutex
	headerWritten bool
	rows          int
}

// NewWriter creates a new CSV file at filePath.
func NewWriter(filePath string, logger *zap.Logger) (*Writer, error) {
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV file: %w", err)
	}
	w := New(file, logger)
	w.closer = file
	return w, nil
}

// New writes CSV to out. Close does not close out.
func New(out io.Writer, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		writer: csv.NewWriter(out),
		logger: logger,
	}
}

// Write writes a record to the CSV file.
func (w *Writer) Write(record []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeLocked(record)
}

func (w *Writer) writeLocked(record []string) error {
	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record to CSV: %w", err)
	}
	return nil
}

// RecordEvaluation appends one evaluation row and flushes it.
func (w *Writer) RecordEvaluation(ctx context.Context, ev learning.Evaluation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.headerWritten {
		if err := w.writeLocked(EvaluationHeader); err != nil {
			return err
		}
		w.headerWritten = true
	}
	if err := w.writeLocked(EvaluationRecord(ev)); err != nil {
		return err
	}
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	w.rows++
	return nil
}

// WriteEvaluations writes the header and every evaluation.
func (w *Writer) WriteEvaluations(ctx context.Context, evs []learning.Evaluation) error {
	for _, ev := range evs {
		if err := w.RecordEvaluation(ctx, ev); err != nil {
			return err
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.headerWritten {
		if err := w.writeLocked(EvaluationHeader); err != nil {
			return err
		}
		w.headerWritten = true
	}
	return nil
}

// EvaluationRecord renders ev as a CSV row matching EvaluationHeader.
// Quality and tested_at are empty when absent.
func EvaluationRecord(ev learning.Evaluation) []string {
	quality := ""
	if ev.Quality != nil {
		quality = strconv.FormatFloat(*ev.Quality, 'f', -1, 64)
	}
	testedAt := ""
	if !ev.TestedAt.IsZero() {
		testedAt = ev.TestedAt.UTC().Format(time.RFC3339Nano)
	}
	return []string{
		ev.ID.String(),
		ev.Dataset,
		strconv.Itoa(ev.K),
		ev.Distance,
		quality,
		ev.Error,
		testedAt,
	}
}

// Flush flushes any buffered data to the underlying file.
func (w *Writer) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writer.Flush()
}

// Close flushes and, for writers created by NewWriter, closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	w.writer.Flush()
	rows := w.rows
	w.mu.Unlock()

	w.logger.Debug("CSV writer closed", zap.Int("evaluations", rows))
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}
