package datastore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/your-org/iris-knn/internal/learning"
)

// ErrNotFound is returned when no dataset is stored under the requested name.
var ErrNotFound = errors.New("dataset not found")

const (
	// qualityScale matches the NUMERIC(9, 8) quality columns.
	qualityScale = 8

	purposeTraining = "training"
	purposeTesting  = "testing"
)

// Repository stores TrainingData snapshots keyed by dataset name.
type Repository interface {
	// SaveTrainingData replaces whatever is stored under snap.Name.
	SaveTrainingData(ctx context.Context, snap *learning.Snapshot) error
	// LoadTrainingData returns the stored snapshot or ErrNotFound.
	LoadTrainingData(ctx context.Context, name string) (*learning.Snapshot, error)
	// ListTrainingData returns the stored dataset names in order.
	ListTrainingData(ctx context.Context) ([]string, error)
}

// Pool is the subset of pgxpool.Pool used by the repository.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository is the PostgreSQL implementation of Repository.
type PostgresRepository struct {
	db  Pool
	now func() time.Time
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db Pool) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

var sampleColumns = []string{
	"dataset", "purpose", "position",
	"sepal_length", "sepal_width", "petal_length", "petal_width",
	"species", "classification",
}

// SaveTrainingData writes the snapshot in a single transaction. The dataset
// row is deleted first so that samples and evaluations cascade away.
func (r *PostgresRepository) SaveTrainingData(ctx context.Context, snap *learning.Snapshot) error {
	if snap == nil || snap.Name == "" {
		return errors.New("snapshot has no dataset name")
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM datasets WHERE name = $1`, snap.Name); err != nil {
		return fmt.Errorf("failed to delete dataset %s: %w", snap.Name, err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO datasets (name, uploaded, tested, saved_at) VALUES ($1, $2, $3, $4)`,
		snap.Name, snap.Uploaded, snap.Tested, r.now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to insert dataset %s: %w", snap.Name, err)
	}

	rows := toSampleRows(snap.Name, purposeTraining, snap.Training)
	rows = append(rows, toSampleRows(snap.Name, purposeTesting, snap.Testing)...)
	if len(rows) > 0 {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"samples"}, sampleColumns, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("failed to copy samples of %s: %w", snap.Name, err)
		}
	}

	for i, ev := range snap.Evaluations {
		if _, err := tx.Exec(ctx, `
			INSERT INTO evaluations (id, dataset, position, k, distance, quality, error, tested_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			ev.ID, snap.Name, i, ev.K, ev.Distance,
			qualityToNumeric(ev.Quality), nullableString(ev.Error), nullableTime(ev.TestedAt),
		); err != nil {
			return fmt.Errorf("failed to insert evaluation %s: %w", ev.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit dataset %s: %w", snap.Name, err)
	}
	return nil
}

// LoadTrainingData reads a snapshot back. Samples and evaluations keep the
// order in which they were saved.
func (r *PostgresRepository) LoadTrainingData(ctx context.Context, name string) (*learning.Snapshot, error) {
	snap := &learning.Snapshot{Name: name}
	err := r.db.QueryRow(ctx, `SELECT uploaded, tested FROM datasets WHERE name = $1`, name).
		Scan(&snap.Uploaded, &snap.Tested)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dataset %s: %w", name, err)
	}

	if err := r.fetchSamples(ctx, snap); err != nil {
		return nil, err
	}
	if err := r.fetchEvaluations(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// ListTrainingData returns the names of every stored dataset.
func (r *PostgresRepository) ListTrainingData(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT name FROM datasets ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *PostgresRepository) fetchSamples(ctx context.Context, snap *learning.Snapshot) error {
	rows, err := r.db.Query(ctx, `
        SELECT purpose, sepal_length, sepal_width, petal_length, petal_width, species, classification
        FROM samples
        WHERE dataset = $1
        ORDER BY purpose DESC, position ASC;
    `, snap.Name)
	if err != nil {
		return fmt.Errorf("failed to fetch samples of %s: %w", snap.Name, err)
	}
	defer rows.Close()

	snap.Training, snap.Testing = []learning.Sample{}, []learning.Sample{}
	for rows.Next() {
		var purpose string
		var s learning.Sample
		if err := rows.Scan(&purpose, &s.SepalLength, &s.SepalWidth, &s.PetalLength, &s.PetalWidth, &s.Species, &s.Classification); err != nil {
			return err
		}
		switch purpose {
		case purposeTraining:
			snap.Training = append(snap.Training, s)
		case purposeTesting:
			snap.Testing = append(snap.Testing, s)
		default:
			return fmt.Errorf("sample of %s has unknown purpose %q", snap.Name, purpose)
		}
	}
	return rows.Err()
}

func (r *PostgresRepository) fetchEvaluations(ctx context.Context, snap *learning.Snapshot) error {
	rows, err := r.db.Query(ctx, `
        SELECT id, k, distance, quality, error, tested_at
        FROM evaluations
        WHERE dataset = $1
        ORDER BY position ASC;
    `, snap.Name)
	if err != nil {
		return fmt.Errorf("failed to fetch evaluations of %s: %w", snap.Name, err)
	}
	defer rows.Close()

	snap.Evaluations = []learning.Evaluation{}
	for rows.Next() {
		var (
			ev       learning.Evaluation
			quality  decimal.NullDecimal
			errText  *string
			testedAt *time.Time
		)
		if err := rows.Scan(&ev.ID, &ev.K, &ev.Distance, &quality, &errText, &testedAt); err != nil {
			return err
		}
		ev.Dataset = snap.Name
		ev.Quality = numericToQuality(quality)
		if errText != nil {
			ev.Error = *errText
		}
		if testedAt != nil {
			ev.TestedAt = *testedAt
		}
		snap.Evaluations = append(snap.Evaluations, ev)
	}
	return rows.Err()
}

func toSampleRows(dataset, purpose string, samples []learning.Sample) [][]any {
	rows := make([][]any, len(samples))
	for i, s := range samples {
		rows[i] = []any{
			dataset, purpose, i,
			s.SepalLength, s.SepalWidth, s.PetalLength, s.PetalWidth,
			s.Species, s.Classification,
		}
	}
	return rows
}

func qualityToNumeric(q *float64) decimal.NullDecimal {
	if q == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(*q).Round(qualityScale))
}

func numericToQuality(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	q := d.Decimal.InexactFloat64()
	return &q
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
