package dbwriter

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/your-org/iris-knn/internal/config"
	"github.com/your-org/iris-knn/internal/learning"
	"github.com/your-org/iris-knn/pkg/logger"
)

func progress(processed int) learning.Progress {
	return learning.Progress{
		EvaluationID: uuid.MustParse("5b1f6c8e-7d7c-4a65-9b43-2f0d0c7b9a11"),
		Dataset:      "iris",
		K:            3,
		Distance:     "euclidean",
		Processed:    processed,
		Total:        30,
		Passed:       processed,
		Quality:      1,
		Time:         time.Date(2026, 6, 1, 0, 0, processed, 0, time.UTC),
	}
}

// TestPostgresWriter_ImplementsDBWriter は PostgresWriter が DBWriter インターフェースを実装していることを確認します。
func TestPostgresWriter_ImplementsDBWriter(t *testing.T) {
	assert.Implements(t, (*DBWriter)(nil), new(PostgresWriter))
	assert.Implements(t, (*DBWriter)(nil), new(InMemWriter))
}

func TestPostgresWriter_SaveProgress(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	writerConfig := config.DBWriterConfig{
		BatchSize:            1, // Set batch size to 1 to trigger flush immediately
		WriteIntervalSeconds: 60,
	}
	writer := NewPostgresWriter(mock, writerConfig, zap.NewNop())

	mock.ExpectCopyFrom(pgx.Identifier{"evaluation_progress"}, progressColumns).WillReturnResult(1)

	writer.SaveProgress(progress(1))
	writer.Close()
	// Closing twice is safe.
	writer.Close()

	// ensure all expectations were met
	require.NoError(t, mock.ExpectationsWereMet(), "there were unfulfilled expectations")
}

func TestPostgresWriter_BuffersUntilFlush(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	writer := NewPostgresWriter(mock, config.DBWriterConfig{BatchSize: 10, WriteIntervalSeconds: 60}, zap.NewNop())
	defer writer.Close()

	writer.SaveProgress(progress(1))
	writer.SaveProgress(progress(2))
	assert.NoError(t, mock.ExpectationsWereMet(), "nothing is written before the batch fills")

	mock.ExpectCopyFrom(pgx.Identifier{"evaluation_progress"}, progressColumns).WillReturnResult(2)
	writer.Flush()
	require.NoError(t, mock.ExpectationsWereMet())

	// An empty buffer does not hit the database.
	writer.Flush()
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresWriter_LogsCopyFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	core, logs := observer.New(zapcore.ErrorLevel)
	writer := NewPostgresWriter(mock, config.DBWriterConfig{BatchSize: 1, WriteIntervalSeconds: 60}, zap.New(core))

	mock.ExpectCopyFrom(pgx.Identifier{"evaluation_progress"}, progressColumns).WillReturnError(assert.AnError)
	writer.SaveProgress(progress(1))
	writer.Close()

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Failed to batch insert progress rows", logs.All()[0].Message)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresWriter_InvalidConfigFallsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	w := NewPostgresWriter(mock, config.DBWriterConfig{}, nil).(*PostgresWriter)
	defer w.Close()
	assert.Equal(t, 100, w.config.BatchSize)
	assert.Equal(t, 1, w.config.WriteIntervalSeconds)
}

func TestNewProgressRow(t *testing.T) {
	p := progress(7)
	row := NewProgressRow(p)
	assert.Equal(t, p.EvaluationID, row.EvaluationID)
	assert.Equal(t, 7, row.Processed)
	assert.Equal(t, []interface{}{p.Time, p.EvaluationID, "iris", 3, "euclidean", 7, 30, 7, 1.0}, toProgressInterfaces([]ProgressRow{row})[0])
}

func TestForward(t *testing.T) {
	stream := learning.NewInMemoryProgressStream(16)
	w := NewInMemWriter()
	ctx, cancel := context.WithCancel(context.Background())

	done, err := Forward(ctx, stream, w)
	require.NoError(t, err)
	// Subscribed before Forward returned, so nothing published now is missed.
	assert.Equal(t, 1, stream.Subscribers())

	for i := 1; i <= 3; i++ {
		p := progress(i)
		require.NoError(t, stream.Publish(ctx, &p))
	}
	require.Eventually(t, func() bool { return len(w.Saved()) == 3 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, 2, w.Saved()[1].Processed)
}

type failingStream struct{ learning.ProgressStream }

func (failingStream) Subscribe(ctx context.Context) (<-chan *learning.Progress, error) {
	return nil, assert.AnError
}

func TestForward_SubscribeError(t *testing.T) {
	done, err := Forward(context.Background(), failingStream{}, NewInMemWriter())
	assert.ErrorIs(t, err, assert.AnError)
	assert.Nil(t, done)
}

func TestDummyWriter(t *testing.T) {
	w := NewDummyWriter(logger.NewLogger("error"))
	w.SaveProgress(progress(1))
	w.Flush()
	w.Close()
}
