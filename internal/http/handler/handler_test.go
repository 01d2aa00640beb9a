package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/your-org/iris-knn/internal/datastore"
	"github.com/your-org/iris-knn/internal/learning"
	"github.com/your-org/iris-knn/internal/metrics"
	"github.com/your-org/iris-knn/internal/report"
)

type failingRepo struct{ *datastore.InMemRepository }

func (failingRepo) ListTrainingData(ctx context.Context) ([]string, error) {
	return nil, assert.AnError
}

func (failingRepo) LoadTrainingData(ctx context.Context, name string) (*learning.Snapshot, error) {
	return nil, assert.AnError
}

func tunedSnapshot(name string) *learning.Snapshot {
	q := 0.9
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return &learning.Snapshot{
		Name:     name,
		Training: []learning.Sample{{SepalLength: 5.1, Species: "Iris-setosa"}},
		Testing:  []learning.Sample{{SepalLength: 4.9, Species: "Iris-setosa"}},
		Evaluations: []learning.Evaluation{
			{ID: uuid.New(), Dataset: name, K: 1, Distance: "euclidean", Quality: &q, TestedAt: at},
			{ID: uuid.New(), Dataset: name, K: 9, Distance: "euclidean", Error: "invalid hyperparameter", TestedAt: at},
		},
	}
}

func newTestServer(t *testing.T, repo datastore.Repository, stream learning.ProgressStream) *httptest.Server {
	srv := httptest.NewServer(NewRouter(repo, stream, nil, zaptest.NewLogger(t)))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestHealthCheckHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthCheckHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestReportHandler(t *testing.T) {
	repo := datastore.NewInMemRepository()
	require.NoError(t, repo.SaveTrainingData(context.Background(), tunedSnapshot("iris")))
	require.NoError(t, repo.SaveTrainingData(context.Background(), &learning.Snapshot{Name: "fresh"}))
	srv := newTestServer(t, repo, nil)

	t.Run("list", func(t *testing.T) {
		resp, body := get(t, srv.URL+"/datasets")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.JSONEq(t, `["fresh","iris"]`, body)
	})

	t.Run("dataset", func(t *testing.T) {
		resp, body := get(t, srv.URL+"/datasets/iris")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var snap learning.Snapshot
		require.NoError(t, json.Unmarshal([]byte(body), &snap))
		assert.Equal(t, "iris", snap.Name)
		assert.Len(t, snap.Evaluations, 2)
	})

	t.Run("report", func(t *testing.T) {
		resp, body := get(t, srv.URL+"/datasets/iris/report")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var rep report.Report
		require.NoError(t, json.Unmarshal([]byte(body), &rep))
		assert.Equal(t, 2, rep.Evaluations)
		assert.Equal(t, 1, rep.Failed)
		require.NotNil(t, rep.Best)
		assert.Equal(t, 1, rep.Best.K)
		assert.Equal(t, "90", rep.Best.Quality.Decimal.String())
	})

	t.Run("unknown dataset", func(t *testing.T) {
		resp, _ := get(t, srv.URL+"/datasets/unknown/report")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("no evaluations", func(t *testing.T) {
		resp, _ := get(t, srv.URL+"/datasets/fresh/report")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("progress disabled", func(t *testing.T) {
		resp, _ := get(t, srv.URL+"/progress")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("metrics disabled", func(t *testing.T) {
		resp, _ := get(t, srv.URL+"/metrics")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestReportHandler_RepositoryError(t *testing.T) {
	srv := newTestServer(t, failingRepo{}, nil)

	resp, _ := get(t, srv.URL+"/datasets")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp, _ = get(t, srv.URL+"/datasets/iris/report")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestProgressHandler(t *testing.T) {
	stream := learning.NewInMemoryProgressStream(8)
	srv := newTestServer(t, datastore.NewInMemRepository(), stream)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/progress"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	// --- Wait for the subscription ---
	require.Eventually(t, func() bool { return stream.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	want := learning.Progress{
		EvaluationID: uuid.New(),
		Dataset:      "iris",
		K:            3,
		Distance:     "euclidean",
		Processed:    2,
		Total:        10,
		Passed:       2,
		Quality:      1,
	}
	require.NoError(t, stream.Publish(context.Background(), &want))

	// --- Assertions ---
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got learning.Progress
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, want.EvaluationID, got.EvaluationID)
	assert.Equal(t, 2, got.Processed)
	assert.Equal(t, 10, got.Total)

	// Closing the client unsubscribes it.
	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return stream.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestProgressHandler_PlainRequest(t *testing.T) {
	stream := learning.NewInMemoryProgressStream(1)
	rec := httptest.NewRecorder()
	NewProgressHandler(stream, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/progress", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, stream.Subscribers())
}

func TestNewRouter_Metrics(t *testing.T) {
	m := metrics.New()
	q := 0.5
	require.NoError(t, m.RecordEvaluation(context.Background(), learning.Evaluation{Dataset: "iris", K: 3, Distance: "euclidean", Quality: &q}))

	srv := httptest.NewServer(NewRouter(datastore.NewInMemRepository(), nil, m.Handler(), zaptest.NewLogger(t)))
	t.Cleanup(srv.Close)

	resp, body := get(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "knn_evaluations_total")
}
