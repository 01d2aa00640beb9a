package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/iris-knn/internal/config"
	"github.com/your-org/iris-knn/internal/report"
)

const irisCSV = `sepal_length,sepal_width,petal_length,petal_width,species
5.1,3.5,1.4,0.2,Iris-setosa
4.9,3.0,1.4,0.2,Iris-setosa
4.7,3.2,1.3,0.2,Iris-setosa
7.0,3.2,4.7,1.4,Iris-versicolor
6.4,3.2,4.5,1.5,Iris-versicolor
6.9,3.1,4.9,1.5,Iris-versicolor
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "iris.csv")
	require.NoError(t, os.WriteFile(path, []byte(irisCSV), 0o600))

	return &config.Config{
		LogLevel: "error",
		Dataset: config.DatasetConfig{
			Name:         "iris",
			Path:         path,
			TestingEvery: 3,
		},
		Classifier: config.ClassifierConfig{
			K:        []int{1, 9},
			Distance: "euclidean",
		},
	}
}

func TestRun(t *testing.T) {
	cfg := testConfig(t)
	outPath := filepath.Join(t.TempDir(), "evaluations.csv")
	var stdout bytes.Buffer

	require.NoError(t, run(context.Background(), cfg, outPath, &stdout))

	// --- Report ---
	var rep report.Report
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rep))
	assert.Equal(t, "iris", rep.Dataset)
	assert.Equal(t, 2, rep.Evaluations)
	assert.Equal(t, 1, rep.Succeeded)
	assert.Equal(t, 1, rep.Failed, "k=9 exceeds the four training samples")
	require.NotNil(t, rep.Best)
	assert.Equal(t, 1, rep.Best.K)
	assert.Equal(t, "100", rep.Best.Quality.Decimal.String())

	// --- Evaluation CSV ---
	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "k", rows[0][2])
	assert.Equal(t, "1", rows[1][2])
	assert.Equal(t, "9", rows[2][2])
	assert.NotEmpty(t, rows[2][5])
}

func TestRun_Errors(t *testing.T) {
	t.Run("no dataset path", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Dataset.Path = ""
		assert.Error(t, run(context.Background(), cfg, "", &bytes.Buffer{}))
	})

	t.Run("missing dataset", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Dataset.Path = filepath.Join(t.TempDir(), "missing.csv")
		assert.Error(t, run(context.Background(), cfg, "", &bytes.Buffer{}))
	})

	t.Run("unknown distance", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Classifier.Distance = "cosine"
		var stdout bytes.Buffer
		assert.Error(t, run(context.Background(), cfg, "", &stdout))
		assert.Empty(t, stdout.String())
	})
}
