package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/your-org/iris-knn/internal/datastore"
	"github.com/your-org/iris-knn/internal/report"
)

// ReportHandler は保存済みデータセットとチューニングレポートのHTTPリクエストを処理します。
type ReportHandler struct {
	repo   datastore.Repository
	logger *zap.Logger
}

// NewReportHandler は新しいReportHandlerを作成します。
func NewReportHandler(repo datastore.Repository, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{repo: repo, logger: logger}
}

// RegisterRoutes はchiルーターにデータセット関連のルートを登録します。
func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/datasets", h.ListDatasets)
	r.Get("/datasets/{name}", h.GetDataset)
	r.Get("/datasets/{name}/report", h.GetReport)
}

// ListDatasets は保存済みデータセット名の一覧を返します。
func (h *ReportHandler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	names, err := h.repo.ListTrainingData(r.Context())
	if err != nil {
		h.logger.Error("Failed to list datasets", zap.Error(err))
		http.Error(w, "Failed to list datasets", http.StatusInternalServerError)
		return
	}
	if names == nil {
		names = []string{}
	}
	h.writeJSON(w, names)
}

// GetDataset は保存済みデータセットのスナップショットを返します。
func (h *ReportHandler) GetDataset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	snap, err := h.repo.LoadTrainingData(r.Context(), name)
	if err != nil {
		h.loadError(w, name, err)
		return
	}
	h.writeJSON(w, snap)
}

// GetReport はデータセットのチューニング履歴を分析して返します。
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	snap, err := h.repo.LoadTrainingData(r.Context(), name)
	if err != nil {
		h.loadError(w, name, err)
		return
	}

	rep, err := report.AnalyzeTuning(snap.Evaluations)
	if errors.Is(err, report.ErrNoEvaluations) {
		http.Error(w, "Dataset has no evaluations", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("Failed to analyze tuning", zap.String("dataset", name), zap.Error(err))
		http.Error(w, "Failed to analyze tuning", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, rep)
}

func (h *ReportHandler) loadError(w http.ResponseWriter, name string, err error) {
	if errors.Is(err, datastore.ErrNotFound) {
		http.Error(w, "Dataset not found", http.StatusNotFound)
		return
	}
	h.logger.Error("Failed to load dataset", zap.String("dataset", name), zap.Error(err))
	http.Error(w, "Failed to load dataset", http.StatusInternalServerError)
}

func (h *ReportHandler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
