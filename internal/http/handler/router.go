package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/your-org/iris-knn/internal/datastore"
	"github.com/your-org/iris-knn/internal/learning"
)

// NewRouter はヘルスチェックとデータセットレポートのルートを設定します。
// 進捗配信 (/progress) とメトリクス (/metrics) は、stream と metrics が
// nil でない場合のみ登録されます。
func NewRouter(repo datastore.Repository, stream learning.ProgressStream, metrics http.Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", HealthCheckHandler)
	NewReportHandler(repo, logger).RegisterRoutes(r)
	if stream != nil {
		r.Method(http.MethodGet, "/progress", NewProgressHandler(stream, logger))
	}
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	return r
}
