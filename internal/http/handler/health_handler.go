package handler

import (
	"net/http"
)

// HealthCheckHandler は HTTP 200 OK を返すシンプルなハンドラです。
// Docker などのヘルスチェックに使用できます。
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
