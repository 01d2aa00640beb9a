package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/your-org/iris-knn/internal/learning"
)

const progressWriteTimeout = 10 * time.Second

// ProgressHandler は評価の進捗を WebSocket で配信します。
// 進捗は1件ずつ JSON のテキストメッセージとして送信されます。
type ProgressHandler struct {
	stream   learning.ProgressStream
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewProgressHandler は新しいProgressHandlerを作成します。
func NewProgressHandler(stream learning.ProgressStream, logger *zap.Logger) *ProgressHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressHandler{
		stream: stream,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

// ServeHTTP は接続をアップグレードし、クライアントが切断するか
// リクエストのコンテキストが終了するまで進捗を送信します。
func (h *ProgressHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade がHTTPエラーを書き込み済み
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	updates, err := h.stream.Subscribe(ctx)
	if err != nil {
		h.logger.Error("Failed to subscribe to progress", zap.Error(err))
		return
	}

	// 読み取りループ：クライアントの切断を検知する
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.logger.Debug("Progress subscriber connected", zap.String("remote", r.RemoteAddr))
	for {
		select {
		case p, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(progressWriteTimeout))
			if err := conn.WriteJSON(p); err != nil {
				h.logger.Debug("Progress subscriber write failed", zap.Error(err))
				return
			}
		case <-closed:
			h.logger.Debug("Progress subscriber disconnected", zap.String("remote", r.RemoteAddr))
			return
		case <-ctx.Done():
			return
		}
	}
}
