package dbwriter

import (
	"sync"

	"github.com/your-org/iris-knn/internal/learning"
)

// InMemWriter はテスト用のインメモリ DBWriter 実装です。
type InMemWriter struct {
	mu       sync.RWMutex
	Progress []learning.Progress
	Flushes  int
	IsClosed bool
}

// NewInMemWriter は新しいInMemWriterを作成します。
func NewInMemWriter() *InMemWriter {
	return &InMemWriter{
		Progress: make([]learning.Progress, 0),
	}
}

// SaveProgress は進捗をメモリ上のスライスに追加します。
func (w *InMemWriter) SaveProgress(p learning.Progress) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Progress = append(w.Progress, p)
}

// Flush は呼び出し回数を数えます。
func (w *InMemWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Flushes++
}

// Close はライターをクローズ済みにします。
func (w *InMemWriter) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.IsClosed = true
}

// Saved は保存された進捗のコピーを返します。
func (w *InMemWriter) Saved() []learning.Progress {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]learning.Progress(nil), w.Progress...)
}

// Clear はメモリ上の状態をリセットします。
func (w *InMemWriter) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Progress = make([]learning.Progress, 0)
	w.Flushes = 0
	w.IsClosed = false
}
