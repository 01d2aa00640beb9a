package dbwriter

import (
	"github.com/your-org/iris-knn/internal/learning"
	"github.com/your-org/iris-knn/pkg/logger"
)

// dummyWriter は何もしない DBWriter の実装です。
// データベースが無効な場合に使用されます。
type dummyWriter struct {
	logger logger.Logger
	count  int
}

// NewDummyWriter は新しいダミーライターを作成します。
func NewDummyWriter(l logger.Logger) DBWriter {
	l.Info("Creating dummy DB writer because the database is disabled.")
	return &dummyWriter{logger: l}
}

// SaveProgress は件数を数えるだけです。
func (d *dummyWriter) SaveProgress(p learning.Progress) {
	d.count++
}

// Flush は何もしません。
func (d *dummyWriter) Flush() {}

// Close は何もしません。
func (d *dummyWriter) Close() {
	d.logger.Debugf("Dummy writer: dropped %d progress updates", d.count)
}
