package dbwriter

import (
	"github.com/your-org/iris-knn/internal/learning"
)

// DBWriter は評価進捗をデータベースへ書き込むためのインターフェースです。
// テストでモックに差し替えられます。
type DBWriter interface {
	// SaveProgress は進捗をバッファに追加します。
	SaveProgress(p learning.Progress)
	// Flush はバッファの内容をすぐに書き込みます。
	Flush()
	// Close はバッファをフラッシュし、接続を解放します。
	Close()
}
