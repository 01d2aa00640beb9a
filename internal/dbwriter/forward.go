package dbwriter

import (
	"context"
	"fmt"

	"github.com/your-org/iris-knn/internal/learning"
)

// Forward は戻る前に stream を購読し、ctx が終了するまでバックグラウンドで
// 進捗を w に保存します。返されるチャネルは最後の進捗を w に渡した後に閉じられます。
// 遅い購読者のためにストリームが破棄した進捗は書き込まれません。
func Forward(ctx context.Context, stream learning.ProgressStream, w DBWriter) (<-chan struct{}, error) {
	updates, err := stream.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to progress: %w", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range updates {
			w.SaveProgress(*p)
		}
	}()
	return done, nil
}
