package learning

import (
	"context"
	"sync"
)

// InMemoryProgressStream is an in-memory ProgressStream.
// It is goroutine-safe.
type InMemoryProgressStream struct {
	mu      sync.RWMutex
	subs    map[chan *Progress]struct{}
	bufSize int
}

// NewInMemoryProgressStream creates a stream whose subscriber channels hold
// up to bufferSize updates.
func NewInMemoryProgressStream(bufferSize int) *InMemoryProgressStream {
	return &InMemoryProgressStream{
		subs:    make(map[chan *Progress]struct{}),
		bufSize: bufferSize,
	}
}

// Publish sends p to every registered subscriber. A subscriber whose buffer
// is full misses the update rather than blocking the evaluation.
func (s *InMemoryProgressStream) Publish(ctx context.Context, p *Progress) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for sub := range s.subs {
		select {
		case sub <- p:
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}

// Subscribe returns a channel of progress updates. The channel is closed and
// unsubscribed when ctx is cancelled.
func (s *InMemoryProgressStream) Subscribe(ctx context.Context) (<-chan *Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan *Progress, s.bufSize)
	s.subs[ch] = struct{}{}

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, ch)
		close(ch)
	}()

	return ch, nil
}

// Subscribers returns the number of active subscribers.
func (s *InMemoryProgressStream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
