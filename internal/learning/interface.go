package learning

import (
	"context"
	"errors"
)

// ProgressStream fans out live evaluation progress.
type ProgressStream interface {
	// Publish sends a progress update to every subscriber.
	Publish(ctx context.Context, p *Progress) error
	// Subscribe returns a channel of progress updates, closed when ctx is done.
	Subscribe(ctx context.Context) (<-chan *Progress, error)
}

// EvaluationSink receives the record of every finished evaluation.
type EvaluationSink interface {
	RecordEvaluation(ctx context.Context, ev Evaluation) error
}

// Sinks records every evaluation in each of its sinks. Every sink sees the
// evaluation even when an earlier one fails; the errors are joined.
type Sinks []EvaluationSink

// RecordEvaluation implements EvaluationSink.
func (s Sinks) RecordEvaluation(ctx context.Context, ev Evaluation) error {
	var errs []error
	for _, sink := range s {
		if err := sink.RecordEvaluation(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
