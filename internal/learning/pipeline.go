package learning

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Plan lists the hyperparameters to evaluate, in order.
type Plan struct {
	K        []int
	Distance string
}

// Pipeline tests the hyperparameters of a Plan against a TrainingData one at
// a time, publishing live progress and recording every finished evaluation.
type Pipeline struct {
	stream ProgressStream
	sink   EvaluationSink
	logger *zap.Logger
}

// NewPipeline creates a Pipeline. stream and sink may be nil.
func NewPipeline(stream ProgressStream, sink EvaluationSink, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{stream: stream, sink: sink, logger: logger}
}

// Run evaluates plan against td and returns the evaluations it performed.
// An invalid k is recorded and skipped; a broken reference or a cancelled
// context stops the run.
func (p *Pipeline) Run(ctx context.Context, td *TrainingData, plan Plan) ([]Evaluation, error) {
	var opts []HyperparameterOption
	if plan.Distance != "" {
		opts = append(opts, WithDistance(plan.Distance))
	}
	if p.stream != nil {
		opts = append(opts, WithProgress(func(pr Progress) {
			if err := p.stream.Publish(ctx, &pr); err != nil {
				p.logger.Debug("Failed to publish progress", zap.Error(err))
			}
		}))
	}

	evaluations := make([]Evaluation, 0, len(plan.K))
	for _, k := range plan.K {
		if err := ctx.Err(); err != nil {
			return evaluations, err
		}

		h, err := NewHyperparameter(k, td.Ref(), opts...)
		if err != nil {
			return evaluations, err
		}

		testErr := td.Test(h)
		ev := h.Evaluation(td.Name)
		evaluations = append(evaluations, ev)

		if p.sink != nil {
			if err := p.sink.RecordEvaluation(ctx, ev); err != nil {
				p.logger.Error("Failed to record evaluation", zap.Stringer("id", ev.ID), zap.Error(err))
			}
		}

		if errors.Is(testErr, ErrBrokenReference) {
			return evaluations, fmt.Errorf("pipeline stopped at k=%d: %w", k, testErr)
		}
	}
	return evaluations, nil
}
