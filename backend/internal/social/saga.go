package social

import (
	"context"

	"go.uber.org/zap"

	apperrors "lookbook/backend/pkg/errors"
)

type step struct {
	name string
	run  func(context.Context) error
}

func newStep(name string, run func(context.Context) error) step {
	return step{name: name, run: run}
}

// saga runs independent store writes in order. The first failing step stops
// the rest. Nothing is rolled back and nothing is retried: the failure is
// logged with the steps that did complete and returned as ErrPartialFailure.
// A failure before any step completed is returned unchanged.
type saga struct {
	workflow string
	logger   *zap.Logger
	fields   []zap.Field
}

func newSaga(workflow string, log *zap.Logger, fields ...zap.Field) saga {
	return saga{workflow: workflow, logger: log, fields: fields}
}

func (s saga) run(ctx context.Context, steps ...step) error {
	completed := make([]string, 0, len(steps))
	for _, st := range steps {
		err := ctx.Err()
		if err != nil {
			err = apperrors.NewContextCancelled(s.workflow+"/"+st.name, err)
		} else {
			err = st.run(ctx)
		}
		if err == nil {
			completed = append(completed, st.name)
			continue
		}

		if len(completed) == 0 {
			return err
		}
		s.logger.Error("Workflow stopped partway",
			append([]zap.Field{
				zap.String("workflow", s.workflow),
				zap.String("step", st.name),
				zap.Strings("completed", completed),
				zap.Error(err),
			}, s.fields...)...,
		)
		return apperrors.NewPartialFailure(s.workflow, st.name, completed, err)
	}
	return nil
}
