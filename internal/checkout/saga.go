package checkout

import (
	"context"

	pkgerrors "github.com/discotek/discotek-go/pkg/errors"
	"github.com/discotek/discotek-go/pkg/logger"
	"go.uber.org/multierr"
)

// Phase names one step of the purchase flow. The flow is linear; ERROR
// is reachable from any phase after VALIDATING.
type Phase string

const (
	PhaseIdle            Phase = "IDLE"
	PhaseValidating      Phase = "VALIDATING"
	PhaseVerifyingEvents Phase = "VERIFYING_EVENTS"
	PhaseCharging        Phase = "CHARGING"
	PhaseAwardingPoints  Phase = "AWARDING_POINTS"
	PhaseCompletingOrder Phase = "COMPLETING_ORDER"
	PhaseCreatingTickets Phase = "CREATING_TICKETS"
	PhaseSuccess         Phase = "SUCCESS"
	PhaseError           Phase = "ERROR"
)

// step pairs a forward action with its compensation. Compensations run
// in reverse order when a later step fails; a nil compensation marks a
// step with nothing to undo.
type step struct {
	phase      Phase
	run        func(ctx context.Context) error
	compensate func(ctx context.Context) error
}

// runSaga executes the steps in order. On the first failure it runs the
// compensations of every completed step in reverse. A failed rollback is
// a distinct error kind: the caller gets CodeCompensation wrapping both
// the original failure and the rollback errors, never a silent swallow.
func runSaga(ctx context.Context, logg *logger.Logger, setPhase func(Phase), steps []step) error {
	var done []step
	for _, st := range steps {
		setPhase(st.phase)
		if err := st.run(ctx); err != nil {
			setPhase(PhaseError)
			logg.Error(logg.WithPhase(ctx, string(st.phase)), "checkout step failed, compensating", err)
			if compErr := compensate(ctx, logg, done); compErr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeCompensation, multierr.Append(err, compErr), "rollback incomplete after failed "+string(st.phase))
			}
			return err
		}
		done = append(done, st)
	}
	return nil
}

func compensate(ctx context.Context, logg *logger.Logger, done []step) error {
	var errs error
	for i := len(done) - 1; i >= 0; i-- {
		st := done[i]
		if st.compensate == nil {
			continue
		}
		if err := st.compensate(ctx); err != nil {
			logg.Error(logg.WithPhase(ctx, string(st.phase)), "compensation failed", err)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
