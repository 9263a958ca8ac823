package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/healthline/booking/internal/appointment"
)

const reconcileBatch = 100

// Reconciler marks appointments paid when their checkout completed but the
// client never called verify.
type Reconciler struct {
	repo      Repository
	processor Processor
	logger    zerolog.Logger
}

func NewReconciler(repo Repository, processor Processor, logger zerolog.Logger) *Reconciler {
	return &Reconciler{repo: repo, processor: processor, logger: logger}
}

// RunOnce checks one batch of pending sessions and returns how many were marked paid.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	pending, err := r.repo.ListPendingSessions(ctx, reconcileBatch)
	if err != nil {
		return 0, fmt.Errorf("list pending sessions: %w", err)
	}

	marked := 0
	for _, a := range pending {
		if err := ctx.Err(); err != nil {
			return marked, err
		}

		sess, err := r.processor.GetSession(ctx, a.PendingSessionID)
		if err != nil {
			r.logger.Warn().Err(err).
				Str("appointment_id", a.ID).
				Str("session_id", a.PendingSessionID).
				Msg("session lookup failed")
			continue
		}
		if sess.Status != StatusPaid {
			continue
		}

		if _, err := r.repo.MarkPaidByPendingSession(ctx, a.UserID, a.PendingSessionID); err != nil {
			if errors.Is(err, appointment.ErrAppointmentNotFound) {
				// verified or cancelled since it was listed
				continue
			}
			return marked, fmt.Errorf("mark appointment %s paid: %w", a.ID, err)
		}

		marked++
		r.logger.Info().
			Str("appointment_id", a.ID).
			Str("session_id", a.PendingSessionID).
			Msg("payment reconciled")
	}
	return marked, nil
}
