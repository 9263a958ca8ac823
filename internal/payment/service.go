package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/healthline/booking/internal/appointment"
)

// Repository is the slice of appointment storage payment reconciliation needs.
type Repository interface {
	GetAppointmentByID(ctx context.Context, id string) (*appointment.Appointment, error)
	SetPendingSession(ctx context.Context, id, sessionID string) error
	MarkPaidByPendingSession(ctx context.Context, userID, sessionID string) (*appointment.Appointment, error)
	MarkLatestUnpaidPaid(ctx context.Context, userID, sessionID string) (*appointment.Appointment, error)
	FindPaidBySession(ctx context.Context, userID, sessionID string) (*appointment.Appointment, error)
	FindByPendingSession(ctx context.Context, userID, sessionID string) (*appointment.Appointment, error)
	ListPendingSessions(ctx context.Context, limit int) ([]appointment.Appointment, error)
}

type ReceiptSender interface {
	PaymentReceipt(a appointment.Appointment) bool
}

type Service struct {
	repo      Repository
	processor Processor
	receipts  ReceiptSender
	currency  string
	logger    zerolog.Logger
}

func NewService(repo Repository, processor Processor, receipts ReceiptSender, currency string, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		processor: processor,
		receipts:  receipts,
		currency:  currency,
		logger:    logger,
	}
}

// CreateSession opens a checkout for amount. When appointmentID is set the
// appointment must belong to userID and still be payable, and the session is
// recorded on it so verification does not depend on recency.
func (s *Service) CreateSession(ctx context.Context, userID string, amount decimal.Decimal, appointmentID string) (Session, error) {
	if !amount.IsPositive() {
		return Session{}, ErrInvalidAmount
	}

	if appointmentID != "" {
		appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
		if err != nil {
			return Session{}, fmt.Errorf("load appointment: %w", err)
		}
		if appt.UserID != userID {
			return Session{}, appointment.ErrUnauthorized
		}
		if appt.Cancelled || appt.Payment {
			return Session{}, ErrNotPayable
		}
	}

	sess, err := s.processor.CreateCheckout(ctx, CheckoutRequest{
		UserID:        userID,
		AppointmentID: appointmentID,
		Amount:        amount,
		Currency:      s.currency,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("create checkout session failed")
		return Session{}, err
	}

	if appointmentID != "" {
		if err := s.repo.SetPendingSession(ctx, appointmentID, sess.ID); err != nil {
			return Session{}, fmt.Errorf("record pending session: %w", err)
		}
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("session_id", sess.ID).
		Str("appointment_id", appointmentID).
		Msg("checkout session created")

	return sess, nil
}

// Verify confirms a paid session and marks one appointment paid. A session
// that was already applied returns the same appointment again.
func (s *Service) Verify(ctx context.Context, userID, sessionID string) (*appointment.Appointment, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrMissingSession
	}

	if appt, err := s.repo.FindPaidBySession(ctx, userID, sessionID); err == nil {
		return appt, nil
	} else if !errors.Is(err, appointment.ErrAppointmentNotFound) {
		return nil, fmt.Errorf("find paid appointment: %w", err)
	}

	sess, err := s.processor.GetSession(ctx, sessionID)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("retrieve checkout session failed")
		return nil, err
	}
	if sess.UserID != "" && sess.UserID != userID {
		return nil, ErrSessionMismatch
	}
	if sess.Status != StatusPaid {
		return nil, ErrPaymentIncomplete
	}

	appt, err := s.markPaid(ctx, userID, sess)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("session_id", sessionID).
		Str("appointment_id", appt.ID).
		Msg("payment verified")

	return appt, nil
}

// markPaid applies a paid session. A session opened for one appointment only
// ever pays that appointment; only unlinked sessions fall back to the user's
// most recent unpaid appointment.
func (s *Service) markPaid(ctx context.Context, userID string, sess Session) (*appointment.Appointment, error) {
	appt, err := s.repo.MarkPaidByPendingSession(ctx, userID, sess.ID)
	if err == nil {
		return appt, nil
	}
	if !errors.Is(err, appointment.ErrAppointmentNotFound) {
		return nil, fmt.Errorf("mark paid by session: %w", err)
	}

	linkedID := sess.AppointmentID
	if linkedID == "" {
		linked, err := s.repo.FindByPendingSession(ctx, userID, sess.ID)
		switch {
		case err == nil:
			linkedID = linked.ID
		case !errors.Is(err, appointment.ErrAppointmentNotFound):
			return nil, fmt.Errorf("find linked appointment: %w", err)
		}
	}
	if linkedID != "" {
		s.logger.Warn().
			Str("session_id", sess.ID).
			Str("appointment_id", linkedID).
			Msg("paid session targets an appointment that is no longer payable")
		return nil, ErrNotPayable
	}

	appt, err = s.repo.MarkLatestUnpaidPaid(ctx, userID, sess.ID)
	if err != nil {
		if errors.Is(err, appointment.ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("mark latest unpaid: %w", err)
	}
	return appt, nil
}

// IssueReceipt queues the receipt for the appointment paid with sessionID.
func (s *Service) IssueReceipt(ctx context.Context, userID, sessionID string) (*appointment.Appointment, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrMissingSession
	}

	appt, err := s.repo.FindPaidBySession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	if !s.receipts.PaymentReceipt(*appt) {
		return nil, ErrReceiptNotSent
	}
	return appt, nil
}
