package payment

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount     = errors.New("amount is required")
	ErrMissingSession    = errors.New("missing session_id")
	ErrPaymentIncomplete = errors.New("payment not completed")
	ErrSessionMismatch   = errors.New("payment session belongs to another user")
	ErrNotPayable        = errors.New("appointment cannot be paid")
	ErrReceiptNotSent    = errors.New("receipt email could not be queued")

	ErrUpstream        = errors.New("payment provider error")
	ErrUpstreamTimeout = errors.New("payment provider timed out")
)

type Status string

const (
	StatusPaid   Status = "paid"
	StatusUnpaid Status = "unpaid"
)

type CheckoutRequest struct {
	UserID        string
	AppointmentID string
	Amount        decimal.Decimal
	Currency      string
}

// Session is the provider-neutral view of a checkout session or order.
type Session struct {
	ID     string
	URL    string
	Status Status
	// UserID is the user the session was opened for, when the provider
	// echoes it back.
	UserID string
	// AppointmentID is set when the session was opened for one appointment.
	AppointmentID string
}

type Processor interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
}

// ToMinorUnits converts a major-unit amount to cents/paise, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	minor := amount.Shift(2).Round(0)
	if !minor.IsPositive() {
		return 0, ErrInvalidAmount
	}
	return minor.IntPart(), nil
}

// upstreamError classifies a provider failure as a timeout or a generic upstream error.
func upstreamError(op string, err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%s: %w: %w", op, ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
}
