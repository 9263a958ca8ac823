package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthline/booking/internal/appointment"
)

const sendTimeout = 30 * time.Second

// Dispatcher sends mail on a fixed pool of workers fed by a bounded queue.
// Messages that do not fit are dropped and logged; failed sends are not retried.
type Dispatcher struct {
	mailer   Mailer
	logger   zerolog.Logger
	currency string

	mu     sync.RWMutex
	closed bool
	queue  chan Message
	wg     sync.WaitGroup
}

func NewDispatcher(mailer Mailer, logger zerolog.Logger, workers, queueSize int, currency string) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	d := &Dispatcher{
		mailer:   mailer,
		logger:   logger,
		currency: currency,
		queue:    make(chan Message, queueSize),
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

func (d *Dispatcher) work() {
	defer d.wg.Done()

	for msg := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err := d.mailer.Send(ctx, msg)
		cancel()

		if err != nil {
			d.logger.Error().Err(err).
				Str("to", msg.To).
				Str("subject", msg.Subject).
				Msg("email delivery failed")
			continue
		}
		d.logger.Debug().Str("to", msg.To).Str("subject", msg.Subject).Msg("email sent")
	}
}

// Enqueue hands msg to the workers without blocking. It reports whether the
// message was accepted.
func (d *Dispatcher) Enqueue(msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn().Str("to", msg.To).Msg("dispatcher closed, email dropped")
		return false
	}

	select {
	case d.queue <- msg:
		return true
	default:
		d.logger.Warn().Str("to", msg.To).Str("subject", msg.Subject).Msg("email queue full, email dropped")
		return false
	}
}

// BookingConfirmed queues the confirmation email for a new appointment.
func (d *Dispatcher) BookingConfirmed(a appointment.Appointment) {
	msg, err := ConfirmationMessage(a)
	if err != nil {
		d.logger.Error().Err(err).Str("appointment_id", a.ID).Msg("render confirmation email")
		return
	}
	d.Enqueue(msg)
}

// PaymentReceipt queues the receipt email for a paid appointment.
func (d *Dispatcher) PaymentReceipt(a appointment.Appointment) bool {
	msg, err := ReceiptMessage(a, d.currency)
	if err != nil {
		d.logger.Error().Err(err).Str("appointment_id", a.ID).Msg("render receipt email")
		return false
	}
	return d.Enqueue(msg)
}

// Close stops accepting messages and waits for queued ones to be sent or
// for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
