package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthline/booking/internal/appointment"
)

type fakeMailer struct {
	mu    sync.Mutex
	sent  []Message
	err   error
	block chan struct{}
}

func (m *fakeMailer) Send(ctx context.Context, msg Message) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func sampleAppointment() appointment.Appointment {
	return appointment.Appointment{
		ID:       "appt-1",
		SlotDate: "15_6_2025",
		SlotTime: "10:30 AM",
		Amount:   49.5,
		UserData: appointment.UserSnapshot{Name: "Ada <Patient>", Email: "ada@example.com"},
		DocData:  appointment.DoctorSnapshot{Name: "Dr. Grey"},
	}
}

func TestConfirmationMessage(t *testing.T) {
	msg, err := ConfirmationMessage(sampleAppointment())
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", msg.To)
	assert.Equal(t, "Your Appointment Confirmation - Health-Line+", msg.Subject)
	assert.Contains(t, msg.HTML, "15 Jun 2025")
	assert.Contains(t, msg.HTML, "10:30 AM")
	assert.Contains(t, msg.HTML, "Pending")
	assert.Contains(t, msg.HTML, "Ada &lt;Patient&gt;")
}

func TestReceiptMessage(t *testing.T) {
	a := sampleAppointment()
	a.Payment = true

	msg, err := ReceiptMessage(a, "USD")
	require.NoError(t, err)

	assert.Equal(t, "Your Payment Receipt - Health-Line+", msg.Subject)
	assert.Contains(t, msg.HTML, "USD 49.50")
	assert.Contains(t, msg.HTML, "Dr. Grey")
}

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	mailer := &fakeMailer{}
	d := NewDispatcher(mailer, zerolog.Nop(), 2, 10, "USD")

	d.BookingConfirmed(sampleAppointment())
	assert.True(t, d.PaymentReceipt(sampleAppointment()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))

	assert.Equal(t, 2, mailer.count())
	assert.False(t, d.Enqueue(Message{To: "late@example.com"}))
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	mailer := &fakeMailer{block: make(chan struct{})}
	d := NewDispatcher(mailer, zerolog.Nop(), 1, 1, "USD")

	accepted := 0
	for i := 0; i < 5; i++ {
		if d.Enqueue(Message{To: "a@example.com"}) {
			accepted++
		}
	}
	// one message in the worker, at most one waiting in the queue
	assert.LessOrEqual(t, accepted, 2)
	assert.GreaterOrEqual(t, accepted, 1)

	close(mailer.block)
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, accepted, mailer.count())
}

func TestDispatcherSwallowsSendErrors(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp down")}
	d := NewDispatcher(mailer, zerolog.Nop(), 1, 4, "USD")

	assert.True(t, d.Enqueue(Message{To: "a@example.com"}))
	require.NoError(t, d.Close(context.Background()))
	assert.Zero(t, mailer.count())
}

func TestNewSMTPMailerRequiresHost(t *testing.T) {
	_, err := NewSMTPMailer("", 587, "", "", "noreply@example.com")
	assert.ErrorIs(t, err, ErrMailerNotConfigured)

	m, err := NewSMTPMailer("smtp.example.com", 587, "user", "pass", "noreply@example.com")
	require.NoError(t, err)
	assert.NotNil(t, m)
}
