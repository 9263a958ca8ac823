package payment

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthline/booking/internal/appointment"
)

type fakeProcessor struct {
	mu       sync.Mutex
	seq      int
	sessions map[string]Session
	created  []CheckoutRequest
	err      error
	// unlinked mimics a provider that does not echo the appointment back
	unlinked bool
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{sessions: make(map[string]Session)}
}

func (p *fakeProcessor) CreateCheckout(ctx context.Context, req CheckoutRequest) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return Session{}, p.err
	}
	p.seq++
	s := Session{
		ID:     fmt.Sprintf("cs_test_%d", p.seq),
		URL:    "https://checkout.example.com/pay",
		Status: StatusUnpaid,
		UserID: req.UserID,
	}
	if !p.unlinked {
		s.AppointmentID = req.AppointmentID
	}
	p.sessions[s.ID] = s
	p.created = append(p.created, req)
	return s, nil
}

func (p *fakeProcessor) GetSession(ctx context.Context, id string) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return Session{}, p.err
	}
	s, ok := p.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: no such session", ErrUpstream)
	}
	return s, nil
}

func (p *fakeProcessor) pay(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.sessions[id]
	s.Status = StatusPaid
	p.sessions[id] = s
}

type fakeReceipts struct {
	sent   []appointment.Appointment
	refuse bool
}

func (r *fakeReceipts) PaymentReceipt(a appointment.Appointment) bool {
	if r.refuse {
		return false
	}
	r.sent = append(r.sent, a)
	return true
}

type fixture struct {
	svc       *Service
	repo      *appointment.MemoryRepository
	processor *fakeProcessor
	receipts  *fakeReceipts
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := appointment.NewMemoryRepository()
	processor := newFakeProcessor()
	receipts := &fakeReceipts{}
	return &fixture{
		svc:       NewService(repo, processor, receipts, "USD", zerolog.Nop()),
		repo:      repo,
		processor: processor,
		receipts:  receipts,
	}
}

func (f *fixture) addAppointment(t *testing.T, id, userID string, date int64, mutate func(*appointment.Appointment)) {
	t.Helper()
	a := &appointment.Appointment{
		ID:       id,
		UserID:   userID,
		DocID:    "doc-1",
		SlotDate: "15_6_2025",
		SlotTime: id,
		Amount:   50,
		Date:     date,
	}
	if mutate != nil {
		mutate(a)
	}
	require.NoError(t, f.repo.CreateAppointment(context.Background(), a))
}

func (f *fixture) get(t *testing.T, id string) *appointment.Appointment {
	t.Helper()
	a, err := f.repo.GetAppointmentByID(context.Background(), id)
	require.NoError(t, err)
	return a
}

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		err  bool
	}{
		{"50", 5000, false},
		{"19.99", 1999, false},
		{"0.105", 11, false},
		{"0", 0, true},
		{"-5", 0, true},
		{"0.004", 0, true},
	}
	for _, tt := range tests {
		got, err := ToMinorUnits(decimal.RequireFromString(tt.in))
		if tt.err {
			assert.ErrorIs(t, err, ErrInvalidAmount, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestUpstreamErrorClassification(t *testing.T) {
	err := upstreamError("op", context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrUpstreamTimeout)

	err = upstreamError("op", &net.DNSError{IsTimeout: true})
	assert.ErrorIs(t, err, ErrUpstreamTimeout)

	err = upstreamError("op", errors.New("card declined"))
	assert.ErrorIs(t, err, ErrUpstream)
	assert.NotErrorIs(t, err, ErrUpstreamTimeout)
}

func TestCreateSessionRejectsNonPositiveAmount(t *testing.T) {
	f := newFixture(t)

	for _, amt := range []string{"0", "-10"} {
		_, err := f.svc.CreateSession(context.Background(), "user-1", decimal.RequireFromString(amt), "")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}
	assert.Empty(t, f.processor.created)
}

func TestCreateSessionRecordsPendingSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addAppointment(t, "a1", "user-1", 1, nil)

	sess, err := f.svc.CreateSession(ctx, "user-1", decimal.NewFromInt(50), "a1")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.URL)
	assert.Equal(t, sess.ID, f.get(t, "a1").PendingSessionID)

	require.Len(t, f.processor.created, 1)
	assert.Equal(t, "USD", f.processor.created[0].Currency)
}

func TestCreateSessionChecksAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addAppointment(t, "theirs", "user-2", 1, nil)
	f.addAppointment(t, "cancelled", "user-1", 2, func(a *appointment.Appointment) { a.Cancelled = true })
	f.addAppointment(t, "paid", "user-1", 3, func(a *appointment.Appointment) { a.Payment = true })

	_, err := f.svc.CreateSession(ctx, "user-1", decimal.NewFromInt(50), "theirs")
	assert.ErrorIs(t, err, appointment.ErrUnauthorized)

	_, err = f.svc.CreateSession(ctx, "user-1", decimal.NewFromInt(50), "cancelled")
	assert.ErrorIs(t, err, ErrNotPayable)

	_, err = f.svc.CreateSession(ctx, "user-1", decimal.NewFromInt(50), "paid")
	assert.ErrorIs(t, err, ErrNotPayable)

	_, err = f.svc.CreateSession(ctx, "user-1", decimal.NewFromInt(50), "missing")
	assert.ErrorIs(t, err, appointment.ErrAppointmentNotFound)

	assert.Empty(t, f.processor.created)
}

func TestCreateSessionUpstreamFailure(t *testing.T) {
	f := newFixture(t)
	f.processor.err = fmt.Errorf("%w: boom", ErrUpstreamTimeout)

	_, err := f.svc.CreateSession(context.Background(), "user-1", decimal.NewFromInt(50), "")
	assert.ErrorIs(t, err, ErrUpstreamTimeout)
}

func TestVerifyMarksMostRecentUnpaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addAppointment(t, "old", "user-1", 100, nil)
	f.addAppointment(t, "newest-cancelled", "user-1", 300, func(a *appointment.Appointment) { a.Cancelled = true })
	f.addAppointment(t, "recent", "user-1", 200, nil)
	f.addAppointment(t, "other-user", "user-2", 400, nil)

	sess, err := f.svc.CreateSession(ctx, "user-1", decimal.NewFromInt(50), "")
	require.NoError(t, err)
	f.processor.pay(sess.ID)

	appt, err := f.svc.Verify(ctx, "user-1", sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "recent", appt.ID)

	recent := f.get(t, "recent")
	assert.True(t, recent.Payment)
	assert.Equal(t, sess.ID, recent.SessionID)

	assert.False(t, f.get(t, "old").Payment)
	assert.False(t, f.get(t, "newest-cancelled").Payment)
	assert.False(t, f.get(t, "other-user").Payment)
}

func TestVerifyPrefersPendingSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addAppointment(t, "target", "user-1", 100, nil)
	f.addAppointment(t, "newer", "user-1", 200, nil)

	sess, err := f.svc.CreateSession(ctx, "user-1", decimal.NewFromInt(50), "target")
	require.NoError(t, err)
	f.processor.pay(sess.ID)

	appt, err := f.svc.Verify(ctx, "user-1", sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "target", appt.ID)
	assert.False(t, f.get(t, "newer").Payment)
}

func TestVerifyLinkedSessionNeverPaysAnotherAppointment(t *testing.T) {
	ctx := context.Background()

	t.Run("target cancelled", func(t *testing.T) {
		f := newFixture(t)
		f.addAppointment(t, "target", "user-1", 100, nil)
		f.addAppointment(t, "other", "user-1", 200, nil)

		sess, err := f.svc.CreateSession(ctx, "user-1", decimal.NewFromInt(50), "target")
		require.NoError(t, err)
		_, err = f.repo.MarkCancelled(ctx, "target")
		require.NoError(t, err)
		f.processor.pay(sess.ID)

		_, err = f.svc.Verify(ctx, "user-1", sess.ID)
		assert.ErrorIs(t, err, ErrNotPayable)
		assert.False(t, f.get(t, "target").Payment)
		assert.False(t, f.get(t, "other").Payment)
	})

	t.Run("target cancelled, provider without metadata", func(t *testing.T) {
		f := newFixture(t)
		f.processor.unlinked = true
		f.addAppointment(t, "target", "user-1", 100, nil)
		f.addAppointment(t, "other", "user-1", 200, nil)

		sess, err := f.svc.CreateSession(ctx, "user-1", decimal.NewFromInt(50), "target")
		require.NoError(t, err)
		_, err = f.repo.MarkCancelled(ctx, "target")
		require.NoError(t, err)
		f.processor.pay(sess.ID)

		_, err = f.svc.Verify(ctx, "user-1", sess.ID)
		assert.ErrorIs(t, err, ErrNotPayable)
		assert.False(t, f.get(t, "other").Payment)
	})

	t.Run("superseded session for a settled appointment", func(t *testing.T) {
		f := newFixture(t)
		f.addAppointment(t, "target", "user-1", 100, nil)
		f.addAppointment(t, "other", "user-1", 200, nil)

		first, err := f.svc.CreateSession(ctx, "user-1", decimal.NewFromInt(50), "target")
		require.NoError(t, err)
		second, err := f.svc.CreateSession(ctx, "user-1", decimal.NewFromInt(50), "target")
		require.NoError(t, err)

		f.processor.pay(second.ID)
		appt, err := f.svc.Verify(ctx, "user-1", second.ID)
		require.NoError(t, err)
		assert.Equal(t, "target", appt.ID)

		f.processor.pay(first.ID)
		_, err = f.svc.Verify(ctx, "user-1", first.ID)
		assert.ErrorIs(t, err, ErrNotPayable)
		assert.False(t, f.get(t, "other").Payment)
		assert.Equal(t, second.ID, f.get(t, "target").SessionID)
	})

	t.Run("unlinked session still uses the most recent unpaid", func(t *testing.T) {
		f := newFixture(t)
		f.addAppointment(t, "older", "user-1", 100, nil)
		f.addAppointment(t, "newer", "user-1", 200, nil)

		sess, err := f.svc.CreateSession(ctx, "user-1", decimal.NewFromInt(50), "")
		require.NoError(t, err)
		f.processor.pay(sess.ID)

		appt, err := f.svc.Verify(ctx, "user-1", sess.ID)
		require.NoError(t, err)
		assert.Equal(t, "newer", appt.ID)
	})
}

func TestVerifyIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addAppointment(t, "a1", "user-1", 100, nil)
	f.addAppointment(t, "a2", "user-1", 200, nil)

	sess, err := f.svc.CreateSession(ctx, "user-1", decimal.NewFromInt(50), "")
	require.NoError(t, err)
	f.processor.pay(sess.ID)

	first, err := f.svc.Verify(ctx, "user-1", sess.ID)
	require.NoError(t, err)
	second, err := f.svc.Verify(ctx, "user-1", sess.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.False(t, f.get(t, "a1").Payment)
}

func TestVerifyFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Verify(ctx, "user-1", "  ")
	assert.ErrorIs(t, err, ErrMissingSession)

	f.addAppointment(t, "a1", "user-1", 100, nil)
	sess, err := f.svc.CreateSession(ctx, "user-1", decimal.NewFromInt(50), "")
	require.NoError(t, err)

	_, err = f.svc.Verify(ctx, "user-1", sess.ID)
	assert.ErrorIs(t, err, ErrPaymentIncomplete)
	assert.False(t, f.get(t, "a1").Payment)

	f.processor.pay(sess.ID)
	_, err = f.svc.Verify(ctx, "user-2", sess.ID)
	assert.ErrorIs(t, err, ErrSessionMismatch)

	_, err = f.svc.Verify(ctx, "user-1", "cs_unknown")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestVerifyWithoutCandidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.CreateSession(ctx, "user-1", decimal.NewFromInt(50), "")
	require.NoError(t, err)
	f.processor.pay(sess.ID)

	_, err = f.svc.Verify(ctx, "user-1", sess.ID)
	assert.ErrorIs(t, err, appointment.ErrAppointmentNotFound)
}

func TestIssueReceipt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addAppointment(t, "a1", "user-1", 100, nil)
	sess, err := f.svc.CreateSession(ctx, "user-1", decimal.NewFromInt(50), "a1")
	require.NoError(t, err)

	_, err = f.svc.IssueReceipt(ctx, "user-1", sess.ID)
	assert.ErrorIs(t, err, appointment.ErrAppointmentNotFound)

	f.processor.pay(sess.ID)
	_, err = f.svc.Verify(ctx, "user-1", sess.ID)
	require.NoError(t, err)

	appt, err := f.svc.IssueReceipt(ctx, "user-1", sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "a1", appt.ID)
	require.Len(t, f.receipts.sent, 1)

	_, err = f.svc.IssueReceipt(ctx, "user-2", sess.ID)
	assert.ErrorIs(t, err, appointment.ErrAppointmentNotFound)

	f.receipts.refuse = true
	_, err = f.svc.IssueReceipt(ctx, "user-1", sess.ID)
	assert.ErrorIs(t, err, ErrReceiptNotSent)
}

func TestReconcilerRunOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addAppointment(t, "paid-later", "user-1", 100, nil)
	f.addAppointment(t, "still-open", "user-2", 200, nil)
	f.addAppointment(t, "no-session", "user-3", 300, nil)

	s1, err := f.svc.CreateSession(ctx, "user-1", decimal.NewFromInt(50), "paid-later")
	require.NoError(t, err)
	_, err = f.svc.CreateSession(ctx, "user-2", decimal.NewFromInt(50), "still-open")
	require.NoError(t, err)
	f.processor.pay(s1.ID)

	r := NewReconciler(f.repo, f.processor, zerolog.Nop())

	runCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	n, err := r.RunOnce(runCtx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, f.get(t, "paid-later").Payment)
	assert.False(t, f.get(t, "still-open").Payment)
	assert.False(t, f.get(t, "no-session").Payment)

	n, err = r.RunOnce(runCtx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
