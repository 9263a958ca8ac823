package appointment

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthline/booking/internal/db"
)

// Every store runs the same behaviour checks. The postgres and mongo stores
// need a live server and are skipped unless TEST_POSTGRES_DSN or
// TEST_MONGO_URI points at one.

func TestMemoryRepository(t *testing.T) {
	runRepositoryTests(t, func(t *testing.T) Repository {
		return NewMemoryRepository()
	})
}

func TestPgRepository(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	runRepositoryTests(t, func(t *testing.T) Repository {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pool, err := db.ConnectPostgres(ctx, dsn)
		require.NoError(t, err)
		require.NoError(t, db.EnsureSchema(ctx, pool))

		truncate := func() {
			_, err := pool.Exec(context.Background(), `TRUNCATE appointments, booked_slots, doctors, users`)
			require.NoError(t, err)
		}
		truncate()
		t.Cleanup(func() {
			truncate()
			pool.Close()
		})
		return NewPgRepository(pool)
	})
}

func TestMongoRepository(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}

	runRepositoryTests(t, func(t *testing.T) Repository {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client, err := db.ConnectMongo(ctx, uri)
		require.NoError(t, err)

		dbName := "healthline_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
		repo := NewMongoRepository(client, dbName)
		require.NoError(t, repo.EnsureIndexes(ctx))

		t.Cleanup(func() {
			ctx := context.Background()
			_ = client.Database(dbName).Drop(ctx)
			_ = client.Disconnect(ctx)
		})
		return repo
	})
}

type repoFixture struct {
	repo   Repository
	user   *User
	doctor *Doctor
}

func seedRepo(t *testing.T, repo Repository) *repoFixture {
	t.Helper()
	ctx := context.Background()

	user := &User{ID: uuid.NewString(), Name: "Ada Patient", Email: uuid.NewString() + "@example.com", Password: "x"}
	require.NoError(t, repo.CreateUser(ctx, user))

	doctor := &Doctor{
		ID:         uuid.NewString(),
		Name:       "Dr. Grey",
		Email:      uuid.NewString() + "@example.com",
		Password:   "x",
		Speciality: "General physician",
		Degree:     "MBBS",
		Experience: "4 Years",
		About:      "Primary care.",
		Available:  true,
		Fees:       50,
		Date:       time.Now().UnixMilli(),
	}
	require.NoError(t, repo.CreateDoctor(ctx, doctor))

	return &repoFixture{repo: repo, user: user, doctor: doctor}
}

func (f *repoFixture) ledger(t *testing.T) SlotLedger {
	t.Helper()
	d, err := f.repo.GetDoctorByID(context.Background(), f.doctor.ID)
	require.NoError(t, err)
	return d.SlotsBooked
}

func (f *repoFixture) appointment(t *testing.T, id string, date int64) *Appointment {
	t.Helper()
	a := &Appointment{
		ID:       id,
		UserID:   f.user.ID,
		DocID:    f.doctor.ID,
		SlotDate: "15_3_2030",
		SlotTime: "10:00 AM",
		UserData: SnapshotUser(f.user),
		DocData:  SnapshotDoctor(f.doctor),
		Amount:   f.doctor.Fees,
		Date:     date,
	}
	require.NoError(t, f.repo.CreateAppointment(context.Background(), a))
	return a
}

func (f *repoFixture) get(t *testing.T, id string) *Appointment {
	t.Helper()
	a, err := f.repo.GetAppointmentByID(context.Background(), id)
	require.NoError(t, err)
	return a
}

func runRepositoryTests(t *testing.T, newRepo func(t *testing.T) Repository) {
	t.Run("book slot rejects second booking", func(t *testing.T) {
		f := seedRepo(t, newRepo(t))
		ctx := context.Background()

		require.NoError(t, f.repo.BookSlot(ctx, f.doctor.ID, "15_3_2030", "10:00 AM"))
		err := f.repo.BookSlot(ctx, f.doctor.ID, "15_3_2030", "10:00 AM")
		assert.ErrorIs(t, err, ErrSlotConflict)

		require.NoError(t, f.repo.BookSlot(ctx, f.doctor.ID, "15_3_2030", "10:30 AM"))
		assert.Equal(t, []string{"10:00 AM", "10:30 AM"}, f.ledger(t)["15_3_2030"])
	})

	t.Run("book slot for unknown doctor", func(t *testing.T) {
		f := seedRepo(t, newRepo(t))
		err := f.repo.BookSlot(context.Background(), "missing", "15_3_2030", "10:00 AM")
		assert.ErrorIs(t, err, ErrDoctorNotFound)
	})

	t.Run("book slot for unavailable doctor writes nothing", func(t *testing.T) {
		f := seedRepo(t, newRepo(t))
		ctx := context.Background()

		available, err := f.repo.ToggleAvailability(ctx, f.doctor.ID)
		require.NoError(t, err)
		require.False(t, available)

		err = f.repo.BookSlot(ctx, f.doctor.ID, "15_3_2030", "10:00 AM")
		assert.ErrorIs(t, err, ErrSlotUnavailable)
		assert.False(t, f.ledger(t).Has("15_3_2030", "10:00 AM"))
	})

	t.Run("release slot", func(t *testing.T) {
		f := seedRepo(t, newRepo(t))
		ctx := context.Background()

		require.NoError(t, f.repo.ReleaseSlot(ctx, f.doctor.ID, "15_3_2030", "10:00 AM"))

		require.NoError(t, f.repo.BookSlot(ctx, f.doctor.ID, "15_3_2030", "10:00 AM"))
		require.NoError(t, f.repo.BookSlot(ctx, f.doctor.ID, "15_3_2030", "11:00 AM"))
		require.NoError(t, f.repo.ReleaseSlot(ctx, f.doctor.ID, "15_3_2030", "10:00 AM"))

		ledger := f.ledger(t)
		assert.False(t, ledger.Has("15_3_2030", "10:00 AM"))
		assert.True(t, ledger.Has("15_3_2030", "11:00 AM"))

		require.NoError(t, f.repo.BookSlot(ctx, f.doctor.ID, "15_3_2030", "10:00 AM"))
	})

	t.Run("concurrent bookings of one slot", func(t *testing.T) {
		f := seedRepo(t, newRepo(t))
		ctx := context.Background()

		const workers = 12
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			conflicts int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := f.repo.BookSlot(ctx, f.doctor.ID, "16_3_2030", "09:00 AM")
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case errors.Is(err, ErrSlotConflict):
					conflicts++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, successes)
		assert.Equal(t, workers-1, conflicts)
		assert.Equal(t, []string{"09:00 AM"}, f.ledger(t)["16_3_2030"])
	})

	t.Run("conditional cancel and complete", func(t *testing.T) {
		f := seedRepo(t, newRepo(t))
		ctx := context.Background()
		f.appointment(t, "a1", 1000)
		f.appointment(t, "a2", 2000)

		done, err := f.repo.MarkCompleted(ctx, "a1")
		require.NoError(t, err)
		assert.True(t, done.IsCompleted)

		cancelled, err := f.repo.MarkCancelled(ctx, "a2")
		require.NoError(t, err)
		assert.True(t, cancelled.Cancelled)

		_, err = f.repo.MarkCancelled(ctx, "a2")
		assert.ErrorIs(t, err, ErrAppointmentNotFound)
		_, err = f.repo.MarkCompleted(ctx, "a2")
		assert.ErrorIs(t, err, ErrAppointmentNotFound)
		assert.False(t, f.get(t, "a2").IsCompleted)

		_, err = f.repo.MarkCancelled(ctx, "missing")
		assert.ErrorIs(t, err, ErrAppointmentNotFound)
	})

	t.Run("latest unpaid selection", func(t *testing.T) {
		f := seedRepo(t, newRepo(t))
		ctx := context.Background()
		f.appointment(t, "old", 1000)
		f.appointment(t, "mid", 2000)
		f.appointment(t, "paid", 3000)
		f.appointment(t, "cancelled", 4000)

		_, err := f.repo.MarkLatestUnpaidPaid(ctx, f.user.ID, "sess-paid")
		require.NoError(t, err)
		_, err = f.repo.MarkCancelled(ctx, "cancelled")
		require.NoError(t, err)

		got, err := f.repo.MarkLatestUnpaidPaid(ctx, f.user.ID, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, "mid", got.ID)
		assert.True(t, got.Payment)
		assert.Equal(t, "sess-1", got.SessionID)

		got, err = f.repo.MarkLatestUnpaidPaid(ctx, f.user.ID, "sess-2")
		require.NoError(t, err)
		assert.Equal(t, "old", got.ID)

		_, err = f.repo.MarkLatestUnpaidPaid(ctx, f.user.ID, "sess-3")
		assert.ErrorIs(t, err, ErrAppointmentNotFound)
		assert.False(t, f.get(t, "cancelled").Payment)

		found, err := f.repo.FindPaidBySession(ctx, f.user.ID, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, "mid", found.ID)
	})

	t.Run("pending sessions", func(t *testing.T) {
		f := seedRepo(t, newRepo(t))
		ctx := context.Background()
		f.appointment(t, "none", 1000)
		f.appointment(t, "open", 2000)
		f.appointment(t, "settled", 3000)
		f.appointment(t, "dropped", 4000)

		require.NoError(t, f.repo.SetPendingSession(ctx, "open", "sess-open"))
		require.NoError(t, f.repo.SetPendingSession(ctx, "settled", "sess-settled"))
		require.NoError(t, f.repo.SetPendingSession(ctx, "dropped", "sess-dropped"))
		assert.ErrorIs(t, f.repo.SetPendingSession(ctx, "missing", "sess-x"), ErrAppointmentNotFound)

		paid, err := f.repo.MarkPaidByPendingSession(ctx, f.user.ID, "sess-settled")
		require.NoError(t, err)
		assert.Equal(t, "settled", paid.ID)
		_, err = f.repo.MarkCancelled(ctx, "dropped")
		require.NoError(t, err)

		_, err = f.repo.MarkPaidByPendingSession(ctx, f.user.ID, "sess-dropped")
		assert.ErrorIs(t, err, ErrAppointmentNotFound)
		_, err = f.repo.MarkPaidByPendingSession(ctx, "someone-else", "sess-open")
		assert.ErrorIs(t, err, ErrAppointmentNotFound)

		pending, err := f.repo.ListPendingSessions(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "open", pending[0].ID)

		linked, err := f.repo.FindByPendingSession(ctx, f.user.ID, "sess-dropped")
		require.NoError(t, err)
		assert.Equal(t, "dropped", linked.ID)
		assert.True(t, linked.Cancelled)

		_, err = f.repo.FindByPendingSession(ctx, f.user.ID, "sess-unknown")
		assert.ErrorIs(t, err, ErrAppointmentNotFound)
	})
}
