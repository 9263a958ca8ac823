package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthline/booking/internal/auth"
	redisclient "github.com/healthline/booking/internal/redis"
)

var (
	ErrMissingFields    = errors.New("all fields are required")
	ErrUnauthorized     = errors.New("not authorized for this appointment")
	ErrAlreadyCancelled = errors.New("appointment is already cancelled")
	ErrSlotBeingBooked  = fmt.Errorf("%w: booking in progress", ErrSlotConflict)
)

// Notifier receives booking events after the appointment is stored. It must
// not block; delivery failures stay on the notifier's side.
type Notifier interface {
	BookingConfirmed(a Appointment)
}

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// BookSlot reserves (date, time) on the doctor's ledger under the slot lock.
func (s *Service) BookSlot(ctx context.Context, doctorID, date, slotTime string) error {
	if err := ValidateSlot(date, slotTime); err != nil {
		return err
	}
	return s.withSlotLock(ctx, doctorID, date, slotTime, func(lockCtx context.Context) error {
		return s.repo.BookSlot(lockCtx, doctorID, date, slotTime)
	})
}

// ReleaseSlot frees (date, time); releasing a slot that was never booked is a no-op.
func (s *Service) ReleaseSlot(ctx context.Context, doctorID, date, slotTime string) error {
	return s.repo.ReleaseSlot(ctx, doctorID, date, slotTime)
}

// withSlotLock runs fn under the slot lock. When the lock store is down fn
// still runs: the store's conditional write alone keeps the slot single-booked.
func (s *Service) withSlotLock(ctx context.Context, doctorID, date, slotTime string, fn func(context.Context) error) error {
	err := s.locker.WithSlotLock(ctx, redisclient.SlotKey(doctorID, date, slotTime), fn)
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		return ErrSlotBeingBooked
	case errors.Is(err, redisclient.ErrLockUnavailable):
		s.logger.Warn().Err(err).
			Str("doctor_id", doctorID).
			Str("slot_date", date).
			Str("slot_time", slotTime).
			Msg("slot lock unavailable, booking without it")
		return fn(ctx)
	}
	return err
}

// Book creates an appointment for userID with the doctor at (date, time).
// User and doctor are copied into the appointment as snapshots.
func (s *Service) Book(ctx context.Context, userID, doctorID, date, slotTime string) (*Appointment, error) {
	if strings.TrimSpace(doctorID) == "" || strings.TrimSpace(date) == "" || strings.TrimSpace(slotTime) == "" {
		return nil, ErrMissingFields
	}
	if err := ValidateSlot(date, slotTime); err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	doctor, err := s.repo.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if !doctor.Available {
		return nil, ErrSlotUnavailable
	}

	var created *Appointment

	err = s.withSlotLock(ctx, doctorID, date, slotTime, func(lockCtx context.Context) error {
		if err := s.repo.BookSlot(lockCtx, doctorID, date, slotTime); err != nil {
			return err
		}

		appt := &Appointment{
			ID:       uuid.NewString(),
			UserID:   user.ID,
			DocID:    doctor.ID,
			SlotDate: date,
			SlotTime: slotTime,
			UserData: SnapshotUser(user),
			DocData:  SnapshotDoctor(doctor),
			Amount:   doctor.Fees,
			Date:     s.now().UnixMilli(),
		}

		if err := s.repo.CreateAppointment(lockCtx, appt); err != nil {
			if relErr := s.repo.ReleaseSlot(context.WithoutCancel(lockCtx), doctorID, date, slotTime); relErr != nil {
				s.logger.Error().Err(relErr).
					Str("doctor_id", doctorID).
					Str("slot_date", date).
					Str("slot_time", slotTime).
					Msg("failed to release slot after appointment insert error")
			}
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", created.ID).
		Str("user_id", userID).
		Str("doctor_id", doctorID).
		Str("slot_date", date).
		Str("slot_time", slotTime).
		Msg("appointment booked")

	if s.notifier != nil {
		s.notifier.BookingConfirmed(*created)
	}

	return created, nil
}

func authorizeActor(a *Appointment, actor auth.Principal) error {
	switch actor.Role {
	case auth.RoleAdmin:
		if actor.IsAdmin {
			return nil
		}
	case auth.RoleUser:
		if a.UserID == actor.ID {
			return nil
		}
	case auth.RoleDoctor:
		if a.DocID == actor.ID {
			return nil
		}
	}
	return ErrUnauthorized
}

// Cancel marks the appointment cancelled and frees exactly its slot. Only the
// owning user, the owning doctor or an admin may cancel.
func (s *Service) Cancel(ctx context.Context, appointmentID string, actor auth.Principal) (*Appointment, error) {
	if strings.TrimSpace(appointmentID) == "" {
		return nil, ErrMissingFields
	}

	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if err := authorizeActor(appt, actor); err != nil {
		return nil, err
	}
	if appt.Cancelled {
		return nil, ErrAlreadyCancelled
	}

	updated, err := s.repo.MarkCancelled(ctx, appt.ID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// cancelled concurrently between the read and the conditional update
			return nil, ErrAlreadyCancelled
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	if err := s.repo.ReleaseSlot(ctx, appt.DocID, appt.SlotDate, appt.SlotTime); err != nil {
		return nil, fmt.Errorf("release slot: %w", err)
	}

	s.logger.Info().
		Str("appointment_id", appt.ID).
		Str("actor_role", string(actor.Role)).
		Msg("appointment cancelled")

	return updated, nil
}

// Complete marks the appointment completed; only its doctor may do so.
func (s *Service) Complete(ctx context.Context, appointmentID, doctorID string) (*Appointment, error) {
	if strings.TrimSpace(appointmentID) == "" {
		return nil, ErrMissingFields
	}

	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.DocID != doctorID {
		return nil, ErrUnauthorized
	}
	if appt.Cancelled {
		return nil, ErrAlreadyCancelled
	}

	updated, err := s.repo.MarkCompleted(ctx, appt.ID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrAlreadyCancelled
		}
		return nil, fmt.Errorf("complete appointment: %w", err)
	}
	return updated, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]Appointment, error) {
	appts, err := s.repo.ListAppointmentsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by user: %w", err)
	}
	return appts, nil
}

func (s *Service) ListForDoctor(ctx context.Context, doctorID string) ([]Appointment, error) {
	appts, err := s.repo.ListAppointmentsByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by doctor: %w", err)
	}
	return appts, nil
}

func (s *Service) ListAll(ctx context.Context) ([]Appointment, error) {
	appts, err := s.repo.ListAppointments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

func (s *Service) DoctorDashboard(ctx context.Context, doctorID string) (DoctorDashboard, error) {
	appts, err := s.repo.ListAppointmentsByDoctor(ctx, doctorID)
	if err != nil {
		return DoctorDashboard{}, fmt.Errorf("list appointments by doctor: %w", err)
	}
	return BuildDoctorDashboard(appts), nil
}

func (s *Service) AdminDashboard(ctx context.Context) (AdminDashboard, error) {
	doctors, err := s.repo.ListDoctors(ctx)
	if err != nil {
		return AdminDashboard{}, fmt.Errorf("list doctors: %w", err)
	}
	patients, err := s.repo.CountUsers(ctx)
	if err != nil {
		return AdminDashboard{}, err
	}
	appts, err := s.repo.ListAppointments(ctx)
	if err != nil {
		return AdminDashboard{}, fmt.Errorf("list appointments: %w", err)
	}

	return AdminDashboard{
		Doctors:            len(doctors),
		Appointments:       len(appts),
		Patients:           patients,
		LatestAppointments: latest(appts, latestCount),
	}, nil
}
