package appointment

import (
	"context"
	"errors"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrEmailTaken          = errors.New("email already registered")

	// Slot ledger outcomes.
	ErrSlotUnavailable = errors.New("doctor is not available")
	ErrSlotConflict    = errors.New("slot already booked")
)

type UserRepository interface {
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUserProfile(ctx context.Context, id string, upd ProfileUpdate) error
	UpdateUserImage(ctx context.Context, id, imageURL string) error
	CountUsers(ctx context.Context) (int64, error)
}

type DoctorRepository interface {
	CreateDoctor(ctx context.Context, d *Doctor) error
	GetDoctorByID(ctx context.Context, id string) (*Doctor, error)
	GetDoctorByEmail(ctx context.Context, email string) (*Doctor, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)
	UpdateDoctorProfile(ctx context.Context, id string, upd DoctorProfileUpdate) error
	// ToggleAvailability flips the flag atomically and returns the new value.
	ToggleAvailability(ctx context.Context, id string) (bool, error)

	// BookSlot adds time to the doctor's ledger at date only if the doctor
	// is available and the time is absent, as a single conditional write.
	BookSlot(ctx context.Context, doctorID, date, time string) error
	// ReleaseSlot removes time from date; absent entries are a no-op.
	ReleaseSlot(ctx context.Context, doctorID, date, time string) error
}

type AppointmentRepository interface {
	CreateAppointment(ctx context.Context, a *Appointment) error
	GetAppointmentByID(ctx context.Context, id string) (*Appointment, error)
	ListAppointmentsByUser(ctx context.Context, userID string) ([]Appointment, error)
	ListAppointmentsByDoctor(ctx context.Context, docID string) ([]Appointment, error)
	ListAppointments(ctx context.Context) ([]Appointment, error)

	// MarkCancelled and MarkCompleted only match a non-cancelled appointment;
	// ErrAppointmentNotFound means nothing matched the condition.
	MarkCancelled(ctx context.Context, id string) (*Appointment, error)
	MarkCompleted(ctx context.Context, id string) (*Appointment, error)

	// Payment reconciliation
	SetPendingSession(ctx context.Context, id, sessionID string) error
	MarkPaidByPendingSession(ctx context.Context, userID, sessionID string) (*Appointment, error)
	MarkLatestUnpaidPaid(ctx context.Context, userID, sessionID string) (*Appointment, error)
	FindPaidBySession(ctx context.Context, userID, sessionID string) (*Appointment, error)
	// FindByPendingSession returns the user's appointment linked to sessionID
	// regardless of its payment or cancellation state.
	FindByPendingSession(ctx context.Context, userID, sessionID string) (*Appointment, error)
	ListPendingSessions(ctx context.Context, limit int) ([]Appointment, error)
}

// Repository contains all DB interactions needed by the services.
type Repository interface {
	UserRepository
	DoctorRepository
	AppointmentRepository

	Ping(ctx context.Context) error
}
