package appointment

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryRepository keeps everything in process. It backs STORE_DRIVER=memory
// and the service tests; one mutex makes every method atomic.
type MemoryRepository struct {
	mu           sync.Mutex
	users        map[string]*User
	doctors      map[string]*Doctor
	appointments map[string]*Appointment
	seq          int64
	order        map[string]int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:        make(map[string]*User),
		doctors:      make(map[string]*Doctor),
		appointments: make(map[string]*Appointment),
		order:        make(map[string]int64),
	}
}

func (r *MemoryRepository) Ping(ctx context.Context) error { return nil }

// Users

func (r *MemoryRepository) CreateUser(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrEmailTaken
		}
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetUserByID(ctx context.Context, id string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *MemoryRepository) UpdateUserProfile(ctx context.Context, id string, upd ProfileUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.Name = upd.Name
	u.Phone = upd.Phone
	u.Address = upd.Address
	u.DOB = upd.DOB
	u.Gender = upd.Gender
	return nil
}

func (r *MemoryRepository) UpdateUserImage(ctx context.Context, id, imageURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.Image = imageURL
	return nil
}

func (r *MemoryRepository) CountUsers(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}

// Doctors

func (r *MemoryRepository) CreateDoctor(ctx context.Context, d *Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.doctors {
		if strings.EqualFold(existing.Email, d.Email) {
			return ErrEmailTaken
		}
	}
	cp := *d
	cp.SlotsBooked = d.SlotsBooked.clone()
	r.doctors[d.ID] = &cp
	return nil
}

func (r *MemoryRepository) copyDoctor(d *Doctor) *Doctor {
	cp := *d
	cp.SlotsBooked = d.SlotsBooked.clone()
	return &cp
}

func (r *MemoryRepository) GetDoctorByID(ctx context.Context, id string) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return r.copyDoctor(d), nil
}

func (r *MemoryRepository) GetDoctorByEmail(ctx context.Context, email string) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.doctors {
		if strings.EqualFold(d.Email, email) {
			return r.copyDoctor(d), nil
		}
	}
	return nil, ErrDoctorNotFound
}

func (r *MemoryRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Doctor, 0, len(r.doctors))
	for _, d := range r.doctors {
		out = append(out, *r.copyDoctor(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (r *MemoryRepository) UpdateDoctorProfile(ctx context.Context, id string, upd DoctorProfileUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.doctors[id]
	if !ok {
		return ErrDoctorNotFound
	}
	d.Fees = upd.Fees
	d.Address = upd.Address
	d.Available = upd.Available
	d.About = upd.About
	d.Experience = upd.Experience
	return nil
}

func (r *MemoryRepository) ToggleAvailability(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.doctors[id]
	if !ok {
		return false, ErrDoctorNotFound
	}
	d.Available = !d.Available
	return d.Available, nil
}

func (r *MemoryRepository) BookSlot(ctx context.Context, doctorID, date, slotTime string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.doctors[doctorID]
	if !ok {
		return ErrDoctorNotFound
	}
	if !d.Available {
		return ErrSlotUnavailable
	}
	if d.SlotsBooked == nil {
		d.SlotsBooked = make(SlotLedger)
	}
	if !d.SlotsBooked.add(date, slotTime) {
		return ErrSlotConflict
	}
	return nil
}

func (r *MemoryRepository) ReleaseSlot(ctx context.Context, doctorID, date, slotTime string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.doctors[doctorID]
	if !ok {
		return ErrDoctorNotFound
	}
	d.SlotsBooked.remove(date, slotTime)
	return nil
}

// Appointments

func (r *MemoryRepository) CreateAppointment(ctx context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *a
	r.appointments[a.ID] = &cp
	r.seq++
	r.order[a.ID] = r.seq
	return nil
}

func (r *MemoryRepository) GetAppointmentByID(ctx context.Context, id string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

// filter returns matching appointments oldest first; the caller holds mu.
func (r *MemoryRepository) filter(match func(*Appointment) bool) []Appointment {
	out := make([]Appointment, 0)
	for _, a := range r.appointments {
		if match(a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return r.order[out[i].ID] < r.order[out[j].ID]
	})
	return out
}

func (r *MemoryRepository) ListAppointmentsByUser(ctx context.Context, userID string) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(a *Appointment) bool { return a.UserID == userID }), nil
}

func (r *MemoryRepository) ListAppointmentsByDoctor(ctx context.Context, docID string) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(a *Appointment) bool { return a.DocID == docID }), nil
}

func (r *MemoryRepository) ListAppointments(ctx context.Context) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(*Appointment) bool { return true }), nil
}

func (r *MemoryRepository) MarkCancelled(ctx context.Context, id string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Cancelled {
		return nil, ErrAppointmentNotFound
	}
	a.Cancelled = true
	cp := *a
	return &cp, nil
}

func (r *MemoryRepository) MarkCompleted(ctx context.Context, id string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Cancelled {
		return nil, ErrAppointmentNotFound
	}
	a.IsCompleted = true
	cp := *a
	return &cp, nil
}

func (r *MemoryRepository) SetPendingSession(ctx context.Context, id, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	a.PendingSessionID = sessionID
	return nil
}

func (r *MemoryRepository) markPaid(a *Appointment, sessionID string) *Appointment {
	a.Payment = true
	a.SessionID = sessionID
	cp := *a
	return &cp
}

func (r *MemoryRepository) MarkPaidByPendingSession(ctx context.Context, userID, sessionID string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matches := r.filter(func(a *Appointment) bool {
		return a.UserID == userID && a.PendingSessionID == sessionID && !a.Payment && !a.Cancelled
	})
	if len(matches) == 0 {
		return nil, ErrAppointmentNotFound
	}
	return r.markPaid(r.appointments[matches[len(matches)-1].ID], sessionID), nil
}

func (r *MemoryRepository) MarkLatestUnpaidPaid(ctx context.Context, userID, sessionID string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matches := r.filter(func(a *Appointment) bool {
		return a.UserID == userID && !a.Payment && !a.Cancelled
	})
	if len(matches) == 0 {
		return nil, ErrAppointmentNotFound
	}
	return r.markPaid(r.appointments[matches[len(matches)-1].ID], sessionID), nil
}

func (r *MemoryRepository) FindPaidBySession(ctx context.Context, userID, sessionID string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matches := r.filter(func(a *Appointment) bool {
		return a.UserID == userID && a.Payment && a.SessionID == sessionID
	})
	if len(matches) == 0 {
		return nil, ErrAppointmentNotFound
	}
	return &matches[len(matches)-1], nil
}

func (r *MemoryRepository) FindByPendingSession(ctx context.Context, userID, sessionID string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matches := r.filter(func(a *Appointment) bool {
		return a.UserID == userID && a.PendingSessionID == sessionID
	})
	if len(matches) == 0 {
		return nil, ErrAppointmentNotFound
	}
	return &matches[len(matches)-1], nil
}

func (r *MemoryRepository) ListPendingSessions(ctx context.Context, limit int) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.filter(func(a *Appointment) bool {
		return a.PendingSessionID != "" && !a.Payment && !a.Cancelled
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
