package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Helpers

const userColumns = `id, name, email, password, image, phone, address, gender, dob, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Password,
		&u.Image,
		&u.Phone,
		&u.Address,
		&u.Gender,
		&u.DOB,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

const doctorColumns = `id, name, email, password, image, speciality, degree, experience, about, available, fees, address, created_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Email,
		&d.Password,
		&d.Image,
		&d.Speciality,
		&d.Degree,
		&d.Experience,
		&d.About,
		&d.Available,
		&d.Fees,
		&d.Address,
		&d.Date,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	d.SlotsBooked = make(SlotLedger)
	return &d, nil
}

const appointmentColumns = `id, user_id, doc_id, slot_date, slot_time, user_data, doc_data, amount, created_at,
	cancelled, payment, is_completed, session_id, pending_session_id`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.DocID,
		&a.SlotDate,
		&a.SlotTime,
		&a.UserData,
		&a.DocData,
		&a.Amount,
		&a.Date,
		&a.Cancelled,
		&a.Payment,
		&a.IsCompleted,
		&a.SessionID,
		&a.PendingSessionID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	result := make([]Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Users

func (r *PgRepository) CreateUser(ctx context.Context, u *User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, u.ID, u.Name, u.Email, u.Password, u.Image, u.Phone, u.Address, u.Gender, u.DOB, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *PgRepository) GetUserByID(ctx context.Context, id string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *PgRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (r *PgRepository) UpdateUserProfile(ctx context.Context, id string, upd ProfileUpdate) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET name = $2, phone = $3, address = $4, dob = $5, gender = $6
		WHERE id = $1
	`, id, upd.Name, upd.Phone, upd.Address, upd.DOB, upd.Gender)
	if err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PgRepository) UpdateUserImage(ctx context.Context, id, imageURL string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET image = $2 WHERE id = $1`, id, imageURL)
	if err != nil {
		return fmt.Errorf("update user image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PgRepository) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// Doctors

func (r *PgRepository) CreateDoctor(ctx context.Context, d *Doctor) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO doctors (`+doctorColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, d.ID, d.Name, d.Email, d.Password, d.Image, d.Speciality, d.Degree, d.Experience,
		d.About, d.Available, d.Fees, d.Address, d.Date)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert doctor: %w", err)
	}
	return nil
}

func (r *PgRepository) loadLedger(ctx context.Context, doctors map[string]*Doctor, ids []string) error {
	rows, err := r.pool.Query(ctx, `
		SELECT doctor_id, slot_date, slot_time
		FROM booked_slots
		WHERE doctor_id = ANY($1)
		ORDER BY position
	`, ids)
	if err != nil {
		return fmt.Errorf("load slot ledger: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var docID, date, slotTime string
		if err := rows.Scan(&docID, &date, &slotTime); err != nil {
			return err
		}
		if d, ok := doctors[docID]; ok {
			d.SlotsBooked[date] = append(d.SlotsBooked[date], slotTime)
		}
	}
	return rows.Err()
}

func (r *PgRepository) getDoctor(ctx context.Context, where string, arg string) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE `+where, arg)
	d, err := scanDoctor(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadLedger(ctx, map[string]*Doctor{d.ID: d}, []string{d.ID}); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id string) (*Doctor, error) {
	return r.getDoctor(ctx, `id = $1`, id)
}

func (r *PgRepository) GetDoctorByEmail(ctx context.Context, email string) (*Doctor, error) {
	return r.getDoctor(ctx, `lower(email) = lower($1)`, email)
}

func (r *PgRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+doctorColumns+` FROM doctors ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}

	var (
		list []*Doctor
		byID = make(map[string]*Doctor)
		ids  []string
	)
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, d)
		byID[d.ID] = d
		ids = append(ids, d.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) > 0 {
		if err := r.loadLedger(ctx, byID, ids); err != nil {
			return nil, err
		}
	}

	out := make([]Doctor, 0, len(list))
	for _, d := range list {
		out = append(out, *d)
	}
	return out, nil
}

func (r *PgRepository) UpdateDoctorProfile(ctx context.Context, id string, upd DoctorProfileUpdate) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE doctors
		SET fees = $2, address = $3, available = $4, about = $5, experience = $6
		WHERE id = $1
	`, id, upd.Fees, upd.Address, upd.Available, upd.About, upd.Experience)
	if err != nil {
		return fmt.Errorf("update doctor profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

func (r *PgRepository) ToggleAvailability(ctx context.Context, id string) (bool, error) {
	var available bool
	err := r.pool.QueryRow(ctx, `
		UPDATE doctors SET available = NOT available
		WHERE id = $1
		RETURNING available
	`, id).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrDoctorNotFound
		}
		return false, fmt.Errorf("toggle availability: %w", err)
	}
	return available, nil
}

// BookSlot relies on the booked_slots primary key: the insert is the
// add-if-absent, and it only selects an available doctor.
func (r *PgRepository) BookSlot(ctx context.Context, doctorID, date, slotTime string) error {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO booked_slots (doctor_id, slot_date, slot_time)
		SELECT id, $2, $3 FROM doctors WHERE id = $1 AND available
		ON CONFLICT DO NOTHING
	`, doctorID, date, slotTime)
	if err != nil {
		return fmt.Errorf("book slot: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var available bool
	err = r.pool.QueryRow(ctx, `SELECT available FROM doctors WHERE id = $1`, doctorID).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDoctorNotFound
		}
		return fmt.Errorf("classify slot booking: %w", err)
	}
	if !available {
		return ErrSlotUnavailable
	}
	return ErrSlotConflict
}

func (r *PgRepository) ReleaseSlot(ctx context.Context, doctorID, date, slotTime string) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM booked_slots
		WHERE doctor_id = $1 AND slot_date = $2 AND slot_time = $3
	`, doctorID, date, slotTime)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

// Appointments

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, a.ID, a.UserID, a.DocID, a.SlotDate, a.SlotTime, a.UserData, a.DocData, a.Amount, a.Date,
		a.Cancelled, a.Payment, a.IsCompleted, a.SessionID, a.PendingSessionID)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsByUser(ctx context.Context, userID string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by user: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListAppointmentsByDoctor(ctx context.Context, docID string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doc_id = $1
		ORDER BY created_at
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by doctor: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListAppointments(ctx context.Context) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+appointmentColumns+` FROM appointments ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) MarkCancelled(ctx context.Context, id string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET cancelled = true
		WHERE id = $1
		  AND NOT cancelled
		RETURNING `+appointmentColumns, id)
	return scanAppointment(row)
}

func (r *PgRepository) MarkCompleted(ctx context.Context, id string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET is_completed = true
		WHERE id = $1
		  AND NOT cancelled
		RETURNING `+appointmentColumns, id)
	return scanAppointment(row)
}

func (r *PgRepository) SetPendingSession(ctx context.Context, id, sessionID string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE appointments SET pending_session_id = $2 WHERE id = $1`, id, sessionID)
	if err != nil {
		return fmt.Errorf("set pending session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) MarkPaidByPendingSession(ctx context.Context, userID, sessionID string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET payment = true, session_id = $2
		WHERE user_id = $1
		  AND pending_session_id = $2
		  AND NOT payment
		  AND NOT cancelled
		RETURNING `+appointmentColumns, userID, sessionID)
	return scanAppointment(row)
}

// MarkLatestUnpaidPaid picks the newest unpaid, non-cancelled appointment of
// the user. Rows locked by a concurrent verification are skipped, so two
// sessions never settle the same appointment.
func (r *PgRepository) MarkLatestUnpaidPaid(ctx context.Context, userID, sessionID string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET payment = true, session_id = $2
		WHERE id = (
			SELECT id FROM appointments
			WHERE user_id = $1 AND NOT payment AND NOT cancelled
			ORDER BY created_at DESC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		  AND NOT payment
		RETURNING `+appointmentColumns, userID, sessionID)
	return scanAppointment(row)
}

func (r *PgRepository) FindPaidBySession(ctx context.Context, userID, sessionID string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE user_id = $1 AND payment AND session_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, sessionID)
	return scanAppointment(row)
}

func (r *PgRepository) FindByPendingSession(ctx context.Context, userID, sessionID string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE user_id = $1 AND pending_session_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, sessionID)
	return scanAppointment(row)
}

func (r *PgRepository) ListPendingSessions(ctx context.Context, limit int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE pending_session_id <> '' AND NOT payment AND NOT cancelled
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending sessions: %w", err)
	}
	return collectAppointments(rows)
}
