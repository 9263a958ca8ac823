package appointment

import (
	"time"
)

type Address struct {
	Line1 string `json:"line1" bson:"line1"`
	Line2 string `json:"line2" bson:"line2"`
}

type User struct {
	ID        string    `json:"_id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Email     string    `json:"email" bson:"email"`
	Password  string    `json:"-" bson:"password"`
	Image     string    `json:"image" bson:"image"`
	Phone     string    `json:"phone" bson:"phone"`
	Address   Address   `json:"address" bson:"address"`
	Gender    string    `json:"gender" bson:"gender"`
	DOB       string    `json:"dob" bson:"dob"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// SlotLedger maps a slot date key to the time labels booked on that date,
// in booking order.
type SlotLedger map[string][]string

// Has reports whether time is booked on date.
func (l SlotLedger) Has(date, time string) bool {
	for _, t := range l[date] {
		if t == time {
			return true
		}
	}
	return false
}

type Doctor struct {
	ID          string     `json:"_id" bson:"_id"`
	Name        string     `json:"name" bson:"name"`
	Email       string     `json:"email,omitempty" bson:"email"`
	Password    string     `json:"-" bson:"password"`
	Image       string     `json:"image" bson:"image"`
	Speciality  string     `json:"speciality" bson:"speciality"`
	Degree      string     `json:"degree" bson:"degree"`
	Experience  string     `json:"experience" bson:"experience"`
	About       string     `json:"about" bson:"about"`
	Available   bool       `json:"available" bson:"available"`
	Fees        float64    `json:"fees" bson:"fees"`
	Address     Address    `json:"address" bson:"address"`
	Date        int64      `json:"date" bson:"date"`
	SlotsBooked SlotLedger `json:"slots_booked" bson:"slots_booked"`
}

// UserSnapshot is the copy of a user embedded in an appointment at booking
// time. It is never refreshed, so it can drift from the live User.
type UserSnapshot struct {
	ID      string  `json:"_id" bson:"_id"`
	Name    string  `json:"name" bson:"name"`
	Email   string  `json:"email" bson:"email"`
	Image   string  `json:"image" bson:"image"`
	Phone   string  `json:"phone" bson:"phone"`
	Address Address `json:"address" bson:"address"`
	Gender  string  `json:"gender" bson:"gender"`
	DOB     string  `json:"dob" bson:"dob"`
}

// DoctorSnapshot is the booking-time copy of a doctor, without the ledger.
type DoctorSnapshot struct {
	ID         string  `json:"_id" bson:"_id"`
	Name       string  `json:"name" bson:"name"`
	Email      string  `json:"email" bson:"email"`
	Image      string  `json:"image" bson:"image"`
	Speciality string  `json:"speciality" bson:"speciality"`
	Degree     string  `json:"degree" bson:"degree"`
	Experience string  `json:"experience" bson:"experience"`
	About      string  `json:"about" bson:"about"`
	Fees       float64 `json:"fees" bson:"fees"`
	Address    Address `json:"address" bson:"address"`
}

func SnapshotUser(u *User) UserSnapshot {
	return UserSnapshot{
		ID:      u.ID,
		Name:    u.Name,
		Email:   u.Email,
		Image:   u.Image,
		Phone:   u.Phone,
		Address: u.Address,
		Gender:  u.Gender,
		DOB:     u.DOB,
	}
}

func SnapshotDoctor(d *Doctor) DoctorSnapshot {
	return DoctorSnapshot{
		ID:         d.ID,
		Name:       d.Name,
		Email:      d.Email,
		Image:      d.Image,
		Speciality: d.Speciality,
		Degree:     d.Degree,
		Experience: d.Experience,
		About:      d.About,
		Fees:       d.Fees,
		Address:    d.Address,
	}
}

type Appointment struct {
	ID               string         `json:"_id" bson:"_id"`
	UserID           string         `json:"userId" bson:"userId"`
	DocID            string         `json:"docId" bson:"docId"`
	SlotDate         string         `json:"slotDate" bson:"slotDate"`
	SlotTime         string         `json:"slotTime" bson:"slotTime"`
	UserData         UserSnapshot   `json:"userData" bson:"userData"`
	DocData          DoctorSnapshot `json:"docData" bson:"docData"`
	Amount           float64        `json:"amount" bson:"amount"`
	Date             int64          `json:"date" bson:"date"`
	Cancelled        bool           `json:"cancelled" bson:"cancelled"`
	Payment          bool           `json:"payment" bson:"payment"`
	IsCompleted      bool           `json:"isCompleted" bson:"isCompleted"`
	SessionID        string         `json:"sessionId,omitempty" bson:"sessionId"`
	PendingSessionID string         `json:"-" bson:"pendingSessionId"`
}

// ProfileUpdate carries the editable user profile fields.
type ProfileUpdate struct {
	Name    string
	Phone   string
	Address Address
	DOB     string
	Gender  string
}

// DoctorProfileUpdate carries the fields a doctor may edit on their own record.
type DoctorProfileUpdate struct {
	Fees       float64
	Address    Address
	Available  bool
	About      string
	Experience string
}
