package api

import (
	"github.com/shopspring/decimal"

	"github.com/healthline/booking/internal/appointment"
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type BookAppointmentRequest struct {
	DocID    string `json:"docId"`
	SlotDate string `json:"slotDate"`
	SlotTime string `json:"slotTime"`
}

type AppointmentIDRequest struct {
	AppointmentID string `json:"appointmentId"`
}

type PaymentIntentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	AppointmentID string          `json:"appointmentId,omitempty"`
}

type SessionRequest struct {
	SessionID string `json:"session_id"`
}

type DoctorProfileRequest struct {
	Fees       float64             `json:"fees"`
	Address    appointment.Address `json:"address"`
	Available  bool                `json:"available"`
	About      string              `json:"about"`
	Experience string              `json:"experience"`
}

type DocIDRequest struct {
	DocID string `json:"docId"`
}
