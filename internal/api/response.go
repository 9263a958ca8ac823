package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/healthline/booking/internal/account"
	"github.com/healthline/booking/internal/appointment"
	"github.com/healthline/booking/internal/auth"
	"github.com/healthline/booking/internal/media"
	"github.com/healthline/booking/internal/payment"
)

const (
	msgServerError      = "Something went wrong, please try again later"
	msgTokenRequired    = "Authentication token is required"
	msgTokenInvalid     = "Not Authorized Login Again"
	msgNotAuthorized    = "You are not authorized to access this resource"
	msgInvalidBody      = "Invalid request body"
	msgMissingFields    = "Please fill all the fields"
	msgInvalidEmail     = "Please enter a valid email"
	msgWeakPassword     = "Password must be at least 8 characters long"
	msgInvalidFees      = "Fees must be a positive number"
	msgEmailTaken       = "Email is already registered"
	msgUserNotFound     = "User not found"
	msgDoctorNotFound   = "Doctor not found"
	msgBadCredentials   = "Invalid credentials"
	msgAllFields        = "All fields are required"
	msgInvalidSlot      = "Invalid slot date or time"
	msgDoctorOff        = "Doctor is not available"
	msgSlotBooked       = "Slot already booked"
	msgSlotBusy         = "Slot is being booked, please retry shortly"
	msgNotYours         = "You are not authorized to cancel this appointment"
	msgAlreadyCancelled = "Appointment is already cancelled"
	msgApptNotFound     = "Appointment not found"
	msgUploadFailed     = "Image upload failed"
)

// envelope is the response body shared by every endpoint.
type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeSuccess answers 200 with success=true merged with payload.
func writeSuccess(w http.ResponseWriter, payload envelope) {
	body := envelope{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{"success": false, "message": message})
}

// maxJSONBody caps JSON request bodies; uploads go through multipart instead.
const maxJSONBody = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	return dec.Decode(dst)
}

// businessMessage maps domain errors to the message shown to clients.
// ok is false for errors that must not be echoed.
func businessMessage(err error) (msg string, ok bool) {
	switch {
	case errors.Is(err, account.ErrMissingFields):
		return msgMissingFields, true
	case errors.Is(err, account.ErrInvalidEmail):
		return msgInvalidEmail, true
	case errors.Is(err, account.ErrWeakPassword):
		return msgWeakPassword, true
	case errors.Is(err, account.ErrInvalidFees):
		return msgInvalidFees, true
	case errors.Is(err, appointment.ErrEmailTaken):
		return msgEmailTaken, true
	case errors.Is(err, appointment.ErrUserNotFound):
		return msgUserNotFound, true
	case errors.Is(err, appointment.ErrDoctorNotFound):
		return msgDoctorNotFound, true
	case errors.Is(err, auth.ErrInvalidCredentials):
		return msgBadCredentials, true
	case errors.Is(err, appointment.ErrMissingFields):
		return msgAllFields, true
	case errors.Is(err, appointment.ErrInvalidSlot):
		return msgInvalidSlot, true
	case errors.Is(err, appointment.ErrSlotUnavailable):
		return msgDoctorOff, true
	case errors.Is(err, appointment.ErrSlotBeingBooked):
		return msgSlotBusy, true
	case errors.Is(err, appointment.ErrSlotConflict):
		return msgSlotBooked, true
	case errors.Is(err, appointment.ErrUnauthorized):
		return msgNotYours, true
	case errors.Is(err, appointment.ErrAlreadyCancelled):
		return msgAlreadyCancelled, true
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		return msgApptNotFound, true
	case errors.Is(err, media.ErrUploadFailed), errors.Is(err, media.ErrNotConfigured):
		return msgUploadFailed, true
	}
	return "", false
}

// handleError answers a business failure with 200 success=false and
// anything else with a generic 500.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	if msg, ok := businessMessage(err); ok {
		writeFailure(w, http.StatusOK, msg)
		return
	}
	zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	writeFailure(w, http.StatusInternalServerError, msgServerError)
}

// handlePaymentError keeps HTTP status codes on the payment endpoints.
func handlePaymentError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, payment.ErrInvalidAmount):
		writeFailure(w, http.StatusBadRequest, "Amount is required")
	case errors.Is(err, payment.ErrMissingSession):
		writeFailure(w, http.StatusBadRequest, "Missing session_id in request body")
	case errors.Is(err, payment.ErrPaymentIncomplete):
		writeFailure(w, http.StatusBadRequest, "Payment not completed")
	case errors.Is(err, payment.ErrSessionMismatch):
		writeFailure(w, http.StatusBadRequest, "Payment session does not belong to this user")
	case errors.Is(err, payment.ErrNotPayable):
		writeFailure(w, http.StatusBadRequest, "Appointment cannot be paid")
	case errors.Is(err, appointment.ErrUnauthorized):
		writeFailure(w, http.StatusBadRequest, "Invalid appointment")
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeFailure(w, http.StatusNotFound, notFound)
	case errors.Is(err, payment.ErrUpstreamTimeout):
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("payment provider timeout")
		writeFailure(w, http.StatusInternalServerError, "Payment provider timed out, please retry")
	case errors.Is(err, payment.ErrUpstream):
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("payment provider error")
		writeFailure(w, http.StatusInternalServerError, "Payment provider error")
	case errors.Is(err, payment.ErrReceiptNotSent):
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("receipt not queued")
		writeFailure(w, http.StatusInternalServerError, "Could not send receipt email, please retry")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("payment request failed")
		writeFailure(w, http.StatusInternalServerError, msgServerError)
	}
}
