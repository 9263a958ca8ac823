package api

import (
	"errors"
	"net/http"

	"github.com/healthline/booking/internal/account"
	"github.com/healthline/booking/internal/appointment"
)

type doctorHandler struct {
	accounts     *account.Service
	appointments *appointment.Service
}

func (h *doctorHandler) list(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.accounts.PublicDoctors(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, envelope{"doctors": doctors})
}

func (h *doctorHandler) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	tok, err := h.accounts.LoginDoctor(r.Context(), account.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, envelope{"message": "Login successful", "token": tok})
}

func (h *doctorHandler) listAppointments(w http.ResponseWriter, r *http.Request) {
	appts, err := h.appointments.ListForDoctor(r.Context(), principal(r).ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, envelope{"appointments": appts})
}

func (h *doctorHandler) completeAppointment(w http.ResponseWriter, r *http.Request) {
	var req AppointmentIDRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	_, err := h.appointments.Complete(r.Context(), req.AppointmentID, principal(r).ID)
	switch {
	case err == nil:
		writeSuccess(w, envelope{"message": "Appointment completed"})
	case errors.Is(err, appointment.ErrUnauthorized), errors.Is(err, appointment.ErrAppointmentNotFound):
		writeFailure(w, http.StatusOK, "Invalid appointment")
	default:
		handleError(w, r, err)
	}
}

func (h *doctorHandler) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	var req AppointmentIDRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	_, err := h.appointments.Cancel(r.Context(), req.AppointmentID, principal(r))
	switch {
	case err == nil:
		writeSuccess(w, envelope{"message": "Appointment cancelled"})
	case errors.Is(err, appointment.ErrUnauthorized), errors.Is(err, appointment.ErrAppointmentNotFound):
		writeFailure(w, http.StatusOK, "Cancellation Failed")
	default:
		handleError(w, r, err)
	}
}

func (h *doctorHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.appointments.DoctorDashboard(r.Context(), principal(r).ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, envelope{"dashData": dash})
}

func (h *doctorHandler) profile(w http.ResponseWriter, r *http.Request) {
	d, err := h.accounts.DoctorProfile(r.Context(), principal(r).ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, envelope{"profileData": d})
}

func (h *doctorHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req DoctorProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	err := h.accounts.UpdateDoctorProfile(r.Context(), principal(r).ID, account.DoctorProfileInput{
		Fees:       req.Fees,
		Address:    req.Address,
		Available:  req.Available,
		About:      req.About,
		Experience: req.Experience,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, envelope{"message": "Profile updated successfully"})
}

func (h *doctorHandler) changeAvailability(w http.ResponseWriter, r *http.Request) {
	available, err := h.accounts.ToggleAvailability(r.Context(), principal(r).ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, envelope{
		"message":   "Doctor availability changed successfully",
		"available": available,
	})
}
