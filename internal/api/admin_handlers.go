package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/healthline/booking/internal/account"
	"github.com/healthline/booking/internal/appointment"
)

type adminHandler struct {
	accounts     *account.Service
	appointments *appointment.Service
}

func (h *adminHandler) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	tok, err := h.accounts.LoginAdmin(account.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, envelope{"token": tok})
}

func (h *adminHandler) addDoctor(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	addr, err := formAddress(r.FormValue("address"))
	if err != nil {
		writeFailure(w, http.StatusOK, msgMissingFields)
		return
	}

	var fees float64
	if raw := strings.TrimSpace(r.FormValue("fees")); raw != "" {
		fees, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			writeFailure(w, http.StatusOK, msgInvalidFees)
			return
		}
	}

	img, file, err := formImage(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	defer closeFile(file)

	d, err := h.accounts.AddDoctor(r.Context(), account.DoctorInput{
		Name:       r.FormValue("name"),
		Email:      r.FormValue("email"),
		Password:   r.FormValue("password"),
		Speciality: r.FormValue("speciality"),
		Degree:     r.FormValue("degree"),
		Experience: r.FormValue("experience"),
		About:      r.FormValue("about"),
		Fees:       fees,
		Address:    addr,
		Image:      img,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, envelope{"message": "Doctor added successfully", "doctorId": d.ID})
}

func (h *adminHandler) allDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.accounts.AllDoctors(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, envelope{"doctors": doctors})
}

func (h *adminHandler) changeAvailability(w http.ResponseWriter, r *http.Request) {
	var req DocIDRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	available, err := h.accounts.ToggleAvailability(r.Context(), req.DocID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, envelope{
		"message":   "Doctor availability changed successfully",
		"available": available,
	})
}

func (h *adminHandler) listAppointments(w http.ResponseWriter, r *http.Request) {
	appts, err := h.appointments.ListAll(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, envelope{"appointments": appts})
}

func (h *adminHandler) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	var req AppointmentIDRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	if _, err := h.appointments.Cancel(r.Context(), req.AppointmentID, principal(r)); err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, envelope{"message": "Appointment cancelled"})
}

func (h *adminHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.appointments.AdminDashboard(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, envelope{"dashData": dash})
}
