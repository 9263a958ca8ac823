package api

import (
	"net/http"

	"github.com/healthline/booking/internal/account"
	"github.com/healthline/booking/internal/appointment"
	"github.com/healthline/booking/internal/payment"
)

type userHandler struct {
	accounts     *account.Service
	appointments *appointment.Service
	payments     *payment.Service
}

func (h *userHandler) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	tok, err := h.accounts.RegisterUser(r.Context(), account.Registration{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, envelope{"token": tok})
}

func (h *userHandler) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	tok, err := h.accounts.LoginUser(r.Context(), account.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, envelope{"token": tok})
}

func (h *userHandler) getProfile(w http.ResponseWriter, r *http.Request) {
	u, err := h.accounts.UserProfile(r.Context(), principal(r).ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, envelope{"userData": u})
}

func (h *userHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	addr, err := formAddress(r.FormValue("address"))
	if err != nil {
		writeFailure(w, http.StatusOK, "Data missing")
		return
	}
	img, file, err := formImage(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	defer closeFile(file)

	err = h.accounts.UpdateUserProfile(r.Context(), principal(r).ID, account.ProfileInput{
		Name:    r.FormValue("name"),
		Phone:   r.FormValue("phone"),
		Address: addr,
		DOB:     r.FormValue("dob"),
		Gender:  r.FormValue("gender"),
		Image:   img,
	})
	if err != nil {
		if msg, ok := businessMessage(err); ok && msg == msgMissingFields {
			writeFailure(w, http.StatusOK, "Data missing")
			return
		}
		handleError(w, r, err)
		return
	}
	writeSuccess(w, envelope{"message": "Profile updated successfully"})
}

func (h *userHandler) bookAppointment(w http.ResponseWriter, r *http.Request) {
	var req BookAppointmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	appt, err := h.appointments.Book(r.Context(), principal(r).ID, req.DocID, req.SlotDate, req.SlotTime)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, envelope{
		"message":       "Appointment booked successfully",
		"appointmentId": appt.ID,
	})
}

func (h *userHandler) listAppointments(w http.ResponseWriter, r *http.Request) {
	appts, err := h.appointments.ListForUser(r.Context(), principal(r).ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, envelope{"appointments": appts})
}

func (h *userHandler) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	var req AppointmentIDRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	if _, err := h.appointments.Cancel(r.Context(), req.AppointmentID, principal(r)); err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, envelope{"message": "Appointment cancelled successfully"})
}

func (h *userHandler) createPaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req PaymentIntentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	sess, err := h.payments.CreateSession(r.Context(), principal(r).ID, req.Amount, req.AppointmentID)
	if err != nil {
		handlePaymentError(w, r, err, msgApptNotFound)
		return
	}
	writeSuccess(w, envelope{"sessionId": sess.ID, "url": sess.URL})
}

func (h *userHandler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	if _, err := h.payments.Verify(r.Context(), principal(r).ID, req.SessionID); err != nil {
		handlePaymentError(w, r, err, "No unpaid appointment found")
		return
	}
	writeSuccess(w, envelope{"message": "Payment verified"})
}

func (h *userHandler) paymentReceipt(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	if _, err := h.payments.IssueReceipt(r.Context(), principal(r).ID, req.SessionID); err != nil {
		handlePaymentError(w, r, err, "No paid appointment found")
		return
	}
	writeSuccess(w, envelope{"message": "Payment receipt email sent successfully"})
}
