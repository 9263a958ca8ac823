package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/healthline/booking/internal/account"
	"github.com/healthline/booking/internal/appointment"
	"github.com/healthline/booking/internal/auth"
	"github.com/healthline/booking/internal/payment"
)

type RouterConfig struct {
	Accounts     *account.Service
	Appointments *appointment.Service
	Payments     *payment.Service
	Issuer       *auth.Issuer
	Logger       zerolog.Logger
	CORSOrigins  []string
	Dependencies []Dependency
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoverMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "token", "dtoken", "atoken"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("API is working great"))
	})

	health := NewHealthHandler(cfg.Dependencies, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	users := &userHandler{accounts: cfg.Accounts, appointments: cfg.Appointments, payments: cfg.Payments}
	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", users.register)
		r.Post("/login", users.login)

		r.Group(func(r chi.Router) {
			r.Use(RequireUser(cfg.Issuer))
			r.Get("/get-profile", users.getProfile)
			r.Post("/update-profile", users.updateProfile)
			r.Post("/book-appointment", users.bookAppointment)
			r.Get("/appointments", users.listAppointments)
			r.Post("/cancel-appointment", users.cancelAppointment)
			r.Post("/create-payment-intent", users.createPaymentIntent)
			r.Post("/verify-payment", users.verifyPayment)
			r.Post("/payment-reciept", users.paymentReceipt)
		})
	})

	doctors := &doctorHandler{accounts: cfg.Accounts, appointments: cfg.Appointments}
	r.Route("/api/doctor", func(r chi.Router) {
		r.Get("/list", doctors.list)
		r.Post("/login", doctors.login)

		r.Group(func(r chi.Router) {
			r.Use(RequireDoctor(cfg.Issuer))
			r.Get("/appointments", doctors.listAppointments)
			r.Post("/complete-appointment", doctors.completeAppointment)
			r.Post("/cancel-appointment", doctors.cancelAppointment)
			r.Get("/dashboard", doctors.dashboard)
			r.Get("/profile", doctors.profile)
			r.Post("/update-profile", doctors.updateProfile)
			r.Post("/change-availability", doctors.changeAvailability)
		})
	})

	admins := &adminHandler{accounts: cfg.Accounts, appointments: cfg.Appointments}
	r.Route("/api/admin", func(r chi.Router) {
		r.Post("/login", admins.login)

		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin(cfg.Issuer))
			r.Post("/add-doctor", admins.addDoctor)
			r.Post("/all-doctors", admins.allDoctors)
			r.Post("/change-availability", admins.changeAvailability)
			r.Get("/appointments", admins.listAppointments)
			r.Post("/cancel-appointment", admins.cancelAppointment)
			r.Get("/dashboard", admins.dashboard)
		})
	})

	return r
}
