package appointment

import (
	"github.com/shopspring/decimal"
)

const latestCount = 5

type DoctorDashboard struct {
	Earnings           float64       `json:"earnings"`
	Appointments       int           `json:"appointments"`
	Patients           int           `json:"patients"`
	LatestAppointments []Appointment `json:"latestAppointments"`
}

type AdminDashboard struct {
	Doctors            int           `json:"doctors"`
	Appointments       int           `json:"appointments"`
	Patients           int64         `json:"patients"`
	LatestAppointments []Appointment `json:"latestAppointments"`
}

// BuildDoctorDashboard aggregates a doctor's appointments, given oldest first.
func BuildDoctorDashboard(appts []Appointment) DoctorDashboard {
	earnings := decimal.Zero
	patients := make(map[string]struct{})

	for _, a := range appts {
		if a.IsCompleted || a.Payment {
			earnings = earnings.Add(decimal.NewFromFloat(a.Amount))
		}
		// NOTE: cancelled appointments still count towards distinct patients.
		// Existing dashboards rely on this number, so it is kept as is.
		patients[a.UserID] = struct{}{}
	}

	total, _ := earnings.Float64()
	return DoctorDashboard{
		Earnings:           total,
		Appointments:       len(appts),
		Patients:           len(patients),
		LatestAppointments: latest(appts, latestCount),
	}
}

// latest returns up to n appointments, newest first.
func latest(appts []Appointment, n int) []Appointment {
	out := make([]Appointment, 0, n)
	for i := len(appts) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, appts[i])
	}
	return out
}
