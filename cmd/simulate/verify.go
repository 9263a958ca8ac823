package main

import (
	"fmt"
	"sort"

	"github.com/healthline/booking/internal/appointment"
)

type slotRef struct {
	DocID string
	Date  string
	Time  string
}

func (s slotRef) String() string {
	return fmt.Sprintf("%s %s %s", s.DocID, s.Date, s.Time)
}

// findDoubleBookings returns every slot held by more than one active appointment.
func findDoubleBookings(appts []appointment.Appointment) map[slotRef]int {
	counts := make(map[slotRef]int)
	for _, a := range appts {
		if a.Cancelled {
			continue
		}
		counts[slotRef{a.DocID, a.SlotDate, a.SlotTime}]++
	}

	dups := make(map[slotRef]int)
	for ref, n := range counts {
		if n > 1 {
			dups[ref] = n
		}
	}
	return dups
}

// findLedgerDrift compares each doctor's ledger with its active appointments
// and reports slots present on one side only.
func findLedgerDrift(doctors []appointment.Doctor, appts []appointment.Appointment) []string {
	active := make(map[slotRef]bool)
	for _, a := range appts {
		if !a.Cancelled {
			active[slotRef{a.DocID, a.SlotDate, a.SlotTime}] = true
		}
	}

	var drift []string
	seen := make(map[slotRef]bool)
	for _, d := range doctors {
		for date, times := range d.SlotsBooked {
			for _, t := range times {
				ref := slotRef{d.ID, date, t}
				seen[ref] = true
				if !active[ref] {
					drift = append(drift, "ledger only: "+ref.String())
				}
			}
		}
	}
	for ref := range active {
		if !seen[ref] {
			drift = append(drift, "appointment only: "+ref.String())
		}
	}

	sort.Strings(drift)
	return drift
}
