package appointment

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidSlot = errors.New("invalid slot date or time")

// slot dates are day_month_year, e.g. 15_6_2025
var slotDatePattern = regexp.MustCompile(`^([0-9]{1,2})_([0-9]{1,2})_([0-9]{4})$`)

// ValidateSlot checks the date key format and that the time label is usable
// as a ledger entry. Date keys double as document field names.
func ValidateSlot(date, slotTime string) error {
	if _, err := ParseSlotDate(date); err != nil {
		return err
	}
	if strings.TrimSpace(slotTime) == "" || len(slotTime) > 32 {
		return fmt.Errorf("%w: time %q", ErrInvalidSlot, slotTime)
	}
	return nil
}

// ParseSlotDate converts a day_month_year key into a date.
func ParseSlotDate(date string) (time.Time, error) {
	m := slotDatePattern.FindStringSubmatch(date)
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidSlot, date)
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidSlot, date)
	}
	return t, nil
}

// FormatSlotDate renders 15_6_2025 as "15 Jun 2025". Unparseable keys are
// returned unchanged.
func FormatSlotDate(date string) string {
	t, err := ParseSlotDate(date)
	if err != nil {
		return date
	}
	return t.Format("2 Jan 2006")
}

// add appends time at date unless already present.
func (l SlotLedger) add(date, slotTime string) bool {
	if l.Has(date, slotTime) {
		return false
	}
	l[date] = append(l[date], slotTime)
	return true
}

// remove drops time from date, keeping the order of the remaining entries.
func (l SlotLedger) remove(date, slotTime string) {
	times, ok := l[date]
	if !ok {
		return
	}
	kept := times[:0]
	for _, t := range times {
		if t != slotTime {
			kept = append(kept, t)
		}
	}
	l[date] = kept
}

func (l SlotLedger) clone() SlotLedger {
	out := make(SlotLedger, len(l))
	for date, times := range l {
		out[date] = append([]string(nil), times...)
	}
	return out
}
