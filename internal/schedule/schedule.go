// Package schedule implements the monthly subscription scheduling engine:
// cycle (month key) generation, per-cycle status and modification-deadline
// classification, selection-preserving regeneration, bulk range assignment,
// and cost aggregation. It is intentionally small and dependency-free:
//
//   - No logging in the library (callers decide how/what to log)
//   - Pure functions of their inputs; the current date is always a parameter,
//     never read from the system clock
//   - Deterministic output ordering (cycles are always chronological)
//   - Calendar-correct month arithmetic across year and leap boundaries
//
// A cycle is one calendar month, identified by a "YYYY-MM" month key. The
// modification deadline of a cycle is a fixed number of days before the first
// day of its month; after the deadline the cycle's oil selections are locked.
package schedule

import (
	"errors"
	"fmt"
	"time"
)

// DefaultDeadlineDays is the modification window: selections for a cycle lock
// this many days before the cycle's month begins.
const DefaultDeadlineDays = 15

// monthKeyLayout is the strict time layout for month keys.
const monthKeyLayout = "2006-01"

// ErrInvalidMonthKey reports a month key that is not a valid "YYYY-MM" token.
var ErrInvalidMonthKey = errors.New("invalid month key")

// ErrInvalidDuration reports a non-positive cycle count.
var ErrInvalidDuration = errors.New("duration must be a positive number of cycles")

// Status classifies one cycle relative to the current date.
type Status string

const (
	// StatusCompleted: the cycle's month is already over (before the current month).
	StatusCompleted Status = "completed"
	// StatusCurrent: the cycle is the month containing the current date.
	StatusCurrent Status = "current"
	// StatusUpcoming: a future cycle whose modification deadline has not passed.
	StatusUpcoming Status = "upcoming"
	// StatusPending: a future cycle that is locked (deadline passed, not yet current).
	StatusPending Status = "pending"
)

// DeviceSelection is one device's oil choice within a cycle. An empty OilID
// means the user has not picked an oil for that device yet.
type DeviceSelection struct {
	DeviceID string `json:"device_id"`
	OilID    string `json:"oil_id,omitempty"`
}

// Selection is one cycle of an active plan: the month key, the per-device oil
// choices, and the classification computed from the current date.
type Selection struct {
	MonthKey          string            `json:"month_key"`
	Devices           []DeviceSelection `json:"devices"`
	Status            Status            `json:"status"`
	CanModify         bool              `json:"can_modify"`
	DaysUntilDeadline int               `json:"days_until_deadline"`
}

// ParseMonthKey parses a strict "YYYY-MM" token into the first day of that
// month (UTC midnight). It returns ErrInvalidMonthKey for anything else.
func ParseMonthKey(key string) (time.Time, error) {
	t, err := time.ParseInLocation(monthKeyLayout, key, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidMonthKey, key)
	}
	return t, nil
}

// FormatMonthKey renders the month of t as a "YYYY-MM" token.
func FormatMonthKey(t time.Time) string {
	return t.Format(monthKeyLayout)
}

// Cycles generates the ordered sequence of duration consecutive month keys
// beginning at startMonth, inclusive. Year boundaries wrap naturally, e.g.
// Cycles("2025-11", 6) yields 2025-11 … 2026-04.
func Cycles(startMonth string, duration int) ([]string, error) {
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	start, err := ParseMonthKey(startMonth)
	if err != nil {
		return nil, err
	}
	out := make([]string, duration)
	for i := 0; i < duration; i++ {
		out[i] = FormatMonthKey(start.AddDate(0, i, 0))
	}
	return out, nil
}

// Classify computes the status of the cycle identified by monthKey relative
// to today, along with the whole days remaining until its modification
// deadline (0 when the deadline has passed or the cycle is not upcoming).
//
// Rules, with monthDate = first day of monthKey and currentMonthDate = first
// day of the month containing today:
//
//	monthDate < currentMonthDate            -> completed
//	monthDate = currentMonthDate            -> current
//	deadline  = monthDate - deadlineDays
//	deadline  > today                       -> upcoming (still modifiable)
//	otherwise                               -> pending  (locked)
func Classify(monthKey string, today time.Time, deadlineDays int) (Status, int, error) {
	monthDate, err := ParseMonthKey(monthKey)
	if err != nil {
		return "", 0, err
	}
	if deadlineDays <= 0 {
		deadlineDays = DefaultDeadlineDays
	}
	today = today.UTC()
	currentMonthDate := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)

	switch {
	case monthDate.Before(currentMonthDate):
		return StatusCompleted, 0, nil
	case monthDate.Equal(currentMonthDate):
		return StatusCurrent, 0, nil
	}

	deadline := monthDate.AddDate(0, 0, -deadlineDays)
	if !deadline.After(today) {
		return StatusPending, 0, nil
	}
	return StatusUpcoming, daysUntil(today, deadline), nil
}

// daysUntil returns ceil((to - from) / 24h), floored at zero.
func daysUntil(from, to time.Time) int {
	d := to.Sub(from)
	if d <= 0 {
		return 0
	}
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// Build produces the full ordered selection sequence for a fresh plan window:
// duration cycles starting at startMonth, one unset choice per device, each
// cycle classified against today.
func Build(startMonth string, duration int, deviceIDs []string, today time.Time, deadlineDays int) ([]Selection, error) {
	return Regenerate(nil, startMonth, duration, deviceIDs, today, deadlineDays)
}

// Regenerate rebuilds the selection sequence for a new window while carrying
// over every previously chosen oil whose month key persists across the
// change. Carry-over is keyed by (monthKey, deviceID), never by position, so
// shrinking, growing, or shifting the window cannot silently reassign a
// user's prior choice to a different month. Status and deadline fields are
// recomputed for every cycle.
func Regenerate(existing []Selection, startMonth string, duration int, deviceIDs []string, today time.Time, deadlineDays int) ([]Selection, error) {
	keys, err := Cycles(startMonth, duration)
	if err != nil {
		return nil, err
	}

	// monthKey -> deviceID -> oilID for everything already chosen.
	prior := make(map[string]map[string]string, len(existing))
	for _, sel := range existing {
		m := make(map[string]string, len(sel.Devices))
		for _, ds := range sel.Devices {
			if ds.OilID != "" {
				m[ds.DeviceID] = ds.OilID
			}
		}
		if len(m) > 0 {
			prior[sel.MonthKey] = m
		}
	}

	out := make([]Selection, 0, len(keys))
	for _, key := range keys {
		status, days, err := Classify(key, today, deadlineDays)
		if err != nil {
			return nil, err
		}
		devices := make([]DeviceSelection, 0, len(deviceIDs))
		for _, id := range deviceIDs {
			ds := DeviceSelection{DeviceID: id}
			if m, ok := prior[key]; ok {
				ds.OilID = m[id]
			}
			devices = append(devices, ds)
		}
		out = append(out, Selection{
			MonthKey:          key,
			Devices:           devices,
			Status:            status,
			CanModify:         status == StatusUpcoming,
			DaysUntilDeadline: days,
		})
	}
	return out, nil
}

// BulkApply assigns oilID to every device of every cycle in the inclusive
// index range [startIndex, endIndex] of the current ordered sequence. The
// bounds are min/max-normalized first, so the caller may pass them in either
// order, and then clamped to the valid range; a fully out-of-range span is a
// no-op. The input slice is not mutated; a modified copy is returned.
func BulkApply(selections []Selection, startIndex, endIndex int, oilID string) []Selection {
	if startIndex > endIndex {
		startIndex, endIndex = endIndex, startIndex
	}
	if startIndex < 0 {
		startIndex = 0
	}
	if endIndex >= len(selections) {
		endIndex = len(selections) - 1
	}

	out := make([]Selection, len(selections))
	copy(out, selections)
	for i := range out {
		if i < startIndex || i > endIndex {
			continue
		}
		devices := make([]DeviceSelection, len(out[i].Devices))
		copy(devices, out[i].Devices)
		for j := range devices {
			devices[j].OilID = oilID
		}
		out[i].Devices = devices
	}
	return out
}

// PriceFunc resolves the unit price (in cents) for an oil id. The boolean
// reports whether the id is known.
type PriceFunc func(oilID string) (int64, bool)

// Cost aggregates the price of a selection sequence.
type Cost struct {
	// TotalCents is the sum over every (cycle, device) slot.
	TotalCents int64 `json:"total_cents"`
	// MonthlyAverageCents is TotalCents divided by the cycle count, rounded
	// half away from zero; zero when there are no cycles.
	MonthlyAverageCents int64 `json:"monthly_average_cents"`
	// UnselectedSlots counts (cycle, device) slots with no oil chosen yet.
	UnselectedSlots int `json:"unselected_slots"`
}

// TotalCost sums price(oilID) over every device slot of every cycle. Slots
// with no selection contribute defaultUnsetCents (pass 0 to count unset
// months as free); slots whose oil id is unknown to price contribute the
// same default. A zero-length sequence yields a zero Cost.
func TotalCost(selections []Selection, price PriceFunc, defaultUnsetCents int64) Cost {
	var c Cost
	for _, sel := range selections {
		for _, ds := range sel.Devices {
			if ds.OilID == "" {
				c.TotalCents += defaultUnsetCents
				c.UnselectedSlots++
				continue
			}
			if p, ok := price(ds.OilID); ok {
				c.TotalCents += p
			} else {
				c.TotalCents += defaultUnsetCents
			}
		}
	}
	if n := int64(len(selections)); n > 0 {
		c.MonthlyAverageCents = (c.TotalCents + n/2) / n
	}
	return c
}
