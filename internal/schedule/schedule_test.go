package schedule

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseMonthKey(t *testing.T) {
	got, err := ParseMonthKey("2025-11")
	if err != nil {
		t.Fatalf("ParseMonthKey: %v", err)
	}
	if want := date(2025, time.November, 1); !got.Equal(want) {
		t.Fatalf("ParseMonthKey = %v; want %v", got, want)
	}

	for _, bad := range []string{"", "2025", "2025-13", "2025-00", "25-01", "2025/01", "2025-01-01", "not-a-month"} {
		if _, err := ParseMonthKey(bad); !errors.Is(err, ErrInvalidMonthKey) {
			t.Errorf("ParseMonthKey(%q) err = %v; want ErrInvalidMonthKey", bad, err)
		}
	}
}

func TestCycles_WrapsYearBoundary(t *testing.T) {
	got, err := Cycles("2025-11", 6)
	if err != nil {
		t.Fatalf("Cycles: %v", err)
	}
	want := []string{"2025-11", "2025-12", "2026-01", "2026-02", "2026-03", "2026-04"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Cycles = %v; want %v", got, want)
	}
}

func TestCycles_TwelveAcrossLeapFebruary(t *testing.T) {
	got, err := Cycles("2023-12", 12)
	if err != nil {
		t.Fatalf("Cycles: %v", err)
	}
	if got[0] != "2023-12" || got[2] != "2024-02" || got[11] != "2024-11" {
		t.Fatalf("unexpected sequence: %v", got)
	}
	if len(got) != 12 {
		t.Fatalf("len = %d; want 12", len(got))
	}
}

func TestCycles_InvalidInputs(t *testing.T) {
	if _, err := Cycles("2025-11", 0); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("duration 0: err = %v; want ErrInvalidDuration", err)
	}
	if _, err := Cycles("2025-11", -3); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("duration -3: err = %v; want ErrInvalidDuration", err)
	}
	if _, err := Cycles("nope", 6); !errors.Is(err, ErrInvalidMonthKey) {
		t.Errorf("bad month: err = %v; want ErrInvalidMonthKey", err)
	}
}

func TestClassify_Boundaries(t *testing.T) {
	cases := []struct {
		name       string
		monthKey   string
		today      time.Time
		wantStatus Status
		wantDays   int
	}{
		// Deadline for 2025-02 is 2025-01-17 (Feb 1 minus 15 days).
		{"past deadline is pending", "2025-02", date(2025, time.January, 20), StatusPending, 0},
		{"before deadline is upcoming", "2025-02", date(2025, time.January, 10), StatusUpcoming, 7},
		{"deadline day itself is locked", "2025-02", date(2025, time.January, 17), StatusPending, 0},
		{"same month is current", "2025-01", date(2025, time.January, 20), StatusCurrent, 0},
		{"earlier month is completed", "2024-12", date(2025, time.January, 20), StatusCompleted, 0},
		{"far future stays upcoming", "2025-06", date(2025, time.January, 20), StatusUpcoming, 117},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, days, err := Classify(tc.monthKey, tc.today, DefaultDeadlineDays)
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if status != tc.wantStatus || days != tc.wantDays {
				t.Fatalf("Classify(%s @ %s) = (%s, %d); want (%s, %d)",
					tc.monthKey, tc.today.Format("2006-01-02"), status, days, tc.wantStatus, tc.wantDays)
			}
		})
	}
}

func TestClassify_PartialDayRoundsUp(t *testing.T) {
	// 6d14h before the deadline must still report 7 whole days.
	today := time.Date(2025, time.January, 10, 10, 0, 0, 0, time.UTC)
	status, days, err := Classify("2025-02", today, DefaultDeadlineDays)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if status != StatusUpcoming || days != 7 {
		t.Fatalf("got (%s, %d); want (upcoming, 7)", status, days)
	}
}

func TestRegenerate_PreservesSelectionsByMonthKey(t *testing.T) {
	today := date(2025, time.September, 1)
	devices := []string{"dev-1"}

	six, err := Build("2025-11", 6, devices, today, DefaultDeadlineDays)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	six[0].Devices[0].OilID = "lavender-dream"

	twelve, err := Regenerate(six, "2025-11", 12, devices, today, DefaultDeadlineDays)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if len(twelve) != 12 {
		t.Fatalf("len = %d; want 12", len(twelve))
	}
	if got := twelve[0].Devices[0].OilID; got != "lavender-dream" {
		t.Fatalf("2025-11 selection = %q; want carried over %q", got, "lavender-dream")
	}
	for _, sel := range twelve[1:] {
		if sel.Devices[0].OilID != "" {
			t.Fatalf("month %s unexpectedly has a selection %q", sel.MonthKey, sel.Devices[0].OilID)
		}
	}
}

func TestRegenerate_ShiftedWindowKeepsOverlap(t *testing.T) {
	today := date(2025, time.September, 1)
	devices := []string{"dev-1", "dev-2"}

	sels, err := Build("2025-11", 6, devices, today, DefaultDeadlineDays)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	sels[2].Devices[1].OilID = "citrus-burst" // 2026-01, dev-2

	shifted, err := Regenerate(sels, "2026-01", 6, devices, today, DefaultDeadlineDays)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if shifted[0].MonthKey != "2026-01" {
		t.Fatalf("first month = %s; want 2026-01", shifted[0].MonthKey)
	}
	if got := shifted[0].Devices[1].OilID; got != "citrus-burst" {
		t.Fatalf("carried selection = %q; want %q", got, "citrus-burst")
	}
	if got := shifted[0].Devices[0].OilID; got != "" {
		t.Fatalf("dev-1 selection = %q; want unset", got)
	}
}

func TestBulkApply_NormalizesAndClampsRange(t *testing.T) {
	today := date(2025, time.January, 1)
	sels, err := Build("2025-06", 6, []string{"dev-1"}, today, DefaultDeadlineDays)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// Reversed bounds must behave as 1..4 inclusive.
	got := BulkApply(sels, 4, 1, "citrus-burst")
	for i, sel := range got {
		want := ""
		if i >= 1 && i <= 4 {
			want = "citrus-burst"
		}
		if sel.Devices[0].OilID != want {
			t.Fatalf("index %d oil = %q; want %q", i, sel.Devices[0].OilID, want)
		}
	}

	// Input must not be mutated.
	for i, sel := range sels {
		if sel.Devices[0].OilID != "" {
			t.Fatalf("input mutated at index %d", i)
		}
	}

	// Out-of-range bounds clamp; disjoint range is a no-op.
	clamped := BulkApply(sels, -3, 99, "ocean-breeze")
	for i := range clamped {
		if clamped[i].Devices[0].OilID != "ocean-breeze" {
			t.Fatalf("clamped apply missed index %d", i)
		}
	}
	noop := BulkApply(sels, 10, 20, "ocean-breeze")
	for i := range noop {
		if noop[i].Devices[0].OilID != "" {
			t.Fatalf("disjoint range applied at index %d", i)
		}
	}
}

func TestTotalCost(t *testing.T) {
	prices := map[string]int64{"lavender-dream": 2400, "citrus-burst": 1900}
	price := func(id string) (int64, bool) { p, ok := prices[id]; return p, ok }

	sels := []Selection{
		{MonthKey: "2025-01", Devices: []DeviceSelection{{DeviceID: "d1", OilID: "lavender-dream"}}},
		{MonthKey: "2025-02", Devices: []DeviceSelection{{DeviceID: "d1", OilID: "citrus-burst"}}},
		{MonthKey: "2025-03", Devices: []DeviceSelection{{DeviceID: "d1"}}},
	}

	got := TotalCost(sels, price, 0)
	if got.TotalCents != 4300 {
		t.Fatalf("TotalCents = %d; want 4300", got.TotalCents)
	}
	if got.MonthlyAverageCents != 1433 {
		t.Fatalf("MonthlyAverageCents = %d; want 1433", got.MonthlyAverageCents)
	}
	if got.UnselectedSlots != 1 {
		t.Fatalf("UnselectedSlots = %d; want 1", got.UnselectedSlots)
	}

	// Legacy placeholder pricing: unset slots contribute the default.
	withDefault := TotalCost(sels, price, 2000)
	if withDefault.TotalCents != 6300 {
		t.Fatalf("TotalCents with default = %d; want 6300", withDefault.TotalCents)
	}

	// Empty sequence yields zero without dividing by zero.
	empty := TotalCost(nil, price, 2000)
	if empty.TotalCents != 0 || empty.MonthlyAverageCents != 0 || empty.UnselectedSlots != 0 {
		t.Fatalf("empty cost = %+v; want zero value", empty)
	}
}
