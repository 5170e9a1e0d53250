package availability

import (
	"testing"
	"time"
)

var today = time.Date(2026, 10, 14, 10, 30, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func TestEvaluateNoRowIsUnlimited(t *testing.T) {
	day := Evaluate(nil, 42, date(2026, 10, 20), today)
	if day.Status != Available || !day.Unlimited || day.Remaining != Unlimited {
		t.Fatalf("got %+v", day)
	}
	if !day.Fits(500) {
		t.Fatal("unlimited day should fit any party")
	}
}

func TestEvaluateRemainingNeverNegative(t *testing.T) {
	cases := []struct {
		total, booked, remaining int
		status                   string
	}{
		{20, 0, 20, Available},
		{20, 19, 1, Available},
		{20, 20, 0, Full},
		{20, 25, 0, Full},
		{0, 0, 0, Full},
	}
	for _, tc := range cases {
		day := Evaluate(&Slot{TotalSlots: tc.total, IsOpen: true}, tc.booked, date(2026, 10, 20), today)
		if day.Remaining != tc.remaining || day.Status != tc.status {
			t.Errorf("total %d booked %d: got remaining %d status %s", tc.total, tc.booked, day.Remaining, day.Status)
		}
		if (day.Status == Full) != (day.Remaining == 0) {
			t.Errorf("full must coincide with zero remaining: %+v", day)
		}
	}
}

func TestEvaluateFullScenario(t *testing.T) {
	day := Evaluate(&Slot{TotalSlots: 20, IsOpen: true}, 20, date(2026, 10, 20), today)
	if day.Status != Full || day.Remaining != 0 {
		t.Fatalf("got %+v", day)
	}
}

func TestEvaluateClosedIgnoresCounts(t *testing.T) {
	for _, booked := range []int{0, 5, 20, 100} {
		day := Evaluate(&Slot{TotalSlots: 20, IsOpen: false}, booked, date(2026, 10, 20), today)
		if day.Status != Closed || day.Remaining != 0 {
			t.Fatalf("booked %d: got %+v", booked, day)
		}
		if day.Bookable() {
			t.Fatal("closed day must not be bookable")
		}
	}
}

func TestEvaluatePastDatesDisabled(t *testing.T) {
	past := Evaluate(nil, 0, date(2026, 10, 13), today)
	if !past.Disabled || past.Bookable() {
		t.Fatalf("yesterday should be disabled: %+v", past)
	}
	same := Evaluate(nil, 0, date(2026, 10, 14), today)
	if same.Disabled {
		t.Fatal("today should stay selectable")
	}
}

func TestEvaluateUsesLocalToday(t *testing.T) {
	bangkok := time.FixedZone("ICT", 7*3600)
	// 2026-10-14 20:00 UTC is already 2026-10-15 in Bangkok.
	localToday := time.Date(2026, 10, 14, 20, 0, 0, 0, time.UTC).In(bangkok)
	day := Evaluate(nil, 0, date(2026, 10, 14), localToday)
	if !day.Disabled {
		t.Fatal("the 14th is in the past for a Bangkok company")
	}
}

func TestFits(t *testing.T) {
	day := Evaluate(&Slot{TotalSlots: 10, IsOpen: true}, 7, date(2026, 10, 20), today)
	if !day.Fits(3) || day.Fits(4) {
		t.Fatalf("remaining 3: %+v", day)
	}
}

func TestMonth(t *testing.T) {
	slots := map[string]Slot{
		"2026-11-05": {TotalSlots: 10, IsOpen: true},
		"2026-11-06": {TotalSlots: 10, IsOpen: false},
	}
	booked := map[string]int{"2026-11-05": 10, "2026-11-07": 3}
	days := Month(2026, time.November, time.UTC, slots, booked, today)
	if len(days) != 30 {
		t.Fatalf("november has 30 days, got %d", len(days))
	}
	if days[4].Status != Full || days[5].Status != Closed || days[6].Status != Available || !days[6].Unlimited {
		t.Fatalf("got %+v %+v %+v", days[4], days[5], days[6])
	}
	if days[6].Booked != 3 {
		t.Fatalf("booked %d", days[6].Booked)
	}
}
