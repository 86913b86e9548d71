package hours

import (
	"testing"
	"time"
)

func TestDateString(t *testing.T) {
	d := Date{Year: 2025, Month: time.January, Day: 5}
	expected := "2025-01-05"
	if s := d.String(); s != expected {
		t.Errorf("String() expected %q, got %q", expected, s)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-30")
	if err != nil {
		t.Fatalf("ParseDate() unexpected error: %v", err)
	}
	if d != (Date{Year: 2025, Month: time.March, Day: 30}) {
		t.Errorf("ParseDate() got %+v", d)
	}

	if _, err := ParseDate("30.03.2025"); err == nil {
		t.Errorf("ParseDate() expected error for invalid layout")
	}
}

func TestDateOfUsesInstantZone(t *testing.T) {
	riga, err := LoadLocation("Europe/Riga")
	if err != nil {
		t.Fatal(err)
	}

	// 22:30 UTC is already the next day in Riga (UTC+2 in winter).
	tm := time.Date(2025, time.January, 1, 22, 30, 0, 0, time.UTC)
	if d := DateOf(tm); d.String() != "2025-01-01" {
		t.Errorf("DateOf(UTC) got %s", d)
	}
	if d := DateOf(tm.In(riga)); d.String() != "2025-01-02" {
		t.Errorf("DateOf(Riga) got %s", d)
	}
}

func TestDateAddDays(t *testing.T) {
	tests := []struct {
		name     string
		input    Date
		days     int
		expected string
	}{
		{"same month", Date{2025, time.January, 10}, 2, "2025-01-12"},
		{"crossing year", Date{2025, time.December, 31}, 1, "2026-01-01"},
		{"negative", Date{2025, time.March, 1}, -1, "2025-02-28"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.input.AddDays(tt.days).String(); got != tt.expected {
				t.Errorf("AddDays(%d) expected %s, got %s", tt.days, tt.expected, got)
			}
		})
	}
}

func TestMidnightAcrossDST(t *testing.T) {
	riga, err := LoadLocation("Europe/Riga")
	if err != nil {
		t.Fatal(err)
	}

	// The day DST starts in Riga is 23 hours long.
	d := Date{2025, time.March, 30}
	length := d.AddDays(1).Midnight(riga).Sub(d.Midnight(riga))
	if length != 23*time.Hour {
		t.Errorf("expected 23h day, got %v", length)
	}
}

func TestStartOfHour(t *testing.T) {
	kolkata, err := LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatal(err)
	}
	tm := time.Date(2025, time.June, 1, 10, 45, 12, 0, kolkata)
	got := StartOfHour(tm)
	if got.Hour() != 10 || got.Minute() != 0 || got.Second() != 0 {
		t.Errorf("StartOfHour() got %v", got)
	}
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	if err != nil || loc != time.UTC {
		t.Errorf("LoadLocation(\"\") expected UTC, got %v, %v", loc, err)
	}
	if _, err := LoadLocation("Not/AZone"); err == nil {
		t.Errorf("LoadLocation() expected error for unknown zone")
	}
}
