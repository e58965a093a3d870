package epoch

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestFromTimeRoundTrip(t *testing.T) {
	tests := []time.Time{
		time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2025, 4, 15, 12, 32, 28, 531_000_000, time.UTC),
	}
	for _, tm := range tests {
		e := FromTime(tm)
		got := e.Time()
		if d := got.Sub(tm); d > time.Millisecond || d < -time.Millisecond {
			t.Errorf("round trip %v -> %v (diff %v)", tm, got, d)
		}
	}
}

func TestDS50Origin(t *testing.T) {
	e := FromTime(time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC))
	if math.Abs(e.DaysSince1950-1.0) > 1e-12 {
		t.Errorf("1950-01-01 DS50 = %v, want 1.0", e.DaysSince1950)
	}
	if math.Abs(e.JulianDate()-2433282.5) > 1e-9 {
		t.Errorf("JulianDate = %v, want 2433282.5", e.JulianDate())
	}
}

func TestComponents(t *testing.T) {
	e := FromComponents(2025, 4, 15, 12, 32, 28.5, UTC)
	y, mo, d, h, mi, s := e.Components()
	if y != 2025 || mo != 4 || d != 15 || h != 12 || mi != 32 || math.Abs(s-28.5) > 1e-4 {
		t.Errorf("Components = %d-%d-%d %d:%d:%.4f", y, mo, d, h, mi, s)
	}
	want := FromTime(time.Date(2025, 4, 15, 12, 32, 28, 500_000_000, time.UTC))
	if math.Abs(e.DaysSince1950-want.DaysSince1950) > 1e-9 {
		t.Errorf("FromComponents = %v, FromTime = %v", e.DaysSince1950, want.DaysSince1950)
	}
}

func TestTLEEpoch(t *testing.T) {
	e := FromTLE(25, 105.58543138)
	want := time.Date(2025, 4, 15, 14, 3, 1, 0, time.UTC)
	if d := e.Time().Sub(want); d > time.Second || d < -time.Second {
		t.Errorf("FromTLE = %v, want about %v", e.Time(), want)
	}
	yy, doy := e.TLEComponents()
	if yy != 25 || math.Abs(doy-105.58543138) > 1e-9 {
		t.Errorf("TLEComponents = %d %.8f", yy, doy)
	}

	old := FromTLE(98, 1.0)
	if y, _, _, _, _, _ := old.Components(); y != 1998 {
		t.Errorf("year 98 mapped to %d", y)
	}
}

func TestTimeSystems(t *testing.T) {
	utc := FromComponents(2020, 1, 1, 0, 0, 0, UTC)

	tests := []struct {
		system TimeSystem
		offset float64 // seconds ahead of UTC
	}{
		{UTC, 0},
		{TAI, 37},
		{TT, 37 + 32.184},
		{UT1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.system.String(), func(t *testing.T) {
			conv := utc.ToSystem(tt.system)
			got := (conv.DaysSince1950 - utc.DaysSince1950) * 86400
			if math.Abs(got-tt.offset) > 1e-5 {
				t.Errorf("offset = %.6f s, want %.6f", got, tt.offset)
			}
			back := conv.ToSystem(UTC)
			if math.Abs(back.DaysSince1950-utc.DaysSince1950)*86400 > 1e-5 {
				t.Errorf("round trip drifted by %.3g s", (back.DaysSince1950-utc.DaysSince1950)*86400)
			}
			if !conv.Equal(utc) {
				t.Errorf("%s epoch should compare equal to its UTC source", tt.system)
			}
		})
	}
}

func TestLeapSeconds(t *testing.T) {
	tests := []struct {
		year, month int
		want        float64
	}{
		{1960, 1, 10},
		{1972, 1, 10},
		{1972, 7, 11},
		{1999, 1, 32},
		{2016, 12, 36},
		{2017, 1, 37},
		{2030, 1, 37},
	}
	for _, tt := range tests {
		e := FromComponents(tt.year, tt.month, 1, 0, 0, 1, UTC)
		if got := LeapSeconds(e.DaysSince1950); got != tt.want {
			t.Errorf("LeapSeconds(%d-%02d) = %v, want %v", tt.year, tt.month, got, tt.want)
		}
	}
}

func TestArithmetic(t *testing.T) {
	start := FromComponents(2025, 4, 15, 12, 0, 0, UTC)
	end := start.Add(FromHours(24))

	if span := end.Sub(start); math.Abs(span.Days()-1) > 1e-12 {
		t.Errorf("Sub = %v days, want 1", span.Days())
	}
	if !start.Before(end) || !end.After(start) {
		t.Error("ordering wrong")
	}
	if math.Abs(FromMinutes(10).Seconds()-600) > 1e-9 {
		t.Errorf("FromMinutes(10) = %v s", FromMinutes(10).Seconds())
	}
	if FromSeconds(90).Duration() != 90*time.Second {
		t.Errorf("Duration = %v", FromSeconds(90).Duration())
	}
}

func TestFromISO(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2025-04-15T12:00:00Z", "2025-04-15T12:00:00.000Z"},
		{"2025-04-15T12:32:28.531", "2025-04-15T12:32:28.531Z"},
		{"2025-04-15", "2025-04-15T00:00:00.000Z"},
	}
	for _, tt := range tests {
		e, err := FromISO(tt.in)
		if err != nil {
			t.Fatalf("FromISO(%q): %v", tt.in, err)
		}
		if got := e.ISO(); got != tt.want {
			t.Errorf("FromISO(%q).ISO() = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := FromISO("yesterday"); err == nil {
		t.Error("expected error for non-ISO input")
	}
}

func TestJSON(t *testing.T) {
	in := struct {
		At Epoch `json:"at"`
	}{At: FromComponents(2025, 4, 15, 12, 0, 30.25, UTC)}

	b, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"at":"2025-04-15T12:00:30.250Z"}` {
		t.Errorf("json = %s", b)
	}

	var out struct {
		At Epoch `json:"at"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if d := math.Abs(out.At.Sub(in.At).Seconds()); d > 1e-6 {
		t.Errorf("round trip off by %v s", d)
	}
}
