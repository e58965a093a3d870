package tle

import (
	"math"
	"strings"
	"testing"
)

const (
	issLine1 = "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927"
	issLine2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537"
	geoLine1 = "1 37605U 11022A   25105.58543138  .00000096  00000+0  00000+0 0  9990"
	geoLine2 = "2 37605   1.0234  87.2060 0005091 220.8721 161.7206  1.00271635 50950"
)

func TestParseLines(t *testing.T) {
	e, err := ParseLines("ISS (ZARYA)", issLine1, issLine2)
	if err != nil {
		t.Fatalf("ParseLines: %v", err)
	}

	if e.SatelliteID != 25544 || e.Name != "ISS (ZARYA)" || e.Designator != "98067A" || e.Classification != 'U' {
		t.Errorf("identity = %d %q %q %c", e.SatelliteID, e.Name, e.Designator, e.Classification)
	}
	tests := []struct {
		name      string
		got, want float64
	}{
		{"ndot", e.MeanMotionDot, -0.00002182},
		{"nddot", e.MeanMotionDDot, 0},
		{"bstar", e.BStar, -0.11606e-4},
		{"incl", e.Inclination, 51.6416},
		{"raan", e.RAAN, 247.4627},
		{"ecc", e.Eccentricity, 0.0006703},
		{"argp", e.ArgPerigee, 130.5360},
		{"M", e.MeanAnomaly, 325.0288},
		{"n", e.MeanMotion, 15.72125391},
	}
	for _, tt := range tests {
		if math.Abs(tt.got-tt.want) > 1e-12 {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
	if e.ElementSetNumber != 292 || e.RevNumber != 56353 {
		t.Errorf("element set %d rev %d", e.ElementSetNumber, e.RevNumber)
	}

	// 2008 day 264.51782528 = Sep 20 12:25:40.104 UTC
	got := e.Epoch.Time()
	if got.Year() != 2008 || got.Month() != 9 || got.Day() != 20 || got.Hour() != 12 || got.Minute() != 25 {
		t.Errorf("epoch = %v", got)
	}
}

func TestParseLinesErrors(t *testing.T) {
	bad := []byte(issLine1)
	bad[68] = '0'

	tests := []struct {
		name         string
		line1, line2 string
		wantErr      string
	}{
		{"short", issLine1[:60], issLine2, "length"},
		{"checksum", string(bad), issLine2, "checksum"},
		{"swapped", issLine2, issLine1, "starts with"},
		{"mismatch", issLine1, geoLine2, "mismatch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLines("", tt.line1, tt.line2)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseMixedInput(t *testing.T) {
	input := strings.Join([]string{
		"0 ISS (ZARYA)",
		issLine1,
		issLine2,
		geoLine1,
		geoLine2,
		"garbage",
		"SOMETHING",
		"1 99999U",
	}, "\r\n")

	entries, err := Parse(strings.NewReader(input), testLogger)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Name != "ISS (ZARYA)" || entries[1].Name != "" || entries[1].SatelliteID != 37605 {
		t.Errorf("entries = %q/%d, %q/%d", entries[0].Name, entries[0].SatelliteID, entries[1].Name, entries[1].SatelliteID)
	}
}

func TestFormatReproducesLines(t *testing.T) {
	e, err := ParseLines("", issLine1, issLine2)
	if err != nil {
		t.Fatal(err)
	}
	l1, l2, err := Format(e)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if l1 != issLine1 {
		t.Errorf("line 1\n got %q\nwant %q", l1, issLine1)
	}
	if l2 != issLine2 {
		t.Errorf("line 2\n got %q\nwant %q", l2, issLine2)
	}
}

func TestFormatModifiedElements(t *testing.T) {
	e, err := ParseLines("", geoLine1, geoLine2)
	if err != nil {
		t.Fatal(err)
	}
	e.Inclination = 2.1234
	e.Eccentricity = 0.0006091
	e.BStar = 3.5e-5

	l1, l2, err := Format(e)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	back, err := ParseLines("", l1, l2)
	if err != nil {
		t.Fatalf("ParseLines(Format): %v\n%s\n%s", err, l1, l2)
	}
	if back.Inclination != 2.1234 || math.Abs(back.Eccentricity-0.0006091) > 1e-12 {
		t.Errorf("incl %v ecc %v", back.Inclination, back.Eccentricity)
	}
	if math.Abs(back.BStar-3.5e-5) > 1e-12 {
		t.Errorf("bstar = %v", back.BStar)
	}
	if d := math.Abs(back.Epoch.Sub(e.Epoch).Seconds()); d > 1e-3 {
		t.Errorf("epoch drift %v s", d)
	}
}

func TestFormatRejects(t *testing.T) {
	e, _ := ParseLines("", geoLine1, geoLine2)
	tests := []struct {
		name   string
		modify func(*Entry)
	}{
		{"id", func(e *Entry) { e.SatelliteID = 100000 }},
		{"mean motion", func(e *Entry) { e.MeanMotion = 0 }},
		{"eccentricity", func(e *Entry) { e.Eccentricity = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := e
			tt.modify(&m)
			if _, _, err := Format(m); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFormatExp(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, " 00000-0"},
		{0.10270e-3, " 10270-3"},
		{-0.11606e-4, "-11606-4"},
		{0.5, " 50000+0"},
		{0.999999e-2, " 10000-1"},
	}
	for _, tt := range tests {
		if got := formatExp(tt.in); got != tt.want {
			t.Errorf("formatExp(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCatalog(t *testing.T) {
	entries, err := Parse(strings.NewReader(starlinkTLE+issTLE), testLogger)
	if err != nil {
		t.Fatal(err)
	}
	c := NewCatalog("test", "memory", entries[0].Epoch.Time(), entries)
	if c.Len() != 2 {
		t.Fatalf("Len = %d", c.Len())
	}
	if ids := c.IDs(); ids[0] != 25544 || ids[1] != 44713 {
		t.Errorf("IDs = %v", ids)
	}
	if _, ok := c.Get(44713); !ok {
		t.Error("Get(44713) missing")
	}
	if !c.EpochRange.Min.Equal(c.EpochRange.Max) {
		t.Errorf("epoch range %v", c.EpochRange)
	}

	s := NewStore()
	if s.Get() != nil || s.AgeSeconds() != -1 || s.Version() != 0 {
		t.Error("new store not empty")
	}
	if v := s.Set(c); v != 1 || s.Get() != c {
		t.Errorf("Set version = %d", v)
	}
}
