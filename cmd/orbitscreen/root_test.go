package main

import (
	"math"
	"testing"
	"time"
)

func TestParseSite(t *testing.T) {
	tests := []struct {
		in      string
		lat     float64
		wantErr bool
	}{
		{"40.7128,-74.006,0.01", 40.7128, false},
		{" 30, 0, 0 ", 30, false},
		{"40.7,-74", 0, true},
		{"north,-74,0", 0, true},
		{"91,0,0", 0, true},
		{"0,181,0", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			site, err := parseSite(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && site.Latitude != tt.lat {
				t.Errorf("latitude = %v, want %v", site.Latitude, tt.lat)
			}
		})
	}
}

func TestWindow(t *testing.T) {
	start, end, err := window("2025-04-15T12:00:00Z", "", 6*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if got := end.Sub(start).Seconds(); math.Abs(got-6*3600) > 1e-3 {
		t.Errorf("span = %v s, want 21600", got)
	}

	if _, _, err := window("2025-04-15T12:00:00Z", "2025-04-15T11:00:00Z", time.Hour); err == nil {
		t.Error("end before start: expected error")
	}
	if _, _, err := window("tomorrow", "", time.Hour); err == nil {
		t.Error("bad start: expected error")
	}
}
