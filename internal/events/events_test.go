package events

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/star/orbitscreen/internal/epoch"
)

func TestReportSort(t *testing.T) {
	t0 := epoch.FromComponents(2025, 4, 15, 12, 0, 0, epoch.UTC)
	t1 := t0.Add(epoch.FromMinutes(5))

	r := NewReport(t0, t0.Add(epoch.FromDays(1)), 10)
	r.SetCloseApproaches([]CloseApproach{
		{PrimaryID: 3, SecondaryID: 4, Epoch: t1, Distance: 1},
		{PrimaryID: 2, SecondaryID: 9, Epoch: t0, Distance: 5},
		{PrimaryID: 1, SecondaryID: 7, Epoch: t1, Distance: 2},
		{PrimaryID: 1, SecondaryID: 5, Epoch: t1, Distance: 3},
	})

	want := [][2]int{{2, 9}, {1, 5}, {1, 7}, {3, 4}}
	for i, ca := range r.CloseApproaches {
		if ca.PrimaryID != want[i][0] || ca.SecondaryID != want[i][1] {
			t.Errorf("event %d = (%d, %d), want %v", i, ca.PrimaryID, ca.SecondaryID, want[i])
		}
	}

	if got := r.Involving(1); len(got) != 2 {
		t.Errorf("Involving(1) = %d events", len(got))
	}
	if c, ok := r.Closest(); !ok || c.PrimaryID != 3 {
		t.Errorf("Closest = %+v", c)
	}
}

func TestReportJSON(t *testing.T) {
	t0 := epoch.FromComponents(2025, 4, 15, 12, 0, 0, epoch.UTC)
	r := NewReport(t0, t0.Add(epoch.FromHours(1)), 25)

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"start":"2025-04-15T12:00:00.000Z"`, `"close_approaches":[]`, `"distance_threshold_km":25`} {
		if !strings.Contains(string(b), want) {
			t.Errorf("json missing %s: %s", want, b)
		}
	}
	if _, ok := r.Closest(); ok {
		t.Error("empty report has a closest event")
	}
}
