package tle

import (
	"sort"
	"time"

	"github.com/star/orbitscreen/internal/epoch"
)

// Entry is one parsed two-line element set. Angles are in degrees, mean motion in
// rev/day, MeanMotionDot and MeanMotionDDot carry the values printed in the TLE
// (first and second derivative over 2 and 6).
type Entry struct {
	SatelliteID      int
	Name             string
	Classification   byte
	Designator       string
	Epoch            epoch.Epoch
	MeanMotionDot    float64
	MeanMotionDDot   float64
	BStar            float64
	Inclination      float64
	RAAN             float64
	Eccentricity     float64
	ArgPerigee       float64
	MeanAnomaly      float64
	MeanMotion       float64
	ElementSetNumber int
	RevNumber        int
	Line1            string
	Line2            string
}

// EpochRange represents the minimum and maximum element epochs in a catalog.
type EpochRange struct {
	Min time.Time
	Max time.Time
}

// Catalog is a named set of entries keyed by satellite id.
type Catalog struct {
	Name       string
	Source     string
	FetchedAt  time.Time
	EpochRange EpochRange
	Entries    map[int]Entry
}

// NewCatalog indexes entries by satellite id. Later duplicates replace earlier ones.
func NewCatalog(name, source string, fetchedAt time.Time, entries []Entry) *Catalog {
	c := &Catalog{
		Name:      name,
		Source:    source,
		FetchedAt: fetchedAt,
		Entries:   make(map[int]Entry, len(entries)),
	}
	for _, e := range entries {
		c.Entries[e.SatelliteID] = e
		t := e.Epoch.Time()
		if c.EpochRange.Min.IsZero() || t.Before(c.EpochRange.Min) {
			c.EpochRange.Min = t
		}
		if t.After(c.EpochRange.Max) {
			c.EpochRange.Max = t
		}
	}
	return c
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.Entries) }

// IDs returns the satellite ids in ascending order.
func (c *Catalog) IDs() []int {
	ids := make([]int, 0, len(c.Entries))
	for id := range c.Entries {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Get returns the entry for id.
func (c *Catalog) Get(id int) (Entry, bool) {
	e, ok := c.Entries[id]
	return e, ok
}
