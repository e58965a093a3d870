// Package events holds the results of close-approach screening.
package events

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/star/orbitscreen/internal/epoch"
)

// CloseApproach is one pairwise minimum-distance event.
type CloseApproach struct {
	PrimaryID   int         `json:"primary_id"`
	SecondaryID int         `json:"secondary_id"`
	Epoch       epoch.Epoch `json:"epoch"`
	Distance    float64     `json:"distance_km"`
}

// Report aggregates the close approaches found in one screening run.
type Report struct {
	ID                uuid.UUID       `json:"id"`
	Start             epoch.Epoch     `json:"start"`
	End               epoch.Epoch     `json:"end"`
	DistanceThreshold float64         `json:"distance_threshold_km"`
	CreatedAt         time.Time       `json:"created_at"`
	PairsPruned       int             `json:"pairs_pruned"`
	PairsSearched     int             `json:"pairs_searched"`
	CloseApproaches   []CloseApproach `json:"close_approaches"`
}

// NewReport starts an empty report for a window and threshold (km).
func NewReport(start, end epoch.Epoch, threshold float64) *Report {
	return &Report{
		ID:                uuid.New(),
		Start:             start,
		End:               end,
		DistanceThreshold: threshold,
		CreatedAt:         time.Now().UTC(),
		CloseApproaches:   []CloseApproach{},
	}
}

// SetCloseApproaches replaces the events and sorts them.
func (r *Report) SetCloseApproaches(cas []CloseApproach) {
	r.CloseApproaches = append(r.CloseApproaches[:0], cas...)
	r.Sort()
}

// Sort orders events by epoch, then primary id, then secondary id.
func (r *Report) Sort() {
	slices.SortFunc(r.CloseApproaches, func(a, b CloseApproach) int {
		if c := a.Epoch.Compare(b.Epoch); c != 0 {
			return c
		}
		if c := cmp.Compare(a.PrimaryID, b.PrimaryID); c != 0 {
			return c
		}
		return cmp.Compare(a.SecondaryID, b.SecondaryID)
	})
}

// Involving returns the events in which id is either party.
func (r *Report) Involving(id int) []CloseApproach {
	var out []CloseApproach
	for _, ca := range r.CloseApproaches {
		if ca.PrimaryID == id || ca.SecondaryID == id {
			out = append(out, ca)
		}
	}
	return out
}

// Closest returns the event with the smallest distance.
func (r *Report) Closest() (CloseApproach, bool) {
	if len(r.CloseApproaches) == 0 {
		return CloseApproach{}, false
	}
	return slices.MinFunc(r.CloseApproaches, func(a, b CloseApproach) int {
		return cmp.Compare(a.Distance, b.Distance)
	}), true
}
