package matching

import (
	"sort"
	"time"

	"github.com/vambora/dispatch/internal/presence"
	"github.com/vambora/dispatch/pkg/geo"
)

// Candidate is one driver connection ranked for solicitation.
type Candidate struct {
	ConnID     string
	DriverID   string
	DistanceKm float64
}

// SelectorConfig tunes candidate selection.
type SelectorConfig struct {
	// StaleAfter bounds how old a position fix may be before the
	// driver drops out of distance ranking.
	StaleAfter time.Duration

	// QuickTest short-circuits eligibility so a bench setup with no
	// GPS feed still gets offers. Every known driver ranks at
	// distance zero.
	QuickTest bool
}

// Selector ranks connected drivers for a pickup point.
type Selector struct {
	drivers *presence.Registry
	cfg     SelectorConfig
}

// NewSelector creates a selector over the driver registry.
func NewSelector(drivers *presence.Registry, cfg SelectorConfig) *Selector {
	return &Selector{drivers: drivers, cfg: cfg}
}

// Shortlist returns the drivers to solicit for a pickup, nearest
// first, excluding connections already offered the ride. Drivers who
// are available but have no fresh fix rank last at a sentinel
// distance, so a ride is never starved just because telemetry lags.
// Ordering is deterministic: distance, then connection ID.
func (s *Selector) Shortlist(pickup geo.Coordinate, exclude map[string]struct{}) []Candidate {
	snapshot := s.drivers.Snapshot()
	now := time.Now()

	var out []Candidate

	if s.cfg.QuickTest {
		for _, d := range snapshot {
			if _, skip := exclude[d.ConnID]; skip {
				continue
			}
			out = append(out, Candidate{ConnID: d.ConnID, DriverID: d.DriverID, DistanceKm: 0})
		}
		sortCandidates(out)
		return out
	}

	for _, d := range snapshot {
		if _, skip := exclude[d.ConnID]; skip {
			continue
		}
		if !d.EligibleAt(now, s.cfg.StaleAfter) {
			continue
		}
		out = append(out, Candidate{
			ConnID:     d.ConnID,
			DriverID:   d.DriverID,
			DistanceKm: geo.Between(&pickup, &d.Last.Coordinate),
		})
	}

	if len(out) == 0 {
		for _, d := range snapshot {
			if _, skip := exclude[d.ConnID]; skip {
				continue
			}
			if !d.Available {
				continue
			}
			out = append(out, Candidate{ConnID: d.ConnID, DriverID: d.DriverID, DistanceKm: geo.UnknownDistance})
		}
	}

	sortCandidates(out)
	return out
}

func sortCandidates(cands []Candidate) {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].DistanceKm != cands[j].DistanceKm {
			return cands[i].DistanceKm < cands[j].DistanceKm
		}
		return cands[i].ConnID < cands[j].ConnID
	})
}
