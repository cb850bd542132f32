// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import "time"

// StalenessBucket is one of spec.md §4.9's four staleness buckets.
type StalenessBucket string

const (
	StalenessUnder30   StalenessBucket = "<30d"
	Staleness30To90    StalenessBucket = "30-90d"
	Staleness90To180   StalenessBucket = "90-180d"
	StalenessOver180   StalenessBucket = ">180d"
)

// Stats is the aggregate report `registry stats` produces (spec.md §4.9).
type Stats struct {
	TotalKnown       int
	TotalQuarantined int
	TotalAtLarge     int
	ByState          map[string]int
	ByPortalType     map[string]int
	ByQuarantinePattern map[QuarantinePattern]int
	ConfidenceHistogram map[int]int // bucketed down to a multiple of 10
	Staleness        map[StalenessBucket]int
	ByDiscoveredBy   map[string]int
}

func stalenessBucket(lastVerified, now time.Time) StalenessBucket {
	age := now.Sub(lastVerified)
	switch {
	case age < 30*24*time.Hour:
		return StalenessUnder30
	case age < 90*24*time.Hour:
		return Staleness30To90
	case age < 180*24*time.Hour:
		return Staleness90To180
	default:
		return StalenessOver180
	}
}

func confidenceBucket(c int) int {
	return (c / 10) * 10
}

// Stats computes the aggregate report over all three registries.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.Clock.Now()
	s := Stats{
		ByState:             make(map[string]int),
		ByPortalType:        make(map[string]int),
		ByQuarantinePattern: make(map[QuarantinePattern]int),
		ConfidenceHistogram: make(map[int]int),
		Staleness:           make(map[StalenessBucket]int),
		ByDiscoveredBy:      make(map[string]int),
	}

	s.TotalKnown = len(r.known)
	s.TotalQuarantined = len(r.quarantined)
	s.TotalAtLarge = len(r.atLarge)

	for _, e := range r.known {
		s.ByState[e.State]++
		s.ByPortalType[e.PortalType]++
		s.ConfidenceHistogram[confidenceBucket(e.Confidence)]++
		s.Staleness[stalenessBucket(e.LastVerified, now)]++
		s.ByDiscoveredBy[e.DiscoveredBy]++
	}
	for _, e := range r.quarantined {
		s.ByQuarantinePattern[e.MatchedPattern]++
	}
	return s
}
