// SPDX-License-Identifier: AGPL-3.0-or-later

// Package scanner implements the Portal Scanner (C5): for a
// jurisdiction lacking a known source, run several discovery strategies
// and merge their results into a ranked, gated candidate list.
//
// Grounded on pkg/tools/search.go's rank-and-drop-low-scorers posture
// from the teacher repo, generalized from code search to portal-title
// search.
package scanner

import (
	"context"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/voterprotocol/shadowatlas/pkg/catalog"
)

// PortalType discriminates the kind of portal a candidate was found on.
type PortalType string

const (
	PortalDirect   PortalType = "direct"
	PortalHub      PortalType = "hub"
	PortalCKAN     PortalType = "ckan"
	PortalSocrata  PortalType = "socrata"
	PortalArcGIS   PortalType = "arcgis-rest"
)

// PortalCandidate is a discovered boundary source awaiting promotion to
// a registered Source (spec.md §4.5).
type PortalCandidate struct {
	ID           string
	Title        string
	Description  string
	URL          string
	DownloadURL  string
	Score        int
	PortalType   PortalType
	FeatureCount *int
	Confidence   int
}

// GovernanceKeywords are the layer-name substrings the REST enumeration
// strategy requires a layer to match before it is even scored (spec.md
// §4.5 strategy 4).
var GovernanceKeywords = []string{
	"council", "district", "ward", "precinct", "voting",
	"electoral", "boundary", "legislative", "municipal", "city", "county", "governance",
}

// SkipFolders are the ArcGIS REST services-tree folder names the
// recursive enumeration strategy prunes (spec.md §4.5 strategy 4).
var SkipFolders = map[string]bool{
	"utilities": true, "transportation": true, "basemaps": true,
	"imagery": true, "elevation": true, "parcels": true,
	"environment": true, "recreation": true,
}

const (
	minScore        = 30
	stateAuthorityBoost = 18
	maxEnumerationDepth = 5
)

// ScoreTitle assigns a candidate title a 0-100 semantic relevance score
// against GovernanceKeywords: each distinct keyword match contributes,
// capped at 100. This is deliberately simple word-overlap scoring, not
// an embeddings-based ranker — spec.md §4.5 only requires "a
// semantic-title scorer", not any particular algorithm.
func ScoreTitle(title string) int {
	lower := strings.ToLower(title)
	score := 0
	matched := 0
	for _, kw := range GovernanceKeywords {
		if strings.Contains(lower, kw) {
			matched++
		}
	}
	switch {
	case matched == 0:
		score = 0
	case matched == 1:
		score = 45
	case matched == 2:
		score = 70
	default:
		score = 90
	}
	if strings.Contains(lower, "boundary") || strings.Contains(lower, "boundaries") {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	return score
}

// MatchesGovernanceKeyword reports whether name contains at least one
// GovernanceKeywords substring, case-insensitively — the REST
// enumeration strategy's layer-name gate (spec.md §4.5 strategy 4).
func MatchesGovernanceKeyword(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range GovernanceKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// GateResult is the district-count gate's verdict for one candidate.
type GateResult struct {
	Accepted   bool
	Confidence int
	Reason     string
}

// DistrictCountGate cross-checks a candidate's feature_count against
// C1's expected-district table for placeFIPS, the explicit defense
// against the Cincinnati failure (spec.md §4.5, §8 scenario 1).
func DistrictCountGate(cat *catalog.Catalog, placeFIPS string, featureCount *int) GateResult {
	entry, known := cat.ExpectedDistrictCount(placeFIPS)
	if !known {
		return GateResult{Accepted: true, Confidence: 50, Reason: "unknown jurisdiction"}
	}

	if entry.Expected == nil {
		if featureCount != nil && *featureCount == 1 {
			return GateResult{Accepted: true, Confidence: 100, Reason: "at-large, single feature confirmed"}
		}
		return GateResult{Accepted: false, Confidence: 0, Reason: "at-large jurisdiction but feature_count != 1"}
	}

	if featureCount == nil {
		return GateResult{Accepted: false, Confidence: 0, Reason: "no feature_count reported"}
	}

	diff := *entry.Expected - *featureCount
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff == 0:
		return GateResult{Accepted: true, Confidence: 100, Reason: "exact district count match"}
	case diff <= 2:
		return GateResult{Accepted: true, Confidence: 70, Reason: "within redistricting tolerance"}
	default:
		return GateResult{Accepted: false, Confidence: 0, Reason: "district count diverges beyond tolerance"}
	}
}

// StrategyFunc is one discovery strategy: given a jurisdiction query, it
// returns raw (unscored, ungated) candidates. Implementations live
// alongside concrete portal integrations (direct-layer registries, Hub
// and CKAN catalog search, ArcGIS REST enumeration). There is no Socrata
// catalog-search strategy.
type StrategyFunc func(ctx context.Context, query Query) ([]PortalCandidate, error)

// Query describes the jurisdiction a scan is searching for.
type Query struct {
	PlaceFIPS    string
	StateFIPS    string
	Keywords     []string
	StatePortal  bool // true when the candidate's source endpoint is a state-run GIS portal
}

// Scanner runs a set of strategies in order, merges and dedupes
// results, scores and gates them.
type Scanner struct {
	Catalog    *catalog.Catalog
	Strategies []StrategyFunc
	seen       *lru.Cache[uint64, struct{}]
}

// New constructs a Scanner bound to a catalog, with an LRU-bounded
// dedup cache sized for long, many-state scan runs (drawn from the
// example pack's hashicorp/golang-lru/v2 usage).
func New(cat *catalog.Catalog, strategies ...StrategyFunc) *Scanner {
	cache, _ := lru.New[uint64, struct{}](4096)
	return &Scanner{Catalog: cat, Strategies: strategies, seen: cache}
}

func dedupKey(title, url string) uint64 {
	return xxhash.Sum64String(title + "|" + url)
}

// Scan runs every strategy in order, merging results, dropping
// duplicates (by title+url), scoring and then gating each survivor.
// Candidates scoring below minScore, or rejected by the district-count
// gate, are dropped (spec.md §4.5).
func (s *Scanner) Scan(ctx context.Context, query Query) ([]PortalCandidate, error) {
	var merged []PortalCandidate
	for _, strat := range s.Strategies {
		candidates, err := strat(ctx, query)
		if err != nil {
			continue // per-strategy failures do not abort the scan
		}
		for _, c := range candidates {
			key := dedupKey(c.Title, c.URL)
			if s.seen != nil {
				if _, dup := s.seen.Get(key); dup {
					continue
				}
				s.seen.Add(key, struct{}{})
			}
			merged = append(merged, c)
		}
	}

	var out []PortalCandidate
	for _, c := range merged {
		c.Score = ScoreTitle(c.Title)
		if query.StatePortal || c.PortalType == PortalDirect {
			c.Score += stateAuthorityBoost
			if c.Score > 100 {
				c.Score = 100
			}
		}
		if c.Score < minScore {
			continue
		}

		gate := DistrictCountGate(s.Catalog, query.PlaceFIPS, c.FeatureCount)
		if !gate.Accepted {
			continue
		}
		c.Confidence = gate.Confidence
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}
