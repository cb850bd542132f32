// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import "reflect"

// FieldDiff names one field that differs between the NDJSON entry and
// the generated artifact's entry for the same FIPS.
type FieldDiff struct {
	Field    string
	NDJSON   any
	Artifact any
}

// EntryDiff is one FIPS's comparison result.
type EntryDiff struct {
	FIPS   string
	Fields []FieldDiff
}

// KnownDiff is the known-portals file's added/removed/modified/identical
// breakdown against a generated artifact.
type KnownDiff struct {
	Added     []KnownEntry
	Removed   []KnownEntry
	Modified  []EntryDiff
	Identical int
}

// InSync reports whether this file's comparison found no drift.
func (d KnownDiff) InSync() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0
}

// QuarantinedDiff is the quarantined-portals file's comparison result.
type QuarantinedDiff struct {
	Added     []QuarantinedEntry
	Removed   []QuarantinedEntry
	Modified  []EntryDiff
	Identical int
}

// InSync reports whether this file's comparison found no drift.
func (d QuarantinedDiff) InSync() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0
}

// AtLargeDiff is the at-large-cities file's comparison result.
type AtLargeDiff struct {
	Added     []AtLargeEntry
	Removed   []AtLargeEntry
	Modified  []EntryDiff
	Identical int
}

// InSync reports whether this file's comparison found no drift.
func (d AtLargeDiff) InSync() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0
}

// DiffResult is `registry diff`'s output (spec.md §4.9): a per-registry
// added/removed/modified/identical breakdown across all three NDJSON
// files, with field-level diffs on modified entries. Exit code 1 means
// any of the three files is out of sync; 0 means all three are in sync.
type DiffResult struct {
	Known       KnownDiff
	Quarantined QuarantinedDiff
	AtLarge     AtLargeDiff
}

// InSync reports whether the diff found no drift in any of the three files.
func (d DiffResult) InSync() bool {
	return d.Known.InSync() && d.Quarantined.InSync() && d.AtLarge.InSync()
}

// DiffInput bundles one generated artifact's entries for all three
// registry files, keyed by FIPS within each file (spec.md §4.9).
type DiffInput struct {
	Known       []KnownEntry
	Quarantined []QuarantinedEntry
	AtLarge     []AtLargeEntry
}

// Diff compares the in-memory registry (all three files) against a
// generated artifact (e.g. compiled into a code artifact), keyed by
// FIPS within each file.
func (r *Registry) Diff(generated DiffInput) DiffResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	return DiffResult{
		Known:       diffKnown(r.known, generated.Known),
		Quarantined: diffQuarantined(r.quarantined, generated.Quarantined),
		AtLarge:     diffAtLarge(r.atLarge, generated.AtLarge),
	}
}

func diffKnown(current map[string]KnownEntry, generated []KnownEntry) KnownDiff {
	genByFIPS := make(map[string]KnownEntry, len(generated))
	for _, g := range generated {
		genByFIPS[g.FIPS] = g
	}

	var result KnownDiff
	for fips, ndjsonEntry := range current {
		gen, ok := genByFIPS[fips]
		if !ok {
			result.Removed = append(result.Removed, ndjsonEntry)
			continue
		}
		fields := diffKnownFields(ndjsonEntry, gen)
		if len(fields) == 0 {
			result.Identical++
		} else {
			result.Modified = append(result.Modified, EntryDiff{FIPS: fips, Fields: fields})
		}
	}
	for fips, gen := range genByFIPS {
		if _, ok := current[fips]; !ok {
			result.Added = append(result.Added, gen)
		}
	}
	return result
}

func diffQuarantined(current map[string]QuarantinedEntry, generated []QuarantinedEntry) QuarantinedDiff {
	genByFIPS := make(map[string]QuarantinedEntry, len(generated))
	for _, g := range generated {
		genByFIPS[g.FIPS] = g
	}

	var result QuarantinedDiff
	for fips, ndjsonEntry := range current {
		gen, ok := genByFIPS[fips]
		if !ok {
			result.Removed = append(result.Removed, ndjsonEntry)
			continue
		}
		fields := diffKnownFields(ndjsonEntry.KnownEntry, gen.KnownEntry)
		if ndjsonEntry.QuarantineReason != gen.QuarantineReason {
			fields = append(fields, FieldDiff{"quarantine_reason", ndjsonEntry.QuarantineReason, gen.QuarantineReason})
		}
		if ndjsonEntry.MatchedPattern != gen.MatchedPattern {
			fields = append(fields, FieldDiff{"matched_pattern", ndjsonEntry.MatchedPattern, gen.MatchedPattern})
		}
		if len(fields) == 0 {
			result.Identical++
		} else {
			result.Modified = append(result.Modified, EntryDiff{FIPS: fips, Fields: fields})
		}
	}
	for fips, gen := range genByFIPS {
		if _, ok := current[fips]; !ok {
			result.Added = append(result.Added, gen)
		}
	}
	return result
}

func diffAtLarge(current map[string]AtLargeEntry, generated []AtLargeEntry) AtLargeDiff {
	genByFIPS := make(map[string]AtLargeEntry, len(generated))
	for _, g := range generated {
		genByFIPS[g.FIPS] = g
	}

	var result AtLargeDiff
	for fips, ndjsonEntry := range current {
		gen, ok := genByFIPS[fips]
		if !ok {
			result.Removed = append(result.Removed, ndjsonEntry)
			continue
		}
		var fields []FieldDiff
		if ndjsonEntry.CityName != gen.CityName {
			fields = append(fields, FieldDiff{"city_name", ndjsonEntry.CityName, gen.CityName})
		}
		if ndjsonEntry.State != gen.State {
			fields = append(fields, FieldDiff{"state", ndjsonEntry.State, gen.State})
		}
		if ndjsonEntry.Notes != gen.Notes {
			fields = append(fields, FieldDiff{"notes", ndjsonEntry.Notes, gen.Notes})
		}
		if len(fields) == 0 {
			result.Identical++
		} else {
			result.Modified = append(result.Modified, EntryDiff{FIPS: fips, Fields: fields})
		}
	}
	for fips, gen := range genByFIPS {
		if _, ok := current[fips]; !ok {
			result.Added = append(result.Added, gen)
		}
	}
	return result
}

func diffKnownFields(a, b KnownEntry) []FieldDiff {
	var out []FieldDiff
	if a.CityName != b.CityName {
		out = append(out, FieldDiff{"city_name", a.CityName, b.CityName})
	}
	if a.State != b.State {
		out = append(out, FieldDiff{"state", a.State, b.State})
	}
	if a.PortalType != b.PortalType {
		out = append(out, FieldDiff{"portal_type", a.PortalType, b.PortalType})
	}
	if a.DownloadURL != b.DownloadURL {
		out = append(out, FieldDiff{"download_url", a.DownloadURL, b.DownloadURL})
	}
	if a.FeatureCount != b.FeatureCount {
		out = append(out, FieldDiff{"feature_count", a.FeatureCount, b.FeatureCount})
	}
	if a.Confidence != b.Confidence {
		out = append(out, FieldDiff{"confidence", a.Confidence, b.Confidence})
	}
	if a.DiscoveredBy != b.DiscoveredBy {
		out = append(out, FieldDiff{"discovered_by", a.DiscoveredBy, b.DiscoveredBy})
	}
	if !reflect.DeepEqual(a.LastVerified, b.LastVerified) {
		out = append(out, FieldDiff{"last_verified", a.LastVerified, b.LastVerified})
	}
	return out
}
