// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"sort"
	"sync"

	"github.com/spf13/afero"

	"github.com/voterprotocol/shadowatlas/internal/clock"
	"github.com/voterprotocol/shadowatlas/internal/errs"
	"github.com/voterprotocol/shadowatlas/pkg/catalog"
	"github.com/voterprotocol/shadowatlas/pkg/scanner"
)

const fileAppendFlags = os.O_APPEND | os.O_CREATE | os.O_WRONLY

// Registry is the C9 in-memory view of the three NDJSON files plus the
// audit log, all rooted under one directory. All mutating methods hold
// the Registry's in-process mutex (mu) and rewrite the affected file(s)
// with write-then-rename. No file-system lock is taken, so writers in
// separate processes (or separate Registry values on the same directory)
// are not serialized against each other.
type Registry struct {
	Fs    afero.Fs
	Dir   string
	Clock clock.Clock

	mu          sync.Mutex
	known       map[string]KnownEntry
	quarantined map[string]QuarantinedEntry
	atLarge     map[string]AtLargeEntry
}

// New constructs a Registry rooted at dir on fs. Call Load before use.
func New(fs afero.Fs, dir string, clk clock.Clock) *Registry {
	if clk == nil {
		clk = clock.Real()
	}
	return &Registry{
		Fs:          fs,
		Dir:         dir,
		Clock:       clk,
		known:       make(map[string]KnownEntry),
		quarantined: make(map[string]QuarantinedEntry),
		atLarge:     make(map[string]AtLargeEntry),
	}
}

func (r *Registry) filePath(name Name) string {
	return r.Dir + "/" + string(name) + ".ndjson"
}

func (r *Registry) auditPath() string {
	return r.Dir + "/audit.ndjson"
}

// Load reads all three registry files into memory. A missing file is
// treated as an empty registry (first run).
func (r *Registry) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := loadFile(r.Fs, r.filePath(Known), &r.known); err != nil {
		return err
	}
	if err := loadFile(r.Fs, r.filePath(Quarantined), &r.quarantined); err != nil {
		return err
	}
	if err := loadFile(r.Fs, r.filePath(AtLarge), &r.atLarge); err != nil {
		return err
	}
	return nil
}

// keyedEntry is implemented by every registry row's struct so loadFile
// can index it by FIPS generically.
type keyedEntry interface {
	fipsKey() string
}

func (e KnownEntry) fipsKey() string       { return e.FIPS }
func (e QuarantinedEntry) fipsKey() string { return e.FIPS }
func (e AtLargeEntry) fipsKey() string     { return e.FIPS }

func loadFile[T keyedEntry](fs afero.Fs, path string, into *map[string]T) error {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return errs.Wrap(errs.StorageError, "stat registry file "+path, err)
	}
	if !exists {
		return nil
	}
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return errs.Wrap(errs.StorageError, "read registry file "+path, err)
	}
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	first := true
	out := make(map[string]T)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if first {
			first = false
			continue // header line
		}
		var entry T
		if err := json.Unmarshal(line, &entry); err != nil {
			return errs.Wrap(errs.SchemaError, "decode registry line in "+path, err)
		}
		out[entry.fipsKey()] = entry
	}
	if err := scanner.Err(); err != nil {
		return errs.Wrap(errs.StorageError, "scan registry file "+path, err)
	}
	*into = out
	return nil
}

// writeFile rewrites one registry file atomically, sorted by FIPS
// ascending (spec.md §6 "Sort order on rewrite: by FIPS ascending").
func writeFile[T keyedEntry](fs afero.Fs, path string, name Name, now string, entries map[string]T) error {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	header := fileHeader{Schema: schemaVersion, File: string(name), Created: now}
	headerLine, err := json.Marshal(header)
	if err != nil {
		return errs.Wrap(errs.SchemaError, "encode registry header", err)
	}
	buf.Write(headerLine)
	buf.WriteByte('\n')
	for _, k := range keys {
		line, err := json.Marshal(entries[k])
		if err != nil {
			return errs.Wrap(errs.SchemaError, "encode registry entry", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	tmpPath := path + ".tmp"
	if err := afero.WriteFile(fs, tmpPath, buf.Bytes(), 0o644); err != nil {
		return errs.Wrap(errs.StorageError, "write temp registry file", err)
	}
	if err := fs.Rename(tmpPath, path); err != nil {
		return errs.Wrap(errs.StorageError, "rename registry file", err)
	}
	return nil
}

func (r *Registry) writeKnownLocked() error {
	return writeFile(r.Fs, r.filePath(Known), Known, r.Clock.Now().Format("2006-01-02T15:04:05Z07:00"), r.known)
}

func (r *Registry) writeQuarantinedLocked() error {
	return writeFile(r.Fs, r.filePath(Quarantined), Quarantined, r.Clock.Now().Format("2006-01-02T15:04:05Z07:00"), r.quarantined)
}

func (r *Registry) writeAtLargeLocked() error {
	return writeFile(r.Fs, r.filePath(AtLarge), AtLarge, r.Clock.Now().Format("2006-01-02T15:04:05Z07:00"), r.atLarge)
}

// appendAudit appends one audit record to the audit NDJSON. Per spec.md
// §4.9, this must be called and durably written before the primary
// registry file is rewritten, so a crash leaves at most one orphaned
// audit record rather than an unaudited mutation.
func (r *Registry) appendAudit(rec AuditRecord) error {
	rec.Ts = r.Clock.Now()
	line, err := json.Marshal(rec)
	if err != nil {
		return errs.Wrap(errs.SchemaError, "encode audit record", err)
	}
	line = append(line, '\n')

	f, err := r.Fs.OpenFile(r.auditPath(), fileAppendFlags, 0o644)
	if err != nil {
		return errs.Wrap(errs.StorageError, "open audit log", err)
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		return errs.Wrap(errs.StorageError, "append audit log", err)
	}
	if err := f.Sync(); err != nil {
		return errs.Wrap(errs.StorageError, "sync audit log", err)
	}
	return nil
}

// existingLocked reports which of the three files already carries fips.
func (r *Registry) existingLocked(fips string) (Name, bool) {
	if _, ok := r.known[fips]; ok {
		return Known, true
	}
	if _, ok := r.quarantined[fips]; ok {
		return Quarantined, true
	}
	if _, ok := r.atLarge[fips]; ok {
		return AtLarge, true
	}
	return "", false
}

// Add inserts a new known-portals entry. fips must not already exist in
// any of the three files (spec.md §4.9). When skipValidation is false
// and liveCheck is non-nil, the URL is liveness-checked before the
// entry is accepted. When cat is non-nil, entry.FeatureCount is run
// through C1's district-count gate (spec.md §4.5/§8 scenario 1, the
// Cincinnati defense: 9 council districts vs. 74 community councils) —
// this runs regardless of skipValidation, which governs URL liveness
// only, not the count gate.
func (r *Registry) Add(entry KnownEntry, actor, command string, skipValidation bool, liveCheck func(url string) error, cat *catalog.Catalog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.existingLocked(entry.FIPS); exists {
		return errs.New(errs.ValidationError, "fips "+entry.FIPS+" already registered")
	}
	if cat != nil {
		var featureCount *int
		if entry.FeatureCount > 0 {
			featureCount = &entry.FeatureCount
		}
		gate := scanner.DistrictCountGate(cat, entry.FIPS, featureCount)
		if !gate.Accepted {
			return errs.New(errs.ValidationError, "district count gate rejected fips "+entry.FIPS+": "+gate.Reason)
		}
	}
	if !skipValidation && liveCheck != nil {
		if err := liveCheck(entry.DownloadURL); err != nil {
			return errs.Wrap(errs.ValidationError, "liveness check failed for "+entry.DownloadURL, err)
		}
	}

	if err := r.appendAudit(AuditRecord{
		Op: OpAdd, Registry: Known, FIPS: entry.FIPS, After: entry, Command: command, Actor: actor,
	}); err != nil {
		return err
	}
	r.known[entry.FIPS] = entry
	return r.writeKnownLocked()
}

// updatableFields is the allow-list Update's patch may touch; fips is
// immutable and any other key is rejected (spec.md §4.9).
var updatableFields = map[string]bool{
	"city_name": true, "state": true, "portal_type": true, "download_url": true,
	"feature_count": true, "last_verified": true, "confidence": true,
	"discovered_by": true, "notes": true,
}

// Update applies a field-level patch to the known-portals entry for
// fips. Keys not in updatableFields (including "fips" itself) are
// rejected.
func (r *Registry) Update(fips string, patch map[string]any, actor, command string) (KnownEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k := range patch {
		if !updatableFields[k] {
			return KnownEntry{}, errs.New(errs.ValidationError, "field "+k+" is immutable or unknown")
		}
	}

	before, ok := r.known[fips]
	if !ok {
		return KnownEntry{}, errs.New(errs.NotFound, "fips "+fips+" not found in known-portals")
	}

	after := before
	raw, err := json.Marshal(patch)
	if err != nil {
		return KnownEntry{}, errs.Wrap(errs.SchemaError, "encode patch", err)
	}
	merged, err := json.Marshal(before)
	if err != nil {
		return KnownEntry{}, errs.Wrap(errs.SchemaError, "encode entry", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(merged, &m); err != nil {
		return KnownEntry{}, errs.Wrap(errs.SchemaError, "decode entry", err)
	}
	var p map[string]json.RawMessage
	if err := json.Unmarshal(raw, &p); err != nil {
		return KnownEntry{}, errs.Wrap(errs.SchemaError, "decode patch", err)
	}
	for k, v := range p {
		m[k] = v
	}
	combined, err := json.Marshal(m)
	if err != nil {
		return KnownEntry{}, errs.Wrap(errs.SchemaError, "re-encode merged entry", err)
	}
	if err := json.Unmarshal(combined, &after); err != nil {
		return KnownEntry{}, errs.Wrap(errs.SchemaError, "decode merged entry", err)
	}
	after.FIPS = before.FIPS // belt-and-braces: fips can never move even through a merge bug

	if err := r.appendAudit(AuditRecord{
		Op: OpUpdate, Registry: Known, FIPS: fips, Before: before, After: after, Command: command, Actor: actor,
	}); err != nil {
		return KnownEntry{}, err
	}
	r.known[fips] = after
	if err := r.writeKnownLocked(); err != nil {
		return KnownEntry{}, err
	}
	return after, nil
}

// Delete removes a known-portals entry. Soft delete (the default) moves
// it to quarantined with reason/pattern; hard delete (hard && force)
// removes it entirely (spec.md §4.9).
func (r *Registry) Delete(fips string, hard, force bool, reason string, pattern QuarantinePattern, actor, command string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	before, ok := r.known[fips]
	if !ok {
		return errs.New(errs.NotFound, "fips "+fips+" not found in known-portals")
	}

	if hard {
		if !force {
			return errs.New(errs.ValidationError, "hard delete requires --force")
		}
		if err := r.appendAudit(AuditRecord{
			Op: OpDelete, Registry: Known, FIPS: fips, Before: before, Reason: reason, Command: command, Actor: actor,
		}); err != nil {
			return err
		}
		delete(r.known, fips)
		return r.writeKnownLocked()
	}

	quarantinedEntry := QuarantinedEntry{
		KnownEntry:       before,
		QuarantineReason: reason,
		MatchedPattern:   pattern,
		QuarantinedAt:    r.Clock.Now(),
	}
	quarantinedEntry.Confidence = 0

	if err := r.appendAudit(AuditRecord{
		Op: OpQuarantine, Registry: Known, FIPS: fips, Before: before, After: quarantinedEntry, Reason: reason, Command: command, Actor: actor,
	}); err != nil {
		return err
	}
	delete(r.known, fips)
	r.quarantined[fips] = quarantinedEntry
	if err := r.writeKnownLocked(); err != nil {
		return err
	}
	return r.writeQuarantinedLocked()
}

// Get returns the entry for fips and which of the three registries it
// lives in, or ok=false if it is in none of them.
func (r *Registry) Get(fips string) (entry any, name Name, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, found := r.known[fips]; found {
		return e, Known, true
	}
	if e, found := r.quarantined[fips]; found {
		return e, Quarantined, true
	}
	if e, found := r.atLarge[fips]; found {
		return e, AtLarge, true
	}
	return nil, "", false
}

// ListFilter narrows List's results (spec.md §4.9).
type ListFilter struct {
	State            string
	PortalType       string
	MinConfidence    int
	HasMinConfidence bool
}

// List returns known-portals entries matching filter, sorted by FIPS.
func (r *Registry) List(filter ListFilter) []KnownEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]KnownEntry, 0, len(r.known))
	for _, e := range r.known {
		if filter.State != "" && e.State != filter.State {
			continue
		}
		if filter.PortalType != "" && e.PortalType != filter.PortalType {
			continue
		}
		if filter.HasMinConfidence && e.Confidence < filter.MinConfidence {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FIPS < out[j].FIPS })
	return out
}
