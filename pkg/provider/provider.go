// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider defines the Boundary Provider (C4) capability:
// {download_layer, transform}, implemented once per portal family in
// the sibling packages (tiger, arcgis, ckan, socrata, hub, curated).
//
// Grounded on pkg/storage/embedded.go's Backend interface-segregation
// pattern from the teacher repo (a narrow interface, one concrete
// struct per backend), generalized here to "one concrete struct per
// portal family".
package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/spf13/afero"

	"github.com/voterprotocol/shadowatlas/internal/errs"
	"github.com/voterprotocol/shadowatlas/pkg/boundary"
)

// Options is the caller-supplied download/transform scope (spec.md
// §4.4): layer code, jurisdiction scope, vintage year, force_refresh.
type Options struct {
	Layer        string
	StateFIPS    string // empty means national scope
	Year         int
	ForceRefresh bool

	// SourceURL is the portal endpoint to query. Every family except
	// tiger requires this to be set; tiger derives its own bit-exact
	// bulk-zip URL from Layer/StateFIPS/Year per spec.md §6 when
	// SourceURL is empty, and uses SourceURL verbatim otherwise (an
	// override for mirrors and for tests).
	SourceURL string
}

// RawFile is one opaque file a Family's DownloadLayer retrieves —
// a shapefile component, a GeoJSON payload, a zip archive member.
type RawFile struct {
	Name string
	Data []byte
}

// Family is the polymorphic per-portal-family capability spec.md §4.4
// defines: download raw files, then transform them into normalized
// boundaries.
type Family interface {
	DownloadLayer(ctx context.Context, opts Options) ([]RawFile, error)
	Transform(raw []RawFile, opts Options) ([]boundary.NormalizedBoundary, error)
}

// ContentCache is the content-addressed local download cache shared by
// every Family implementation (spec.md §4.4: "local cache is content-
// addressed; corrupt archives are rejected"). Backed by afero so
// production uses the OS filesystem and tests use an in-memory one.
type ContentCache struct {
	Fs   afero.Fs
	Root string
}

// NewContentCache constructs a cache rooted at root on fs.
func NewContentCache(fs afero.Fs, root string) *ContentCache {
	return &ContentCache{Fs: fs, Root: root}
}

// sha256Hex is the cache key / integrity digest for a blob.
func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Path returns the cache-file path for a blob's content hash.
func (c *ContentCache) Path(contentHash string) string {
	return c.Root + "/" + contentHash
}

// Store writes data to the cache keyed by its own content hash and
// returns that hash.
func (c *ContentCache) Store(data []byte) (string, error) {
	hash := sha256Hex(data)
	if err := c.Fs.MkdirAll(c.Root, 0o755); err != nil {
		return "", errs.Wrap(errs.StorageError, "create cache dir", err)
	}
	if err := afero.WriteFile(c.Fs, c.Path(hash), data, 0o644); err != nil {
		return "", errs.Wrap(errs.StorageError, "write cache entry", err)
	}
	return hash, nil
}

// Load reads a cached blob by its expected content hash, verifying
// integrity on read: a hash mismatch is an IntegrityError, never a
// silent retry (spec.md §4.4).
func (c *ContentCache) Load(expectedHash string) ([]byte, bool, error) {
	exists, err := afero.Exists(c.Fs, c.Path(expectedHash))
	if err != nil {
		return nil, false, errs.Wrap(errs.StorageError, "stat cache entry", err)
	}
	if !exists {
		return nil, false, nil
	}
	data, err := afero.ReadFile(c.Fs, c.Path(expectedHash))
	if err != nil {
		return nil, false, errs.Wrap(errs.StorageError, "read cache entry", err)
	}
	if sha256Hex(data) != expectedHash {
		return nil, false, errs.New(errs.IntegrityError, "cached blob content hash mismatch")
	}
	return data, true, nil
}

// VerifyIntegrity checks data against an expected hash, returning
// IntegrityError on mismatch (spec.md §4.4's "corrupt archives are
// rejected").
func VerifyIntegrity(data []byte, expectedHash string) error {
	if expectedHash == "" {
		return nil
	}
	if sha256Hex(data) != expectedHash {
		return errs.New(errs.IntegrityError, "downloaded content hash mismatch")
	}
	return nil
}
