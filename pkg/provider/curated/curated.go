// SPDX-License-Identifier: AGPL-3.0-or-later

package curated

import (
	"context"

	"github.com/spf13/afero"

	"github.com/voterprotocol/shadowatlas/internal/errs"
	"github.com/voterprotocol/shadowatlas/pkg/boundary"
	"github.com/voterprotocol/shadowatlas/pkg/provider"
)

// Provider is the curated Family implementation: a filesystem-backed
// read of an operator-supplied GeoJSON file.
type Provider struct {
	Fs afero.Fs
}

// New constructs a curated Provider reading from fs.
func New(fs afero.Fs) *Provider {
	return &Provider{Fs: fs}
}

// DownloadLayer reads opts.SourceURL as a filesystem path (curated
// sources have no network endpoint — "download" here means "load from
// the operator-maintained file").
func (p *Provider) DownloadLayer(ctx context.Context, opts provider.Options) ([]provider.RawFile, error) {
	if opts.SourceURL == "" {
		return nil, errs.New(errs.SchemaError, "curated provider requires Options.SourceURL to be a file path")
	}
	data, err := afero.ReadFile(p.Fs, opts.SourceURL)
	if err != nil {
		return nil, errs.Wrap(errs.NotFound, "read curated file "+opts.SourceURL, err)
	}
	return []provider.RawFile{{Name: opts.SourceURL, Data: data}}, nil
}

// Transform decodes the curated GeoJSON file into normalized
// boundaries using the same canonical schema every other family
// targets (see doc.go).
func (p *Provider) Transform(raw []provider.RawFile, opts provider.Options) ([]boundary.NormalizedBoundary, error) {
	if len(raw) == 0 {
		return nil, errs.New(errs.SchemaError, "no raw files to transform")
	}
	return provider.ParseFeatureCollection(raw[0].Data, opts.Layer, opts.StateFIPS)
}

var _ provider.Family = (*Provider)(nil)
