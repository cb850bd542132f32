// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"

	"github.com/spf13/afero"

	"github.com/voterprotocol/shadowatlas/internal/errs"
	"github.com/voterprotocol/shadowatlas/pkg/batch"
	"github.com/voterprotocol/shadowatlas/pkg/boundary"
	"github.com/voterprotocol/shadowatlas/pkg/provider"
	"github.com/voterprotocol/shadowatlas/pkg/provider/arcgis"
	"github.com/voterprotocol/shadowatlas/pkg/provider/ckan"
	"github.com/voterprotocol/shadowatlas/pkg/provider/curated"
	"github.com/voterprotocol/shadowatlas/pkg/provider/hub"
	"github.com/voterprotocol/shadowatlas/pkg/provider/socrata"
	"github.com/voterprotocol/shadowatlas/pkg/provider/tiger"
	"github.com/voterprotocol/shadowatlas/pkg/source"
)

// providerFetcher dispatches a family-agnostic fetch request to the
// right pkg/provider.Family implementation by source.PortalFamily,
// satisfying both batch.LayerFetcher (state/layer scope, C7) and
// incremental.JurisdictionFetcher (per-jurisdiction scope, C8) from one
// struct, mirroring provider.Family's own one-interface-many-backends
// shape.
type providerFetcher struct {
	families map[source.PortalFamily]provider.Family
}

// newProviderFetcher wires every portal family provider against a
// shared content cache rooted at cacheDir.
func newProviderFetcher(fs afero.Fs, cacheDir string) *providerFetcher {
	cache := provider.NewContentCache(fs, cacheDir)
	return &providerFetcher{
		families: map[source.PortalFamily]provider.Family{
			source.FamilyTIGER:     tiger.New(cache),
			source.FamilyArcGIS:    arcgis.New(cache),
			source.FamilyCKAN:      ckan.New(cache),
			source.FamilySocrata:   socrata.New(cache),
			source.FamilyArcGISHub: hub.New(cache),
			source.FamilyCurated:   curated.New(fs),
		},
	}
}

func (f *providerFetcher) family(fam source.PortalFamily) (provider.Family, error) {
	p, ok := f.families[fam]
	if !ok {
		return nil, errs.New(errs.ConfigError, "no provider registered for portal family "+string(fam))
	}
	return p, nil
}

// FetchLayer implements batch.LayerFetcher (C7): state/layer/year scope
// against the TIGER family, the only one batch ingestion targets.
func (f *providerFetcher) FetchLayer(ctx context.Context, stateFIPS, layer string, year int, forceRefresh bool) (batch.FetchResult, error) {
	p, err := f.family(source.FamilyTIGER)
	if err != nil {
		return batch.FetchResult{}, err
	}
	opts := provider.Options{Layer: layer, StateFIPS: stateFIPS, Year: year, ForceRefresh: forceRefresh}
	raw, err := p.DownloadLayer(ctx, opts)
	if err != nil {
		return batch.FetchResult{}, err
	}
	boundaries, err := p.Transform(raw, opts)
	if err != nil {
		return batch.FetchResult{}, err
	}
	return batch.FetchResult{Boundaries: boundaries}, nil
}

// Fetch implements incremental.JurisdictionFetcher (C8): a single
// jurisdiction-scoped source, dispatched by its own portal family.
func (f *providerFetcher) Fetch(ctx context.Context, src source.Source, forceRefresh bool) ([]boundary.NormalizedBoundary, error) {
	p, err := f.family(src.PortalFamily)
	if err != nil {
		return nil, err
	}
	opts := provider.Options{Layer: src.BoundaryLayer, SourceURL: src.URL, ForceRefresh: forceRefresh}
	raw, err := p.DownloadLayer(ctx, opts)
	if err != nil {
		return nil, err
	}
	return p.Transform(raw, opts)
}
