// SPDX-License-Identifier: AGPL-3.0-or-later

// Package hub implements the Boundary Provider (C4) for ArcGIS Hub
// open-data dataset pages: request the dataset's GeoJSON download
// representation directly.
package hub

import (
	"context"
	"fmt"
	"io"
	"strings"

	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"github.com/voterprotocol/shadowatlas/internal/errs"
	"github.com/voterprotocol/shadowatlas/pkg/boundary"
	"github.com/voterprotocol/shadowatlas/pkg/provider"
)

const userAgent = "VOTER-Protocol-ShadowAtlas/1.0 (Boundary Provider: ArcGIS Hub)"

// Provider is the hub Family implementation.
type Provider struct {
	Client *retryablehttp.Client
	Cache  *provider.ContentCache
}

// New constructs a hub Provider with a retrying HTTP client.
func New(cache *provider.ContentCache) *Provider {
	client := retryablehttp.NewClient()
	client.Logger = nil
	return &Provider{Client: client, Cache: cache}
}

// DownloadLayer requests the Hub dataset's GeoJSON download
// representation, appending the `/about` page's `?f=geojson` query the
// Hub data API exposes alongside its shapefile/CSV siblings.
func (p *Provider) DownloadLayer(ctx context.Context, opts provider.Options) ([]provider.RawFile, error) {
	if opts.SourceURL == "" {
		return nil, errs.New(errs.SchemaError, "hub provider requires Options.SourceURL")
	}
	url := opts.SourceURL
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	url += sep + "f=geojson"

	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.NetworkError, "build Hub request", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.NetworkError, "GET "+url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return nil, errs.New(errs.NotFound, "Hub dataset not found: "+url)
	}
	if resp.StatusCode != 200 {
		return nil, errs.New(errs.NetworkError, fmt.Sprintf("GET %s returned %d", url, resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.NetworkError, "read Hub response body", err)
	}
	if p.Cache != nil {
		if _, err := p.Cache.Store(data); err != nil {
			return nil, err
		}
	}
	return []provider.RawFile{{Name: "dataset.geojson", Data: data}}, nil
}

// Transform decodes the downloaded GeoJSON into normalized boundaries.
func (p *Provider) Transform(raw []provider.RawFile, opts provider.Options) ([]boundary.NormalizedBoundary, error) {
	if len(raw) == 0 {
		return nil, errs.New(errs.SchemaError, "no raw files to transform")
	}
	return provider.ParseFeatureCollection(raw[0].Data, opts.Layer, opts.StateFIPS)
}

var _ provider.Family = (*Provider)(nil)
