// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ckan implements the Boundary Provider (C4) for CKAN data
// portals: download the GeoJSON resource a CKAN dataset/resource pair
// points to and transform it into normalized boundaries.
package ckan

import (
	"context"
	"fmt"
	"io"

	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"github.com/voterprotocol/shadowatlas/internal/errs"
	"github.com/voterprotocol/shadowatlas/pkg/boundary"
	"github.com/voterprotocol/shadowatlas/pkg/provider"
)

const userAgent = "VOTER-Protocol-ShadowAtlas/1.0 (Boundary Provider: CKAN)"

// Provider is the ckan Family implementation.
type Provider struct {
	Client *retryablehttp.Client
	Cache  *provider.ContentCache
}

// New constructs a ckan Provider with a retrying HTTP client.
func New(cache *provider.ContentCache) *Provider {
	client := retryablehttp.NewClient()
	client.Logger = nil
	return &Provider{Client: client, Cache: cache}
}

// DownloadLayer fetches the CKAN resource URL directly; CKAN resource
// download links already resolve to the underlying file (GeoJSON for
// boundary datasets), unlike ArcGIS's query-parameter REST surface.
func (p *Provider) DownloadLayer(ctx context.Context, opts provider.Options) ([]provider.RawFile, error) {
	if opts.SourceURL == "" {
		return nil, errs.New(errs.SchemaError, "ckan provider requires Options.SourceURL")
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", opts.SourceURL, nil)
	if err != nil {
		return nil, errs.Wrap(errs.NetworkError, "build CKAN resource request", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.NetworkError, "GET "+opts.SourceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return nil, errs.New(errs.NotFound, "CKAN resource not found: "+opts.SourceURL)
	}
	if resp.StatusCode != 200 {
		return nil, errs.New(errs.NetworkError, fmt.Sprintf("GET %s returned %d", opts.SourceURL, resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.NetworkError, "read CKAN response body", err)
	}
	if p.Cache != nil {
		if _, err := p.Cache.Store(data); err != nil {
			return nil, err
		}
	}
	return []provider.RawFile{{Name: "resource.geojson", Data: data}}, nil
}

// Transform decodes the downloaded GeoJSON into normalized boundaries.
func (p *Provider) Transform(raw []provider.RawFile, opts provider.Options) ([]boundary.NormalizedBoundary, error) {
	if len(raw) == 0 {
		return nil, errs.New(errs.SchemaError, "no raw files to transform")
	}
	return provider.ParseFeatureCollection(raw[0].Data, opts.Layer, opts.StateFIPS)
}

var _ provider.Family = (*Provider)(nil)
