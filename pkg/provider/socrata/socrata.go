// SPDX-License-Identifier: AGPL-3.0-or-later

// Package socrata implements the Boundary Provider (C4) for Socrata
// Open Data (SODA) API endpoints: request the dataset as GeoJSON via
// a single `$limit`-bounded SODA request (no pagination) and transform
// the result.
package socrata

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

const (
	userAgent  = "VOTER-Protocol-ShadowAtlas/1.0 (Boundary Provider: Socrata)"
	sodaLimit  = 50000
)

// Provider is the socrata Family implementation.
type Provider struct {
	Client *retryablehttp.Client
	Cache  *provider.ContentCache
}

// New constructs a socrata Provider with a retrying HTTP client.
func New(cache *provider.ContentCache) *Provider {
	client := retryablehttp.NewClient()
	client.Logger = nil
	return &Provider{Client: client, Cache: cache}
}

// DownloadLayer requests the dataset as GeoJSON via SODA's
// `.geojson` resource suffix and a generous `$limit` to pull the whole
// dataset in one request.
func (p *Provider) DownloadLayer(ctx context.Context, opts provider.Options) ([]provider.RawFile, error) {
	if opts.SourceURL == "" {
		return nil, errs.New(errs.SchemaError, "socrata provider requires Options.SourceURL")
	}
	url := opts.SourceURL
	if !strings.HasSuffix(url, ".geojson") {
		url = strings.TrimSuffix(url, ".json") + ".geojson"
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	url += fmt.Sprintf("%s$limit=%d", sep, sodaLimit)

	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.NetworkError, "build SODA request", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.NetworkError, "GET "+url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return nil, errs.New(errs.NotFound, "Socrata dataset not found: "+url)
	}
	if resp.StatusCode != 200 {
		return nil, errs.New(errs.NetworkError, fmt.Sprintf("GET %s returned %d", url, resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.NetworkError, "read Socrata response body", err)
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
