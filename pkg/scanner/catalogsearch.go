// SPDX-License-Identifier: AGPL-3.0-or-later

package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/voterprotocol/shadowatlas/internal/errs"
)

const catalogUserAgent = "VOTER-Protocol-ShadowAtlas/1.0 (Portal Scanner)"

// HubSearch implements the ArcGIS Hub `/datasets` keyword search
// strategy (spec.md §4.5 strategy 2).
type HubSearch struct {
	Client  *http.Client
	BaseURL string // e.g. "https://hub.arcgis.com/api/v3/datasets"
}

type hubSearchResponse struct {
	Data []hubDatasetItem `json:"data"`
}

type hubDatasetItem struct {
	ID         string `json:"id"`
	Attributes struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Slug        string `json:"slug"`
	} `json:"attributes"`
}

// Strategy returns a StrategyFunc performing a keyword search over the
// Hub datasets API.
func (h *HubSearch) Strategy() StrategyFunc {
	return func(ctx context.Context, query Query) ([]PortalCandidate, error) {
		if h.BaseURL == "" || len(query.Keywords) == 0 {
			return nil, nil
		}
		q := strings.Join(query.Keywords, " ")
		reqURL := fmt.Sprintf("%s?q=%s", h.BaseURL, url.QueryEscape(q))

		body, err := fetchJSON(ctx, h.client(), reqURL)
		if err != nil {
			return nil, err
		}
		var resp hubSearchResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, errs.Wrap(errs.SchemaError, "decode Hub search response", err)
		}

		out := make([]PortalCandidate, 0, len(resp.Data))
		for _, item := range resp.Data {
			out = append(out, PortalCandidate{
				ID:          item.ID,
				Title:       item.Attributes.Name,
				Description: item.Attributes.Description,
				URL:         item.Attributes.Slug,
				PortalType:  PortalHub,
			})
		}
		return out, nil
	}
}

func (h *HubSearch) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return http.DefaultClient
}

// CKANSearch implements CKAN's `package_search` catalog API strategy
// (spec.md §4.5 strategy 3).
type CKANSearch struct {
	Client  *http.Client
	BaseURL string // e.g. "https://data.example.gov/api/3/action/package_search"
}

type ckanSearchResponse struct {
	Result struct {
		Results []ckanPackage `json:"results"`
	} `json:"result"`
}

type ckanPackage struct {
	Title     string `json:"title"`
	Notes     string `json:"notes"`
	URL       string `json:"url"`
	Resources []struct {
		URL    string `json:"url"`
		Format string `json:"format"`
	} `json:"resources"`
}

func (c *CKANSearch) Strategy() StrategyFunc {
	return func(ctx context.Context, query Query) ([]PortalCandidate, error) {
		if c.BaseURL == "" || len(query.Keywords) == 0 {
			return nil, nil
		}
		q := strings.Join(query.Keywords, " ")
		reqURL := fmt.Sprintf("%s?q=%s", c.BaseURL, url.QueryEscape(q))

		body, err := fetchJSON(ctx, c.client(), reqURL)
		if err != nil {
			return nil, err
		}
		var resp ckanSearchResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, errs.Wrap(errs.SchemaError, "decode CKAN package_search response", err)
		}

		out := make([]PortalCandidate, 0, len(resp.Result.Results))
		for _, pkg := range resp.Result.Results {
			download := ""
			for _, r := range pkg.Resources {
				if strings.EqualFold(r.Format, "geojson") {
					download = r.URL
					break
				}
			}
			out = append(out, PortalCandidate{
				ID:          pkg.URL,
				Title:       pkg.Title,
				Description: pkg.Notes,
				URL:         pkg.URL,
				DownloadURL: download,
				PortalType:  PortalCKAN,
			})
		}
		return out, nil
	}
}

func (c *CKANSearch) client() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

func fetchJSON(ctx context.Context, client *http.Client, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errs.Wrap(errs.NetworkError, "build catalog search request", err)
	}
	req.Header.Set("User-Agent", catalogUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.NetworkError, "GET "+reqURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errs.New(errs.NetworkError, fmt.Sprintf("GET %s returned %d", reqURL, resp.StatusCode))
	}
	return io.ReadAll(resp.Body)
}
