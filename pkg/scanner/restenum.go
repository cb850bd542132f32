// SPDX-License-Identifier: AGPL-3.0-or-later

package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voterprotocol/shadowatlas/internal/errs"
)

const (
	restEnumRequestInterval = 100 * time.Millisecond
	restUserAgent           = "VOTER-Protocol-ShadowAtlas/1.0 (Portal Scanner)"
)

// restServicesResponse is the subset of an ArcGIS REST Services
// Directory's `?f=json` response this strategy consumes.
type restServicesResponse struct {
	Folders  []string         `json:"folders"`
	Services []restServiceRef `json:"services"`
}

type restServiceRef struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type restLayersResponse struct {
	Layers []restLayer `json:"layers"`
}

type restLayer struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	GeometryType string `json:"geometryType"`
}

// RESTEnumerator implements the recursive ArcGIS REST services-tree
// traversal strategy (spec.md §4.5 strategy 4): depth capped at 5,
// SkipFolders pruned, ≥100ms between requests, layers kept only when
// their name matches a governance keyword and their geometry is
// polygonal.
type RESTEnumerator struct {
	Client  *http.Client
	BaseURL string // e.g. "https://gis.example.gov/arcgis/rest/services"
	ticker  *time.Ticker
}

// NewRESTEnumerator constructs an enumerator rooted at baseURL.
func NewRESTEnumerator(client *http.Client, baseURL string) *RESTEnumerator {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &RESTEnumerator{Client: client, BaseURL: strings.TrimRight(baseURL, "/")}
}

// Strategy returns a StrategyFunc bound to this enumerator's tree.
func (e *RESTEnumerator) Strategy() StrategyFunc {
	return func(ctx context.Context, query Query) ([]PortalCandidate, error) {
		return e.enumerate(ctx, "", 0)
	}
}

func (e *RESTEnumerator) pace() {
	if e.ticker == nil {
		e.ticker = time.NewTicker(restEnumRequestInterval)
		return
	}
	<-e.ticker.C
}

func (e *RESTEnumerator) enumerate(ctx context.Context, folderPath string, depth int) ([]PortalCandidate, error) {
	if depth > maxEnumerationDepth {
		return nil, nil
	}

	e.pace()
	body, err := e.getJSON(ctx, e.folderURL(folderPath))
	if err != nil {
		return nil, err
	}
	var tree restServicesResponse
	if err := json.Unmarshal(body, &tree); err != nil {
		return nil, errs.Wrap(errs.SchemaError, "decode REST services directory", err)
	}

	var out []PortalCandidate
	for _, svc := range tree.Services {
		if !strings.EqualFold(svc.Type, "FeatureServer") && !strings.EqualFold(svc.Type, "MapServer") {
			continue
		}
		qualifiedName := svc.Name
		if folderPath != "" {
			qualifiedName = folderPath + "/" + svc.Name
		}
		layers, err := e.fetchLayers(ctx, qualifiedName, svc.Type)
		if err != nil {
			continue
		}
		for _, layer := range layers {
			if !MatchesGovernanceKeyword(layer.Name) {
				continue
			}
			if !isPolygonal(layer.GeometryType) {
				continue
			}
			url := fmt.Sprintf("%s/%s/%s/%d", e.BaseURL, qualifiedName, svc.Type, layer.ID)
			out = append(out, PortalCandidate{
				ID:          url,
				Title:       layer.Name,
				URL:         url,
				DownloadURL: url,
				PortalType:  PortalArcGIS,
			})
		}
	}

	for _, folder := range tree.Folders {
		if SkipFolders[strings.ToLower(folder)] {
			continue
		}
		nextPath := folder
		if folderPath != "" {
			nextPath = folderPath + "/" + folder
		}
		children, err := e.enumerate(ctx, nextPath, depth+1)
		if err != nil {
			continue
		}
		out = append(out, children...)
	}

	return out, nil
}

func (e *RESTEnumerator) fetchLayers(ctx context.Context, serviceName, serviceType string) ([]restLayer, error) {
	e.pace()
	url := fmt.Sprintf("%s/%s/%s?f=json", e.BaseURL, serviceName, serviceType)
	body, err := e.getJSON(ctx, url)
	if err != nil {
		return nil, err
	}
	var resp restLayersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errs.Wrap(errs.SchemaError, "decode service layers", err)
	}
	return resp.Layers, nil
}

func (e *RESTEnumerator) folderURL(folderPath string) string {
	if folderPath == "" {
		return e.BaseURL + "?f=json"
	}
	return e.BaseURL + "/" + folderPath + "?f=json"
}

func (e *RESTEnumerator) getJSON(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.NetworkError, "build REST directory request", err)
	}
	req.Header.Set("User-Agent", restUserAgent)

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.NetworkError, "GET "+url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errs.New(errs.NetworkError, fmt.Sprintf("GET %s returned %d", url, resp.StatusCode))
	}
	return io.ReadAll(resp.Body)
}

func isPolygonal(geometryType string) bool {
	return strings.Contains(strings.ToLower(geometryType), "polygon")
}
