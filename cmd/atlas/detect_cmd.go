// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/voterprotocol/shadowatlas/internal/clock"
	"github.com/voterprotocol/shadowatlas/pkg/detector"
	"github.com/voterprotocol/shadowatlas/pkg/dlq"
	"github.com/voterprotocol/shadowatlas/pkg/incremental"
	"github.com/voterprotocol/shadowatlas/pkg/registry"
	"github.com/voterprotocol/shadowatlas/pkg/source"
	"github.com/voterprotocol/shadowatlas/pkg/storage"
)

// jurisdictionLayer is the boundary_layer tag for every per-jurisdiction
// source the registry's known-portals feed into C8, per spec.md §3's
// council/ward/district governance-body scope (distinct from C7's
// TIGER state/county/district layers).
const jurisdictionLayer = "council"

// runDetectCmd dispatches `atlas detect <subcommand>`: incremental,
// full, force (spec.md §6). Sources are derived from the registry's
// known-portals entries, each one city's boundary portal.
func runDetectCmd(args []string, cfg *Config, globals GlobalFlags) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: atlas detect incremental|full|force")
		return 2
	}

	fs := afero.NewOsFs()
	reg := registry.New(fs, cfg.RegistryDir, clock.Real())
	if err := reg.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	sources := sourcesFromRegistry(reg)
	if len(sources) == 0 {
		fmt.Fprintln(os.Stderr, "no known-portals entries to check")
		return 0
	}

	adapter, err := storage.NewFileAdapter(fs, cfg.StateFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	queue := dlq.New(adapter)
	fetcher := newProviderFetcher(fs, cfg.CacheDir)
	cache := detector.NewChecksumCache(fs, cfg.RegistryDir+"/checksums.json")
	if err := cache.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	det := detector.New(cache)
	orch := incremental.New(fetcher, adapter, queue, det)

	sub := args[0]
	var result incremental.Result
	switch sub {
	case "incremental":
		result, err = orch.RunIncrementalRefresh(context.Background(), sources)
	case "full":
		result, err = orch.RunFullSnapshot(context.Background(), sources)
	case "force":
		result, err = orch.ForceCheckAll(context.Background(), sources)
	default:
		fmt.Fprintf(os.Stderr, "Unknown detect subcommand: %s\n", sub)
		return 2
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	if globals.JSON {
		return printJSON(result)
	}
	errored := 0
	for _, r := range result.Results {
		if !globals.Quiet {
			fmt.Printf("%-10s %-10s %s\n", r.JurisdictionID, r.Outcome, r.ArtifactID)
		}
		if r.Outcome == incremental.OutcomeErrored {
			errored++
		}
	}
	if result.SnapshotHash != "" {
		fmt.Printf("snapshot_hash=%s\n", result.SnapshotHash)
	}
	if errored > 0 {
		return 2
	}
	return 0
}

func sourcesFromRegistry(reg *registry.Registry) []source.Source {
	entries := reg.List(registry.ListFilter{})
	sources := make([]source.Source, 0, len(entries))
	for _, e := range entries {
		sources = append(sources, source.Source{
			ID:             e.FIPS,
			URL:            e.DownloadURL,
			PortalFamily:   source.PortalFamily(e.PortalType),
			JurisdictionID: e.FIPS,
			BoundaryLayer:  jurisdictionLayer,
			UpdateTriggers: []source.UpdateTrigger{source.Annual(1)},
		})
	}
	return sources
}
