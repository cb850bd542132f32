// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	flag "github.com/spf13/pflag"

	"github.com/voterprotocol/shadowatlas/internal/clock"
	"github.com/voterprotocol/shadowatlas/pkg/catalog"
	"github.com/voterprotocol/shadowatlas/pkg/registry"
)

// httpLiveCheck is the liveCheck passed to registry.Add: a bare HEAD
// request, just enough to catch a typo'd or dead URL before it enters
// the known-portals registry. The provider families use retryablehttp
// for actual downloads; a liveness probe doesn't need that retry budget.
func httpLiveCheck(url string) error {
	req, err := http.NewRequest(http.MethodHead, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("liveness check failed: %s returned %d", url, resp.StatusCode)
	}
	return nil
}

// runRegistryCmd dispatches `atlas registry <subcommand>`. Exit codes
// follow spec.md §6: 0 success/in-sync, 1 diff detected, 2 error.
func runRegistryCmd(args []string, cfg *Config, globals GlobalFlags) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: atlas registry list|get|add|update|delete|stats|diff")
		return 2
	}

	fs := afero.NewOsFs()
	reg := registry.New(fs, cfg.RegistryDir, clock.Real())
	if err := reg.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	sub, subArgs := args[0], args[1:]
	switch sub {
	case "list":
		return registryList(reg, subArgs, globals)
	case "get":
		return registryGet(reg, subArgs, globals)
	case "add":
		return registryAdd(reg, catalog.Load(), subArgs, globals)
	case "update":
		return registryUpdate(reg, subArgs, globals)
	case "delete":
		return registryDelete(reg, subArgs, globals)
	case "stats":
		return registryStats(reg, globals)
	case "diff":
		return registryDiff(reg, subArgs, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown registry subcommand: %s\n", sub)
		return 2
	}
}

func registryList(reg *registry.Registry, args []string, globals GlobalFlags) int {
	fs := flag.NewFlagSet("registry list", flag.ContinueOnError)
	state := fs.String("state", "", "Filter by state")
	portalType := fs.String("portal-type", "", "Filter by portal type")
	minConfidence := fs.Int("min-confidence", -1, "Filter by minimum confidence")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	filter := registry.ListFilter{State: *state, PortalType: *portalType}
	if *minConfidence >= 0 {
		filter.HasMinConfidence = true
		filter.MinConfidence = *minConfidence
	}
	entries := reg.List(filter)

	if globals.JSON {
		return printJSON(entries)
	}
	for _, e := range entries {
		fmt.Printf("%s  %-24s %-6s %-10s conf=%d  %s\n", e.FIPS, e.CityName, e.State, e.PortalType, e.Confidence, e.DownloadURL)
	}
	return 0
}

func registryGet(reg *registry.Registry, args []string, globals GlobalFlags) int {
	fs := flag.NewFlagSet("registry get", flag.ContinueOnError)
	fips := fs.String("fips", "", "FIPS code to look up")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *fips == "" {
		fmt.Fprintln(os.Stderr, "Error: --fips is required")
		return 2
	}

	entry, name, ok := reg.Get(*fips)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: fips %s not found\n", *fips)
		return 2
	}
	if globals.JSON {
		return printJSON(map[string]any{"registry": name, "entry": entry})
	}
	fmt.Printf("registry: %s\n", name)
	printJSONIndent(entry)
	return 0
}

func registryAdd(reg *registry.Registry, cat *catalog.Catalog, args []string, globals GlobalFlags) int {
	fs := flag.NewFlagSet("registry add", flag.ContinueOnError)
	fips := fs.String("fips", "", "FIPS code (required)")
	city := fs.String("city", "", "City name")
	state := fs.String("state", "", "State abbreviation")
	portalType := fs.String("portal-type", "", "Portal family")
	url := fs.String("url", "", "Download URL")
	featureCount := fs.Int("feature-count", 0, "Expected feature count")
	confidence := fs.Int("confidence", 0, "Confidence score")
	discoveredBy := fs.String("discovered-by", "", "Discovery method or actor")
	notes := fs.String("notes", "", "Free-text notes")
	actor := fs.String("actor", "cli", "Actor recorded in the audit log")
	skipValidation := fs.Bool("skip-validation", false, "Skip the download URL liveness check")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *fips == "" || *url == "" {
		fmt.Fprintln(os.Stderr, "Error: --fips and --url are required")
		return 2
	}

	entry := registry.KnownEntry{
		FIPS: *fips, CityName: *city, State: *state, PortalType: *portalType,
		DownloadURL: *url, FeatureCount: *featureCount, Confidence: *confidence,
		DiscoveredBy: *discoveredBy, Notes: *notes, LastVerified: time.Now(),
	}
	if err := reg.Add(entry, *actor, "registry add", *skipValidation, httpLiveCheck, cat); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if !globals.Quiet {
		fmt.Printf("added %s\n", *fips)
	}
	return 0
}

func registryUpdate(reg *registry.Registry, args []string, globals GlobalFlags) int {
	fs := flag.NewFlagSet("registry update", flag.ContinueOnError)
	fips := fs.String("fips", "", "FIPS code (required)")
	city := fs.String("city", "", "City name")
	state := fs.String("state", "", "State abbreviation")
	portalType := fs.String("portal-type", "", "Portal family")
	url := fs.String("url", "", "Download URL")
	featureCount := fs.Int("feature-count", 0, "Expected feature count")
	confidence := fs.Int("confidence", 0, "Confidence score")
	notes := fs.String("notes", "", "Free-text notes")
	actor := fs.String("actor", "cli", "Actor recorded in the audit log")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *fips == "" {
		fmt.Fprintln(os.Stderr, "Error: --fips is required")
		return 2
	}

	patch := map[string]any{}
	if fs.Changed("city") {
		patch["city_name"] = *city
	}
	if fs.Changed("state") {
		patch["state"] = *state
	}
	if fs.Changed("portal-type") {
		patch["portal_type"] = *portalType
	}
	if fs.Changed("url") {
		patch["download_url"] = *url
	}
	if fs.Changed("feature-count") {
		patch["feature_count"] = *featureCount
	}
	if fs.Changed("confidence") {
		patch["confidence"] = *confidence
	}
	if fs.Changed("notes") {
		patch["notes"] = *notes
	}
	if len(patch) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no fields to update")
		return 2
	}

	after, err := reg.Update(*fips, patch, *actor, "registry update")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if globals.JSON {
		return printJSON(after)
	}
	if !globals.Quiet {
		fmt.Printf("updated %s\n", *fips)
	}
	return 0
}

func registryDelete(reg *registry.Registry, args []string, globals GlobalFlags) int {
	fs := flag.NewFlagSet("registry delete", flag.ContinueOnError)
	fips := fs.String("fips", "", "FIPS code (required)")
	hard := fs.Bool("hard", false, "Hard delete instead of quarantine")
	force := fs.Bool("force", false, "Required alongside --hard")
	reason := fs.String("reason", "", "Reason recorded in the audit log")
	pattern := fs.String("pattern", string(registry.PatternUnknown), "Quarantine pattern")
	actor := fs.String("actor", "cli", "Actor recorded in the audit log")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *fips == "" {
		fmt.Fprintln(os.Stderr, "Error: --fips is required")
		return 2
	}

	if err := reg.Delete(*fips, *hard, *force, *reason, registry.QuarantinePattern(*pattern), *actor, "registry delete"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if !globals.Quiet {
		fmt.Printf("deleted %s\n", *fips)
	}
	return 0
}

func registryStats(reg *registry.Registry, globals GlobalFlags) int {
	stats := reg.Stats()
	if globals.JSON {
		return printJSON(stats)
	}
	bold := color.New(color.Bold)
	bold.Println("Registry stats")
	fmt.Printf("  known:       %d\n", stats.TotalKnown)
	fmt.Printf("  quarantined: %d\n", stats.TotalQuarantined)
	fmt.Printf("  at-large:    %d\n", stats.TotalAtLarge)
	fmt.Println("  by state:")
	for state, n := range stats.ByState {
		fmt.Printf("    %-6s %d\n", state, n)
	}
	fmt.Println("  staleness:")
	for bucket, n := range stats.Staleness {
		fmt.Printf("    %-8s %d\n", bucket, n)
	}
	return 0
}

func registryDiff(reg *registry.Registry, args []string, globals GlobalFlags) int {
	fs := flag.NewFlagSet("registry diff", flag.ContinueOnError)
	generatedPath := fs.String("generated-file", "", "Path to a JSON registry.DiffInput (known/quarantined/at-large) to diff against (required)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *generatedPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --generated-file is required")
		return 2
	}

	data, err := os.ReadFile(*generatedPath) //nolint:gosec // G304: operator-supplied path
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	var generated registry.DiffInput
	if err := json.Unmarshal(data, &generated); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	result := reg.Diff(generated)
	if globals.JSON {
		if code := printJSON(result); code != 0 {
			return code
		}
	} else {
		printFileDiff("known-portals", len(result.Known.Added), len(result.Known.Removed), len(result.Known.Modified), result.Known.Identical, result.Known.Modified)
		printFileDiff("quarantined-portals", len(result.Quarantined.Added), len(result.Quarantined.Removed), len(result.Quarantined.Modified), result.Quarantined.Identical, result.Quarantined.Modified)
		printFileDiff("at-large-cities", len(result.AtLarge.Added), len(result.AtLarge.Removed), len(result.AtLarge.Modified), result.AtLarge.Identical, result.AtLarge.Modified)
	}
	if !result.InSync() {
		return 1
	}
	return 0
}

func printFileDiff(name string, added, removed, modified, identical int, entries []registry.EntryDiff) {
	fmt.Printf("%s: added=%d removed=%d modified=%d identical=%d\n", name, added, removed, modified, identical)
	for _, m := range entries {
		for _, f := range m.Fields {
			fmt.Printf("  %s.%s: %v -> %v\n", m.FIPS, f.Field, f.NDJSON, f.Artifact)
		}
	}
}

func printJSON(v any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

func printJSONIndent(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	fmt.Println(string(data))
}
