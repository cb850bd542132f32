// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main implements the atlas CLI: the operator surface over the
// Registry & Audit Log (C9), the Batch Ingestion Orchestrator (C7), and
// the Incremental Orchestrator (C8).
//
// Usage:
//
//	atlas registry list|get|add|update|delete|stats|diff
//	atlas ingest batch --states … --layers … --year …
//	atlas ingest resume --checkpoint <id>
//	atlas ingest retry-dlq
//	atlas detect incremental|full|force
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"

	"github.com/voterprotocol/shadowatlas/internal/buildcheck"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

// GlobalFlags holds the global CLI flags that apply to every command.
type GlobalFlags struct {
	JSON    bool
	NoColor bool
	Verbose int
	Quiet   bool
}

func main() {
	buildcheck.Verify()

	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")
		configPath  = flag.StringP("config", "c", "", "Path to atlas.yaml (default: ./.atlas/atlas.yaml)")
		jsonOutput  = flag.Bool("json", false, "Output in JSON format (for applicable commands)")
		noColor     = flag.Bool("no-color", false, "Disable color output")
		verbose     = flag.CountP("verbose", "v", "Increase verbosity (-v for info, -vv for debug)")
		quiet       = flag.BoolP("quiet", "q", false, "Suppress non-essential output")
	)

	// Stop parsing at the first non-flag argument so subcommand flags
	// (e.g. "ingest batch --states 06,08") reach the subcommand's own
	// FlagSet instead of being rejected here.
	flag.CommandLine.SetInterspersed(false)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `atlas - Shadow Atlas boundary ingestion CLI

Usage:
  atlas <command> [options]

Commands:
  registry      Manage the known/quarantined/at-large portal registry
  ingest        Run or resume a batch ingestion (C7)
  detect        Run change detection and incremental refresh (C8)

Global Options:
  --json            Output in JSON format (for applicable commands)
  --no-color        Disable color output (respects NO_COLOR env var)
  -v, --verbose     Increase verbosity (-v for info, -vv for debug)
  -q, --quiet       Suppress non-essential output
  -c, --config      Path to atlas.yaml
  -V, --version     Show version and exit

For detailed command help: atlas <command> --help
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("atlas version %s (%s)\n", version, commit)
		os.Exit(0)
	}

	if os.Getenv("NO_COLOR") != "" {
		*noColor = true
	}
	if *quiet && *verbose > 0 {
		fmt.Fprintln(os.Stderr, "Error: cannot use --quiet and --verbose together")
		os.Exit(2)
	}
	if *jsonOutput {
		*quiet = true
	}
	color.NoColor = *noColor || *jsonOutput

	globals := GlobalFlags{JSON: *jsonOutput, NoColor: *noColor, Verbose: *verbose, Quiet: *quiet}

	cfg, cfgErr := LoadConfig(*configPath)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	command := args[0]
	cmdArgs := args[1:]
	logInfo(globals, "dispatching command %q", command)

	var code int
	switch command {
	case "registry":
		if cfgErr != nil {
			fatalConfigErr(cfgErr)
		}
		code = runRegistryCmd(cmdArgs, cfg, globals)
	case "ingest":
		if cfgErr != nil {
			fatalConfigErr(cfgErr)
		}
		code = runIngestCmd(cmdArgs, cfg, globals)
	case "detect":
		if cfgErr != nil {
			fatalConfigErr(cfgErr)
		}
		code = runDetectCmd(cmdArgs, cfg, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		code = 2
	}
	os.Exit(code)
}

func fatalConfigErr(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(2)
}

func logInfo(globals GlobalFlags, format string, args ...interface{}) {
	if !globals.Quiet && globals.Verbose >= 1 {
		fmt.Fprintf(os.Stderr, "[INFO] "+format+"\n", args...)
	}
}
