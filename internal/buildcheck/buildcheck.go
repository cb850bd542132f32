// SPDX-License-Identifier: AGPL-3.0-or-later

// Package buildcheck enforces spec.md §6's production-build invariant:
// ALLOW_TEST_PARAMS must never be set outside of tests.
//
// Grounded on pkg/catalog.Load's fail-loud-at-startup posture (any
// invariant violation calls errs.Fatal and exits the process rather
// than limping along with bad state).
package buildcheck

import (
	"flag"
	"os"

	"github.com/voterprotocol/shadowatlas/internal/errs"
)

const testParamsEnvVar = "ALLOW_TEST_PARAMS"

// inTestBinary reports whether the running binary is a `go test`
// binary, via the test.v flag go test always registers. Production
// cmd/atlas binaries never have this flag.
func inTestBinary() bool {
	return flag.Lookup("test.v") != nil
}

// Verify aborts the process if ALLOW_TEST_PARAMS is set outside of a
// test binary. Called once from every cmd/atlas entry point before any
// other startup work.
func Verify() {
	if inTestBinary() {
		return
	}
	if v := os.Getenv(testParamsEnvVar); v != "" {
		errs.Fatal(errs.ConfigError, testParamsEnvVar+" must not be set in a production build", nil)
	}
}
