// SPDX-License-Identifier: AGPL-3.0-or-later

package buildcheck_test

import (
	"os"
	"testing"

	"github.com/voterprotocol/shadowatlas/internal/buildcheck"
)

// TestVerifyNoOpsInsideTestBinary confirms Verify never aborts a go
// test process even with ALLOW_TEST_PARAMS set, since the flag that
// gates production enforcement (test.v) is always registered by the
// test binary itself.
func TestVerifyNoOpsInsideTestBinary(t *testing.T) {
	t.Setenv("ALLOW_TEST_PARAMS", "1")
	buildcheck.Verify()
}

func TestVerifyIgnoresUnsetVar(t *testing.T) {
	require := os.Unsetenv("ALLOW_TEST_PARAMS")
	if require != nil {
		t.Fatalf("unsetenv: %v", require)
	}
	buildcheck.Verify()
}
