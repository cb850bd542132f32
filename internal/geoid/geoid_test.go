// SPDX-License-Identifier: AGPL-3.0-or-later

package geoid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voterprotocol/shadowatlas/internal/geoid"
)

func TestValidateOK(t *testing.T) {
	assert.NoError(t, geoid.Validate("0601", "06", "CD"))
	assert.NoError(t, geoid.Validate("0600001", "06", "UNSD"))
}

func TestValidateWrongLength(t *testing.T) {
	assert.Error(t, geoid.Validate("06001", "06", "CD"))
}

func TestValidateNonDigit(t *testing.T) {
	assert.Error(t, geoid.Validate("06A1", "06", "CD"))
}

func TestValidateStatePrefixMismatch(t *testing.T) {
	assert.Error(t, geoid.Validate("0901", "06", "CD"))
}

func TestValidateUnknownLayer(t *testing.T) {
	assert.Error(t, geoid.Validate("0601", "06", "NOPE"))
}
