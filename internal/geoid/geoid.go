// SPDX-License-Identifier: AGPL-3.0-or-later

// Package geoid validates Census GEOID strings against their
// layer-specific expected length and digit-only format (spec.md §4.6
// "GEOID format validator").
package geoid

import "strings"

// Length is the expected digit count for each layer's GEOID, per
// Census TIGER conventions. CD/SLDU/SLDL carry a 2-digit state FIPS
// prefix plus a variable-width district code; the lengths below are the
// conventional padded widths used across TIGER products.
var Length = map[string]int{
	"CD":    4,  // state FIPS(2) + district(2)
	"SLDU":  5,  // state FIPS(2) + chamber seat(3)
	"SLDL":  5,  // state FIPS(2) + chamber seat(3)
	"UNSD":  7,  // state FIPS(2) + district(5)
	"ELSD":  7,  // state FIPS(2) + district(5)
	"SCSD":  7,  // state FIPS(2) + district(5)
	"COUSUB": 10, // state FIPS(2) + county(3) + cousub(5)
	"PLACE": 7,  // state FIPS(2) + place(5)
	"VTD":   11, // state FIPS(2) + county(3) + vtd(6)
	"COUNTY": 5, // state FIPS(2) + county(3)
}

// Validate enforces that geoid is digit-only, of the layer's expected
// length, and prefixed by stateFIPS (when stateFIPS is non-empty — some
// national layers, like at-large CDs, still carry a 2-digit state
// prefix, so stateFIPS should virtually never be empty in practice).
func Validate(geoid, stateFIPS, layer string) error {
	wantLen, known := Length[layer]
	if !known {
		return errInvalid(layer, geoid, "unknown layer")
	}
	if len(geoid) != wantLen {
		return errInvalid(layer, geoid, "wrong length")
	}
	for _, r := range geoid {
		if r < '0' || r > '9' {
			return errInvalid(layer, geoid, "non-digit character")
		}
	}
	if stateFIPS != "" && !strings.HasPrefix(geoid, stateFIPS) {
		return errInvalid(layer, geoid, "state FIPS prefix mismatch")
	}
	return nil
}

type validationError struct {
	layer, geoid, reason string
}

func (e *validationError) Error() string {
	return "invalid GEOID " + e.geoid + " for layer " + e.layer + ": " + e.reason
}

func errInvalid(layer, geoid, reason string) error {
	return &validationError{layer: layer, geoid: geoid, reason: reason}
}
