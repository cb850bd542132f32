// SPDX-License-Identifier: AGPL-3.0-or-later

package errs_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voterprotocol/shadowatlas/internal/errs"
)

func TestWrapAndIs(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := errs.Wrap(errs.NetworkError, "head request failed", cause)

	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NetworkError))
	assert.False(t, errs.Is(err, errs.NotFound))
	assert.Equal(t, errs.NetworkError, errs.KindOf(err))
	assert.ErrorIs(t, err, cause)
}

func TestRetryable(t *testing.T) {
	assert.True(t, errs.Retryable(errs.NetworkError))
	for _, k := range []errs.Kind{
		errs.IntegrityError, errs.NotFound, errs.SchemaError,
		errs.ValidationError, errs.StorageError, errs.CircuitOpen,
	} {
		assert.False(t, errs.Retryable(k), "kind %s should not be retryable", k)
	}
}

func TestKindOfUntaggedError(t *testing.T) {
	assert.Equal(t, errs.Kind(""), errs.KindOf(errors.New("plain")))
}
