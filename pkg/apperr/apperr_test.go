package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errStale = Conflict("stale_version")

func TestSentinelMatching(t *testing.T) {
	assert.ErrorIs(t, errStale, errStale)
	assert.True(t, IsConflict(errStale))
	assert.False(t, IsValidation(errStale))
}

func TestWrapKeepsIdentityAndCause(t *testing.T) {
	cause := errors.New("rows affected 0")
	err := Wrap(errStale, cause)

	assert.ErrorIs(t, err, errStale)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsConflict(err))
	assert.Contains(t, err.Error(), "stale_version")
}

func TestWrappedWithFmtStillMatches(t *testing.T) {
	err := fmt.Errorf("update order: %w", errStale)
	assert.ErrorIs(t, err, errStale)
	assert.True(t, IsConflict(err))
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
	assert.False(t, IsNotFound(errors.New("plain")))
}

func TestKindStrings(t *testing.T) {
	assert.Equal(t, "validation", KindValidation.String())
	assert.Equal(t, "rate_limited", KindRateLimited.String())
	assert.Equal(t, "tenant", KindTenant.String())
}
