package domain

import (
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestReconciliationError(t *testing.T) {
	cause := errors.New("redis: connection refused")
	err := eris.Wrap(&ReconciliationError{Op: "add", Err: cause}, "execute plan 3")

	assert.ErrorIs(t, err, ErrProviderReconciliationFailed)
	assert.ErrorIs(t, err, cause)

	var rec *ReconciliationError
	if assert.ErrorAs(t, err, &rec) {
		assert.Equal(t, "add", rec.Op)
	}
	assert.NotErrorIs(t, err, ErrReconcileTimeout)
}

func TestInvalidInputError(t *testing.T) {
	err := NewInvalidInputError("latitude", "must be between -90 and 90")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "invalid input: latitude: must be between -90 and 90", err.Error())
}
