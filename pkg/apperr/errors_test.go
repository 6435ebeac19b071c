package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesSentinelOfSameKind(t *testing.T) {
	err := Validation("quantity must be positive, got %d", 0)

	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "quantity must be positive, got 0", err.Error())
}

func TestWrappedErrorKeepsKind(t *testing.T) {
	err := fmt.Errorf("confirm payment: %w", InvalidState("payment is %s", "denied"))

	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, KindInvalidState, KindOf(err))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestIntegrationUnwrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Integration(cause, "create charge")

	assert.ErrorIs(t, err, ErrIntegration)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "create charge: dial tcp: refused", err.Error())
}
