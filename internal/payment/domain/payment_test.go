package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/event-pos/pkg/apperr"
)

var now = time.Date(2025, 3, 14, 18, 30, 0, 0, time.UTC)

func newPayment(t *testing.T) Payment {
	t.Helper()
	p, err := New("p1", "o1", "tx1", decimal.RequireFromString("35.00"), MethodCash, now)
	require.NoError(t, err)
	return p
}

func TestWithinTolerance(t *testing.T) {
	total := decimal.RequireFromString("35.00")
	assert.True(t, WithinTolerance(decimal.RequireFromString("35.01"), total))
	assert.True(t, WithinTolerance(decimal.RequireFromString("34.99"), total))
	assert.False(t, WithinTolerance(decimal.RequireFromString("35.02"), total))
	assert.False(t, WithinTolerance(decimal.RequireFromString("30"), total))
}

func TestNewValidation(t *testing.T) {
	_, err := New("p1", "o1", "tx1", decimal.RequireFromString("1"), Method("crypto"), now)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = New("p1", "o1", "tx1", decimal.Zero, MethodCard, now)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestApproveIdempotent(t *testing.T) {
	p := newPayment(t)
	changed, err := p.Approve(now)
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, p.ConfirmedAt)

	changed, err = p.Approve(now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, now, *p.ConfirmedAt)
}

func TestTerminalStatesReject(t *testing.T) {
	p := newPayment(t)
	require.NoError(t, p.Deny(now))

	_, err := p.Approve(now)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	_, err = p.Cancel(now)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.ErrorIs(t, p.Refund(now), apperr.ErrInvalidState)
	assert.Equal(t, StatusDenied, p.Status)
}

func TestCancelAndRefund(t *testing.T) {
	p := newPayment(t)
	require.NoError(t, p.MarkProcessing(now))
	changed, err := p.Cancel(now)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = p.Cancel(now)
	require.NoError(t, err)
	assert.False(t, changed)

	q := newPayment(t)
	assert.ErrorIs(t, q.Refund(now), apperr.ErrInvalidState)
	_, err = q.Approve(now)
	require.NoError(t, err)
	require.NoError(t, q.Refund(now))
	assert.Equal(t, StatusRefunded, q.Status)
}
