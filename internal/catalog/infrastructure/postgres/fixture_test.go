package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFixture(t *testing.T) {
	events, products, err := decodeFixture(strings.NewReader(`{
		"events": [{"id": "ev1", "name": "Fair", "manager_id": "m1"}],
		"products": [
			{"id": "p1", "event_id": "ev1", "name": "Burger", "price": "10.50", "prep_minutes": 12},
			{"id": "p2", "event_id": "ev1", "name": "Churros", "price": 8, "available": false}
		]
	}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "m1", events[0].ManagerID)
	require.Len(t, products, 2)
	assert.True(t, products[0].Available)
	assert.Equal(t, "10.50", products[0].Price.StringFixed(2))
	assert.False(t, products[1].Available)
}

func TestDecodeFixtureRejectsOrphanProduct(t *testing.T) {
	_, _, err := decodeFixture(strings.NewReader(`{"products":[{"id":"p1","name":"x","price":"1"}]}`))
	assert.Error(t, err)
}
