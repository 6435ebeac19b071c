package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOwnerOrManager(t *testing.T) {
	tests := []struct {
		name       string
		caller     Caller
		consumerID string
		managerID  string
		want       bool
	}{
		{"owner", Caller{ID: "u1", Role: RoleConsumer}, "u1", "m1", true},
		{"other consumer", Caller{ID: "u2", Role: RoleConsumer}, "u1", "m1", false},
		{"event manager", Caller{ID: "m1", Role: RoleManager}, "u1", "m1", true},
		{"manager of another event", Caller{ID: "m2", Role: RoleManager}, "u1", "m1", false},
		{"consumer id matching manager id", Caller{ID: "m1", Role: RoleConsumer}, "u1", "m1", false},
		{"admin", Caller{ID: "root", Role: RoleAdmin}, "u1", "m1", true},
		{"anonymous on anonymous order", Anonymous(), "", "m1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.caller.OwnsOrder(tt.consumerID) || tt.caller.ManagesEvent(tt.managerID))
		})
	}
}
