// Package access carries the caller identity explicitly into every use case
// and holds the ownership rules shared by orders, payments and the kitchen.
package access

type Role string

const (
	RoleAnonymous Role = ""
	RoleConsumer  Role = "consumer"
	RoleManager   Role = "manager"
	RoleAdmin     Role = "admin"
)

type Caller struct {
	ID   string
	Role Role
}

func Anonymous() Caller { return Caller{} }

func (c Caller) IsAnonymous() bool { return c.ID == "" }

func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }

// ManagesEvent reports whether the caller manages the event whose manager is managerID.
func (c Caller) ManagesEvent(managerID string) bool {
	if c.IsAdmin() {
		return true
	}
	return !c.IsAnonymous() && c.Role == RoleManager && c.ID == managerID
}

// OwnsOrder is true for the registered consumer an order belongs to.
func (c Caller) OwnsOrder(consumerID string) bool {
	return consumerID != "" && !c.IsAnonymous() && c.ID == consumerID
}
