// Package domain holds the read-only catalog reference: events and the
// products sold at them.
package domain

import "github.com/shopspring/decimal"

type Event struct {
	ID        string
	Name      string
	ManagerID string
}

type Product struct {
	ID          string
	EventID     string
	CategoryID  string
	Name        string
	Price       decimal.Decimal
	Available   bool
	PrepMinutes int
}
