package property

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the listing lifecycle state of a property.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusUnderOffer Status = "under_offer"
	StatusSold      Status = "sold"
	StatusWithdrawn Status = "withdrawn"
)

// SalesStatus tracks the conveyancing pipeline of a sale. The zero value
// means no sales process has started yet.
type SalesStatus string

const (
	SalesStatusNone              SalesStatus = ""
	SalesStatusContractExchanged SalesStatus = "contract_exchanged"
	SalesStatusUnconditional     SalesStatus = "unconditional"
	SalesStatusSettled           SalesStatus = "settled"
)

// Valid reports whether s is one of the assignable pipeline states.
// SalesStatusNone is not assignable; a sale cannot be reset through the API.
func (s SalesStatus) Valid() bool {
	switch s {
	case SalesStatusContractExchanged, SalesStatusUnconditional, SalesStatusSettled:
		return true
	}

	return false
}

// AgentAssignment links an agent to a property listing.
type AgentAssignment struct {
	AgentID        uuid.UUID
	CommissionRate decimal.Decimal
	IsActive       bool
	AppointedAt    time.Time
}

// Property represents a marketplace listing.
type Property struct {
	ID             uuid.UUID
	Slug           string
	Address        string
	Suburb         string
	State          string
	Postcode       string
	PriceCents     int64 // Listed price in cents
	Status         Status
	SalesStatus    SalesStatus
	OwnerID        uuid.UUID
	Agents         []AgentAssignment // Loaded via second query
	SettlementDate *time.Time
	CreatedAt      time.Time
	UpdatedAt      *time.Time
	DeletedAt      *time.Time
}

// ActiveAgent returns the currently appointed agent, or nil when the listing
// has none.
func (p *Property) ActiveAgent() *AgentAssignment {
	for i := range p.Agents {
		if p.Agents[i].IsActive {
			return &p.Agents[i]
		}
	}

	return nil
}

var ErrNotFound = errors.New("property not found")
