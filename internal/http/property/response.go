package property

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/onlyif-au/onlyif/internal/audit"
	"github.com/onlyif-au/onlyif/internal/property"
	"github.com/onlyif-au/onlyif/internal/sales"
)

type agentResponse struct {
	AgentID        uuid.UUID       `json:"agent_id"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	AppointedAt    time.Time       `json:"appointed_at"`
}

type propertyResponse struct {
	ID             uuid.UUID       `json:"id"`
	Slug           string          `json:"slug"`
	Address        string          `json:"address"`
	Suburb         string          `json:"suburb"`
	State          string          `json:"state"`
	Postcode       string          `json:"postcode"`
	PriceCents     int64           `json:"price_cents"`
	Status         property.Status `json:"status"`
	SalesStatus    *string         `json:"sales_status"`
	OwnerID        uuid.UUID       `json:"owner_id"`
	ActiveAgent    *agentResponse  `json:"active_agent,omitempty"`
	SettlementDate *time.Time      `json:"settlement_date,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      *time.Time      `json:"updated_at,omitempty"`
}

func toPropertyResponse(p *property.Property) propertyResponse {
	resp := propertyResponse{
		ID:             p.ID,
		Slug:           p.Slug,
		Address:        p.Address,
		Suburb:         p.Suburb,
		State:          p.State,
		Postcode:       p.Postcode,
		PriceCents:     p.PriceCents,
		Status:         p.Status,
		SalesStatus:    salesStatusJSON(p.SalesStatus),
		OwnerID:        p.OwnerID,
		SettlementDate: p.SettlementDate,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}

	if agent := p.ActiveAgent(); agent != nil {
		resp.ActiveAgent = &agentResponse{
			AgentID:        agent.AgentID,
			CommissionRate: agent.CommissionRate,
			AppointedAt:    agent.AppointedAt,
		}
	}

	return resp
}

type transitionPropertyResponse struct {
	ID           uuid.UUID       `json:"id"`
	SalesStatus  *string         `json:"sales_status"`
	Status       property.Status `json:"status"`
	LastModified *time.Time      `json:"last_modified,omitempty"`
}

type transitionHistoryResponse struct {
	ID             uuid.UUID `json:"id"`
	PreviousStatus *string   `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	ChangedAt      time.Time `json:"changed_at"`
}

type transitionInvoiceResponse struct {
	InvoiceNumber string    `json:"invoice_number"`
	TotalCents    int64     `json:"total_cents"`
	DueDate       time.Time `json:"due_date"`
}

type transitionResponse struct {
	Property      transitionPropertyResponse `json:"property"`
	StatusHistory *transitionHistoryResponse `json:"status_history,omitempty"`
	Invoice       *transitionInvoiceResponse `json:"invoice,omitempty"`
	Warning       string                     `json:"warning,omitempty"`
}

func toTransitionResponse(result *sales.TransitionResult) transitionResponse {
	resp := transitionResponse{
		Property: transitionPropertyResponse{
			ID:           result.Property.ID,
			SalesStatus:  salesStatusJSON(result.Property.SalesStatus),
			Status:       result.Property.Status,
			LastModified: result.Property.UpdatedAt,
		},
		Warning: result.Warning,
	}

	if result.Entry != nil {
		resp.StatusHistory = &transitionHistoryResponse{
			ID:             result.Entry.ID,
			PreviousStatus: salesStatusJSON(result.Entry.PreviousStatus),
			NewStatus:      string(result.Entry.NewStatus),
			ChangedAt:      result.Entry.CreatedAt,
		}
	}

	if result.Invoice != nil {
		resp.Invoice = &transitionInvoiceResponse{
			InvoiceNumber: result.Invoice.Number,
			TotalCents:    result.Invoice.TotalCents,
			DueDate:       result.Invoice.DueAt,
		}
	}

	return resp
}

type historyResponse struct {
	ID               uuid.UUID              `json:"id"`
	PreviousStatus   *string                `json:"previous_status"`
	NewStatus        string                 `json:"new_status"`
	ChangedBy        uuid.UUID              `json:"changed_by"`
	ChangeReason     string                 `json:"change_reason,omitempty"`
	InvoiceID        *uuid.UUID             `json:"invoice_id,omitempty"`
	InvoiceOutcome   *audit.InvoiceOutcome  `json:"invoice_outcome,omitempty"`
	ProcessingStatus audit.ProcessingStatus `json:"processing_status"`
	ErrorLog         []audit.ErrorEntry     `json:"error_log,omitempty"`
	ChangedAt        time.Time              `json:"changed_at"`
}

func toHistoryResponse(e *audit.Entry) historyResponse {
	return historyResponse{
		ID:               e.ID,
		PreviousStatus:   salesStatusJSON(e.PreviousStatus),
		NewStatus:        string(e.NewStatus),
		ChangedBy:        e.ChangedBy,
		ChangeReason:     e.ChangeReason,
		InvoiceID:        e.InvoiceID,
		InvoiceOutcome:   e.InvoiceOutcome,
		ProcessingStatus: e.ProcessingStatus,
		ErrorLog:         e.ErrorLog,
		ChangedAt:        e.CreatedAt,
	}
}

func toHistoryResponseList(entries []*audit.Entry) []historyResponse {
	resp := make([]historyResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toHistoryResponse(e))
	}

	return resp
}

// salesStatusJSON renders the zero status as JSON null rather than "".
func salesStatusJSON(s property.SalesStatus) *string {
	if s == property.SalesStatusNone {
		return nil
	}

	v := string(s)

	return &v
}
