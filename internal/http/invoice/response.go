package invoice

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/onlyif-au/onlyif/internal/invoice"
)

type paymentResponse struct {
	ID          uuid.UUID `json:"id"`
	AmountCents int64     `json:"amount_cents"`
	Method      string    `json:"method"`
	Reference   string    `json:"reference,omitempty"`
	ReceivedAt  time.Time `json:"received_at"`
}

type invoiceResponse struct {
	ID                 uuid.UUID                `json:"id"`
	InvoiceNumber      string                   `json:"invoice_number"`
	Category           invoice.Category         `json:"category"`
	Status             invoice.Status           `json:"status"`
	PropertyID         uuid.UUID                `json:"property_id"`
	AgentID            *uuid.UUID               `json:"agent_id,omitempty"`
	CounterpartyID     uuid.UUID                `json:"counterparty_id"`
	CounterpartyRole   invoice.CounterpartyRole `json:"counterparty_role"`
	PropertyValueCents int64                    `json:"property_value_cents"`
	CommissionRate     decimal.Decimal          `json:"commission_rate"`
	CommissionCents    int64                    `json:"commission_cents"`
	GSTCents           int64                    `json:"gst_cents"`
	TotalCents         int64                    `json:"total_cents"`
	AmountPaidCents    int64                    `json:"amount_paid_cents"`
	AmountDueCents     int64                    `json:"amount_due_cents"`
	IssuedAt           time.Time                `json:"issued_at"`
	DueAt              time.Time                `json:"due_at"`
	Payments           []paymentResponse        `json:"payments,omitempty"`
	CreatedAt          time.Time                `json:"created_at"`
	UpdatedAt          *time.Time               `json:"updated_at,omitempty"`
}

func toResponse(inv *invoice.Invoice) invoiceResponse {
	resp := invoiceResponse{
		ID:                 inv.ID,
		InvoiceNumber:      inv.Number,
		Category:           inv.Category,
		Status:             inv.Status,
		PropertyID:         inv.PropertyID,
		AgentID:            inv.AgentID,
		CounterpartyID:     inv.CounterpartyID,
		CounterpartyRole:   inv.CounterpartyRole,
		PropertyValueCents: inv.PropertyValueCents,
		CommissionRate:     inv.CommissionRate,
		CommissionCents:    inv.CommissionCents,
		GSTCents:           inv.GSTCents,
		TotalCents:         inv.TotalCents,
		AmountPaidCents:    inv.AmountPaidCents,
		AmountDueCents:     inv.AmountDueCents(),
		IssuedAt:           inv.IssuedAt,
		DueAt:              inv.DueAt,
		CreatedAt:          inv.CreatedAt,
		UpdatedAt:          inv.UpdatedAt,
	}

	for _, p := range inv.Payments {
		resp.Payments = append(resp.Payments, paymentResponse{
			ID:          p.ID,
			AmountCents: p.AmountCents,
			Method:      p.Method,
			Reference:   p.Reference,
			ReceivedAt:  p.ReceivedAt,
		})
	}

	return resp
}

func toResponseList(invs []*invoice.Invoice) []invoiceResponse {
	resp := make([]invoiceResponse, 0, len(invs))
	for _, inv := range invs {
		resp = append(resp, toResponse(inv))
	}

	return resp
}
