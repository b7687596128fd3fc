package sales

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/onlyif-au/onlyif/internal/audit"
	"github.com/onlyif-au/onlyif/internal/directory"
	"github.com/onlyif-au/onlyif/internal/invoice"
	"github.com/onlyif-au/onlyif/internal/notify"
	"github.com/onlyif-au/onlyif/internal/property"
)

var (
	ErrInvalidStatus     = errors.New("invalid sales status")
	ErrNotAuthorized     = errors.New("not authorized to change sales status")
	ErrSelfDealing       = errors.New("owners cannot change the sales status of their own listing")
	ErrOutOfOrder        = errors.New("sales status does not follow the progression")
	ErrListingClosed     = errors.New("listing is already sold")
	ErrMissingSettlement = errors.New("settlement details are required to settle")
	ErrNotRetryable      = errors.New("billing retry requires a settlement entry")
)

//go:generate mockgen -source=service.go -destination=service_mock.go -package=sales
type PropertyStore interface {
	Get(ctx context.Context, id uuid.UUID) (*property.Property, error)
	GetByIDOrSlug(ctx context.Context, idOrSlug string) (*property.Property, error)
	ApplySalesStatus(ctx context.Context, update property.SalesStatusUpdate) (*property.Property, error)
}

type Ledger interface {
	GetOrCreate(ctx context.Context, params invoice.GetOrCreateParams) (*invoice.Invoice, bool, error)
}

type Recorder interface {
	Record(ctx context.Context, params audit.RecordParams) (*audit.Entry, error)
	Get(ctx context.Context, id uuid.UUID) (*audit.Entry, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, invoiceID *uuid.UUID, outcome audit.InvoiceOutcome) error
	MarkFailed(ctx context.Context, id uuid.UUID, cause error) error
}

type Payments interface {
	EnsureForInvoice(ctx context.Context, inv *invoice.Invoice) error
}

type Notifier interface {
	StatusChanged(ctx context.Context, change notify.StatusChange)
	InvoiceIssued(ctx context.Context, inv *invoice.Invoice)
	SystemAlert(ctx context.Context, alert notify.Alert)
}

// Service drives the sales pipeline: it validates and authorizes a requested
// status change, applies it, records the history entry, and runs settlement
// billing. The property write, the history entry and the invoices are
// separate sequential writes, not one transaction; the history entry's
// processing marker is what ties the sequence back together after a crash.
type Service struct {
	properties PropertyStore
	ledger     Ledger
	recorder   Recorder
	payments   Payments
	notifier   Notifier
	strict     bool
}

type Options struct {
	// StrictProgression turns the out-of-order warning into a rejection.
	StrictProgression bool
}

func NewService(properties PropertyStore, ledger Ledger, recorder Recorder, payments Payments, notifier Notifier, opts Options) *Service {
	return &Service{
		properties: properties,
		ledger:     ledger,
		recorder:   recorder,
		payments:   payments,
		notifier:   notifier,
		strict:     opts.StrictProgression,
	}
}

// Actor is the authenticated caller of a transition.
type Actor struct {
	ID   uuid.UUID
	Name string
	Role directory.Role
}

// RequestMeta is the request context snapshot stored on the history entry.
type RequestMeta struct {
	RequestID  string
	RemoteAddr string
	UserAgent  string
}

// SettlementDetails captures how the deposit is handled at settlement. The
// parties are kept alongside so billing can be replayed from the history
// entry alone.
type SettlementDetails struct {
	SettlementDate      *time.Time `json:"settlement_date,omitempty"`
	DepositHeldBy       string     `json:"deposit_held_by,omitempty"`
	DepositReleaseTerms string     `json:"deposit_release_terms,omitempty"`
	SellerID            *uuid.UUID `json:"seller_id,omitempty"`
	BuyerID             *uuid.UUID `json:"buyer_id,omitempty"`
}

type TransitionRequest struct {
	PropertyIDOrSlug string
	Status           property.SalesStatus
	Actor            Actor
	ChangeReason     string
	SellerID         *uuid.UUID
	BuyerID          *uuid.UUID
	Settlement       *SettlementDetails
	Meta             RequestMeta
}

type TransitionResult struct {
	Property              *property.Property
	Entry                 *audit.Entry
	Invoice               *invoice.Invoice
	InvoiceAlreadyExisted bool
	Warning               string
}

// Transition validates, authorizes and applies a sales status change.
//
// Write order is fixed: property first, then the history entry, then
// invoices, then the entry's outcome. A billing failure never unwinds the
// status change; it marks the entry failed and alerts operators instead.
func (s *Service) Transition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	if !req.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, string(req.Status))
	}

	settling := req.Status == property.SalesStatusSettled
	if settling && (req.Settlement == nil || req.Settlement.DepositHeldBy == "") {
		return nil, fmt.Errorf("%w: deposit_held_by is missing", ErrMissingSettlement)
	}

	prop, err := s.properties.GetByIDOrSlug(ctx, req.PropertyIDOrSlug)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(prop, req.Actor); err != nil {
		return nil, err
	}

	if prop.Status == property.StatusSold && !settling {
		return nil, fmt.Errorf("%w: sales status is locked after sale", ErrListingClosed)
	}

	var warning string

	if !FollowsProgression(prop.SalesStatus, req.Status) {
		if s.strict {
			return nil, fmt.Errorf("%w: %s cannot move to %s", ErrOutOfOrder, statusLabel(prop.SalesStatus), req.Status)
		}

		warning = fmt.Sprintf("status %s does not follow %s in the usual progression", req.Status, statusLabel(prop.SalesStatus))
		slog.Warn("sales status moved out of order",
			"property_id", prop.ID,
			"from", statusLabel(prop.SalesStatus),
			"to", req.Status,
			"changed_by", req.Actor.ID,
		)
	}

	previous := prop.SalesStatus

	update := property.SalesStatusUpdate{
		PropertyID:  prop.ID,
		SalesStatus: req.Status,
	}

	var settlementDate time.Time

	if settling {
		settlementDate = time.Now().UTC()
		if req.Settlement.SettlementDate != nil {
			settlementDate = *req.Settlement.SettlementDate
		}

		update.ListingStatus = new(property.StatusSold)
		update.SettlementDate = &settlementDate
	}

	updated, err := s.properties.ApplySalesStatus(ctx, update)
	if err != nil {
		return nil, fmt.Errorf("applying sales status: %w", err)
	}

	result := &TransitionResult{Property: updated, Warning: warning}

	details, err := s.settlementDetailsJSON(req, settlementDate)
	if err != nil {
		return nil, err
	}

	entry, err := s.recorder.Record(ctx, audit.RecordParams{
		PropertyID:        prop.ID,
		PreviousStatus:    previous,
		NewStatus:         req.Status,
		ChangedBy:         req.Actor.ID,
		ChangeReason:      req.ChangeReason,
		Metadata:          metadataFor(req),
		SettlementDetails: details,
	})
	if err != nil {
		// The status change already committed; losing the breadcrumb is an
		// operator problem, not the caller's.
		slog.Error("recording status history", "property_id", prop.ID, "error", err)
		s.notifier.SystemAlert(ctx, notify.Alert{
			Subject:    "status history write failed",
			Detail:     err.Error(),
			PropertyID: &prop.ID,
		})
		s.notifyStatusChange(ctx, updated, previous, req)

		return result, nil
	}

	result.Entry = entry

	if settling {
		s.runBilling(ctx, updated, entry, req.SellerID, req.BuyerID, settlementDate, result)
	} else {
		s.closeEntry(ctx, entry, nil, audit.InvoiceSkipped)
	}

	s.notifyStatusChange(ctx, updated, previous, req)

	return result, nil
}

// RetryBilling replays invoice generation for a settlement entry whose
// billing failed or was interrupted. Replays are idempotent; invoices that
// already exist are simply picked up.
func (s *Service) RetryBilling(ctx context.Context, entryID uuid.UUID) (*TransitionResult, error) {
	entry, err := s.recorder.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}

	if entry.NewStatus != property.SalesStatusSettled {
		return nil, fmt.Errorf("%w: entry recorded %s", ErrNotRetryable, entry.NewStatus)
	}

	prop, err := s.properties.Get(ctx, entry.PropertyID)
	if err != nil {
		return nil, err
	}

	var details SettlementDetails
	if len(entry.SettlementDetails) > 0 {
		if err := json.Unmarshal(entry.SettlementDetails, &details); err != nil {
			return nil, fmt.Errorf("decoding settlement details: %w", err)
		}
	}

	settlementDate := time.Now().UTC()
	if details.SettlementDate != nil {
		settlementDate = *details.SettlementDate
	} else if prop.SettlementDate != nil {
		settlementDate = *prop.SettlementDate
	}

	result := &TransitionResult{Property: prop, Entry: entry}
	s.runBilling(ctx, prop, entry, details.SellerID, details.BuyerID, settlementDate, result)

	return result, nil
}

func (s *Service) authorize(prop *property.Property, actor Actor) error {
	if actor.ID == prop.OwnerID {
		return ErrSelfDealing
	}

	switch actor.Role {
	case directory.RoleAdmin:
		return nil
	case directory.RoleAgent:
		if a := prop.ActiveAgent(); a != nil && a.AgentID == actor.ID {
			return nil
		}

		return fmt.Errorf("%w: not the active agent on this listing", ErrNotAuthorized)
	}

	return fmt.Errorf("%w: role %q cannot change sales status", ErrNotAuthorized, actor.Role)
}

// runBilling generates the settlement invoices and closes out the history
// entry. The seller commission invoice is the primary artifact; a buyer
// payment invoice is added when the sale has a recorded buyer.
func (s *Service) runBilling(ctx context.Context, prop *property.Property, entry *audit.Entry, sellerID, buyerID *uuid.UUID, settlementDate time.Time, result *TransitionResult) {
	counterparty := prop.OwnerID
	if sellerID != nil {
		counterparty = *sellerID
	}

	var agentID *uuid.UUID
	if a := prop.ActiveAgent(); a != nil {
		agentID = &a.AgentID
	}

	sellerInv, existed, err := s.ledger.GetOrCreate(ctx, invoice.GetOrCreateParams{
		Category:           invoice.CategorySettlementCommission,
		PropertyID:         prop.ID,
		PropertyValueCents: prop.PriceCents,
		CounterpartyID:     counterparty,
		CounterpartyRole:   invoice.CounterpartySeller,
		AgentID:            agentID,
		SettlementDate:     settlementDate,
	})
	if err != nil {
		s.failBilling(ctx, entry, prop.ID, fmt.Errorf("generating settlement invoice: %w", err))
		return
	}

	result.Invoice = sellerInv
	result.InvoiceAlreadyExisted = existed

	outcome := audit.InvoiceGenerated
	if existed {
		outcome = audit.InvoiceAlreadyExisted
	}

	s.closeEntry(ctx, entry, &sellerInv.ID, outcome)

	if err := s.payments.EnsureForInvoice(ctx, sellerInv); err != nil {
		slog.Error("creating payment record", "invoice", sellerInv.Number, "error", err)
	}

	if !existed {
		s.notifier.InvoiceIssued(ctx, sellerInv)
	}

	if buyerID == nil {
		return
	}

	buyerInv, buyerExisted, err := s.ledger.GetOrCreate(ctx, invoice.GetOrCreateParams{
		Category:           invoice.CategoryBuyerPayment,
		PropertyID:         prop.ID,
		PropertyValueCents: prop.PriceCents,
		CounterpartyID:     *buyerID,
		CounterpartyRole:   invoice.CounterpartyBuyer,
		AgentID:            agentID,
		SettlementDate:     settlementDate,
	})
	if err != nil {
		s.failBilling(ctx, entry, prop.ID, fmt.Errorf("generating buyer payment invoice: %w", err))
		return
	}

	if err := s.payments.EnsureForInvoice(ctx, buyerInv); err != nil {
		slog.Error("creating payment record", "invoice", buyerInv.Number, "error", err)
	}

	if !buyerExisted {
		s.notifier.InvoiceIssued(ctx, buyerInv)
	}
}

func (s *Service) closeEntry(ctx context.Context, entry *audit.Entry, invoiceID *uuid.UUID, outcome audit.InvoiceOutcome) {
	if err := s.recorder.MarkCompleted(ctx, entry.ID, invoiceID, outcome); err != nil {
		slog.Error("closing history entry", "entry_id", entry.ID, "error", err)
		return
	}

	entry.ProcessingStatus = audit.ProcessingCompleted
	entry.InvoiceID = invoiceID
	entry.InvoiceOutcome = &outcome
}

func (s *Service) failBilling(ctx context.Context, entry *audit.Entry, propertyID uuid.UUID, cause error) {
	slog.Error("settlement billing failed", "entry_id", entry.ID, "property_id", propertyID, "error", cause)

	if err := s.recorder.MarkFailed(ctx, entry.ID, cause); err != nil {
		slog.Error("marking history entry failed", "entry_id", entry.ID, "error", err)
	} else {
		entry.ProcessingStatus = audit.ProcessingFailed
		entry.InvoiceOutcome = new(audit.InvoiceFailed)
		entry.ErrorLog = append(entry.ErrorLog, audit.ErrorEntry{At: time.Now().UTC(), Message: cause.Error()})
	}

	s.notifier.SystemAlert(ctx, notify.Alert{
		Subject:    "settlement billing needs attention",
		Detail:     cause.Error(),
		PropertyID: &propertyID,
	})
}

func (s *Service) notifyStatusChange(ctx context.Context, prop *property.Property, previous property.SalesStatus, req TransitionRequest) {
	s.notifier.StatusChanged(ctx, notify.StatusChange{
		PropertyID:   prop.ID,
		OwnerID:      prop.OwnerID,
		Address:      prop.Address,
		Previous:     previous,
		New:          prop.SalesStatus,
		ActorName:    req.Actor.Name,
		ChangeReason: req.ChangeReason,
	})
}

func (s *Service) settlementDetailsJSON(req TransitionRequest, settlementDate time.Time) (json.RawMessage, error) {
	if req.Settlement == nil && req.SellerID == nil && req.BuyerID == nil {
		return nil, nil
	}

	details := SettlementDetails{
		SellerID: req.SellerID,
		BuyerID:  req.BuyerID,
	}

	if req.Settlement != nil {
		details.DepositHeldBy = req.Settlement.DepositHeldBy
		details.DepositReleaseTerms = req.Settlement.DepositReleaseTerms
	}

	if req.Status == property.SalesStatusSettled {
		details.SettlementDate = &settlementDate
	}

	encoded, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("encoding settlement details: %w", err)
	}

	return encoded, nil
}

func statusLabel(s property.SalesStatus) string {
	if s == property.SalesStatusNone {
		return "none"
	}

	return string(s)
}

func metadataFor(req TransitionRequest) audit.Metadata {
	return audit.Metadata{
		RequestID:  req.Meta.RequestID,
		RemoteAddr: req.Meta.RemoteAddr,
		UserAgent:  req.Meta.UserAgent,
		ActorRole:  string(req.Actor.Role),
	}
}
