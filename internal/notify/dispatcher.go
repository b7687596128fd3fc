package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/onlyif-au/onlyif/internal/directory"
	"github.com/onlyif-au/onlyif/internal/invoice"
	"github.com/onlyif-au/onlyif/internal/property"
)

//go:generate mockgen -source=dispatcher.go -destination=dispatcher_mock.go -package=notify
type Repository interface {
	Enqueue(ctx context.Context, notifications []*Notification) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]*Notification, error)
	MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error
	Reschedule(ctx context.Context, id uuid.UUID, attempts int, nextAttemptAt time.Time, lastError string) error
	MarkDead(ctx context.Context, id uuid.UUID, lastError string) error
	ListDead(ctx context.Context, limit int) ([]*Notification, error)
}

// Sink delivers a rendered message over one channel.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, msg *Message, recipient *directory.User) error
}

type InvoiceSource interface {
	Get(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error)
}

type PropertySource interface {
	Get(ctx context.Context, id uuid.UUID) (*property.Property, error)
}

type Directory interface {
	UserByID(ctx context.Context, id uuid.UUID) (*directory.User, error)
	Admins(ctx context.Context) ([]*directory.User, error)
}

// Dispatcher owns the notification queue. Producers enqueue durably and
// return; a background worker drains the queue and hands messages to the
// configured sinks. Delivery is at-least-once; exhausted notifications are
// parked as dead for operator review.
type Dispatcher struct {
	repo        Repository
	invoices    InvoiceSource
	properties  PropertySource
	directory   Directory
	sinks       []Sink
	maxAttempts int
	backoff     time.Duration
	interval    time.Duration
}

type Options struct {
	MaxAttempts  int
	RetryBackoff time.Duration
	PollInterval time.Duration
}

func NewDispatcher(repo Repository, invoices InvoiceSource, properties PropertySource, dir Directory, sinks []Sink, opts Options) *Dispatcher {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}

	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 30 * time.Second
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}

	return &Dispatcher{
		repo:        repo,
		invoices:    invoices,
		properties:  properties,
		directory:   dir,
		sinks:       sinks,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.RetryBackoff,
		interval:    opts.PollInterval,
	}
}

// StatusChange describes a sales status move for the property owner.
type StatusChange struct {
	PropertyID   uuid.UUID
	OwnerID      uuid.UUID
	Address      string
	Previous     property.SalesStatus
	New          property.SalesStatus
	ActorName    string
	ChangeReason string
}

// StatusChanged queues an owner notification. Enqueue failures are logged
// and swallowed; notifications never fail the operation that produced them.
func (d *Dispatcher) StatusChanged(ctx context.Context, change StatusChange) {
	d.enqueue(ctx, change.OwnerID, KindStatusChange, StatusChangePayload{
		PropertyID:     change.PropertyID,
		Address:        change.Address,
		PreviousStatus: string(change.Previous),
		NewStatus:      string(change.New),
		ChangedBy:      change.ActorName,
		ChangeReason:   change.ChangeReason,
	})
}

// InvoiceIssued queues a billing notification to the invoice's counterparty.
func (d *Dispatcher) InvoiceIssued(ctx context.Context, inv *invoice.Invoice) {
	d.enqueue(ctx, inv.CounterpartyID, KindInvoiceGenerated, InvoiceGeneratedPayload{
		InvoiceID: inv.ID,
	})
}

// Alert describes a condition needing operator attention.
type Alert struct {
	Subject    string
	Detail     string
	PropertyID *uuid.UUID
}

// SystemAlert queues one notification per administrator.
func (d *Dispatcher) SystemAlert(ctx context.Context, alert Alert) {
	admins, err := d.directory.Admins(ctx)
	if err != nil {
		slog.Error("resolving admins for system alert", "subject", alert.Subject, "error", err)
		return
	}

	for _, admin := range admins {
		d.enqueue(ctx, admin.ID, KindSystemAlert, SystemAlertPayload{
			Subject:    alert.Subject,
			Detail:     alert.Detail,
			PropertyID: alert.PropertyID,
		})
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, recipientID uuid.UUID, kind Kind, payload any) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		slog.Error("encoding notification payload", "kind", kind, "error", err)
		return
	}

	n := &Notification{
		RecipientID:   recipientID,
		Kind:          kind,
		Payload:       encoded,
		Status:        StatusPending,
		NextAttemptAt: time.Now().UTC(),
	}
	if err := d.repo.Enqueue(ctx, []*Notification{n}); err != nil {
		slog.Error("enqueueing notification", "kind", kind, "recipient", recipientID, "error", err)
	}
}

// Start runs the delivery loop until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := d.ProcessOnce(ctx); err != nil {
					slog.Error("processing notification queue", "error", err)
				}
			}
		}
	}()
}

// ProcessOnce drains one batch of due notifications and reports how many
// were delivered.
func (d *Dispatcher) ProcessOnce(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	due, err := d.repo.ListDue(ctx, now, 50)
	if err != nil {
		return 0, fmt.Errorf("listing due notifications: %w", err)
	}

	delivered := 0

	for _, n := range due {
		if err := d.deliver(ctx, n); err != nil {
			d.recordFailure(ctx, n, err)
			continue
		}

		if err := d.repo.MarkDelivered(ctx, n.ID, time.Now().UTC()); err != nil {
			slog.Error("marking notification delivered", "id", n.ID, "error", err)
			continue
		}

		delivered++
	}

	return delivered, nil
}

func (d *Dispatcher) deliver(ctx context.Context, n *Notification) error {
	recipient, err := d.directory.UserByID(ctx, n.RecipientID)
	if err != nil {
		return fmt.Errorf("resolving recipient: %w", err)
	}

	payload, err := d.renderPayload(ctx, n)
	if err != nil {
		return err
	}

	msg := &Message{
		ID:          n.ID,
		RecipientID: n.RecipientID,
		Kind:        n.Kind,
		Payload:     payload,
		CreatedAt:   n.CreatedAt,
	}

	for _, sink := range d.sinks {
		if err := sink.Deliver(ctx, msg, recipient); err != nil {
			return fmt.Errorf("delivering via %s: %w", sink.Name(), err)
		}
	}

	return nil
}

// renderPayload produces the outbound payload. Invoice notifications are
// expanded from the ledger so the recipient sees live amounts, not the
// amounts at enqueue time.
func (d *Dispatcher) renderPayload(ctx context.Context, n *Notification) (json.RawMessage, error) {
	if n.Kind != KindInvoiceGenerated {
		return n.Payload, nil
	}

	var stored InvoiceGeneratedPayload
	if err := json.Unmarshal(n.Payload, &stored); err != nil {
		return nil, fmt.Errorf("decoding invoice payload: %w", err)
	}

	inv, err := d.invoices.Get(ctx, stored.InvoiceID)
	if err != nil {
		return nil, fmt.Errorf("loading invoice %s: %w", stored.InvoiceID, err)
	}

	full := InvoiceGeneratedPayload{
		InvoiceID:      inv.ID,
		InvoiceNumber:  inv.Number,
		Category:       string(inv.Category),
		TotalCents:     inv.TotalCents,
		AmountDueCents: inv.AmountDueCents(),
		DueAt:          inv.DueAt.Format(time.DateOnly),
		PropertyID:     inv.PropertyID.String(),
	}

	if prop, err := d.properties.Get(ctx, inv.PropertyID); err == nil {
		full.PropertyAddress = prop.Address
	}

	return json.Marshal(full)
}

func (d *Dispatcher) recordFailure(ctx context.Context, n *Notification, cause error) {
	attempts := n.Attempts + 1

	if attempts >= d.maxAttempts {
		slog.Error("notification exhausted retries", "id", n.ID, "kind", n.Kind, "attempts", attempts, "error", cause)

		if err := d.repo.MarkDead(ctx, n.ID, cause.Error()); err != nil {
			slog.Error("marking notification dead", "id", n.ID, "error", err)
		}

		return
	}

	next := time.Now().UTC().Add(d.backoff << (attempts - 1))

	slog.Warn("notification delivery failed", "id", n.ID, "kind", n.Kind, "attempt", attempts, "next_attempt", next, "error", cause)

	if err := d.repo.Reschedule(ctx, n.ID, attempts, next, cause.Error()); err != nil {
		slog.Error("rescheduling notification", "id", n.ID, "error", err)
	}
}

// ListDead exposes the dead-letter queue for operator tooling.
func (d *Dispatcher) ListDead(ctx context.Context, limit int) ([]*Notification, error) {
	return d.repo.ListDead(ctx, limit)
}
