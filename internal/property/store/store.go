package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/onlyif-au/onlyif/internal/property"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const selectPropertyColumns = `
	p.id, p.slug, p.address, p.suburb, p.state, p.postcode, p.price_cents,
	p.status, p.sales_status, p.owner_id, p.settlement_date,
	p.created_at, p.updated_at, p.deleted_at
`

// scanProperty reads a property row. A NULL sales_status maps to the zero
// SalesStatus, meaning no sale has started.
func scanProperty(s scanner) (*property.Property, error) {
	var p property.Property

	var statusStr string

	var salesStatus sql.NullString

	if err := s.Scan(
		&p.ID, &p.Slug, &p.Address, &p.Suburb, &p.State, &p.Postcode, &p.PriceCents,
		&statusStr, &salesStatus, &p.OwnerID, &p.SettlementDate,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
	); err != nil {
		return nil, err
	}

	p.Status = property.Status(statusStr)
	p.SalesStatus = property.SalesStatus(salesStatus.String)

	return &p, nil
}

func (s *Store) GetProperty(ctx context.Context, id uuid.UUID) (*property.Property, error) {
	query := `SELECT ` + selectPropertyColumns + `
		FROM properties p
		WHERE p.id = $1 AND p.deleted_at IS NULL`

	p, err := scanProperty(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, property.ErrNotFound
		}

		return nil, fmt.Errorf("getting property: %w", err)
	}

	if err := s.loadAgents(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

func (s *Store) GetPropertyBySlug(ctx context.Context, slug string) (*property.Property, error) {
	query := `SELECT ` + selectPropertyColumns + `
		FROM properties p
		WHERE p.slug = $1 AND p.deleted_at IS NULL`

	p, err := scanProperty(s.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, property.ErrNotFound
		}

		return nil, fmt.Errorf("getting property by slug: %w", err)
	}

	if err := s.loadAgents(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

func (s *Store) ListProperties(ctx context.Context, filter property.ListFilter) ([]*property.Property, error) {
	query := `SELECT ` + selectPropertyColumns + `
		FROM properties p
		WHERE p.deleted_at IS NULL`

	var args []any

	argIdx := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND p.status = $%d", argIdx)

		args = append(args, *filter.Status)
		argIdx++
	}

	if filter.SalesStatus != nil {
		query += fmt.Sprintf(" AND p.sales_status = $%d", argIdx)

		args = append(args, *filter.SalesStatus)
		argIdx++
	}

	if filter.OwnerID != nil {
		query += fmt.Sprintf(" AND p.owner_id = $%d", argIdx)

		args = append(args, *filter.OwnerID)
		argIdx++
	}

	query += " ORDER BY p.created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing properties: %w", err)
	}
	defer rows.Close()

	var props []*property.Property

	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning property: %w", err)
		}

		props = append(props, p)
	}

	return props, nil
}

func (s *Store) UpdateSalesStatus(ctx context.Context, update property.SalesStatusUpdate) (*property.Property, error) {
	query := `
		UPDATE properties
		SET sales_status = $1,
			status = COALESCE($2, status),
			settlement_date = COALESCE($3, settlement_date),
			updated_at = NOW()
		WHERE id = $4 AND deleted_at IS NULL
		RETURNING ` + selectPropertyColumnsBare

	p, err := scanProperty(s.db.QueryRowContext(ctx, query,
		update.SalesStatus,
		update.ListingStatus,
		update.SettlementDate,
		update.PropertyID,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, property.ErrNotFound
		}

		return nil, fmt.Errorf("updating sales status: %w", err)
	}

	if err := s.loadAgents(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

// selectPropertyColumnsBare mirrors selectPropertyColumns without the table
// alias, for RETURNING clauses.
const selectPropertyColumnsBare = `
	id, slug, address, suburb, state, postcode, price_cents,
	status, sales_status, owner_id, settlement_date,
	created_at, updated_at, deleted_at
`

// AssignAgent appoints an agent on a listing, retiring any currently active
// appointment. Both writes run in one transaction so the one-active-agent
// constraint holds throughout.
func (s *Store) AssignAgent(ctx context.Context, propertyID, agentID uuid.UUID, rate decimal.Decimal) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback()

	retireQuery := `
		UPDATE property_agents
		SET is_active = FALSE
		WHERE property_id = $1 AND is_active
	`
	if _, err := dbTx.ExecContext(ctx, retireQuery, propertyID); err != nil {
		return fmt.Errorf("retiring active agent: %w", err)
	}

	appointQuery := `
		INSERT INTO property_agents (property_id, agent_id, commission_rate, is_active, appointed_at)
		VALUES ($1, $2, $3, TRUE, NOW())
		ON CONFLICT (property_id, agent_id)
		DO UPDATE SET commission_rate = EXCLUDED.commission_rate, is_active = TRUE, appointed_at = NOW()
	`
	if _, err := dbTx.ExecContext(ctx, appointQuery, propertyID, agentID, rate); err != nil {
		return fmt.Errorf("appointing agent: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (s *Store) loadAgents(ctx context.Context, p *property.Property) error {
	query := `
		SELECT agent_id, commission_rate, is_active, appointed_at
		FROM property_agents
		WHERE property_id = $1
		ORDER BY appointed_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, p.ID)
	if err != nil {
		return fmt.Errorf("loading agents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a property.AgentAssignment

		if err := rows.Scan(&a.AgentID, &a.CommissionRate, &a.IsActive, &a.AppointedAt); err != nil {
			return fmt.Errorf("scanning agent assignment: %w", err)
		}

		p.Agents = append(p.Agents, a)
	}

	return rows.Err()
}
