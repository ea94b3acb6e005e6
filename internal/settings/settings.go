// Package settings exposes the read-only site-settings lookup the order
// pipeline consults for shipping defaults. It is a side collaborator, not
// part of the order store, and keeps its own small database/sql connection.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// ShippingDefaults is what checkout needs when the caller did not supply a
// usable shipping cost.
type ShippingDefaults struct {
	Cost        float64 `db:"shipping_cost"`
	CompanyName string  `db:"shipping_company_name"`
}

type Service interface {
	Shipping(ctx context.Context) (ShippingDefaults, error)
}

type sqlService struct {
	db       *sqlx.DB
	defaults ShippingDefaults
}

// New connects to the settings database. The defaults are returned when the
// settings row has not been seeded yet.
func New(dsn string, defaults ShippingDefaults) (Service, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("settings: failed to connect: %w", err)
	}

	log.Info().Msg("Connected to site settings store")
	return &sqlService{db: db, defaults: defaults}, nil
}

func (s *sqlService) Shipping(ctx context.Context) (ShippingDefaults, error) {
	var out ShippingDefaults
	err := s.db.GetContext(ctx, &out, `SELECT shipping_cost, shipping_company_name FROM site_settings LIMIT 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.defaults, nil
		}
		return ShippingDefaults{}, fmt.Errorf("settings: failed to load shipping defaults: %w", err)
	}
	return out, nil
}

// Static returns a Service that always answers with the given defaults. Used
// in tests and in deployments without a settings table.
func Static(defaults ShippingDefaults) Service {
	return staticService{defaults: defaults}
}

type staticService struct {
	defaults ShippingDefaults
}

func (s staticService) Shipping(context.Context) (ShippingDefaults, error) {
	return s.defaults, nil
}
