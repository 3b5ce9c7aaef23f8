package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Schema creates the pricing tables when they do not exist.
const Schema = `
CREATE TABLE IF NOT EXISTS vehicle_pricing (
	code                TEXT PRIMARY KEY,
	label               TEXT NOT NULL,
	as_directed_rate    NUMERIC(10,2) NOT NULL,
	tier1_rate          NUMERIC(10,2) NOT NULL,
	tier2_rate          NUMERIC(10,2) NOT NULL,
	tier3_rate          NUMERIC(10,2) NOT NULL,
	inner_zone_override NUMERIC(10,2) NOT NULL,
	sort_order          INTEGER NOT NULL DEFAULT 0,
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pricing_surcharges (
	key        TEXT PRIMARY KEY,
	amount     NUMERIC(10,2) NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Surcharge keys in pricing_surcharges.
const (
	surchargeAirportPickup  = "airport_pickup"
	surchargeAirportDropoff = "airport_dropoff"
	surchargeCongestion     = "congestion"
	surchargeNight          = "night"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL pricing repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the pricing tables.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, Schema)
	return err
}

// Load reads the vehicle table and surcharge amounts.
func (r *PostgresRepository) Load(ctx context.Context) (*Config, error) {
	query := `
		SELECT code, label,
			as_directed_rate::text, tier1_rate::text, tier2_rate::text, tier3_rate::text,
			inner_zone_override::text, updated_at
		FROM vehicle_pricing
		ORDER BY sort_order, code
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cfg := &Config{}
	for rows.Next() {
		var (
			v                                     VehiclePricing
			code                                  string
			hourly, tier1, tier2, tier3, override string
			updatedAt                             time.Time
		)

		if err := rows.Scan(&code, &v.Label, &hourly, &tier1, &tier2, &tier3, &override, &updatedAt); err != nil {
			return nil, err
		}

		v.Code = VehicleCode(code)
		if v.AsDirectedRate, err = decimal.NewFromString(hourly); err != nil {
			return nil, fmt.Errorf("vehicle %s as_directed_rate: %w", code, err)
		}
		if v.Mileage.Tier1, err = decimal.NewFromString(tier1); err != nil {
			return nil, fmt.Errorf("vehicle %s tier1_rate: %w", code, err)
		}
		if v.Mileage.Tier2, err = decimal.NewFromString(tier2); err != nil {
			return nil, fmt.Errorf("vehicle %s tier2_rate: %w", code, err)
		}
		if v.Mileage.Tier3, err = decimal.NewFromString(tier3); err != nil {
			return nil, fmt.Errorf("vehicle %s tier3_rate: %w", code, err)
		}
		if v.InnerZoneOverride, err = decimal.NewFromString(override); err != nil {
			return nil, fmt.Errorf("vehicle %s inner_zone_override: %w", code, err)
		}

		if updatedAt.After(cfg.UpdatedAt) {
			cfg.UpdatedAt = updatedAt
		}
		cfg.Vehicles = append(cfg.Vehicles, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(cfg.Vehicles) == 0 {
		return nil, ErrConfigNotFound
	}

	amounts, err := r.loadSurcharges(ctx)
	if err != nil {
		return nil, err
	}

	for key, dst := range map[string]*decimal.Decimal{
		surchargeAirportPickup:  &cfg.Surcharges.AirportPickup,
		surchargeAirportDropoff: &cfg.Surcharges.AirportDropoff,
		surchargeCongestion:     &cfg.Surcharges.Congestion,
		surchargeNight:          &cfg.NightSurcharge,
	} {
		amount, ok := amounts[key]
		if !ok {
			return nil, fmt.Errorf("%w: surcharge %q missing", ErrInvalidConfig, key)
		}
		*dst = amount
	}

	return cfg, nil
}

func (r *PostgresRepository) loadSurcharges(ctx context.Context) (map[string]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, amount::text FROM pricing_surcharges`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	amounts := make(map[string]decimal.Decimal)
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("surcharge %s: %w", key, err)
		}
		amounts[key] = amount
	}
	return amounts, rows.Err()
}

// Save replaces the vehicle table and upserts surcharge amounts in one transaction.
func (r *PostgresRepository) Save(ctx context.Context, cfg *Config) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback error is not critical

	now := time.Now()

	if _, err := tx.Exec(ctx, `DELETE FROM vehicle_pricing`); err != nil {
		return err
	}

	insertVehicle := `
		INSERT INTO vehicle_pricing (
			code, label, as_directed_rate, tier1_rate, tier2_rate, tier3_rate,
			inner_zone_override, sort_order, updated_at
		) VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8, $9)
	`
	for i, v := range cfg.Vehicles {
		_, err := tx.Exec(ctx, insertVehicle,
			string(v.Code), v.Label,
			v.AsDirectedRate.String(),
			v.Mileage.Tier1.String(), v.Mileage.Tier2.String(), v.Mileage.Tier3.String(),
			v.InnerZoneOverride.String(),
			i, now,
		)
		if err != nil {
			return fmt.Errorf("insert vehicle %s: %w", v.Code, err)
		}
	}

	upsertSurcharge := `
		INSERT INTO pricing_surcharges (key, amount, updated_at)
		VALUES ($1, $2::numeric, $3)
		ON CONFLICT (key) DO UPDATE SET
			amount = EXCLUDED.amount,
			updated_at = EXCLUDED.updated_at
	`
	for key, amount := range map[string]decimal.Decimal{
		surchargeAirportPickup:  cfg.Surcharges.AirportPickup,
		surchargeAirportDropoff: cfg.Surcharges.AirportDropoff,
		surchargeCongestion:     cfg.Surcharges.Congestion,
		surchargeNight:          cfg.NightSurcharge,
	} {
		if _, err := tx.Exec(ctx, upsertSurcharge, key, amount.String(), now); err != nil {
			return fmt.Errorf("upsert surcharge %s: %w", key, err)
		}
	}

	return tx.Commit(ctx)
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
