package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const servingColumns = `id, food_id, serving_name, unit, grams_per_unit, created_at, created_by`

func scanServing(row pgx.Row) (*Serving, error) {
	var s Serving
	err := row.Scan(&s.ID, &s.FoodID, &s.ServingName, &s.Unit, &s.GramsPerUnit, &s.CreatedAt, &s.CreatedBy)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// CreateServing inserts a serving row. Returns ErrDuplicate when the
// (food_id, serving_name, unit) triple already exists; the unique index
// compares trimmed, lowercased values.
func (db *DB) CreateServing(ctx context.Context, s *Serving) error {
	err := db.pool.QueryRow(ctx,
		`INSERT INTO servings (food_id, serving_name, unit, grams_per_unit, created_by)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		s.FoodID, s.ServingName, s.Unit, s.GramsPerUnit, s.CreatedBy,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("serving %q/%q for food %d: %w", s.ServingName, s.Unit, s.FoodID, ErrDuplicate)
		}
		return fmt.Errorf("failed to create serving: %w", err)
	}
	return nil
}

// GetServingByID retrieves a serving by its ID
func (db *DB) GetServingByID(ctx context.Context, id int64) (*Serving, error) {
	s, err := scanServing(db.pool.QueryRow(ctx,
		`SELECT `+servingColumns+` FROM servings WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get serving: %w", err)
	}
	return s, nil
}

// FindServing looks up a serving by its natural key, trimmed and
// case-insensitive.
func (db *DB) FindServing(ctx context.Context, foodID int64, servingName, unit string) (*Serving, error) {
	s, err := scanServing(db.pool.QueryRow(ctx,
		`SELECT `+servingColumns+` FROM servings
		 WHERE food_id = $1
		   AND lower(btrim(serving_name)) = lower(btrim($2))
		   AND lower(btrim(unit)) = lower(btrim($3))`,
		foodID, servingName, unit))
	if err != nil {
		return nil, fmt.Errorf("failed to find serving: %w", err)
	}
	return s, nil
}

// ListServingsByFood returns all servings of a food, name order.
func (db *DB) ListServingsByFood(ctx context.Context, foodID int64) ([]Serving, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+servingColumns+` FROM servings WHERE food_id = $1 ORDER BY serving_name`, foodID)
	if err != nil {
		return nil, fmt.Errorf("failed to list servings: %w", err)
	}
	defer rows.Close()

	var servings []Serving
	for rows.Next() {
		var s Serving
		if err := rows.Scan(&s.ID, &s.FoodID, &s.ServingName, &s.Unit, &s.GramsPerUnit, &s.CreatedAt, &s.CreatedBy); err != nil {
			return nil, fmt.Errorf("failed to scan serving: %w", err)
		}
		servings = append(servings, s)
	}
	return servings, rows.Err()
}

// ServingFilter holds optional, conjunctive filters for serving exports.
// Food-level fields filter on the joined food row.
type ServingFilter struct {
	Food FoodFilter

	Unit                string
	ServingNameContains string
	GramsMin            *float64
	GramsMax            *float64
	CreatedAfter        *time.Time
	CreatedBefore       *time.Time
}

// ServingExportRow is one serving joined with its food, shaped for export
// serialization.
type ServingExportRow struct {
	Serving
	FoodName     string
	FoodBrand    string
	FoodCategory string
	FoodVerified bool
}

// ForEachServing streams filtered servings to fn ordered by food then
// serving name.
func (db *DB) ForEachServing(ctx context.Context, filter ServingFilter, fn func(*ServingExportRow) error) error {
	query := `SELECT s.id, s.food_id, s.serving_name, s.unit, s.grams_per_unit,
	       s.created_at, s.created_by,
	       f.name, f.brand, f.category, f.is_verified
	  FROM servings s
	  JOIN foods f ON f.id = s.food_id
	 WHERE 1=1`
	args := []any{}
	query, args = filter.Food.apply(query, args)
	argNum := len(args) + 1

	if filter.Unit != "" {
		query += fmt.Sprintf(" AND s.unit = $%d", argNum)
		args = append(args, filter.Unit)
		argNum++
	}
	if filter.ServingNameContains != "" {
		query += fmt.Sprintf(" AND s.serving_name ILIKE $%d", argNum)
		args = append(args, "%"+filter.ServingNameContains+"%")
		argNum++
	}
	if filter.GramsMin != nil {
		query += fmt.Sprintf(" AND s.grams_per_unit >= $%d", argNum)
		args = append(args, *filter.GramsMin)
		argNum++
	}
	if filter.GramsMax != nil {
		query += fmt.Sprintf(" AND s.grams_per_unit <= $%d", argNum)
		args = append(args, *filter.GramsMax)
		argNum++
	}
	if filter.CreatedAfter != nil {
		query += fmt.Sprintf(" AND s.created_at >= $%d", argNum)
		args = append(args, *filter.CreatedAfter)
		argNum++
	}
	if filter.CreatedBefore != nil {
		query += fmt.Sprintf(" AND s.created_at <= $%d", argNum)
		args = append(args, *filter.CreatedBefore)
	}

	query += " ORDER BY s.food_id, s.serving_name"

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query servings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r ServingExportRow
		if err := rows.Scan(&r.ID, &r.FoodID, &r.ServingName, &r.Unit, &r.GramsPerUnit,
			&r.CreatedAt, &r.CreatedBy,
			&r.FoodName, &r.FoodBrand, &r.FoodCategory, &r.FoodVerified); err != nil {
			return fmt.Errorf("failed to scan serving: %w", err)
		}
		if err := fn(&r); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ListServingUnits returns the distinct serving units in use, sorted.
func (db *DB) ListServingUnits(ctx context.Context) ([]string, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT DISTINCT unit FROM servings WHERE unit <> '' ORDER BY unit`)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	defer rows.Close()

	var units []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}
