package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const foodColumns = `id, name, brand, category, description, base_unit,
	calories, protein, carbs, fat, fiber, sugar, sodium,
	serving_size, default_serving_id, is_verified, created_at, created_by`

func scanFood(row pgx.Row) (*Food, error) {
	var f Food
	err := row.Scan(&f.ID, &f.Name, &f.Brand, &f.Category, &f.Description, &f.BaseUnit,
		&f.Per100g.Calories, &f.Per100g.Protein, &f.Per100g.Carbs, &f.Per100g.Fat,
		&f.Per100g.Fiber, &f.Per100g.Sugar, &f.Per100g.Sodium,
		&f.ServingSize, &f.DefaultServingID, &f.IsVerified, &f.CreatedAt, &f.CreatedBy)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

// CreateFood inserts a food row and fills in its generated fields.
// Returns ErrDuplicate when the (name, brand) natural key is already taken;
// the unique index compares trimmed, lowercased values, so the database is
// the final arbiter when two writers race on the same key.
func (db *DB) CreateFood(ctx context.Context, f *Food) error {
	err := db.pool.QueryRow(ctx,
		`INSERT INTO foods (name, brand, category, description, base_unit,
		        calories, protein, carbs, fat, fiber, sugar, sodium,
		        serving_size, is_verified, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING id, created_at`,
		f.Name, f.Brand, f.Category, f.Description, f.BaseUnit,
		f.Per100g.Calories, f.Per100g.Protein, f.Per100g.Carbs, f.Per100g.Fat,
		f.Per100g.Fiber, f.Per100g.Sugar, f.Per100g.Sodium,
		f.ServingSize, f.IsVerified, f.CreatedBy,
	).Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("food %q (%s): %w", f.Name, f.Brand, ErrDuplicate)
		}
		return fmt.Errorf("failed to create food: %w", err)
	}
	return nil
}

// GetFoodByID retrieves a food by its ID
func (db *DB) GetFoodByID(ctx context.Context, id int64) (*Food, error) {
	f, err := scanFood(db.pool.QueryRow(ctx,
		`SELECT `+foodColumns+` FROM foods WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get food: %w", err)
	}
	return f, nil
}

// GetFoodByName retrieves a food by name. Matching is trimmed and
// case-insensitive; this is the single name-matching policy used
// everywhere (lookups and duplicate detection alike).
func (db *DB) GetFoodByName(ctx context.Context, name string) (*Food, error) {
	f, err := scanFood(db.pool.QueryRow(ctx,
		`SELECT `+foodColumns+` FROM foods
		 WHERE lower(btrim(name)) = lower(btrim($1))
		 ORDER BY id LIMIT 1`, name))
	if err != nil {
		return nil, fmt.Errorf("failed to get food by name: %w", err)
	}
	return f, nil
}

// FindFoodByNameBrand looks up a food by its natural key (name + brand),
// trimmed and case-insensitive.
func (db *DB) FindFoodByNameBrand(ctx context.Context, name, brand string) (*Food, error) {
	f, err := scanFood(db.pool.QueryRow(ctx,
		`SELECT `+foodColumns+` FROM foods
		 WHERE lower(btrim(name)) = lower(btrim($1))
		   AND lower(btrim(brand)) = lower(btrim($2))`, name, brand))
	if err != nil {
		return nil, fmt.Errorf("failed to find food: %w", err)
	}
	return f, nil
}

// SetDefaultServing points a food at one of its servings.
func (db *DB) SetDefaultServing(ctx context.Context, foodID, servingID int64) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE foods SET default_serving_id = $1 WHERE id = $2`, servingID, foodID)
	if err != nil {
		return fmt.Errorf("failed to set default serving: %w", err)
	}
	return nil
}

// FoodFilter holds optional, conjunctive filters for catalog queries.
type FoodFilter struct {
	Category      string
	Brand         string
	NameContains  string
	IsVerified    *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	MinProtein    *float64
	MaxCalories   *float64
}

func (f FoodFilter) apply(query string, args []any) (string, []any) {
	argNum := len(args) + 1

	if f.Category != "" {
		query += fmt.Sprintf(" AND f.category = $%d", argNum)
		args = append(args, f.Category)
		argNum++
	}
	if f.Brand != "" {
		query += fmt.Sprintf(" AND f.brand ILIKE $%d", argNum)
		args = append(args, "%"+f.Brand+"%")
		argNum++
	}
	if f.NameContains != "" {
		query += fmt.Sprintf(" AND f.name ILIKE $%d", argNum)
		args = append(args, "%"+f.NameContains+"%")
		argNum++
	}
	if f.IsVerified != nil {
		query += fmt.Sprintf(" AND f.is_verified = $%d", argNum)
		args = append(args, *f.IsVerified)
		argNum++
	}
	if f.CreatedAfter != nil {
		query += fmt.Sprintf(" AND f.created_at >= $%d", argNum)
		args = append(args, *f.CreatedAfter)
		argNum++
	}
	if f.CreatedBefore != nil {
		query += fmt.Sprintf(" AND f.created_at <= $%d", argNum)
		args = append(args, *f.CreatedBefore)
		argNum++
	}
	if f.MinProtein != nil {
		query += fmt.Sprintf(" AND f.protein >= $%d", argNum)
		args = append(args, *f.MinProtein)
		argNum++
	}
	if f.MaxCalories != nil {
		query += fmt.Sprintf(" AND f.calories <= $%d", argNum)
		args = append(args, *f.MaxCalories)
	}
	return query, args
}

// FoodExportRow is one food joined with its default serving, shaped for
// export serialization.
type FoodExportRow struct {
	Food
	ServingName  *string
	ServingUnit  *string
	GramsPerUnit *float64
}

// ForEachFood streams filtered foods to fn in name order, one row at a
// time, without materializing the full result set.
func (db *DB) ForEachFood(ctx context.Context, filter FoodFilter, fn func(*FoodExportRow) error) error {
	query := `SELECT ` + prefixColumns("f", foodColumns) + `,
	       s.serving_name, s.unit, s.grams_per_unit
	  FROM foods f
	  LEFT JOIN servings s ON s.id = f.default_serving_id
	 WHERE 1=1`
	args := []any{}
	query, args = filter.apply(query, args)
	query += " ORDER BY f.name, f.id"

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query foods: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r FoodExportRow
		if err := rows.Scan(&r.ID, &r.Name, &r.Brand, &r.Category, &r.Description, &r.BaseUnit,
			&r.Per100g.Calories, &r.Per100g.Protein, &r.Per100g.Carbs, &r.Per100g.Fat,
			&r.Per100g.Fiber, &r.Per100g.Sugar, &r.Per100g.Sodium,
			&r.ServingSize, &r.DefaultServingID, &r.IsVerified, &r.CreatedAt, &r.CreatedBy,
			&r.ServingName, &r.ServingUnit, &r.GramsPerUnit); err != nil {
			return fmt.Errorf("failed to scan food: %w", err)
		}
		if err := fn(&r); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ListCategories returns the distinct non-empty food categories, sorted.
func (db *DB) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT DISTINCT category FROM foods WHERE category <> '' ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// prefixColumns qualifies a comma-separated column list with a table alias.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
