package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bh-srinivasan/nutri-tracker/internal/db"
	"github.com/bh-srinivasan/nutri-tracker/internal/nutrition"
)

// Catalog is the slice of the store the row processors need.
type Catalog interface {
	CreateFood(ctx context.Context, f *db.Food) error
	GetFoodByID(ctx context.Context, id int64) (*db.Food, error)
	GetFoodByName(ctx context.Context, name string) (*db.Food, error)
	FindFoodByNameBrand(ctx context.Context, name, brand string) (*db.Food, error)
	CreateServing(ctx context.Context, s *db.Serving) error
	FindServing(ctx context.Context, foodID int64, servingName, unit string) (*db.Serving, error)
	SetDefaultServing(ctx context.Context, foodID, servingID int64) error
}

// FoodProcessor applies food rows to the catalog.
type FoodProcessor struct {
	catalog Catalog
	owner   uuid.UUID
}

func NewFoodProcessor(catalog Catalog, owner uuid.UUID) *FoodProcessor {
	return &FoodProcessor{catalog: catalog, owner: owner}
}

// Process validates one food row, skips it when a food with the same
// name and brand already exists, and otherwise creates the food. Bulk
// uploads come from trusted operators, so new foods are marked verified.
func (p *FoodProcessor) Process(ctx context.Context, row Row, rowNumber int) (Outcome, error) {
	rec := sanitizeFoodRow(row)

	key := rec.Name
	if key == "" {
		key = fmt.Sprintf("row %d", rowNumber)
	}

	if errs := rec.validate(); len(errs) > 0 {
		return Outcome{InputKey: key, Status: db.ItemFailed, Message: strings.Join(errs, "; ")}, nil
	}

	existing, err := p.catalog.FindFoodByNameBrand(ctx, rec.Name, rec.Brand)
	if err != nil {
		return Outcome{}, fmt.Errorf("look up food %q: %w", rec.Name, err)
	}
	if existing != nil {
		return Outcome{
			InputKey: key,
			Status:   db.ItemSkipped,
			EntityID: &existing.ID,
			Message:  "food already exists",
		}, nil
	}

	food := &db.Food{
		Name:     rec.Name,
		Brand:    rec.Brand,
		Category: rec.Category,
		BaseUnit: rec.BaseUnit,
		Per100g: nutrition.Vector{
			Calories: rec.Calories,
			Protein:  rec.Protein,
			Carbs:    rec.Carbs,
			Fat:      rec.Fat,
			Fiber:    rec.Fiber,
			Sugar:    rec.Sugar,
			Sodium:   rec.Sodium,
		},
		ServingSize: rec.ServingSize,
		IsVerified:  true,
		CreatedBy:   &p.owner,
	}
	if rec.Description != "" {
		food.Description = &rec.Description
	}

	if err := p.catalog.CreateFood(ctx, food); err != nil {
		// Lost a race to a concurrent job; the row is not retried.
		if errors.Is(err, db.ErrDuplicate) {
			return Outcome{
				InputKey: key,
				Status:   db.ItemFailed,
				Message:  "food was created concurrently by another job",
			}, nil
		}
		return Outcome{}, fmt.Errorf("create food %q: %w", rec.Name, err)
	}

	return Outcome{InputKey: key, Status: db.ItemSuccess, EntityID: &food.ID}, nil
}
