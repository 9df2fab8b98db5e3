package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/bh-srinivasan/nutri-tracker/internal/db"
)

// ServingProcessor applies serving rows to the catalog. The food_key
// column may hold a numeric food ID or a food name.
type ServingProcessor struct {
	catalog Catalog
	owner   uuid.UUID
}

func NewServingProcessor(catalog Catalog, owner uuid.UUID) *ServingProcessor {
	return &ServingProcessor{catalog: catalog, owner: owner}
}

func (p *ServingProcessor) resolveFood(ctx context.Context, key string) (*db.Food, error) {
	if id, err := strconv.ParseInt(key, 10, 64); err == nil {
		return p.catalog.GetFoodByID(ctx, id)
	}
	return p.catalog.GetFoodByName(ctx, key)
}

// Process validates one serving row, resolves its food, skips it when
// an identical (food, serving name, unit) triple already exists, and
// otherwise creates the serving, promoting it to the food's default
// when the row asks for that.
func (p *ServingProcessor) Process(ctx context.Context, row Row, rowNumber int) (Outcome, error) {
	rec := sanitizeServingRow(row)

	key := rec.FoodKey
	if key == "" {
		key = fmt.Sprintf("row %d", rowNumber)
	}

	if errs := rec.validate(); len(errs) > 0 {
		return Outcome{InputKey: key, Status: db.ItemFailed, Message: strings.Join(errs, "; ")}, nil
	}

	food, err := p.resolveFood(ctx, rec.FoodKey)
	if err != nil {
		return Outcome{}, fmt.Errorf("resolve food %q: %w", rec.FoodKey, err)
	}
	if food == nil {
		return Outcome{
			InputKey: key,
			Status:   db.ItemFailed,
			Message:  fmt.Sprintf("no food found for key %q", rec.FoodKey),
		}, nil
	}

	existing, err := p.catalog.FindServing(ctx, food.ID, rec.ServingName, rec.Unit)
	if err != nil {
		return Outcome{}, fmt.Errorf("look up serving %q for food %d: %w", rec.ServingName, food.ID, err)
	}
	if existing != nil {
		return Outcome{
			InputKey: key,
			Status:   db.ItemSkipped,
			EntityID: &existing.ID,
			Message:  "serving already exists",
		}, nil
	}

	serving := &db.Serving{
		FoodID:       food.ID,
		ServingName:  rec.ServingName,
		Unit:         rec.Unit,
		GramsPerUnit: rec.GramsPerUnit,
		CreatedBy:    &p.owner,
	}
	if err := p.catalog.CreateServing(ctx, serving); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return Outcome{
				InputKey: key,
				Status:   db.ItemFailed,
				Message:  "serving was created concurrently by another job",
			}, nil
		}
		return Outcome{}, fmt.Errorf("create serving %q for food %d: %w", rec.ServingName, food.ID, err)
	}

	if rec.IsDefault {
		if err := p.catalog.SetDefaultServing(ctx, food.ID, serving.ID); err != nil {
			return Outcome{}, fmt.Errorf("set default serving for food %d: %w", food.ID, err)
		}
	}

	return Outcome{InputKey: key, Status: db.ItemSuccess, EntityID: &serving.ID}, nil
}
