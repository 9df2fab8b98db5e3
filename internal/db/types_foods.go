package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/bh-srinivasan/nutri-tracker/internal/nutrition"
)

// Food represents one catalog entry. Nutrient values are per 100 grams.
type Food struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Brand       string  `json:"brand,omitempty"`
	Category    string  `json:"category"`
	Description *string `json:"description,omitempty"`
	BaseUnit    string  `json:"base_unit"`

	Per100g nutrition.Vector `json:"per_100g"`

	ServingSize      float64    `json:"serving_size"` // grams
	DefaultServingID *int64     `json:"default_serving_id,omitempty"`
	IsVerified       bool       `json:"is_verified"`
	CreatedAt        time.Time  `json:"created_at"`
	CreatedBy        *uuid.UUID `json:"created_by,omitempty"`
}

// Serving is a named, food-specific conversion from units to grams,
// e.g. "1 cup" of this food weighs 195g. The (food, serving name, unit)
// triple is unique.
type Serving struct {
	ID           int64      `json:"id"`
	FoodID       int64      `json:"food_id"`
	ServingName  string     `json:"serving_name"`
	Unit         string     `json:"unit"`
	GramsPerUnit float64    `json:"grams_per_unit"`
	CreatedAt    time.Time  `json:"created_at"`
	CreatedBy    *uuid.UUID `json:"created_by,omitempty"`
}

// Conversion adapts a Serving for the nutrition scaler.
func (s *Serving) Conversion() *nutrition.ServingConversion {
	return &nutrition.ServingConversion{GramsPerUnit: s.GramsPerUnit}
}

// MealLog is one logged food quantity for a user. Only the resolved gram
// amount and the scaled nutrient vector are persisted; the original
// serving expression is not.
type MealLog struct {
	ID       int64     `json:"id"`
	UserID   uuid.UUID `json:"user_id"`
	FoodID   int64     `json:"food_id"`
	Grams    float64   `json:"grams"`
	MealType string    `json:"meal_type"`

	Nutrients nutrition.Vector `json:"nutrients"`

	LoggedAt time.Time `json:"logged_at"`
}

// MealType constants
const (
	MealBreakfast = "breakfast"
	MealLunch     = "lunch"
	MealDinner    = "dinner"
	MealSnack     = "snack"
)
