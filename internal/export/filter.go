// Package export implements streaming catalog exports: filter parsing,
// output sanitization, CSV/JSON serialization and the export job runner.
package export

import (
	"strconv"
	"strings"
	"time"

	"github.com/bh-srinivasan/nutri-tracker/internal/db"
)

// Filter parsing is lenient: values that do not parse are dropped
// rather than failing the export, so a bad date widens the result set
// instead of breaking the job.

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseBool(s string) *bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		v := true
		return &v
	case "false", "0", "no":
		v := false
		return &v
	}
	return nil
}

// ParseFoodFilter builds a food filter from raw request values.
func ParseFoodFilter(raw map[string]string) db.FoodFilter {
	return db.FoodFilter{
		Category:      strings.TrimSpace(raw["category"]),
		Brand:         strings.TrimSpace(raw["brand"]),
		NameContains:  strings.TrimSpace(raw["name_contains"]),
		IsVerified:    parseBool(raw["is_verified"]),
		CreatedAfter:  parseDate(raw["created_after"]),
		CreatedBefore: parseDate(raw["created_before"]),
		MinProtein:    parseFloat(raw["min_protein"]),
		MaxCalories:   parseFloat(raw["max_calories"]),
	}
}

// ParseServingFilter builds a serving filter from raw request values.
// Food-level keys apply to the joined food.
func ParseServingFilter(raw map[string]string) db.ServingFilter {
	return db.ServingFilter{
		Food: db.FoodFilter{
			Category:     strings.TrimSpace(raw["category"]),
			Brand:        strings.TrimSpace(raw["brand"]),
			NameContains: strings.TrimSpace(raw["name_contains"]),
			IsVerified:   parseBool(raw["is_verified"]),
		},
		Unit:                strings.TrimSpace(raw["unit"]),
		ServingNameContains: strings.TrimSpace(raw["serving_name_contains"]),
		GramsMin:            parseFloat(raw["grams_min"]),
		GramsMax:            parseFloat(raw["grams_max"]),
		CreatedAfter:        parseDate(raw["created_after"]),
		CreatedBefore:       parseDate(raw["created_before"]),
	}
}
