package ingest

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var rowValidator = validator.New(validator.WithRequiredStructEnabled())

// supportedBaseUnits are the units a food's per-100 nutrient panel can
// be expressed against.
var supportedBaseUnits = map[string]bool{
	"g": true, "kg": true, "mg": true,
	"ml": true, "l": true,
	"oz": true, "lb": true,
}

// foodRecord is a sanitized food row ready for validation.
type foodRecord struct {
	Name        string  `validate:"required,max=200"`
	Brand       string  `validate:"max=100"`
	Category    string  `validate:"max=100"`
	BaseUnit    string  `validate:"required"`
	Description string  `validate:"max=1000"`
	ServingSize float64 `validate:"gte=0"`
	Calories    float64 `validate:"gte=0,lte=1000"`
	Protein     float64 `validate:"gte=0,lte=100"`
	Carbs       float64 `validate:"gte=0,lte=100"`
	Fat         float64 `validate:"gte=0,lte=100"`
	Fiber       float64 `validate:"gte=0,lte=100"`
	Sugar       float64 `validate:"gte=0,lte=100"`
	Sodium      float64 `validate:"gte=0"`
}

func sanitizeFoodRow(row Row) foodRecord {
	return foodRecord{
		Name:        sanitizeString(row["name"]),
		Brand:       sanitizeString(row["brand"]),
		Category:    sanitizeString(row["category"]),
		BaseUnit:    strings.ToLower(sanitizeString(row["base_unit"])),
		Description: sanitizeString(row["description"]),
		ServingSize: parseNumeric(row["serving_size"]),
		Calories:    parseNumeric(row["calories_per_100g"]),
		Protein:     parseNumeric(row["protein_per_100g"]),
		Carbs:       parseNumeric(row["carbs_per_100g"]),
		Fat:         parseNumeric(row["fat_per_100g"]),
		Fiber:       parseNumeric(row["fiber_per_100g"]),
		Sugar:       parseNumeric(row["sugar_per_100g"]),
		Sodium:      parseNumeric(row["sodium_per_100g"]),
	}
}

func (r foodRecord) validate() []string {
	errs := validationMessages(rowValidator.Struct(r), foodFieldNames)
	if r.BaseUnit != "" && !supportedBaseUnits[r.BaseUnit] {
		errs = append(errs, fmt.Sprintf("base_unit %q is not supported", r.BaseUnit))
	}
	return errs
}

// servingRecord is a sanitized serving row ready for validation.
type servingRecord struct {
	FoodKey      string  `validate:"required"`
	ServingName  string  `validate:"required,max=100"`
	Unit         string  `validate:"required,max=50"`
	GramsPerUnit float64 `validate:"gt=0"`
	IsDefault    bool
}

func sanitizeServingRow(row Row) servingRecord {
	return servingRecord{
		FoodKey:      sanitizeString(row["food_key"]),
		ServingName:  sanitizeString(row["serving_name"]),
		Unit:         sanitizeString(row["unit"]),
		GramsPerUnit: parseNumeric(row["grams_per_unit"]),
		IsDefault:    parseTruthy(row["is_default"]),
	}
}

func (r servingRecord) validate() []string {
	return validationMessages(rowValidator.Struct(r), servingFieldNames)
}

// CSV column names by struct field, for error messages.
var foodFieldNames = map[string]string{
	"Name":        "name",
	"Brand":       "brand",
	"Category":    "category",
	"BaseUnit":    "base_unit",
	"Description": "description",
	"ServingSize": "serving_size",
	"Calories":    "calories_per_100g",
	"Protein":     "protein_per_100g",
	"Carbs":       "carbs_per_100g",
	"Fat":         "fat_per_100g",
	"Fiber":       "fiber_per_100g",
	"Sugar":       "sugar_per_100g",
	"Sodium":      "sodium_per_100g",
}

var servingFieldNames = map[string]string{
	"FoodKey":      "food_key",
	"ServingName":  "serving_name",
	"Unit":         "unit",
	"GramsPerUnit": "grams_per_unit",
}

// validationMessages turns validator errors into operator-readable
// messages that name the CSV column.
func validationMessages(err error, names map[string]string) []string {
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		col := names[fe.Field()]
		if col == "" {
			col = strings.ToLower(fe.Field())
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", col))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s exceeds maximum length of %s characters", col, fe.Param()))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s must be a positive number", col))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must not be negative", col))
		case "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", col, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", col))
		}
	}
	return msgs
}
