package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/bh-srinivasan/nutri-tracker/internal/db"
)

// Supported output formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// ValidFormat reports whether f is a supported output format.
func ValidFormat(f string) bool {
	return f == FormatCSV || f == FormatJSON
}

var foodCSVHeader = []string{
	"id", "name", "brand", "category", "description", "base_unit",
	"calories_per_100g", "protein_per_100g", "carbs_per_100g", "fat_per_100g",
	"fiber_per_100g", "sugar_per_100g", "sodium_per_100g",
	"serving_size", "is_verified",
	"default_serving_name", "default_serving_unit", "default_grams_per_unit",
	"created_at",
}

var servingCSVHeader = []string{
	"id", "food_id", "food_name", "food_brand", "food_category",
	"food_verified", "serving_name", "unit", "grams_per_unit", "created_at",
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func foodCSVRecord(r *db.FoodExportRow) []string {
	return []string{
		strconv.FormatInt(r.ID, 10),
		sanitizeCell(r.Name),
		sanitizeCell(r.Brand),
		sanitizeCell(r.Category),
		sanitizeOptional(r.Description),
		sanitizeCell(r.BaseUnit),
		formatFloat(r.Per100g.Calories),
		formatFloat(r.Per100g.Protein),
		formatFloat(r.Per100g.Carbs),
		formatFloat(r.Per100g.Fat),
		formatFloat(r.Per100g.Fiber),
		formatFloat(r.Per100g.Sugar),
		formatFloat(r.Per100g.Sodium),
		formatFloat(r.ServingSize),
		strconv.FormatBool(r.IsVerified),
		sanitizeOptional(r.ServingName),
		sanitizeOptional(r.ServingUnit),
		formatOptionalFloat(r.GramsPerUnit),
		r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func servingCSVRecord(r *db.ServingExportRow) []string {
	return []string{
		strconv.FormatInt(r.ID, 10),
		strconv.FormatInt(r.FoodID, 10),
		sanitizeCell(r.FoodName),
		sanitizeCell(r.FoodBrand),
		sanitizeCell(r.FoodCategory),
		strconv.FormatBool(r.FoodVerified),
		sanitizeCell(r.ServingName),
		sanitizeCell(r.Unit),
		formatFloat(r.GramsPerUnit),
		r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// streamWriter serializes export rows one at a time so result sets never
// have to fit in memory.
type streamWriter interface {
	writeHeader() error
	writeFood(r *db.FoodExportRow) error
	writeServing(r *db.ServingExportRow) error
	finish(totalRecords int) error
}

type csvStream struct {
	w      *csv.Writer
	header []string
}

func newCSVStream(w io.Writer, header []string) *csvStream {
	return &csvStream{w: csv.NewWriter(w), header: header}
}

func (s *csvStream) writeHeader() error { return s.w.Write(s.header) }

func (s *csvStream) writeFood(r *db.FoodExportRow) error { return s.w.Write(foodCSVRecord(r)) }

func (s *csvStream) writeServing(r *db.ServingExportRow) error { return s.w.Write(servingCSVRecord(r)) }

func (s *csvStream) finish(int) error {
	s.w.Flush()
	return s.w.Error()
}

// jsonStream writes {"records":[...],"export_info":{...}}. The envelope
// trails the records so the total can be written without buffering.
type jsonStream struct {
	w    io.Writer
	kind string
	n    int
}

func newJSONStream(w io.Writer, kind string) *jsonStream {
	return &jsonStream{w: w, kind: kind}
}

func (s *jsonStream) writeHeader() error {
	_, err := io.WriteString(s.w, `{"records":[`)
	return err
}

func (s *jsonStream) writeRecord(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if s.n > 0 {
		if _, err := io.WriteString(s.w, ","); err != nil {
			return err
		}
	}
	s.n++
	_, err = s.w.Write(data)
	return err
}

type foodServingRef struct {
	Name         *string  `json:"serving_name,omitempty"`
	Unit         *string  `json:"unit,omitempty"`
	GramsPerUnit *float64 `json:"grams_per_unit,omitempty"`
}

func (s *jsonStream) writeFood(r *db.FoodExportRow) error {
	rec := struct {
		db.Food
		DefaultServing *foodServingRef `json:"default_serving,omitempty"`
	}{Food: r.Food}
	if r.ServingName != nil {
		rec.DefaultServing = &foodServingRef{Name: r.ServingName, Unit: r.ServingUnit, GramsPerUnit: r.GramsPerUnit}
	}
	return s.writeRecord(rec)
}

func (s *jsonStream) writeServing(r *db.ServingExportRow) error {
	rec := struct {
		db.Serving
		FoodName     string `json:"food_name"`
		FoodBrand    string `json:"food_brand,omitempty"`
		FoodCategory string `json:"food_category,omitempty"`
		FoodVerified bool   `json:"food_verified"`
	}{Serving: r.Serving, FoodName: r.FoodName, FoodBrand: r.FoodBrand, FoodCategory: r.FoodCategory, FoodVerified: r.FoodVerified}
	return s.writeRecord(rec)
}

func (s *jsonStream) finish(totalRecords int) error {
	info := struct {
		Type         string    `json:"type"`
		TotalRecords int       `json:"total_records"`
		GeneratedAt  time.Time `json:"generated_at"`
	}{Type: s.kind, TotalRecords: totalRecords, GeneratedAt: time.Now().UTC()}
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(s.w, `],"export_info":%s}`, data)
	return err
}
