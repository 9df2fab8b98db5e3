// Package ingest implements the bulk CSV ingestion pipelines for foods
// and servings. Structural problems (missing headers, empty files) are
// fatal before any job exists; once a job is running, row-level problems
// are recorded in the audit trail and never abort the job.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformedInput indicates the input is structurally unusable: the
// required header set is missing or there are no data rows. Callers must
// not create a job when they see this.
var ErrMalformedInput = errors.New("malformed input")

// RequiredFoodHeaders is the minimum header set for a food upload.
var RequiredFoodHeaders = []string{
	"name", "brand", "category", "base_unit",
	"calories_per_100g", "protein_per_100g", "carbs_per_100g", "fat_per_100g",
}

// OptionalFoodHeaders are recognized but not required.
var OptionalFoodHeaders = []string{
	"fiber_per_100g", "sugar_per_100g", "sodium_per_100g",
	"serving_size", "description",
}

// RequiredServingHeaders is the header set for a serving upload.
var RequiredServingHeaders = []string{
	"food_key", "serving_name", "unit", "grams_per_unit", "is_default",
}

// Row is one CSV record keyed by (lowercased, trimmed) header name.
type Row map[string]string

// parseCSV reads all records into header-keyed rows and returns the
// normalized header. Header matching is order-independent and
// case-insensitive. A short record leaves its trailing cells unset;
// validation later treats them as empty.
func parseCSV(r io.Reader) ([]string, []Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // ragged rows are a per-row concern, not structural

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("file is empty: %w", ErrMalformedInput)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("could not parse CSV header: %w", ErrMalformedInput)
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("could not parse CSV row %d: %w", len(rows)+2, ErrMalformedInput)
		}
		row := make(Row, len(header))
		for i, h := range header {
			if i < len(record) {
				row[h] = record[i]
			}
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("file contains no data rows: %w", ErrMalformedInput)
	}
	return header, rows, nil
}

// requireHeaders checks that every required header is present in the
// header record itself, so a short first data row cannot mask a header
// that is actually there.
func requireHeaders(header, required []string) error {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	var missing []string
	for _, h := range required {
		if !present[h] {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required headers: %s: %w", strings.Join(missing, ", "), ErrMalformedInput)
	}
	return nil
}

// ParseFoodCSV parses and structurally validates a food upload.
func ParseFoodCSV(r io.Reader) ([]Row, error) {
	header, rows, err := parseCSV(r)
	if err != nil {
		return nil, err
	}
	if err := requireHeaders(header, RequiredFoodHeaders); err != nil {
		return nil, err
	}
	return rows, nil
}

// ParseServingCSV parses and structurally validates a serving upload.
func ParseServingCSV(r io.Reader) ([]Row, error) {
	header, rows, err := parseCSV(r)
	if err != nil {
		return nil, err
	}
	if err := requireHeaders(header, RequiredServingHeaders); err != nil {
		return nil, err
	}
	return rows, nil
}

// RowProblem describes one invalid row found during a dry-run check.
type RowProblem struct {
	RowNumber int      `json:"row_number"`
	Errors    []string `json:"errors"`
}

// ValidationSummary is the result of a pre-ingest dry run.
type ValidationSummary struct {
	RowCount     int          `json:"row_count"`
	TotalInvalid int          `json:"total_invalid"`
	Problems     []RowProblem `json:"problems"` // first 10 only
}

// maxReportedProblems caps the dry-run problem list.
const maxReportedProblems = 10

// ValidateFoodRows runs row validation without touching the catalog,
// reporting the first few problems for operator feedback.
func ValidateFoodRows(rows []Row) ValidationSummary {
	summary := ValidationSummary{RowCount: len(rows)}
	for i, row := range rows {
		rec := sanitizeFoodRow(row)
		if errs := rec.validate(); len(errs) > 0 {
			summary.TotalInvalid++
			if len(summary.Problems) < maxReportedProblems {
				summary.Problems = append(summary.Problems, RowProblem{RowNumber: i + 1, Errors: errs})
			}
		}
	}
	return summary
}
