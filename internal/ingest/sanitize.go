package ingest

import (
	"strconv"
	"strings"
)

// sanitizeString trims the value, removes embedded line breaks and
// collapses internal whitespace runs to a single space.
func sanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.Join(strings.Fields(s), " ")
}

// parseNumeric coerces a cell to a float. Empty or unparseable values
// fall back to zero so optional nutrient columns never fail a row.
func parseNumeric(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// truthy values accepted for boolean cells.
var truthy = map[string]bool{
	"true": true, "1": true, "yes": true, "y": true,
}

// parseTruthy interprets a cell as a boolean; anything outside the
// accepted set is false.
func parseTruthy(s string) bool {
	return truthy[strings.ToLower(strings.TrimSpace(s))]
}
