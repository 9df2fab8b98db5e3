package export

import "strings"

// maxCellLen caps any exported text cell.
const maxCellLen = 1000

// sanitizeCell makes a text value safe for spreadsheet consumption.
// Leading formula characters get a quote prefix so Excel and friends
// treat the cell as text instead of executing it.
func sanitizeCell(s string) string {
	if s == "" {
		return s
	}
	if runes := []rune(s); len(runes) > maxCellLen {
		s = string(runes[:maxCellLen])
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r', '\n':
		return "'" + s
	}
	return s
}

// sanitizeOptional handles nullable text columns.
func sanitizeOptional(s *string) string {
	if s == nil {
		return ""
	}
	return sanitizeCell(strings.TrimSpace(*s))
}
