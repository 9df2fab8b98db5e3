package export

import (
	"strings"
	"testing"
)

func TestSanitizeCell(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Oats", "Oats"},
		{"empty", "", ""},
		{"formula equals", "=SUM(A1:A9)", "'=SUM(A1:A9)"},
		{"formula plus", "+1+1", "'+1+1"},
		{"formula minus", "-2+3", "'-2+3"},
		{"formula at", "@cmd", "'@cmd"},
		{"leading tab", "\tvalue", "'\tvalue"},
		{"leading cr", "\rvalue", "'\rvalue"},
		{"leading lf", "\nvalue", "'\nvalue"},
		{"interior equals untouched", "a=b", "a=b"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := sanitizeCell(tc.in); got != tc.want {
				t.Errorf("sanitizeCell(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSanitizeCell_CapsLength(t *testing.T) {
	long := strings.Repeat("x", 1500)
	got := sanitizeCell(long)
	if len(got) != maxCellLen {
		t.Errorf("len = %d, want %d", len(got), maxCellLen)
	}
}

func TestSanitizeCell_CapThenPrefix(t *testing.T) {
	long := "=" + strings.Repeat("x", 1500)
	got := sanitizeCell(long)
	if !strings.HasPrefix(got, "'=") {
		t.Errorf("capped formula cell must keep its quote prefix, got %q", got[:5])
	}
	if len(got) != maxCellLen+1 {
		t.Errorf("len = %d, want %d", len(got), maxCellLen+1)
	}
}
