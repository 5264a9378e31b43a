// Package refdata turns the reference workbook sheets into typed, read-only
// lookup tables: lanes, transit times, €/km rates, plant-port mappings,
// port locations, city/ZIP coordinates and city aliases.
package refdata

import (
	"math"
	"strconv"
	"strings"
)

// Sheet is a header row plus data rows.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]string
}

// NewSheet splits raw rows into header and data. Empty input yields an
// empty sheet.
func NewSheet(name string, rows [][]string) *Sheet {
	s := &Sheet{Name: name}
	if len(rows) == 0 {
		return s
	}
	s.Header = make([]string, len(rows[0]))
	for i, h := range rows[0] {
		s.Header[i] = strings.TrimSpace(h)
	}
	s.Rows = rows[1:]
	return s
}

// Col resolves a column by exact (case-insensitive) candidate names first,
// then by a header that contains every one of the contains keys. It returns
// -1 when nothing matches.
func (s *Sheet) Col(candidates []string, contains ...string) int {
	return ResolveColumn(s.Header, candidates, contains...)
}

// Cell returns the trimmed value at col, or "" when out of range.
func Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// ResolveColumn is Sheet.Col for a bare header.
func ResolveColumn(header []string, candidates []string, contains ...string) int {
	lower := make([]string, len(header))
	for i, h := range header {
		lower[i] = strings.ToLower(strings.TrimSpace(h))
	}
	for _, c := range candidates {
		want := strings.ToLower(strings.TrimSpace(c))
		for i, h := range lower {
			if h == want {
				return i
			}
		}
	}
	if len(contains) == 0 {
		return -1
	}
	for i, h := range lower {
		all := true
		for _, k := range contains {
			if !strings.Contains(h, strings.ToLower(k)) {
				all = false
				break
			}
		}
		if all {
			return i
		}
	}
	return -1
}

// ParseNumber reads spreadsheet numbers: blanks and non-numbers yield nil,
// currency symbols and spaces are dropped, a lone comma is a decimal mark.
func ParseNumber(raw string) *float64 {
	s := strings.TrimSpace(raw)
	s = strings.NewReplacer("€", "", "$", "", " ", "", " ", "").Replace(s)
	if s == "" || s == "-" {
		return nil
	}
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ",", ".")
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
