// Package normalize canonicalizes the free-text location fields of shipment
// rows: ZIP codes, city names and country codes.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonAlnum      = regexp.MustCompile(`[^A-Z0-9]`)
	digitsOnly    = regexp.MustCompile(`^\d+$`)
	citySeparator = regexp.MustCompile(`[./,;:_\-]+`)
	whitespace    = regexp.MustCompile(`\s+`)
	embeddedZIP   = regexp.MustCompile(`\d{4,6}`)
)

// zipLengths lists the exact digit count of a valid postal code for the
// countries the reference data covers. Other countries accept 3 to 10
// alphanumerics.
var zipLengths = map[string]int{
	"ES": 5,
	"IN": 6,
	"BR": 8,
	"TR": 5,
}

// ZIP upper-cases raw and keeps only letters and digits. Tokens shorter
// than 3 or longer than 10 characters come back empty so callers fall
// through to the next strategy. It is idempotent.
func ZIP(raw string) string {
	z := nonAlnum.ReplaceAllString(StripAccents(strings.ToUpper(raw)), "")
	if len(z) < 3 || len(z) > 10 {
		return ""
	}
	return z
}

// ZIPValidForCountry reports whether an already normalized ZIP has the
// expected length for the country.
func ZIPValidForCountry(cc, zip string) bool {
	if zip == "" {
		return false
	}
	if n, ok := zipLengths[strings.ToUpper(strings.TrimSpace(cc))]; ok {
		return len(zip) == n && digitsOnly.MatchString(zip)
	}
	return len(zip) >= 3 && len(zip) <= 10
}

// StripAccents removes combining marks after NFKD decomposition.
func StripAccents(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// City returns the canonical form of a city name: accents stripped,
// separators turned into spaces, whitespace collapsed, upper-cased.
func City(raw string) string {
	s := StripAccents(raw)
	s = citySeparator.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.ToUpper(strings.TrimSpace(s))
}

// chineseCitySuffixes are administrative suffixes that reference tables
// leave off, longest first.
var chineseCitySuffixes = []string{" SHI CITY", " CITY", " SHI"}

// CityForCountry canonicalizes a city and trims country-specific
// administrative suffixes ("SUZHOU SHI" becomes "SUZHOU" for CN).
func CityForCountry(cc, raw string) string {
	c := City(raw)
	if strings.ToUpper(strings.TrimSpace(cc)) != "CN" {
		return c
	}
	for _, suf := range chineseCitySuffixes {
		if strings.HasSuffix(c, suf) && len(c) > len(suf) {
			return strings.TrimSpace(strings.TrimSuffix(c, suf))
		}
	}
	return c
}

// ParseCityZIP splits a postal code embedded in the city cell when the ZIP
// cell is empty. The last 4 to 6 digit group wins. ok is false when nothing
// was extracted and the inputs are returned unchanged.
func ParseCityZIP(city, zip string) (string, string, bool) {
	if strings.TrimSpace(zip) != "" || strings.TrimSpace(city) == "" {
		return city, zip, false
	}
	locs := embeddedZIP.FindAllStringIndex(city, -1)
	if len(locs) == 0 {
		return city, zip, false
	}
	last := locs[len(locs)-1]
	found := city[last[0]:last[1]]

	head := strings.TrimRight(city[:last[0]], " \t,-")
	tail := city[last[1]:]
	rest := head + tail
	if head != "" && tail != "" && !strings.ContainsAny(tail[:1], " \t,-") {
		rest = head + " " + tail
	}
	rest = whitespace.ReplaceAllString(rest, " ")
	return strings.Trim(rest, " ,-"), found, true
}
