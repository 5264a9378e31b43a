// Package model defines the shared types of the quotation engine: shipment
// rows, resolved coordinates, leg plans and quote results.
package model

import (
	"fmt"
	"math"
)

// LocationKind is the granularity of an entry in the geo index.
type LocationKind string

const (
	KindZIP     LocationKind = "ZIP"
	KindCity    LocationKind = "CITY"
	KindPort    LocationKind = "PORT"
	KindPlant   LocationKind = "PLANT"
	KindCountry LocationKind = "COUNTRY"
)

// Coordinate is a WGS84 latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate is finite and inside the WGS84 range.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%.5f, %.5f)", c.Lat, c.Lon)
}

// Location is one end of a shipment as it appears in the input template.
// CountryCode may be empty when only CountryName was supplied.
type Location struct {
	CountryCode string `json:"country_code,omitempty"`
	CountryName string `json:"country,omitempty"`
	City        string `json:"city,omitempty"`
	ZIP         string `json:"zip,omitempty"`
	Plant       string `json:"plant,omitempty"`
}

// ShipmentRow is one quotation request.
type ShipmentRow struct {
	Row           int      `json:"row"`
	PartNumber    string   `json:"pn,omitempty"`
	Designation   string   `json:"designation,omitempty"`
	Incoterm      string   `json:"incoterm,omitempty"`
	Origin        Location `json:"origin"`
	Destination   Location `json:"destination"`
	AnnualNeeds   *float64 `json:"annual_needs,omitempty"`
	DailyNeed     *float64 `json:"daily_need,omitempty"`
	UnitCostEUR   *float64 `json:"unit_cost_eur,omitempty"`
	PackagingCode string   `json:"packaging_code,omitempty"`
}

// CityAlias maps a free-text city spelling to the canonical city name used
// in the reference tables, scoped by country.
type CityAlias struct {
	CountryCode string `json:"country_code"`
	From        string `json:"from"`
	To          string `json:"to"`
}
