package domain

import (
	"encoding/json"
	"fmt"
)

// GeographyLevel identifies a Census geography hierarchy level.
type GeographyLevel string

const (
	LevelState  GeographyLevel = "state"
	LevelCounty GeographyLevel = "county"
	LevelTract  GeographyLevel = "tract"
	// LevelMetro is the Census API spelling for CBSA geographies.
	LevelMetro GeographyLevel = "metropolitan statistical area/micropolitan statistical area"
)

// Direction tags a flow record relative to its reference geography.
type Direction string

const (
	MovedIn  Direction = "in"
	MovedOut Direction = "out"
)

// Geo is a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Period is an ACS 5-year survey window, named by its endpoints.
type Period struct {
	Start int `json:"start" csv:"start"`
	End   int `json:"end" csv:"end"`
}

// PeriodEnding returns the 5-year window that ends at the given survey year,
// e.g. 2019 -> 2015-2019.
func PeriodEnding(year int) Period {
	return Period{Start: year - 4, End: year}
}

func (p Period) String() string {
	return fmt.Sprintf("%d-%d", p.Start, p.End)
}

// GeographicObservation is one published value for one variable at one
// geography. Immutable once retrieved; geometry and centroid are attached
// from TIGERweb when the caller asked for geometry.
type GeographicObservation struct {
	GeoID         string          `json:"geoid" csv:"geoid"`
	Name          string          `json:"name" csv:"name"`
	Variable      string          `json:"variable" csv:"variable"`
	Estimate      float64         `json:"estimate" csv:"estimate"`
	MarginOfError float64         `json:"moe,omitempty" csv:"moe"`
	Year          int             `json:"year" csv:"year"`
	Geometry      json.RawMessage `json:"geometry,omitempty" csv:"-"`
	Centroid      *Geo            `json:"centroid,omitempty" csv:"-"`
}

// MigrationFlowRecord is one reported flow between two geographies in one
// direction for one survey window. The derived fields are appended by the
// transformation pipeline onto copies; retrieval never populates them.
type MigrationFlowRecord struct {
	OriginID      string    `json:"origin_id" csv:"origin_id"`
	OriginName    string    `json:"origin_name" csv:"origin_name"`
	DestID        string    `json:"dest_id" csv:"dest_id"`
	DestName      string    `json:"dest_name" csv:"dest_name"`
	Direction     Direction `json:"direction" csv:"direction"`
	Estimate      float64   `json:"estimate" csv:"estimate"`
	MarginOfError float64   `json:"moe,omitempty" csv:"moe"`
	Period        Period    `json:"period" csv:"period_,inline"`

	OriginCentroid *Geo `json:"origin_centroid,omitempty" csv:"-"`
	DestCentroid   *Geo `json:"dest_centroid,omitempty" csv:"-"`

	// Derived, presentation-facing columns.
	ArcWidth      float64 `json:"arc_width,omitempty" csv:"arc_width"`
	Tooltip       string  `json:"tooltip,omitempty" csv:"tooltip"`
	FiveYearTotal float64 `json:"five_year_total,omitempty" csv:"five_year_total"`
	GrowthRate    float64 `json:"growth_rate,omitempty" csv:"growth_rate"`
}

// DemographicBreakdown is one sex-by-age estimate for one geography.
// The Estimate sign convention: male rows are negated by the pipeline's
// SignFlip step purely for dual-sided pyramid rendering.
type DemographicBreakdown struct {
	GeoID    string  `json:"geoid" csv:"geoid"`
	Name     string  `json:"name" csv:"name"`
	Sex      string  `json:"sex" csv:"sex"` // "Male" or "Female"
	AgeGroup string  `json:"age_group" csv:"age_group"`
	Estimate float64 `json:"estimate" csv:"estimate"`
	Year     int     `json:"year" csv:"year"`
}

// missingSentinel is the threshold below which the Census API's negative
// placeholder values (-666666666 and friends) are treated as absent data.
const missingSentinel = -666666666

// IsMissing reports whether a raw API value encodes a suppressed or
// unavailable estimate rather than a real one.
func IsMissing(v float64) bool {
	return v <= missingSentinel
}
