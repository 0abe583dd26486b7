// Package domain models US Census Bureau American Community Survey (ACS) data.
//
// # Data Sources
//
// Tabular estimates come from the Census Data API (https://api.census.gov/data),
// which serves ACS 5-year tables as JSON arrays of string arrays: the first row
// is a header, every following row is one geography. Migration flows come from
// the ACS Migration Flows dataset under the same API, which reports, for every
// geography pair, the number of people who moved in and moved out over the
// survey window.
//
// # GEOID Conventions
//
// Every geography carries a GEOID built by concatenating FIPS codes from the
// largest unit down:
//
//	state:               "48"            (2 digits)
//	county:              "48453"         (2+3 digits)
//	tract:               "48453001845"   (2+3+6 digits)
//	metro area (CBSA):   "12420"         (5 digits, not FIPS-nested)
//
// GEOIDs are the only stable join key. Display names ("Austin-Round Rock, TX
// Metro Area") change formatting between vintages and must never be used to
// match rows across datasets.
//
// # Estimates and Margins of Error
//
// Each variable has an estimate column (suffix "E") and a 90% margin-of-error
// column (suffix "M"). Estimates are non-negative at source. The API encodes
// suppressed or unavailable values with large negative sentinels; anything at
// or below -666666666 is treated as missing and filtered out before any
// arithmetic (see [IsMissing]).
//
// # Flow Semantics
//
// A flow row is reported relative to a reference geography: MOVEDIN counts
// people arriving from the paired geography, MOVEDOUT counts people leaving
// for it. Both counts are annual averages over the 5-year window, so the
// total movers across the window is estimate x 5 (see [FiveYearTotal]).
// A pair of snapshots (e.g. the 2009-2013 and 2015-2019 windows) is combined
// strictly by GEOID pair to compute growth rates.
//
// # Presentation Derivations
//
// Arc width (estimate / 500) and the negated male column in population
// pyramids are presentation-only transforms. Sign inversion is reversed (or
// rather, never reused) before any arithmetic; derived columns are appended to
// fresh record sets, never mutated in place.
package domain
