package domain

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// arcWidthDivisor scales an annual mover count into a deck.gl arc width
	// in pixels. 500 keeps the largest metro-to-metro flows under ~30px.
	arcWidthDivisor = 500

	// acsWindowYears is the length of the ACS survey window. Flow estimates
	// are annual averages, so the window total is estimate x 5.
	acsWindowYears = 5
)

// ArcWidth converts an annual mover estimate into a map arc width.
func ArcWidth(estimate float64) float64 {
	return estimate / arcWidthDivisor
}

// FiveYearTotal scales an annual-average flow estimate to the full survey
// window.
func FiveYearTotal(estimate float64) float64 {
	return estimate * acsWindowYears
}

// GrowthRate returns current/prior - 1. A zero prior is undefined and fails
// with a ComputationError rather than producing Inf.
func GrowthRate(current, prior float64) (float64, error) {
	if prior == 0 {
		return 0, &ComputationError{
			Op:     "growth_rate",
			Detail: fmt.Sprintf("prior estimate is zero (current=%g)", current),
		}
	}
	return current/prior - 1, nil
}

// DeriveArcFields returns a copy of rec with the presentation columns
// (arc width, window total, tooltip) populated. The tooltip names the far
// endpoint: where inbound movers came from, where outbound movers went.
func DeriveArcFields(rec MigrationFlowRecord) MigrationFlowRecord {
	rec.ArcWidth = ArcWidth(rec.Estimate)
	rec.FiveYearTotal = FiveYearTotal(rec.Estimate)
	if rec.Direction == MovedIn {
		rec.Tooltip = fmt.Sprintf("%s movers per year from %s", FormatCount(rec.Estimate), rec.OriginName)
	} else {
		rec.Tooltip = fmt.Sprintf("%s movers per year to %s", FormatCount(rec.Estimate), rec.DestName)
	}
	return rec
}

// FormatCount renders a non-negative count with thousands separators,
// e.g. 1234567 -> "1,234,567".
func FormatCount(v float64) string {
	s := strconv.FormatFloat(v, 'f', 0, 64)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}
