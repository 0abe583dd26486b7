// Command validate runs end-to-end integrity checks over the JSON fixtures
// used by the report tests: identifier uniqueness, sign conventions,
// direction tags, and cross-window join-key consistency. It exits non-zero
// when any phase fails.
//
// Usage:
//
//	go run ./cmd/validate -fixture-dir internal/report/testdata
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/census-flows/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	fixtureDir := flag.String("fixture-dir", "", "directory containing fixture JSON files")
	flag.Parse()

	if *fixtureDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*fixtureDir); code != 0 {
		os.Exit(code)
	}
}

func run(dir string) int {
	fmt.Println("=== Census Flows Fixture Validation ===")
	fmt.Println()

	current, err := loadJSON[domain.MigrationFlowRecord](filepath.Join(dir, "flows_2019.json"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load current flows: %v\n", err)
		return 1
	}
	prior, err := loadJSON[domain.MigrationFlowRecord](filepath.Join(dir, "flows_2013.json"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load prior flows: %v\n", err)
		return 1
	}
	income, err := loadJSON[domain.GeographicObservation](filepath.Join(dir, "income_tracts.json"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load income tracts: %v\n", err)
		return 1
	}
	breakdowns, err := loadJSON[domain.DemographicBreakdown](filepath.Join(dir, "pyramid.json"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load pyramid: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateFlows("current flows", current, 2019),
		validateFlows("prior flows", prior, 2013),
		validateCrossWindow(current, prior),
		validateIncome(income),
		validatePyramid(breakdowns),
	}

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = "FAIL"
			allPassed = false
		}
		fmt.Printf("[%s] %s\n", status, p.name)
		for _, e := range p.errors {
			fmt.Printf("       - %s\n", e)
		}
	}

	fmt.Println()
	if !allPassed {
		fmt.Println("validation FAILED")
		return 1
	}
	fmt.Println("all phases passed")
	return 0
}

// validateFlows checks one snapshot's internal invariants: identifiers
// present and unique per direction, non-negative estimates, known direction
// tags, and the expected survey window.
func validateFlows(name string, recs []domain.MigrationFlowRecord, year int) *phase {
	p := &phase{name: name}
	want := domain.PeriodEnding(year)

	seen := map[string]bool{}
	for i, r := range recs {
		if r.OriginID == "" || r.DestID == "" {
			p.errorf("record %d missing geographic identifier", i)
		}
		if r.Direction != domain.MovedIn && r.Direction != domain.MovedOut {
			p.errorf("record %d has unknown direction %q", i, r.Direction)
		}
		if r.Estimate < 0 {
			p.errorf("record %d has negative estimate %g (sign inversion is presentation-only)", i, r.Estimate)
		}
		if r.Period != want {
			p.errorf("record %d has period %s, want %s", i, r.Period, want)
		}
		key := string(r.Direction) + "|" + r.OriginID + "|" + r.DestID
		if seen[key] {
			p.errorf("duplicate pair %s", key)
		}
		seen[key] = true
	}
	return p
}

// validateCrossWindow checks the anti-join partition property across the two
// snapshots: rows absent from the prior window plus rows matched in it must
// account for every current row.
func validateCrossWindow(current, prior []domain.MigrationFlowRecord) *phase {
	p := &phase{name: "cross-window consistency"}

	priorKeys := map[string]bool{}
	for _, r := range prior {
		if r.Direction == domain.MovedIn {
			priorKeys[r.OriginID] = true
		}
	}

	var matched, unmatched int
	for _, r := range current {
		if r.Direction != domain.MovedIn {
			continue
		}
		if priorKeys[r.OriginID] {
			matched++
		} else {
			unmatched++
		}
	}

	currentIn := 0
	for _, r := range current {
		if r.Direction == domain.MovedIn {
			currentIn++
		}
	}
	if matched+unmatched != currentIn {
		p.errorf("partition mismatch: %d matched + %d unmatched != %d inbound rows", matched, unmatched, currentIn)
	}
	if unmatched == 0 {
		p.errorf("expected at least one newly reported origin in the current window")
	}
	return p
}

func validateIncome(obs []domain.GeographicObservation) *phase {
	p := &phase{name: "income tracts"}
	seen := map[string]bool{}
	for i, o := range obs {
		if o.GeoID == "" {
			p.errorf("observation %d missing GEOID", i)
			continue
		}
		if seen[o.GeoID] {
			p.errorf("duplicate GEOID %s", o.GeoID)
		}
		seen[o.GeoID] = true
		if len(o.GeoID) != 11 {
			p.errorf("observation %d GEOID %q is not state+county+tract shaped", i, o.GeoID)
		}
		if domain.IsMissing(o.Estimate) {
			p.errorf("observation %d carries the missing-value sentinel", i)
		}
		if o.Estimate < 0 {
			p.errorf("observation %d has negative estimate %g", i, o.Estimate)
		}
	}
	return p
}

func validatePyramid(rows []domain.DemographicBreakdown) *phase {
	p := &phase{name: "pyramid breakdowns"}
	seen := map[string]bool{}
	for i, r := range rows {
		if r.Sex != "Male" && r.Sex != "Female" {
			p.errorf("row %d has unknown sex category %q", i, r.Sex)
		}
		if r.Estimate < 0 {
			p.errorf("row %d has negative estimate before the sign-flip step", i)
		}
		key := r.Sex + "|" + r.AgeGroup
		if seen[key] {
			p.errorf("duplicate (sex, age group) %s", key)
		}
		seen[key] = true
	}
	return p
}

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return out, nil
}
