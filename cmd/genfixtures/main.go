// Command genfixtures writes deterministic JSON fixtures for the report test
// suites: two migration-flow snapshots, a tract income table, and a sex-by-age
// breakdown. All values are derived arithmetically, so regenerated fixtures
// are byte-identical.
//
// Usage:
//
//	go run ./cmd/genfixtures -out internal/report/testdata
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/couchcryptid/census-flows/internal/domain"
)

// Fixture geography: one reference metro and a ring of origin metros with
// flow sizes spread across two decades of magnitude, including one origin
// present only in the current window (exercises the anti-join) and one with
// identical estimates in both windows (zero growth).
var originMetros = []struct {
	id   string
	name string
}{
	{"26420", "Houston-The Woodlands-Sugar Land, TX Metro Area"},
	{"19100", "Dallas-Fort Worth-Arlington, TX Metro Area"},
	{"41700", "San Antonio-New Braunfels, TX Metro Area"},
	{"31080", "Los Angeles-Long Beach-Anaheim, CA Metro Area"},
	{"16980", "Chicago-Naperville-Elgin, IL-IN-WI Metro Area"},
	{"35620", "New York-Newark-Jersey City, NY-NJ-PA Metro Area"},
	{"42660", "Seattle-Tacoma-Bellevue, WA Metro Area"},
	{"38060", "Phoenix-Mesa-Chandler, AZ Metro Area"},
}

const (
	refMetroID   = "12420"
	refMetroName = "Austin-Round Rock-Georgetown, TX Metro Area"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory for fixture JSON files")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	fixtures := map[string]any{
		"flows_2013.json":    flowsSnapshot(2013),
		"flows_2019.json":    flowsSnapshot(2019),
		"income_tracts.json": incomeTracts(),
		"pyramid.json":       pyramid(),
	}

	for name, v := range fixtures {
		path := filepath.Join(*out, name)
		if err := writeJSON(path, v); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
		log.Printf("wrote fixture: %s", path)
	}
	return nil
}

// flowsSnapshot builds one window's flow records. Estimates grow between the
// 2013 and 2019 windows by an origin-dependent factor; the last origin is
// reported only in 2019.
func flowsSnapshot(year int) []domain.MigrationFlowRecord {
	period := domain.PeriodEnding(year)
	recs := make([]domain.MigrationFlowRecord, 0, 2*len(originMetros))
	for i, m := range originMetros {
		if year == 2013 && m.id == "38060" {
			continue // newly reported origin, current window only
		}
		in := float64(12000 - 1400*i)
		out := float64(6000 - 600*i)
		if year == 2019 {
			in += float64(400 * (i % 4)) // i%4==0 keeps growth at exactly zero
			out += 300
		}
		recs = append(recs,
			domain.MigrationFlowRecord{
				OriginID: m.id, OriginName: m.name,
				DestID: refMetroID, DestName: refMetroName,
				Direction: domain.MovedIn, Estimate: in, Period: period,
			},
			domain.MigrationFlowRecord{
				OriginID: refMetroID, OriginName: refMetroName,
				DestID: m.id, DestName: m.name,
				Direction: domain.MovedOut, Estimate: out, Period: period,
			},
		)
	}
	return recs
}

func incomeTracts() []domain.GeographicObservation {
	obs := make([]domain.GeographicObservation, 0, 12)
	for i := 0; i < 12; i++ {
		obs = append(obs, domain.GeographicObservation{
			GeoID:         fmt.Sprintf("48453%06d", 100*(i+1)),
			Name:          fmt.Sprintf("Census Tract %d.01, Travis County, Texas", i+1),
			Variable:      "B19013_001",
			Estimate:      float64(45000 + 7500*i),
			MarginOfError: float64(2000 + 150*i),
			Year:          2019,
		})
	}
	return obs
}

func pyramid() []domain.DemographicBreakdown {
	groups := []string{
		"Under 5", "5-9", "10-14", "15-19", "20-24", "25-29", "30-34",
		"35-39", "40-44", "45-49", "50-54", "55-59", "60-64", "65-69",
		"70-74", "75-79", "80-84", "85 and over",
	}
	rows := make([]domain.DemographicBreakdown, 0, 2*len(groups))
	for i, g := range groups {
		// Rough bell over age with a slight female skew at the top.
		base := 900000.0 - 40000.0*float64(i)
		rows = append(rows,
			domain.DemographicBreakdown{
				GeoID: "48", Name: "Texas", Sex: "Male", AgeGroup: g,
				Estimate: base, Year: 2019,
			},
			domain.DemographicBreakdown{
				GeoID: "48", Name: "Texas", Sex: "Female", AgeGroup: g,
				Estimate: base + 5000.0*float64(i), Year: 2019,
			},
		)
	}
	return rows
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
