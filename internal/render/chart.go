package render

import (
	"fmt"
	"image/color"
	"math"
	"slices"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/couchcryptid/census-flows/internal/domain"
)

var (
	maleColor   = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	femaleColor = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	barColor    = color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff}
)

// PyramidConfig configures the population pyramid chart.
type PyramidConfig struct {
	Title string
}

// PyramidChart renders a dual-sided population pyramid PNG. Input rows must
// already carry the sign convention (male estimates negated); rows arrive one
// per (sex, age group) and age groups keep their first-appearance order,
// youngest first.
func PyramidChart(rows []domain.DemographicBreakdown, cfg PyramidConfig, path string) (Artifact, error) {
	groups := []string{}
	male := map[string]float64{}
	female := map[string]float64{}
	for _, r := range rows {
		switch r.Sex {
		case "Male", "Female":
			if !slices.Contains(groups, r.AgeGroup) {
				groups = append(groups, r.AgeGroup)
			}
			if r.Sex == "Male" {
				male[r.AgeGroup] += r.Estimate
			} else {
				female[r.AgeGroup] += r.Estimate
			}
		default:
			return Artifact{}, &domain.RenderError{
				Artifact: path,
				Err:      fmt.Errorf("unknown sex category %q", r.Sex),
			}
		}
	}
	if len(groups) == 0 {
		return Artifact{}, &domain.RenderError{Artifact: path, Err: fmt.Errorf("no rows to plot")}
	}

	maleVals := make(plotter.Values, len(groups))
	femaleVals := make(plotter.Values, len(groups))
	for i, g := range groups {
		maleVals[i] = male[g]
		femaleVals[i] = female[g]
	}

	p := plot.New()
	p.Title.Text = cfg.Title
	p.X.Label.Text = "Estimate"
	p.X.Tick.Marker = absTicks{}

	maleBars, err := plotter.NewBarChart(maleVals, vg.Points(12))
	if err != nil {
		return Artifact{}, &domain.RenderError{Artifact: path, Err: err}
	}
	maleBars.Horizontal = true
	maleBars.Color = maleColor
	maleBars.LineStyle.Width = 0

	femaleBars, err := plotter.NewBarChart(femaleVals, vg.Points(12))
	if err != nil {
		return Artifact{}, &domain.RenderError{Artifact: path, Err: err}
	}
	femaleBars.Horizontal = true
	femaleBars.Color = femaleColor
	femaleBars.LineStyle.Width = 0

	p.Add(maleBars, femaleBars)
	p.Legend.Add("Male", maleBars)
	p.Legend.Add("Female", femaleBars)
	p.Legend.Top = true
	p.NominalY(groups...)

	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return Artifact{}, &domain.RenderError{Artifact: path, Err: err}
	}
	return Artifact{Kind: KindPNG, Path: path}, nil
}

// BarConfig configures the flow bar chart.
type BarConfig struct {
	Title  string
	YLabel string
}

// BarChart renders a vertical bar chart of flow estimates, labeled by origin
// name, in input order.
func BarChart(recs []domain.MigrationFlowRecord, cfg BarConfig, path string) (Artifact, error) {
	if len(recs) == 0 {
		return Artifact{}, &domain.RenderError{Artifact: path, Err: fmt.Errorf("no rows to plot")}
	}

	vals := make(plotter.Values, len(recs))
	labels := make([]string, len(recs))
	for i, r := range recs {
		vals[i] = r.Estimate
		labels[i] = shortName(r.OriginName)
	}

	p := plot.New()
	p.Title.Text = cfg.Title
	p.Y.Label.Text = cfg.YLabel
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = -0.9
	p.X.Tick.Label.YAlign = -0.5

	bars, err := plotter.NewBarChart(vals, vg.Points(18))
	if err != nil {
		return Artifact{}, &domain.RenderError{Artifact: path, Err: err}
	}
	bars.Color = barColor
	bars.LineStyle.Width = 0

	p.Add(bars)
	p.NominalX(labels...)

	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return Artifact{}, &domain.RenderError{Artifact: path, Err: err}
	}
	return Artifact{Kind: KindPNG, Path: path}, nil
}

// absTicks renders axis values as magnitudes so the negated male side of a
// pyramid shows positive counts.
type absTicks struct{}

func (absTicks) Ticks(lo, hi float64) []plot.Tick {
	ticks := plot.DefaultTicks{}.Ticks(lo, hi)
	for i, t := range ticks {
		if t.Label == "" {
			continue
		}
		ticks[i].Label = domain.FormatCount(math.Abs(t.Value))
	}
	return ticks
}

// shortName trims the boilerplate suffix off Census metro names for axis
// labels, e.g. "Dallas-Fort Worth-Arlington, TX Metro Area" -> "Dallas-Fort
// Worth-Arlington, TX".
func shortName(name string) string {
	for _, suffix := range []string{" Metro Area", " Micro Area", " Metropolitan Statistical Area", " Micropolitan Statistical Area"} {
		if n, ok := strings.CutSuffix(name, suffix); ok {
			return n
		}
	}
	return name
}
