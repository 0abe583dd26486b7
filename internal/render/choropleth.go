package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"math"

	"github.com/couchcryptid/census-flows/internal/domain"
)

// ChoroplethConfig configures the interactive choropleth map.
type ChoroplethConfig struct {
	Title      string
	Palette    string // "viridis" (default), "magma", or "blues"
	ValueLabel string // legend/tooltip label for the estimate
}

// palettes holds five-stop color ramps, low to high.
var palettes = map[string][]string{
	"viridis": {"#440154", "#3b528b", "#21918c", "#5ec962", "#fde725"},
	"magma":   {"#000004", "#51127c", "#b73779", "#fc8961", "#fcfdbf"},
	"blues":   {"#f7fbff", "#c6dbef", "#6baed6", "#2171b5", "#08306b"},
}

// Choropleth renders observations as a MapLibre GeoJSON fill map. Every
// observation must carry polygon geometry; a missing polygon is a render
// error, not a silently dropped row.
func Choropleth(obs []domain.GeographicObservation, cfg ChoroplethConfig, path string) (Artifact, error) {
	if len(obs) == 0 {
		return Artifact{}, &domain.RenderError{Artifact: path, Err: fmt.Errorf("no observations to map")}
	}

	ramp, ok := palettes[cfg.Palette]
	if cfg.Palette == "" {
		ramp = palettes["viridis"]
	} else if !ok {
		return Artifact{}, &domain.RenderError{Artifact: path, Err: fmt.Errorf("unknown palette %q", cfg.Palette)}
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	features := make([]geoJSONFeature, len(obs))
	var centerLat, centerLon float64
	var centered int
	for i, o := range obs {
		if len(o.Geometry) == 0 {
			return Artifact{}, &domain.RenderError{
				Artifact: path,
				Err:      fmt.Errorf("observation %s (%s) has no geometry", o.GeoID, o.Name),
			}
		}
		features[i] = geoJSONFeature{
			Type:     "Feature",
			Geometry: o.Geometry,
			Properties: map[string]any{
				"geoid":    o.GeoID,
				"name":     o.Name,
				"estimate": o.Estimate,
			},
		}
		lo = math.Min(lo, o.Estimate)
		hi = math.Max(hi, o.Estimate)
		if o.Centroid != nil {
			centerLat += o.Centroid.Lat
			centerLon += o.Centroid.Lon
			centered++
		}
	}
	if hi == lo {
		hi = lo + 1 // degenerate range still needs a valid interpolation
	}

	fc, err := json.Marshal(map[string]any{"type": "FeatureCollection", "features": features})
	if err != nil {
		return Artifact{}, &domain.RenderError{Artifact: path, Err: err}
	}

	// MapLibre style expression: linear interpolation over evenly spaced
	// stops between the observed min and max.
	expr := []any{"interpolate", []any{"linear"}, []any{"get", "estimate"}}
	for i, c := range ramp {
		expr = append(expr, lo+(hi-lo)*float64(i)/float64(len(ramp)-1), c)
	}
	fillColor, err := json.Marshal(expr)
	if err != nil {
		return Artifact{}, &domain.RenderError{Artifact: path, Err: err}
	}

	if centered > 0 {
		centerLat /= float64(centered)
		centerLon /= float64(centered)
	}

	var buf bytes.Buffer
	err = choroplethTmpl.Execute(&buf, map[string]any{
		"Title":      cfg.Title,
		"ValueLabel": cfg.ValueLabel,
		"Data":       template.JS(fc),
		"FillColor":  template.JS(fillColor),
		"Lat":        centerLat,
		"Lon":        centerLon,
	})
	if err != nil {
		return Artifact{}, &domain.RenderError{Artifact: path, Err: err}
	}
	if err := writeFile(path, buf.Bytes()); err != nil {
		return Artifact{}, err
	}
	return Artifact{Kind: KindHTML, Path: path}, nil
}

type geoJSONFeature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

var choroplethTmpl = template.Must(template.New("choropleth").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="https://unpkg.com/maplibre-gl@3.6.2/dist/maplibre-gl.js"></script>
<link href="https://unpkg.com/maplibre-gl@3.6.2/dist/maplibre-gl.css" rel="stylesheet">
<style>
  body { margin: 0; font-family: sans-serif; }
  #map { position: absolute; width: 100%; height: 100%; }
  #title { position: absolute; z-index: 1; margin: 12px; padding: 8px 12px;
           background: rgba(255,255,255,0.9); border-radius: 4px; }
</style>
</head>
<body>
<div id="title"><strong>{{.Title}}</strong></div>
<div id="map"></div>
<script>
const data = {{.Data}};
const map = new maplibregl.Map({
  container: 'map',
  style: 'https://basemaps.cartocdn.com/gl/positron-gl-style/style.json',
  center: [{{.Lon}}, {{.Lat}}],
  zoom: 9
});
map.on('load', () => {
  map.addSource('observations', { type: 'geojson', data: data });
  map.addLayer({
    id: 'fill',
    type: 'fill',
    source: 'observations',
    paint: {
      'fill-color': {{.FillColor}},
      'fill-opacity': 0.75,
      'fill-outline-color': '#ffffff'
    }
  });
  map.on('click', 'fill', (e) => {
    const p = e.features[0].properties;
    new maplibregl.Popup()
      .setLngLat(e.lngLat)
      .setHTML('<strong>' + p.name + '</strong><br>{{.ValueLabel}}: ' + p.estimate)
      .addTo(map);
  });
});
</script>
</body>
</html>
`))
