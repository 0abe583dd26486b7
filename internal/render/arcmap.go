package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/couchcryptid/census-flows/internal/domain"
)

// ArcMapConfig configures the interactive 3D arc-flow map.
type ArcMapConfig struct {
	Title string
	Token string // Mapbox access token for the basemap
	Zoom  float64
}

// arcDatum is the per-arc payload handed to deck.gl.
type arcDatum struct {
	SourceLon float64 `json:"source_lon"`
	SourceLat float64 `json:"source_lat"`
	TargetLon float64 `json:"target_lon"`
	TargetLat float64 `json:"target_lat"`
	Width     float64 `json:"width"`
	Tooltip   string  `json:"tooltip"`
}

// ArcMap renders flow records as a deck.gl ArcLayer over a Mapbox basemap.
// Every record needs both centroids and a derived arc width; the map is
// centered on the first record's destination.
func ArcMap(recs []domain.MigrationFlowRecord, cfg ArcMapConfig, path string) (Artifact, error) {
	if cfg.Token == "" {
		return Artifact{}, &domain.RenderError{Artifact: path, Err: fmt.Errorf("mapbox token required for arc map")}
	}
	if len(recs) == 0 {
		return Artifact{}, &domain.RenderError{Artifact: path, Err: fmt.Errorf("no flows to map")}
	}

	data := make([]arcDatum, len(recs))
	for i, r := range recs {
		if r.OriginCentroid == nil || r.DestCentroid == nil {
			return Artifact{}, &domain.RenderError{
				Artifact: path,
				Err:      fmt.Errorf("flow %s -> %s has no centroid geometry", r.OriginID, r.DestID),
			}
		}
		data[i] = arcDatum{
			SourceLon: r.OriginCentroid.Lon,
			SourceLat: r.OriginCentroid.Lat,
			TargetLon: r.DestCentroid.Lon,
			TargetLat: r.DestCentroid.Lat,
			Width:     r.ArcWidth,
			Tooltip:   r.Tooltip,
		}
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return Artifact{}, &domain.RenderError{Artifact: path, Err: err}
	}

	zoom := cfg.Zoom
	if zoom == 0 {
		zoom = 4
	}

	var buf bytes.Buffer
	err = arcMapTmpl.Execute(&buf, map[string]any{
		"Title": cfg.Title,
		"Token": cfg.Token,
		"Data":  template.JS(payload),
		"Lat":   recs[0].DestCentroid.Lat,
		"Lon":   recs[0].DestCentroid.Lon,
		"Zoom":  zoom,
	})
	if err != nil {
		return Artifact{}, &domain.RenderError{Artifact: path, Err: err}
	}
	if err := writeFile(path, buf.Bytes()); err != nil {
		return Artifact{}, err
	}
	return Artifact{Kind: KindHTML, Path: path}, nil
}

var arcMapTmpl = template.Must(template.New("arcmap").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="https://unpkg.com/deck.gl@8.9.35/dist.min.js"></script>
<script src="https://api.mapbox.com/mapbox-gl-js/v2.15.0/mapbox-gl.js"></script>
<link href="https://api.mapbox.com/mapbox-gl-js/v2.15.0/mapbox-gl.css" rel="stylesheet">
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
const arcs = {{.Data}};
new deck.DeckGL({
  container: 'map',
  mapboxApiAccessToken: '{{.Token}}',
  mapStyle: 'mapbox://styles/mapbox/dark-v11',
  initialViewState: {
    latitude: {{.Lat}},
    longitude: {{.Lon}},
    zoom: {{.Zoom}},
    pitch: 45
  },
  controller: true,
  layers: [
    new deck.ArcLayer({
      id: 'flows',
      data: arcs,
      getSourcePosition: d => [d.source_lon, d.source_lat],
      getTargetPosition: d => [d.target_lon, d.target_lat],
      getWidth: d => d.width,
      getSourceColor: [64, 160, 255],
      getTargetColor: [255, 96, 64],
      pickable: true
    })
  ],
  getTooltip: ({object}) => object && object.tooltip
});
</script>
</body>
</html>
`))
