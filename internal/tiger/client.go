// Package tiger retrieves geography boundaries and internal-point centroids
// from the Census Bureau's TIGERweb ArcGIS REST services. Geometries stay as
// raw GeoJSON; the map renderers pass them through untouched, so there is
// nothing to gain from parsing coordinates here.
package tiger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/census-flows/internal/domain"
	"github.com/couchcryptid/census-flows/internal/observability"
)

// Boundary is one geography's polygon geometry plus its internal point.
type Boundary struct {
	GeoID    string
	Name     string
	Centroid domain.Geo
	Geometry json.RawMessage
}

// BoundaryQuery selects the geographies to fetch. Either State/County scoping
// or an explicit GeoID list; both together intersect.
type BoundaryQuery struct {
	Level  domain.GeographyLevel
	State  string
	County string
	GeoIDs []string
}

// Source yields boundaries for a query. *Client implements it.
type Source interface {
	Boundaries(ctx context.Context, q BoundaryQuery) ([]Boundary, error)
}

// Client talks to TIGERweb.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a TIGERweb client. The service needs no credentials.
func NewClient(timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    "https://tigerweb.geo.census.gov/arcgis/rest/services/TIGERweb",
		metrics:    metrics,
		logger:     logger,
	}
}

// layerPath maps a geography level onto its TIGERweb layer.
func layerPath(level domain.GeographyLevel) (string, error) {
	switch level {
	case domain.LevelState:
		return "State_County/MapServer/0", nil
	case domain.LevelCounty:
		return "State_County/MapServer/1", nil
	case domain.LevelTract:
		return "Tracts_Blocks/MapServer/0", nil
	case domain.LevelMetro:
		return "CBSA/MapServer/0", nil
	default:
		return "", fmt.Errorf("unsupported geography level %q", level)
	}
}

// Boundaries fetches the matching geographies as GeoJSON features.
func (c *Client) Boundaries(ctx context.Context, q BoundaryQuery) ([]Boundary, error) {
	layer, err := layerPath(q.Level)
	if err != nil {
		return nil, &domain.RetrievalError{Service: "tigerweb", Endpoint: c.baseURL, Err: err}
	}

	params := url.Values{
		"where":     {whereClause(q)},
		"outFields": {"GEOID,BASENAME,NAME,CENTLAT,CENTLON"},
		"outSR":     {"4326"},
		"f":         {"geojson"},
	}
	endpoint := c.baseURL + "/" + layer + "/query"

	fail := func(status int, err error) ([]Boundary, error) {
		c.metrics.RetrievalRequests.WithLabelValues("tigerweb", "error").Inc()
		return nil, &domain.RetrievalError{
			Service:  "tigerweb",
			Endpoint: endpoint,
			Params:   map[string]string{"where": params.Get("where")},
			Status:   status,
			Err:      err,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fail(0, fmt.Errorf("create request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fail(resp.StatusCode, fmt.Errorf("tigerweb error: %s", strings.TrimSpace(string(body))))
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return fail(resp.StatusCode, fmt.Errorf("decode geojson: %w", err))
	}

	boundaries := make([]Boundary, 0, len(fc.Features))
	for _, f := range fc.Features {
		name := f.Properties.Name
		if name == "" {
			name = f.Properties.BaseName
		}
		boundaries = append(boundaries, Boundary{
			GeoID: f.Properties.GeoID,
			Name:  name,
			Centroid: domain.Geo{
				Lat: f.Properties.CentLat.value(),
				Lon: f.Properties.CentLon.value(),
			},
			Geometry: f.Geometry,
		})
	}

	c.metrics.RetrievalRequests.WithLabelValues("tigerweb", "success").Inc()
	c.metrics.RowsRetrieved.WithLabelValues("tigerweb").Add(float64(len(boundaries)))
	c.logger.Debug("boundary retrieval complete", "level", q.Level, "features", len(boundaries))
	return boundaries, nil
}

func whereClause(q BoundaryQuery) string {
	var clauses []string
	if q.State != "" {
		clauses = append(clauses, fmt.Sprintf("STATE='%s'", q.State))
	}
	if q.County != "" {
		clauses = append(clauses, fmt.Sprintf("COUNTY='%s'", q.County))
	}
	if len(q.GeoIDs) > 0 {
		quoted := make([]string, len(q.GeoIDs))
		for i, id := range q.GeoIDs {
			quoted[i] = "'" + id + "'"
		}
		clauses = append(clauses, "GEOID IN ("+strings.Join(quoted, ",")+")")
	}
	if len(clauses) == 0 {
		return "1=1"
	}
	return strings.Join(clauses, " AND ")
}

// TIGERweb GeoJSON response types. CENTLAT/CENTLON arrive as strings with a
// leading "+" on some layers, so they get a lenient decoder.

type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	Properties properties      `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

type properties struct {
	GeoID    string     `json:"GEOID"`
	BaseName string     `json:"BASENAME"`
	Name     string     `json:"NAME"`
	CentLat  looseCoord `json:"CENTLAT"`
	CentLon  looseCoord `json:"CENTLON"`
}

type looseCoord struct {
	f float64
}

func (l *looseCoord) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	s = strings.TrimPrefix(s, "+")
	if s == "" || s == "null" {
		l.f = 0
		return nil
	}
	// Not json.Unmarshal: TIGERweb pads coordinates ("-097.74..."), and JSON
	// numbers reject leading zeros.
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("coordinate %q: %w", s, err)
	}
	l.f = v
	return nil
}

func (l looseCoord) value() float64 { return l.f }
