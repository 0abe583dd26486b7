// Package census is a client for the US Census Bureau Data API: ACS 5-year
// estimate tables and the ACS Migration Flows dataset. The API returns JSON
// arrays of string arrays (header row first); this package decodes them into
// domain records. Every failure is wrapped in a domain.RetrievalError carrying
// the request parameters, and is fatal to the caller's run.
package census

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

// Source retrieves ACS tables and migration flows. *Client implements it;
// tests substitute stubs.
type Source interface {
	ACS(ctx context.Context, q ACSQuery) ([]domain.GeographicObservation, error)
	Flows(ctx context.Context, q FlowsQuery) ([]domain.MigrationFlowRecord, error)
}

// ACSQuery parameterizes one ACS table request.
type ACSQuery struct {
	Year      int
	Dataset   string   // e.g. "acs/acs5"; defaults to acs/acs5 when empty
	Variables []string // variable IDs without E/M suffix, e.g. "B19013_001"
	Level     domain.GeographyLevel
	State     string // FIPS, scopes tract and county queries
	County    string // FIPS, scopes tract queries
}

// FlowsQuery parameterizes one migration-flows request for a reference
// geography. GeoID empty means all geographies at the level.
type FlowsQuery struct {
	Year  int
	Level domain.GeographyLevel
	GeoID string
}

// Client talks to the Census Data API.
type Client struct {
	key        string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Census Data API client authenticated with a static key.
func NewClient(key string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		key:        key,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    "https://api.census.gov/data",
		metrics:    metrics,
		logger:     logger,
	}
}

// ACS retrieves one or more variables for every geography matched by the
// query, one observation per (geography, variable).
func (c *Client) ACS(ctx context.Context, q ACSQuery) ([]domain.GeographicObservation, error) {
	dataset := q.Dataset
	if dataset == "" {
		dataset = "acs/acs5"
	}

	get := []string{"NAME"}
	for _, v := range q.Variables {
		get = append(get, v+"E", v+"M")
	}

	params := url.Values{
		"get": {strings.Join(get, ",")},
		"for": {string(q.Level) + ":*"},
		"key": {c.key},
	}
	if in := acsInClause(q); in != "" {
		params.Set("in", in)
	}

	endpoint := fmt.Sprintf("%s/%d/%s", c.baseURL, q.Year, dataset)
	rows, err := c.doRequest(ctx, "acs", endpoint, params)
	if err != nil {
		return nil, err
	}

	obs, err := decodeACS(rows, q)
	if err != nil {
		return nil, &domain.RetrievalError{
			Service: "acs", Endpoint: endpoint, Params: retrievalParams(params), Err: err,
		}
	}

	c.metrics.RowsRetrieved.WithLabelValues("acs").Add(float64(len(obs)))
	c.logger.Debug("acs retrieval complete", "year", q.Year, "level", q.Level, "observations", len(obs))
	return obs, nil
}

// Flows retrieves migration flows for the reference geography, producing one
// direction-tagged record per reported (pair, direction) with a usable
// estimate.
func (c *Client) Flows(ctx context.Context, q FlowsQuery) ([]domain.MigrationFlowRecord, error) {
	forValue := "*"
	if q.GeoID != "" {
		forValue = q.GeoID
	}

	params := url.Values{
		"get": {"GEOID1,GEOID2,FULL1_NAME,FULL2_NAME,MOVEDIN,MOVEDIN_M,MOVEDOUT,MOVEDOUT_M"},
		"for": {string(q.Level) + ":" + forValue},
		"key": {c.key},
	}

	endpoint := fmt.Sprintf("%s/%d/acs/flows", c.baseURL, q.Year)
	rows, err := c.doRequest(ctx, "flows", endpoint, params)
	if err != nil {
		return nil, err
	}

	recs, err := decodeFlows(rows, domain.PeriodEnding(q.Year))
	if err != nil {
		return nil, &domain.RetrievalError{
			Service: "flows", Endpoint: endpoint, Params: retrievalParams(params), Err: err,
		}
	}

	c.metrics.RowsRetrieved.WithLabelValues("flows").Add(float64(len(recs)))
	c.logger.Debug("flows retrieval complete", "year", q.Year, "level", q.Level, "records", len(recs))
	return recs, nil
}

// doRequest issues one GET and decodes the array-of-arrays body. Cells may be
// JSON strings or null.
func (c *Client) doRequest(ctx context.Context, service, endpoint string, params url.Values) ([][]*string, error) {
	fail := func(status int, err error) ([][]*string, error) {
		c.metrics.RetrievalRequests.WithLabelValues(service, "error").Inc()
		return nil, &domain.RetrievalError{
			Service: service, Endpoint: endpoint, Params: retrievalParams(params), Status: status, Err: err,
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
		return fail(resp.StatusCode, fmt.Errorf("census API error: %s", strings.TrimSpace(string(body))))
	}

	var rows [][]*string
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return fail(resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	if len(rows) == 0 {
		return fail(resp.StatusCode, fmt.Errorf("empty response, expected header row"))
	}

	c.metrics.RetrievalRequests.WithLabelValues(service, "success").Inc()
	return rows, nil
}

// acsInClause scopes an ACS query to its parent geographies, e.g. tract
// queries need "state:48 county:453".
func acsInClause(q ACSQuery) string {
	switch q.Level {
	case domain.LevelTract:
		parts := []string{}
		if q.State != "" {
			parts = append(parts, "state:"+q.State)
		}
		if q.County != "" {
			parts = append(parts, "county:"+q.County)
		}
		return strings.Join(parts, " ")
	case domain.LevelCounty:
		if q.State != "" {
			return "state:" + q.State
		}
	}
	return ""
}

// decodeACS maps header-indexed rows to observations. GEOIDs are composed
// from the trailing geography columns, largest unit first.
func decodeACS(rows [][]*string, q ACSQuery) ([]domain.GeographicObservation, error) {
	idx := headerIndex(rows[0])

	nameCol, ok := idx["NAME"]
	if !ok {
		return nil, fmt.Errorf("response missing NAME column")
	}

	geoCols, err := geoColumns(q.Level, idx)
	if err != nil {
		return nil, err
	}

	obs := make([]domain.GeographicObservation, 0, (len(rows)-1)*len(q.Variables))
	for _, row := range rows[1:] {
		geoID, err := composeGeoID(row, geoCols)
		if err != nil {
			return nil, err
		}
		for _, v := range q.Variables {
			estCol, ok := idx[v+"E"]
			if !ok {
				return nil, fmt.Errorf("response missing column %sE", v)
			}
			o := domain.GeographicObservation{
				GeoID:    geoID,
				Name:     cell(row, nameCol),
				Variable: v,
				Estimate: parseFloatOrZero(cell(row, estCol)),
				Year:     q.Year,
			}
			if moeCol, ok := idx[v+"M"]; ok {
				o.MarginOfError = parseFloatOrZero(cell(row, moeCol))
			}
			obs = append(obs, o)
		}
	}
	return obs, nil
}

// decodeFlows splits each reported pair into up to two direction-tagged
// records. Rows with a null or missing estimate for a direction simply omit
// that direction.
func decodeFlows(rows [][]*string, period domain.Period) ([]domain.MigrationFlowRecord, error) {
	idx := headerIndex(rows[0])
	for _, col := range []string{"GEOID1", "GEOID2", "FULL1_NAME", "FULL2_NAME", "MOVEDIN", "MOVEDOUT"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("response missing %s column", col)
		}
	}

	recs := make([]domain.MigrationFlowRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		refID := cell(row, idx["GEOID1"])
		refName := cell(row, idx["FULL1_NAME"])
		otherID := cell(row, idx["GEOID2"])
		otherName := cell(row, idx["FULL2_NAME"])

		if in, ok := parseFloat(cell(row, idx["MOVEDIN"])); ok && !domain.IsMissing(in) {
			recs = append(recs, domain.MigrationFlowRecord{
				OriginID: otherID, OriginName: otherName,
				DestID: refID, DestName: refName,
				Direction:     domain.MovedIn,
				Estimate:      in,
				MarginOfError: parseFloatOrZero(cell(row, moeCol(idx, "MOVEDIN_M"))),
				Period:        period,
			})
		}
		if out, ok := parseFloat(cell(row, idx["MOVEDOUT"])); ok && !domain.IsMissing(out) {
			recs = append(recs, domain.MigrationFlowRecord{
				OriginID: refID, OriginName: refName,
				DestID: otherID, DestName: otherName,
				Direction:     domain.MovedOut,
				Estimate:      out,
				MarginOfError: parseFloatOrZero(cell(row, moeCol(idx, "MOVEDOUT_M"))),
				Period:        period,
			})
		}
	}
	return recs, nil
}

// geoColumns returns the geography column indices composing a GEOID for the
// level, in concatenation order.
func geoColumns(level domain.GeographyLevel, idx map[string]int) ([]int, error) {
	var names []string
	switch level {
	case domain.LevelState:
		names = []string{"state"}
	case domain.LevelCounty:
		names = []string{"state", "county"}
	case domain.LevelTract:
		names = []string{"state", "county", "tract"}
	case domain.LevelMetro:
		names = []string{string(domain.LevelMetro)}
	default:
		return nil, fmt.Errorf("unsupported geography level %q", level)
	}

	cols := make([]int, len(names))
	for i, n := range names {
		col, ok := idx[n]
		if !ok {
			return nil, fmt.Errorf("response missing geography column %q", n)
		}
		cols[i] = col
	}
	return cols, nil
}

func composeGeoID(row []*string, cols []int) (string, error) {
	parts := make([]string, len(cols))
	for i, col := range cols {
		v := cell(row, col)
		if v == "" {
			return "", fmt.Errorf("row has empty geography column")
		}
		parts[i] = v
	}
	return strings.Join(parts, ""), nil
}

func headerIndex(header []*string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		if h != nil {
			idx[*h] = i
		}
	}
	return idx
}

// moeCol returns the column index for an optional MOE column, or -1.
func moeCol(idx map[string]int, name string) int {
	if col, ok := idx[name]; ok {
		return col
	}
	return -1
}

func cell(row []*string, col int) string {
	if col < 0 || col >= len(row) || row[col] == nil {
		return ""
	}
	return strings.TrimSpace(*row[col])
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseFloatOrZero(s string) float64 {
	v, _ := parseFloat(s)
	return v
}

func retrievalParams(params url.Values) map[string]string {
	out := make(map[string]string, len(params))
	for k := range params {
		if k == "key" {
			continue // never echo the credential into error messages
		}
		out[k] = params.Get(k)
	}
	return out
}
