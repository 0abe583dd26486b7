package census

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/census-flows/internal/domain"
	"github.com/couchcryptid/census-flows/internal/observability"
)

const testKey = "test-census-key"

func testMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func testClient(baseURL string) *Client {
	return &Client{
		key:        testKey,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		metrics:    testMetrics(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestClient_ACS_TractIncome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/2019/acs/acs5")
		q := r.URL.Query()
		assert.Equal(t, "NAME,B19013_001E,B19013_001M", q.Get("get"))
		assert.Equal(t, "tract:*", q.Get("for"))
		assert.Equal(t, "state:48 county:453", q.Get("in"))
		assert.Equal(t, testKey, q.Get("key"))

		fmt.Fprint(w, `[
			["NAME","B19013_001E","B19013_001M","state","county","tract"],
			["Census Tract 1.01, Travis County, Texas","67000","4500","48","453","000101"],
			["Census Tract 2, Travis County, Texas","52500","3100","48","453","000200"]
		]`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	obs, err := c.ACS(context.Background(), ACSQuery{
		Year:      2019,
		Variables: []string{"B19013_001"},
		Level:     domain.LevelTract,
		State:     "48",
		County:    "453",
	})
	require.NoError(t, err)
	require.Len(t, obs, 2)

	assert.Equal(t, "48453000101", obs[0].GeoID)
	assert.Equal(t, "Census Tract 1.01, Travis County, Texas", obs[0].Name)
	assert.Equal(t, "B19013_001", obs[0].Variable)
	assert.Equal(t, float64(67000), obs[0].Estimate)
	assert.Equal(t, float64(4500), obs[0].MarginOfError)
	assert.Equal(t, 2019, obs[0].Year)
	assert.Equal(t, "48453000200", obs[1].GeoID)
}

func TestClient_ACS_MultipleVariables(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "NAME,B01001_003E,B01001_003M,B01001_027E,B01001_027M", r.URL.Query().Get("get"))
		assert.Equal(t, "state:*", r.URL.Query().Get("for"))
		assert.Empty(t, r.URL.Query().Get("in"))

		fmt.Fprint(w, `[
			["NAME","B01001_003E","B01001_003M","B01001_027E","B01001_027M","state"],
			["Texas","1000000","1200","960000","1100","48"]
		]`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	obs, err := c.ACS(context.Background(), ACSQuery{
		Year:      2019,
		Variables: []string{"B01001_003", "B01001_027"},
		Level:     domain.LevelState,
	})
	require.NoError(t, err)
	require.Len(t, obs, 2)

	assert.Equal(t, "48", obs[0].GeoID)
	assert.Equal(t, "B01001_003", obs[0].Variable)
	assert.Equal(t, float64(1000000), obs[0].Estimate)
	assert.Equal(t, "B01001_027", obs[1].Variable)
	assert.Equal(t, float64(960000), obs[1].Estimate)
}

func TestClient_ACS_SentinelPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[
			["NAME","B19013_001E","B19013_001M","state","county","tract"],
			["Census Tract 9800, Travis County, Texas","-666666666","-222222222","48","453","980000"]
		]`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	obs, err := c.ACS(context.Background(), ACSQuery{
		Year:      2019,
		Variables: []string{"B19013_001"},
		Level:     domain.LevelTract,
		State:     "48",
		County:    "453",
	})
	require.NoError(t, err)
	require.Len(t, obs, 1)

	// Suppressed estimates are retrieved as-is; filtering is the pipeline's job.
	assert.True(t, domain.IsMissing(obs[0].Estimate))
}

func TestClient_ACS_NullCells(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[
			["NAME","B19013_001E","B19013_001M","state","county","tract"],
			["Census Tract 3, Travis County, Texas",null,null,"48","453","000300"]
		]`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	obs, err := c.ACS(context.Background(), ACSQuery{
		Year:      2019,
		Variables: []string{"B19013_001"},
		Level:     domain.LevelTract,
		State:     "48",
		County:    "453",
	})
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Zero(t, obs[0].Estimate)
	assert.Zero(t, obs[0].MarginOfError)
}

func TestClient_ACS_MissingVariableColumn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[
			["NAME","state"],
			["Texas","48"]
		]`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.ACS(context.Background(), ACSQuery{
		Year:      2019,
		Variables: []string{"B19013_001"},
		Level:     domain.LevelState,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing column B19013_001E")
}

func TestClient_Flows_BothDirections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/2019/acs/flows")
		q := r.URL.Query()
		assert.Equal(t, "metropolitan statistical area/micropolitan statistical area:12420", q.Get("for"))
		assert.Equal(t, testKey, q.Get("key"))

		fmt.Fprint(w, `[
			["GEOID1","GEOID2","FULL1_NAME","FULL2_NAME","MOVEDIN","MOVEDIN_M","MOVEDOUT","MOVEDOUT_M"],
			["12420","26420","Austin-Round Rock Metro Area","Houston Metro Area","5200","310","2100","180"]
		]`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	recs, err := c.Flows(context.Background(), FlowsQuery{
		Year:  2019,
		Level: domain.LevelMetro,
		GeoID: "12420",
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	in := recs[0]
	assert.Equal(t, domain.MovedIn, in.Direction)
	assert.Equal(t, "26420", in.OriginID)
	assert.Equal(t, "Houston Metro Area", in.OriginName)
	assert.Equal(t, "12420", in.DestID)
	assert.Equal(t, "Austin-Round Rock Metro Area", in.DestName)
	assert.Equal(t, float64(5200), in.Estimate)
	assert.Equal(t, float64(310), in.MarginOfError)
	assert.Equal(t, domain.Period{Start: 2015, End: 2019}, in.Period)

	out := recs[1]
	assert.Equal(t, domain.MovedOut, out.Direction)
	assert.Equal(t, "12420", out.OriginID)
	assert.Equal(t, "26420", out.DestID)
	assert.Equal(t, float64(2100), out.Estimate)
	assert.Equal(t, float64(180), out.MarginOfError)
}

func TestClient_Flows_NullEstimateOmitsDirection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[
			["GEOID1","GEOID2","FULL1_NAME","FULL2_NAME","MOVEDIN","MOVEDIN_M","MOVEDOUT","MOVEDOUT_M"],
			["12420","31080","Austin Metro Area","Los Angeles Metro Area","3100","250",null,null]
		]`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	recs, err := c.Flows(context.Background(), FlowsQuery{Year: 2019, Level: domain.LevelMetro, GeoID: "12420"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.MovedIn, recs[0].Direction)
}

func TestClient_Flows_SentinelOmitsDirection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[
			["GEOID1","GEOID2","FULL1_NAME","FULL2_NAME","MOVEDIN","MOVEDIN_M","MOVEDOUT","MOVEDOUT_M"],
			["12420","35620","Austin Metro Area","New York Metro Area","-666666666","0","900","120"]
		]`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	recs, err := c.Flows(context.Background(), FlowsQuery{Year: 2019, Level: domain.LevelMetro, GeoID: "12420"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.MovedOut, recs[0].Direction)
	assert.Equal(t, float64(900), recs[0].Estimate)
}

func TestClient_Flows_MissingColumn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[
			["GEOID1","GEOID2","MOVEDIN"],
			["12420","26420","5200"]
		]`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Flows(context.Background(), FlowsQuery{Year: 2019, Level: domain.LevelMetro, GeoID: "12420"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing FULL1_NAME column")
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "error: unknown variable 'B99999_001E'")
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.ACS(context.Background(), ACSQuery{
		Year:      2019,
		Variables: []string{"B99999_001"},
		Level:     domain.LevelState,
	})
	require.Error(t, err)

	var rerr *domain.RetrievalError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "acs", rerr.Service)
	assert.Equal(t, http.StatusBadRequest, rerr.Status)
	assert.Contains(t, rerr.Params, "get")

	// The API key is a credential; it never appears in the error.
	assert.NotContains(t, rerr.Params, "key")
	assert.NotContains(t, err.Error(), testKey)
}

func TestClient_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Flows(context.Background(), FlowsQuery{Year: 2019, Level: domain.LevelMetro, GeoID: "12420"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected header row")
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.httpClient.Timeout = 50 * time.Millisecond

	_, err := c.ACS(context.Background(), ACSQuery{Year: 2019, Variables: []string{"B19013_001"}, Level: domain.LevelState})
	require.Error(t, err)

	var rerr *domain.RetrievalError
	require.True(t, errors.As(err, &rerr))
	assert.Zero(t, rerr.Status)
}

func TestACSInClause(t *testing.T) {
	cases := []struct {
		name string
		q    ACSQuery
		want string
	}{
		{"tract scoped", ACSQuery{Level: domain.LevelTract, State: "48", County: "453"}, "state:48 county:453"},
		{"tract state only", ACSQuery{Level: domain.LevelTract, State: "48"}, "state:48"},
		{"county scoped", ACSQuery{Level: domain.LevelCounty, State: "48"}, "state:48"},
		{"state unscoped", ACSQuery{Level: domain.LevelState, State: "48"}, ""},
		{"metro unscoped", ACSQuery{Level: domain.LevelMetro}, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, acsInClause(c.q))
		})
	}
}
