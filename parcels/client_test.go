package parcels

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const buildingsPayload = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"properties": {
				"id": "40213",
				"address": "112 8 Ave SE",
				"community": "Downtown Commercial Core",
				"zoning": "CC-X",
				"assessed_value": 2450000,
				"height_m": 42.75,
				"year": 1987,
				"source": "parcels"
			},
			"geometry": {
				"type": "Polygon",
				"coordinates": [[[-114.06, 51.045], [-114.059, 51.045], [-114.059, 51.046], [-114.06, 51.046]]]
			}
		}
	]
}`

func TestFetchBuildings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/buildings", r.URL.Path)
		assert.Equal(t, "-114.08,51.04,-114.05,51.06", r.URL.Query().Get("bbox"))
		assert.Equal(t, "1200", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(buildingsPayload))
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	features, err := c.FetchBuildings(context.Background(), BBox{-114.08, 51.04, -114.05, 51.06}, 1200)
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, "40213", features[0].ID)
	assert.Equal(t, "CC-X", features[0].Zoning)
	assert.InDelta(t, 42.75, features[0].HeightM, 1e-9)
}

func TestQueryFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/llm_filter", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var body struct {
			BBox  [4]float64 `json:"bbox"`
			Query string     `json:"query"`
			Limit int        `json:"limit"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "under $500k", body.Query)
		assert.Equal(t, 800, body.Limit)

		json.NewEncoder(w).Encode(FilterResult{
			Filters:         []Filter{{Attribute: "assessed_value", Operator: "<", Value: 500000.0}},
			IDs:             []string{"roll-7"},
			Matched:         1,
			TotalConsidered: 42,
		})
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	res, err := c.QueryFilter(context.Background(), BBox{-114.08, 51.04, -114.05, 51.06}, "under $500k", 800)
	require.NoError(t, err)
	assert.Equal(t, []string{"roll-7"}, res.IDs)
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 42, res.TotalConsidered)
	require.Len(t, res.Filters, 1)
	assert.Equal(t, "assessed_value", res.Filters[0].Attribute)
}

func TestApplyFilterSendsFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/filter_apply", r.URL.Path)

		var body struct {
			Filters []Filter `json:"filters"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Filters, 1)
		assert.Equal(t, "zoning", body.Filters[0].Attribute)

		json.NewEncoder(w).Encode(FilterResult{IDs: []string{}, Matched: 0, TotalConsidered: 10})
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	res, err := c.ApplyFilter(context.Background(), BBox{-114.08, 51.04, -114.05, 51.06},
		[]Filter{{Attribute: "zoning", Operator: "in", Value: []string{"CC-X"}}}, 1200)
	require.NoError(t, err)
	assert.Equal(t, 10, res.TotalConsidered)
}

func TestClientSurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "BUILDINGS_FETCH_FAILED",
			"message": "upstream timeout",
		})
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.FetchBuildings(context.Background(), BBox{-114.08, 51.04, -114.05, 51.06}, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BUILDINGS_FETCH_FAILED")
	assert.Contains(t, err.Error(), "upstream timeout")
}

func TestClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	assert.Error(t, err)
}
