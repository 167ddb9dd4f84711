package parcels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"parcelscape/geo"
)

// BBox is west, south, east, north in degrees.
type BBox [4]float64

func (b BBox) query() string {
	parts := make([]string, 4)
	for i, v := range b {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

// FilterResult is the outcome of evaluating filters against the parcels
// inside a bounding box.
type FilterResult struct {
	Filters         []Filter `json:"filters,omitempty"`
	IDs             []string `json:"ids"`
	Matched         int      `json:"matched"`
	TotalConsidered int      `json:"total_considered"`
	Note            string   `json:"note,omitempty"`
}

type apiError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

// Client talks to the parcel backend.
type Client struct {
	baseURL string
	http    *http.Client
}

type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("func NewClient - base URL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// FetchBuildings requests the parcel features inside bbox, at most limit
// of them, decoded from the GeoJSON FeatureCollection the server returns.
func (c *Client) FetchBuildings(ctx context.Context, bbox BBox, limit int) ([]geo.Feature, error) {
	q := url.Values{}
	q.Set("bbox", bbox.query())
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/buildings?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("func FetchBuildings - %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("func FetchBuildings - %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.decodeError("FetchBuildings", resp)
	}
	features, err := geo.DecodeFeatureCollection(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("func FetchBuildings - %w", err)
	}
	return features, nil
}

// QueryFilter sends a free-text query for the server to parse and apply.
func (c *Client) QueryFilter(ctx context.Context, bbox BBox, query string, limit int) (*FilterResult, error) {
	body := map[string]any{
		"bbox":  bbox,
		"query": query,
		"limit": limit,
	}
	return c.postFilter(ctx, "/api/llm_filter", "QueryFilter", body)
}

// ApplyFilter sends already-parsed filters for the server to apply.
func (c *Client) ApplyFilter(ctx context.Context, bbox BBox, filters []Filter, limit int) (*FilterResult, error) {
	if filters == nil {
		filters = []Filter{}
	}
	body := map[string]any{
		"bbox":    bbox,
		"filters": filters,
		"limit":   limit,
	}
	return c.postFilter(ctx, "/api/filter_apply", "ApplyFilter", body)
}

func (c *Client) postFilter(ctx context.Context, path, op string, body map[string]any) (*FilterResult, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("func %s - %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("func %s - %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("func %s - %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.decodeError(op, resp)
	}

	var result FilterResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("func %s - %w", op, err)
	}
	return &result, nil
}

func (c *Client) decodeError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var ae apiError
	if json.Unmarshal(raw, &ae) == nil && ae.Code != "" {
		return fmt.Errorf("func %s - server returned %s: %s", op, ae.Code, ae.Message)
	}
	return fmt.Errorf("func %s - server returned status %d", op, resp.StatusCode)
}
