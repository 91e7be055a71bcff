package preview

import (
	"context"
	"fmt"
	"net/http"

	"github.com/teslashibe/go-avatar/internal/httpc"
	"github.com/teslashibe/go-avatar/pkg/tracking"
)

// apiURL returns the HTTP URL for an API path
func (c *Client) apiURL(path string) string {
	u := *c.base
	if u.Scheme == "wss" {
		u.Scheme = "https"
	} else {
		u.Scheme = "http"
	}
	u.Path = u.Path + path
	return u.String()
}

// Status fetches the current tracker status.
func (c *Client) Status(ctx context.Context) (tracking.Status, error) {
	var status tracking.Status
	err := c.getJSON(ctx, "/api/status", &status)
	return status, err
}

// Tuning fetches the tracker's tuning parameters.
func (c *Client) Tuning(ctx context.Context) (tracking.TuningParams, error) {
	var params tracking.TuningParams
	err := c.getJSON(ctx, "/api/tuning", &params)
	return params, err
}

// SetTuning applies the non-zero fields of params and returns the result.
func (c *Client) SetTuning(ctx context.Context, params tracking.TuningParams) (tracking.TuningParams, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return params, err
	}
	data, err := httpc.Do(ctx, c.http, http.MethodPut, c.apiURL("/api/tuning"), body)
	if err != nil {
		return params, fmt.Errorf("preview: set tuning: %w", err)
	}
	var out tracking.TuningParams
	if err := json.Unmarshal(data, &out); err != nil {
		return params, fmt.Errorf("preview: decode tuning: %w", err)
	}
	return out, nil
}

// Snapshot fetches the most recent rendered frame as JPEG.
func (c *Client) Snapshot(ctx context.Context) ([]byte, error) {
	data, err := httpc.Do(ctx, c.http, http.MethodGet, c.apiURL("/api/frame"), nil)
	if err != nil {
		return nil, fmt.Errorf("preview: snapshot: %w", err)
	}
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v interface{}) error {
	data, err := httpc.Do(ctx, c.http, http.MethodGet, c.apiURL(path), nil)
	if err != nil {
		return fmt.Errorf("preview: get %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("preview: decode %s: %w", path, err)
	}
	return nil
}
