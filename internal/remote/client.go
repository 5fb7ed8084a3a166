// Package remote provides the client for the hosted relational data service.
//
// The service exposes one REST resource per table. Reads select whole tables
// ordered by a canonical display column; writes address single rows by primary
// key, or by a natural-key column for upsert-style entities. All requests
// carry the project API key.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"
)

// Order describes the canonical ordering for a table read.
type Order struct {
	// Column is the column to order by.
	Column string
	// Descending orders newest/highest first when true.
	Descending bool
}

// String renders the order as a query parameter value, e.g. "title.asc".
func (o Order) String() string {
	dir := "asc"
	if o.Descending {
		dir = "desc"
	}
	return o.Column + "." + dir
}

// Client talks to the remote relational data service.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *log.Logger
}

// New creates a client for the service at baseURL.
//
// If logger is nil, a default logger writing to stderr is used.
func New(baseURL, apiKey string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Select reads all rows of a table in canonical order into dest, which must
// be a pointer to a slice of the table's row type.
func (c *Client) Select(ctx context.Context, table string, order Order, dest any) error {
	q := url.Values{}
	q.Set("select", "*")
	if order.Column != "" {
		q.Set("order", order.String())
	}

	body, err := c.do(ctx, http.MethodGet, c.tableURL(table)+"?"+q.Encode(), nil, nil)
	if err != nil {
		return fmt.Errorf("failed to select from %s: %w", table, err)
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to decode %s rows: %w", table, err)
	}
	return nil
}

// Insert adds one row to a table.
func (c *Client) Insert(ctx context.Context, table string, row any) error {
	if _, err := c.do(ctx, http.MethodPost, c.tableURL(table), row, nil); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}

// Update patches the row with the given primary key.
func (c *Client) Update(ctx context.Context, table, id string, patch any) error {
	u := c.tableURL(table) + "?id=eq." + url.QueryEscape(id)
	if _, err := c.do(ctx, http.MethodPatch, u, patch, nil); err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", table, id, err)
	}
	return nil
}

// Delete removes the row with the given primary key.
// Returns nil if the row doesn't exist (idempotent).
func (c *Client) Delete(ctx context.Context, table, id string) error {
	u := c.tableURL(table) + "?id=eq." + url.QueryEscape(id)
	if _, err := c.do(ctx, http.MethodDelete, u, nil, nil); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", table, id, err)
	}
	return nil
}

// Upsert inserts the row, merging into the existing row that shares the
// onConflict column value. Used for natural-key entities such as parent
// profiles keyed by email.
func (c *Client) Upsert(ctx context.Context, table, onConflict string, row any) error {
	u := c.tableURL(table) + "?on_conflict=" + url.QueryEscape(onConflict)
	headers := map[string]string{
		"Prefer": "resolution=merge-duplicates",
	}
	if _, err := c.do(ctx, http.MethodPost, u, row, headers); err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", table, err)
	}
	return nil
}

// Health probes the service root. A nil return means the service answered.
// This is the probe the connectivity oracle runs.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/rest/v1/", nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("health probe failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return &APIError{StatusCode: resp.StatusCode}
	}
	return nil
}

// tableURL builds the resource URL for a table.
func (c *Client) tableURL(table string) string {
	return c.baseURL + "/rest/v1/" + url.PathEscape(table)
}

// setAuth attaches the project API key headers.
func (c *Client) setAuth(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

// do executes one request and returns the response body.
// Non-2xx responses are returned as *APIError.
func (c *Client) do(ctx context.Context, method, rawURL string, payload any, headers map[string]string) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	c.setAuth(req)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	return data, nil
}
