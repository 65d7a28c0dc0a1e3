package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the hosted PostgREST backend. Every call carries the
// project api key plus the caller's bearer token; row-level security on the
// backend scopes results to the authenticated profile.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path, token string, body any) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

func (c *Client) getJSON(ctx context.Context, path, token string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		txt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, txt)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GoalRows fetches every Extensions row belonging to profileID.
func (c *Client) GoalRows(ctx context.Context, token, profileID string) ([]GoalRow, error) {
	path := "/rest/v1/Extensions?id=eq." + url.QueryEscape(profileID) + "&select=*"
	var rows []GoalRow
	if err := c.getJSON(ctx, path, token, &rows); err != nil {
		return nil, fmt.Errorf("fetch goal rows: %w", err)
	}
	return rows, nil
}

// PatchGoalRow applies a partial update to one Extensions row, keyed by
// both row id and goal id.
func (c *Client) PatchGoalRow(ctx context.Context, token, rowID, goalID string, patch map[string]any) error {
	path := "/rest/v1/Extensions?id=eq." + url.QueryEscape(rowID) +
		"&goal_id=eq." + url.QueryEscape(goalID)
	resp, err := c.do(ctx, http.MethodPatch, path, token, patch)
	if err != nil {
		return fmt.Errorf("patch goal row %s: %w", rowID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		txt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("patch goal row %s returned %d: %s", rowID, resp.StatusCode, txt)
	}
	return nil
}

// Settings fetches the enforcement settings for profileID. Returns nil (and
// no error) when the profile has no settings row yet.
func (c *Client) Settings(ctx context.Context, token, profileID string) (*Settings, error) {
	path := "/rest/v1/Settings?id=eq." + url.QueryEscape(profileID) +
		"&select=hard_block,soft_block,timeout,overlay"
	var rows []Settings
	if err := c.getJSON(ctx, path, token, &rows); err != nil {
		return nil, fmt.Errorf("fetch settings: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

type profileRow struct {
	ID string `json:"id"`
}

// ProfileByID looks up a profile row by primary key. Returns "" when the
// lookup succeeds but matches nothing.
func (c *Client) ProfileByID(ctx context.Context, token, id string) (string, error) {
	path := "/rest/v1/Profiles?id=eq." + url.QueryEscape(id) + "&select=id"
	var rows []profileRow
	if err := c.getJSON(ctx, path, token, &rows); err != nil {
		return "", fmt.Errorf("fetch profile by id: %w", err)
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].ID, nil
}

// FirstProfile returns the first profile row visible to the token. Backend
// row-level security means an authenticated user sees only their own row,
// so this doubles as an identity lookup when the JWT subject lookup missed.
func (c *Client) FirstProfile(ctx context.Context, token string) (string, error) {
	var rows []profileRow
	if err := c.getJSON(ctx, "/rest/v1/Profiles?select=id", token, &rows); err != nil {
		return "", fmt.Errorf("list profiles: %w", err)
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].ID, nil
}
