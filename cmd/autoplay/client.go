package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/peymanfazeli/Memory-game/game/engine"
	"github.com/peymanfazeli/Memory-game/game/service"
)

// Client talks to the game server's REST API for one session
type Client struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SessionID returns the session the client plays in
func (c *Client) SessionID() string {
	return c.sessionID
}

// CreateSession creates a session and remembers its id
func (c *Client) CreateSession(ctx context.Context, configName string, pairsCount int) (*engine.GameState, error) {
	body := map[string]interface{}{}
	if configName != "" {
		body["config_id"] = configName
	}
	if pairsCount > 0 {
		body["pairs_count"] = pairsCount
	}

	var session service.SessionInfo
	if err := c.do(ctx, http.MethodPost, "/api/sessions", body, &session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	c.sessionID = session.ID
	return session.GameState, nil
}

// UseSession makes the client play in an existing session
func (c *Client) UseSession(sessionID string) {
	c.sessionID = sessionID
}

// GetState fetches the public state of the session
func (c *Client) GetState(ctx context.Context) (*engine.GameState, error) {
	var state engine.GameState
	if err := c.do(ctx, http.MethodGet, c.sessionPath("/state"), nil, &state); err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}
	return &state, nil
}

// Start deals a new game in the session
func (c *Client) Start(ctx context.Context, pairsCount int) (*engine.GameState, error) {
	body := map[string]int{}
	if pairsCount > 0 {
		body["pairs_count"] = pairsCount
	}

	var state engine.GameState
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/start"), body, &state); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	return &state, nil
}

// Flip flips one card. A rejected flip is reported in the result, not as an error.
func (c *Client) Flip(ctx context.Context, cardID string) (*service.FlipResult, error) {
	var result service.FlipResult
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/flip"), map[string]string{"card_id": cardID}, &result); err != nil {
		return nil, fmt.Errorf("flip %s: %w", cardID, err)
	}
	return &result, nil
}

func (c *Client) sessionPath(suffix string) string {
	return "/api/sessions/" + url.PathEscape(c.sessionID) + suffix
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, errResp.Error)
		}
		return fmt.Errorf("%s: %s", resp.Status, string(data))
	}

	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}
