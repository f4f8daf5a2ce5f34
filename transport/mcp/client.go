package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/peymanfazeli/Memory-game/game/engine"
	"github.com/peymanfazeli/Memory-game/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Memory Game",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Memory Game - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Find every matching pair of cards. Flip two cards per move; a matching pair stays face up,
anything else flips back after a short delay.

AVAILABLE TOOLS:
- create_session: Create a new game session (optionally pick a preset and pair count)
- list_sessions: List all active sessions
- get_session: Get session details
- game_state: Show the board
- flip_card: Flip one card by id
- start_game: Deal a new game in a session
- reset_game: Deal again with the same pair count
- move_history: View resolved moves
- list_configs: List available presets
- game_instructions: Full rules and strategy

NOTE: Face-down cards never show their face. Remember what you have seen!`),
	)

	c.registerTools()
}

func sessionIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new game session and deal the first game",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "Preset to use, see list_configs (optional, defaults to classic)",
				},
				"pairs_count": map[string]interface{}{
					"type":        "integer",
					"description": "Number of pairs to deal (optional, defaults to the preset's)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active game sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetSession)

	// Game operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_state",
		Description: "Get the current board and game status",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleGameState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "flip_card",
		Description: "Flip a face-down card. The second flip of a move locks the board until the pair resolves.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"card_id": map[string]interface{}{
					"type":        "string",
					"description": "Id of the card to flip, e.g. \"3-a\"",
				},
			},
			Required: []string{"session_id", "card_id"},
		},
	}, c.handleFlipCard)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "start_game",
		Description: "Deal a new game, discarding the current one",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"pairs_count": map[string]interface{}{
					"type":        "integer",
					"description": "Number of pairs (optional, defaults to the preset's)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleStartGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_game",
		Description: "Deal a new game with the current pair count",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleReset)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "move_history",
		Description: "Get the resolved moves of the current game",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"page": map[string]interface{}{
					"type":        "integer",
					"description": "Page number",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Items per page",
				},
				"order": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"asc", "desc"},
					"description": "Sort order (default desc)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleMoveHistory)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available game presets",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get the game rules and a playing strategy",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		if json.NewDecoder(resp.Body).Decode(&errResp) == nil {
			if msg, ok := errResp["error"]; ok {
				return fmt.Errorf("%s", msg)
			}
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func sessionPath(sessionID, suffix string) string {
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body := map[string]interface{}{}
	if configID := request.GetString("config_id", ""); configID != "" {
		body["config_id"] = configID
	}
	if pairs := request.GetInt("pairs_count", 0); pairs > 0 {
		body["pairs_count"] = pairs
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nConfig: %s\n\n%s", session.ID, session.ConfigName, formatGameState(session.GameState))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		status := "unknown"
		if s.GameState != nil {
			status = fmt.Sprintf("%s, %d/%d pairs", s.GameState.Status, s.GameState.MatchedPairs, s.GameState.PairsCount)
		}
		fmt.Fprintf(&b, "- %s (Config: %s, %s, Created: %s)\n",
			s.ID, s.ConfigName, status, s.CreatedAt.Format("15:04:05"))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")

	var state engine.GameState
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatGameState(&state)), nil
}

func (c *Client) handleFlipCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")
	cardID := request.GetString("card_id", "")
	if cardID == "" {
		return mcp.NewToolResultError("card_id is required"), nil
	}

	var result service.FlipResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/flip"), map[string]string{"card_id": cardID}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatFlipResult(cardID, &result)), nil
}

func (c *Client) handleStartGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")
	body := map[string]int{}
	if pairs := request.GetInt("pairs_count", 0); pairs > 0 {
		body["pairs_count"] = pairs
	}

	var state engine.GameState
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/start"), body, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("New game dealt\n\n" + formatGameState(&state)), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")

	var response struct {
		Message string            `json:"message"`
		State   *engine.GameState `json:"state"`
	}
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/reset"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("%s\n\n%s", response.Message, formatGameState(response.State))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleMoveHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")

	params := url.Values{}
	if page := request.GetInt("page", 0); page > 0 {
		params.Set("page", fmt.Sprint(page))
	}
	if limit := request.GetInt("limit", 0); limit > 0 {
		params.Set("limit", fmt.Sprint(limit))
	}
	if order := request.GetString("order", ""); order != "" {
		params.Set("order", order)
	}
	path := sessionPath(sessionID, "/history")
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Configurations:\n\n")
	for _, cfg := range configs {
		limit := "no move limit"
		if cfg.MaxMoves > 0 {
			limit = fmt.Sprintf("max %d moves", cfg.MaxMoves)
		}
		palette := "default faces"
		if cfg.CustomPalette {
			palette = "custom faces"
		}
		fmt.Fprintf(&b, "• %s (config_id: %s)\n  %s\n  Pairs: %d of %d %s, Reveal delay: %dms, %s\n\n",
			cfg.Name, cfg.ConfigID, cfg.Description, cfg.PairsCount, cfg.PaletteSize, palette, cfg.RevealDelayMs, limit)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instructions := `🃏 Memory Game - Complete Instructions

GAME OBJECTIVE:
All cards start face down. Every face appears on exactly two cards. Find all the pairs.

GAME MECHANICS:
• A move is two flips. Flip one card with flip_card, then a second one.
• After the second flip the board is locked for the reveal delay (see list_configs).
• Same face: both cards stay face up as matched.
• Different faces: both flip back face down.
• Flips sent while the board is locked are rejected, not queued.
• Flipping a card that is already face up or matched is rejected and changes nothing.

BOARD LEGEND:
• [??]  face-down card (its face is hidden from you)
• [🐶]  face-up card waiting for its partner
• [🐶✓] matched card
• Card ids look like "3-a"; the id says nothing about the face.

VICTORY CONDITIONS:
- Every pair matched → "🎉 VICTORY!"
- Presets with a move limit end in "💀 GAME OVER" when the limit is reached first.

🤖 STRATEGY FOR AGENTS:
1. Keep a map of card id → face for every card you have seen flip back.
2. Before each move, check the map for two known cards with the same face and flip them.
3. Otherwise flip an unseen card first. If its partner is already in your map, flip the partner.
4. Otherwise flip a second unseen card to learn another face.
5. After a flip is accepted, wait for the resolution (call game_state) before the next move.

SESSION MANAGEMENT:
- Each session has a unique 4-character ID and its own board.
- start_game deals a new board, reset_game deals again with the same size.

Good luck and good memory! 🧠`

	return mcp.NewToolResultText(instructions), nil
}

// Formatting helpers

func formatSessionInfo(session *service.SessionInfo) string {
	return fmt.Sprintf("Session: %s\nConfig: %s\nCreated: %s\nLast Accessed: %s\n\n%s",
		session.ID, session.ConfigName,
		session.CreatedAt.Format(time.RFC3339), session.LastAccessedAt.Format(time.RFC3339),
		formatGameState(session.GameState))
}

func formatGameState(state *engine.GameState) string {
	if state == nil {
		return "No game state available"
	}

	var b strings.Builder
	switch state.Status {
	case engine.StatusWon:
		b.WriteString("🎉 VICTORY!\n")
	case engine.StatusLost:
		b.WriteString("💀 GAME OVER\n")
	}
	fmt.Fprintf(&b, "Status: %s\n", state.Status)
	fmt.Fprintf(&b, "Moves: %d | Matched: %d/%d\n", state.MovesCount, state.MatchedPairs, state.PairsCount)
	if state.Message != "" {
		fmt.Fprintf(&b, "Message: %s\n", state.Message)
	}
	if state.IsBusy {
		b.WriteString("⏳ Resolving pair, flips are ignored until it settles\n")
	}

	if len(state.Deck) > 0 {
		b.WriteString("\nBoard:\n")
		b.WriteString(formatBoard(state.Deck))
	}

	if len(state.FlippedCards) > 0 {
		var selected []string
		for _, card := range state.FlippedCards {
			selected = append(selected, fmt.Sprintf("%s %s", card.ID, card.Face))
		}
		fmt.Fprintf(&b, "\nFace up this move: %s\n", strings.Join(selected, ", "))
	}
	return b.String()
}

// formatBoard lays the deck out in a near-square grid
func formatBoard(deck []engine.Card) string {
	cols := int(math.Ceil(math.Sqrt(float64(len(deck)))))
	var b strings.Builder
	for i, card := range deck {
		fmt.Fprintf(&b, "%-5s %-6s", card.ID, formatCard(card))
		if (i+1)%cols == 0 || i == len(deck)-1 {
			b.WriteString("\n")
		} else {
			b.WriteString(" ")
		}
	}
	return b.String()
}

func formatCard(card engine.Card) string {
	switch {
	case card.IsMatched:
		return "[" + card.Face + "✓]"
	case card.IsFlipped:
		return "[" + card.Face + "]"
	default:
		return "[??]"
	}
}

func formatFlipResult(cardID string, result *service.FlipResult) string {
	var b strings.Builder
	if result.Accepted {
		fmt.Fprintf(&b, "✓ Flipped %s\n", cardID)
	} else {
		fmt.Fprintf(&b, "✗ Flip of %s rejected (%s)\n", cardID, result.Reason)
	}
	if result.Message != "" {
		fmt.Fprintf(&b, "%s\n", result.Message)
	}
	b.WriteString("\n")
	b.WriteString(formatGameState(result.GameState))
	return b.String()
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Move History (page %d/%d, %d total moves):\n\n", history.Page, history.TotalPages, history.TotalMoves)
	if len(history.Moves) == 0 {
		b.WriteString("No moves yet\n")
	}
	for _, move := range history.Moves {
		outcome := "miss"
		if move.Matched {
			outcome = "MATCH"
		}
		fmt.Fprintf(&b, "#%d %s → %s\n", move.MoveNumber, formatPair(move), outcome)
	}
	if history.HasNext {
		b.WriteString("\n(more moves on the next page)\n")
	}
	return b.String()
}

func formatPair(move engine.HistoryEntry) string {
	parts := make([]string, 0, len(move.CardIDs))
	for i, id := range move.CardIDs {
		face := ""
		if i < len(move.Faces) {
			face = " " + move.Faces[i]
		}
		parts = append(parts, id+face)
	}
	return strings.Join(parts, " + ")
}
