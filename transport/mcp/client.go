package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gridmatch/gridmatch/game/records"
	"github.com/gridmatch/gridmatch/game/service"
)

// Client is a thin MCP client that proxies to the REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API.
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools.
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Gridmatch Server",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Gridmatch - MCP Interface

This is a thin client that proxies all requests to the REST API server of the
authoritative tic-tac-toe match service.

AVAILABLE TOOLS:
- health: Check server health
- create_session: Create a new open session
- find_session: Find (or create) an open session for a mode
- list_sessions: List all known sessions with their labels
- player_record: Get a player's stored win/loss/draw record and rating
- leaderboard: Ranked players by rating

Gameplay itself happens over the WebSocket endpoint (/ws); these tools cover
the directory and stats surface only.`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools.
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "health",
		Description: "Check server health and version",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleHealth)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new open game session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Game mode label (optional, defaults to classic)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "find_session",
		Description: "Find an open session for a mode, creating one when none exists",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Game mode label (optional, defaults to classic)",
				},
			},
		},
	}, c.handleFindSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all known game sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "player_record",
		Description: "Get a player's stored statistics",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"player_id": map[string]interface{}{
					"type":        "string",
					"description": "Player identifier",
				},
			},
			Required: []string{"player_id"},
		},
	}, c.handlePlayerRecord)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "leaderboard",
		Description: "Get the leaderboard ranked by rating",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of entries (optional)",
				},
			},
		},
	}, c.handleLeaderboard)
}

// GetMCPServer exposes the underlying MCP server for mounting.
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, url, reqBody)
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
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Tool handlers

func (c *Client) handleHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var health map[string]interface{}
	if err := c.apiCall("GET", "/healthz", nil, &health); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Status: %v (version %v)", health["status"], health["version"])), nil
}

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	mode, _ := args["mode"].(string)

	body := map[string]string{}
	if mode != "" {
		body["mode"] = mode
	}

	var session service.SessionInfo
	if err := c.apiCall("POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nMode: %s\n", session.SessionID, session.Label.Mode)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleFindSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	mode, _ := args["mode"].(string)

	body := map[string]string{}
	if mode != "" {
		body["mode"] = mode
	}

	var found service.FindResult
	if err := c.apiCall("POST", "/api/sessions/find", body, &found); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	verb := "Found"
	if found.Created {
		verb = "Created"
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s session: %s", verb, found.SessionID)), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall("GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Known Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		result += fmt.Sprintf("- %s (mode: %s, open: %t, players: %d)\n",
			s.SessionID, s.Label.Mode, s.Label.Open, s.Players)
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handlePlayerRecord(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	playerID, _ := args["player_id"].(string)
	if playerID == "" {
		return mcp.NewToolResultError("player_id is required"), nil
	}

	var response struct {
		PlayerID string         `json:"player_id"`
		Record   records.Record `json:"record"`
	}
	if err := c.apiCall("GET", "/api/records/"+playerID, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	r := response.Record
	result := fmt.Sprintf("Record for %s:\nW/L/D: %d/%d/%d (%d games)\nRating: %d\nBest streak: %d\n",
		playerID, r.Wins, r.Losses, r.Draws, r.TotalGames, r.Rating, r.WinStreak)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleLeaderboard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	path := "/api/leaderboard"
	if limit, ok := args["limit"].(float64); ok && limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, int(limit))
	}

	var response struct {
		Count       int             `json:"count"`
		Leaderboard []records.Entry `json:"leaderboard"`
	}
	if err := c.apiCall("GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Leaderboard (%d players):\n\n", response.Count)
	for _, e := range response.Leaderboard {
		result += fmt.Sprintf("%d. %s - rating %d (W/L/D %d/%d/%d)\n",
			e.Rank, e.Username, e.Rating, e.Wins, e.Losses, e.Draws)
	}

	return mcp.NewToolResultText(result), nil
}
