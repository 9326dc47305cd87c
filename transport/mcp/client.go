package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
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
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// GetMCPServer returns the embedded MCP server for HTTP mounting.
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Scene Collaboration Hub",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Scene Collaboration Hub - MCP Interface

This is a thin client that proxies all requests to the REST API server.

The hub relays shared 3D scene state (camera orientation, loaded
volumes/meshes, user crosshairs) between WebSocket clients in named
sessions. These tools are read-only: all mutation happens over the
WebSocket protocol and is gated by per-session capability keys.

AVAILABLE TOOLS:
- list_sessions: List all live sessions
- get_session: Get one session's participants, controllers, and scene
- scene_state: Get one session's current camera parameters
- hub_stats: Get session and user counters`),
	)

	c.registerTools()
}

func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all live collaboration sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get one session's participants, controller count, and scene state",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"token": map[string]interface{}{
					"type":        "string",
					"description": "Session token to retrieve",
				},
			},
			Required: []string{"token"},
		},
	}, c.handleGetSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "scene_state",
		Description: "Get one session's current camera parameters (azimuth, elevation, zoom, clip plane)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"token": map[string]interface{}{
					"type":        "string",
					"description": "Session token",
				},
			},
			Required: []string{"token"},
		},
	}, c.handleSceneState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "hub_stats",
		Description: "Get hub-wide session and user counters",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleHubStats)
}

// apiCall performs a GET against the REST API and decodes the JSON body.
func (c *Client) apiCall(path string, result interface{}) error {
	req, err := http.NewRequest("GET", c.baseURL+path, nil)
	if err != nil {
		return err
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

	return json.NewDecoder(resp.Body).Decode(result)
}

// proxyJSON fetches path and returns its body as a pretty-printed tool
// result.
func (c *Client) proxyJSON(path string) (*mcp.CallToolResult, error) {
	var body interface{}
	if err := c.apiCall(path, &body); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.proxyJSON("/api/sessions")
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	token, _ := args["token"].(string)
	if token == "" {
		return mcp.NewToolResultError("token is required"), nil
	}
	return c.proxyJSON("/api/sessions/" + token)
}

func (c *Client) handleSceneState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	token, _ := args["token"].(string)
	if token == "" {
		return mcp.NewToolResultError("token is required"), nil
	}
	return c.proxyJSON("/api/sessions/" + token + "/scene")
}

func (c *Client) handleHubStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.proxyJSON("/api/stats")
}
