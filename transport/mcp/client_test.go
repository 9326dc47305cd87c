package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080"
	client := NewClient(baseURL)

	if client.baseURL != baseURL {
		t.Errorf("Expected baseURL %s, got %s", baseURL, client.baseURL)
	}
	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}
	if client.mcpServer == nil {
		t.Error("Expected MCP server to be initialized")
	}
	if client.GetMCPServer() == nil {
		t.Error("Expected GetMCPServer to return the embedded server")
	}
}

func TestClient_apiCall(t *testing.T) {
	expected := map[string]interface{}{
		"sessions": 2.0,
		"users":    5.0,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(expected)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	var response map[string]interface{}
	if err := client.apiCall("/api/stats", &response); err != nil {
		t.Fatalf("apiCall failed: %v", err)
	}
	if response["sessions"] != expected["sessions"] {
		t.Errorf("Expected sessions %v, got %v", expected["sessions"], response["sessions"])
	}
}

func TestClient_apiCall_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "session not found"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	var response map[string]interface{}
	err := client.apiCall("/api/sessions/missing", &response)
	if err == nil {
		t.Fatal("Expected error for HTTP 404 response")
	}
	if err.Error() != "session not found" {
		t.Errorf("Expected the API's error message, got %v", err)
	}
}

func TestClient_HandleGetSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sessions/s1" {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "session not found"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"token":       "s1",
			"controllers": 1,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	t.Run("existing session", func(t *testing.T) {
		var req mcp.CallToolRequest
		req.Params.Arguments = map[string]interface{}{"token": "s1"}

		result, err := client.handleGetSession(context.Background(), req)
		if err != nil {
			t.Fatalf("Handler returned error: %v", err)
		}
		if result.IsError {
			t.Fatalf("Expected success, got error result: %+v", result)
		}
		text, ok := result.Content[0].(mcp.TextContent)
		if !ok {
			t.Fatalf("Expected text content, got %T", result.Content[0])
		}
		if !strings.Contains(text.Text, `"token": "s1"`) {
			t.Errorf("Unexpected tool output: %s", text.Text)
		}
	})

	t.Run("missing token argument", func(t *testing.T) {
		var req mcp.CallToolRequest
		req.Params.Arguments = map[string]interface{}{}

		result, err := client.handleGetSession(context.Background(), req)
		if err != nil {
			t.Fatalf("Handler returned error: %v", err)
		}
		if !result.IsError {
			t.Error("Expected an error result without a token")
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		var req mcp.CallToolRequest
		req.Params.Arguments = map[string]interface{}{"token": "missing"}

		result, err := client.handleGetSession(context.Background(), req)
		if err != nil {
			t.Fatalf("Handler returned error: %v", err)
		}
		if !result.IsError {
			t.Error("Expected an error result for an unknown session")
		}
	})
}

func TestClient_HandleHubStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]int{"sessions": 3, "users": 7})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	result, err := client.handleHubStats(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("Handler returned error: %v", err)
	}
	text := result.Content[0].(mcp.TextContent)
	if !strings.Contains(text.Text, `"sessions": 3`) {
		t.Errorf("Unexpected tool output: %s", text.Text)
	}
}
