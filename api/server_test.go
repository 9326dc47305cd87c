package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vizsync/vizsync/presence"
	"github.com/vizsync/vizsync/service"
	"github.com/vizsync/vizsync/session"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	sessions := session.NewRegistry()
	users := presence.NewDirectory()

	_, key, _ := sessions.CreateOrJoin("s1", "")
	user, _ := users.Register("anna", nil)
	sessions.AddParticipant("s1", user.ID)
	sessions.AddController("s1", user.ID)
	sessions.UpdateScene("s1", key, session.SceneState{Azimuth: 15, Zoom: 1.5})

	wsStub := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusSwitchingProtocols)
	})
	return NewServer(service.New(sessions, users), wsStub)
}

func get(t *testing.T, srv *Server, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("Bad JSON response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, body
}

func TestListSessions(t *testing.T) {
	srv := newTestServer(t)

	rec, body := get(t, srv, "/api/sessions")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if body["count"] != 1.0 {
		t.Errorf("Expected count 1, got %v", body["count"])
	}

	sessions, _ := body["sessions"].([]any)
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(sessions))
	}
	first, _ := sessions[0].(map[string]any)
	if first["token"] != "s1" {
		t.Errorf("Unexpected session: %v", first)
	}
	if _, leaked := first["key"]; leaked {
		t.Error("Session listing leaked a capability key")
	}
}

func TestGetSession(t *testing.T) {
	srv := newTestServer(t)

	rec, body := get(t, srv, "/api/sessions/s1")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if body["token"] != "s1" || body["controllers"] != 1.0 {
		t.Errorf("Unexpected body: %v", body)
	}
	users, _ := body["users"].([]any)
	if len(users) != 1 {
		t.Errorf("Expected 1 user, got %v", body["users"])
	}

	rec, body = get(t, srv, "/api/sessions/missing")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
	if body["error"] == "" {
		t.Error("Expected an error message")
	}
}

func TestGetScene(t *testing.T) {
	srv := newTestServer(t)

	rec, body := get(t, srv, "/api/sessions/s1/scene")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if body["azimuth"] != 15.0 || body["zoom"] != 1.5 {
		t.Errorf("Unexpected scene: %v", body)
	}
}

func TestStatsAndHealth(t *testing.T) {
	srv := newTestServer(t)

	rec, body := get(t, srv, "/api/stats")
	if rec.Code != http.StatusOK || body["sessions"] != 1.0 || body["users"] != 1.0 {
		t.Errorf("Unexpected stats response: %d %v", rec.Code, body)
	}

	rec, body = get(t, srv, "/healthz")
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("Unexpected health response: %d %v", rec.Code, body)
	}
}
