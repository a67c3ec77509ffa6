package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/quillhq/quill/internal/agent"
	"github.com/quillhq/quill/internal/config"
	"github.com/quillhq/quill/internal/events"
	"github.com/quillhq/quill/internal/memory"
	"github.com/quillhq/quill/internal/reminder"
	"github.com/quillhq/quill/internal/tools"
)

type stubLLM struct {
	reply string
}

func (s *stubLLM) Generate(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	return s.reply, nil
}

func newTestServer(t *testing.T) (*Server, *memory.Store, *reminder.Service) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()

	store, err := memory.NewStore(filepath.Join(dir, "api_test.db"))
	if err != nil {
		t.Fatalf("memory.NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	remStore, err := reminder.NewStore(filepath.Join(dir, "api_test.db"), logger)
	if err != nil {
		t.Fatalf("reminder.NewStore: %v", err)
	}
	t.Cleanup(func() { remStore.Close() })

	reminders := reminder.NewService(remStore, nil, nil, logger)
	t.Cleanup(reminders.Stop)

	client := &stubLLM{reply: `{"action": "chat", "response": "hello from the agent"}`}
	registry := tools.NewRegistry()
	bus := events.New()
	loop := agent.NewLoop(logger, store, client, registry, bus, config.AgentConfig{})

	return NewServer(logger, loop, store, registry, reminders, bus, client), store, reminders
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	out := decode(t, rec)
	if out["status"] != "ok" {
		t.Errorf("status field = %v", out["status"])
	}
}

func TestAgentRun(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, "POST", "/agent/run", map[string]any{
		"session_id": "s1",
		"prompt":     "hi",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	out := decode(t, rec)
	if out["response"] != "hello from the agent" {
		t.Errorf("response = %v", out["response"])
	}
}

func TestAgentRun_EmptyPrompt(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, "POST", "/agent/run", map[string]any{"prompt": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSessions_CRUD(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, "POST", "/sessions", map[string]any{"name": "Weekly review"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	created := decode(t, rec)
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("created session has no id: %v", created)
	}

	rec = doJSON(t, srv, "GET", "/sessions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	sessions, _ := decode(t, rec)["sessions"].([]any)
	if len(sessions) != 1 {
		t.Errorf("sessions = %v", sessions)
	}

	rec = doJSON(t, srv, "PATCH", "/sessions/"+id, map[string]any{"name": "Renamed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("rename status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, "DELETE", "/sessions/"+id, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = doJSON(t, srv, "DELETE", "/sessions/"+id, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestHistory(t *testing.T) {
	srv, store, _ := newTestServer(t)

	if err := store.AddMessage("s1", "user", "hello"); err != nil {
		t.Fatal(err)
	}
	if err := store.AddMessage("s1", "assistant", "hi"); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, srv, "GET", "/sessions/s1/history?limit=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	messages, _ := decode(t, rec)["messages"].([]any)
	if len(messages) != 2 {
		t.Errorf("messages = %v", messages)
	}

	rec = doJSON(t, srv, "GET", "/sessions/s1/history?limit=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}

func TestNameChat(t *testing.T) {
	srv, store, _ := newTestServer(t)

	sess, err := store.CreateSession("", "New Chat")
	if err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, srv, "POST", "/name-chat", map[string]any{
		"session_id": sess.ID,
		"message":    "help me plan my week",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	// The stub returns a JSON blob; whatever the model says becomes the
	// name after trimming.
	got, err := store.GetSession(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name == "New Chat" {
		t.Error("session was not renamed")
	}
}

func TestListReminders(t *testing.T) {
	srv, _, reminders := newTestServer(t)

	if _, err := reminders.Create("dentist", time.Now().Add(time.Hour), reminder.RecurrenceNone); err != nil {
		t.Fatalf("Create: %v", err)
	}

	rec := doJSON(t, srv, "GET", "/reminders", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	list, _ := decode(t, rec)["reminders"].([]any)
	if len(list) != 1 {
		t.Errorf("reminders = %v", list)
	}
}

func TestTools_Empty(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, "GET", "/tools", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
