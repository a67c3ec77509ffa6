package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quillhq/quill/internal/buildinfo"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSlack_Unconfigured(t *testing.T) {
	s := NewSlack("", testLogger())
	if s.Configured() {
		t.Error("Configured() = true with empty URL")
	}
	if s.Deliver(context.Background(), "hello", nil) {
		t.Error("Deliver reported success without a webhook")
	}
}

func TestSlack_DeliverPostsPayload(t *testing.T) {
	var received map[string]any
	var gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	s := NewSlack(ts.URL, testLogger())
	blocks := ReminderBlocks("r-1", "stand up", time.Now())

	if !s.Deliver(context.Background(), "Reminder: stand up", blocks) {
		t.Fatal("Deliver failed")
	}
	if received["text"] != "Reminder: stand up" {
		t.Errorf("text = %v", received["text"])
	}
	if _, ok := received["blocks"]; !ok {
		t.Error("payload missing blocks")
	}
	if gotUA != buildinfo.UserAgent() {
		t.Errorf("User-Agent = %q, want %q", gotUA, buildinfo.UserAgent())
	}
}

func TestSlack_NonOKIsFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_payload", http.StatusBadRequest)
	}))
	defer ts.Close()

	s := NewSlack(ts.URL, testLogger())
	if s.Deliver(context.Background(), "hello", nil) {
		t.Error("Deliver reported success on HTTP 400")
	}
}

func TestMulti_AnySuccessCounts(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()

	m := Multi{
		NewSlack("", testLogger()),     // unconfigured, fails
		NewSlack(ok.URL, testLogger()), // succeeds
	}
	if !m.Deliver(context.Background(), "hello", nil) {
		t.Error("Multi.Deliver = false with one working channel")
	}

	none := Multi{NewSlack("", testLogger())}
	if none.Deliver(context.Background(), "hello", nil) {
		t.Error("Multi.Deliver = true with no working channels")
	}
}
