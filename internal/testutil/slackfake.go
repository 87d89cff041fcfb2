package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// SlackServer is an in-process stand-in for the Slack Web API covering the
// three methods the bot calls. Every call is recorded for assertions.
type SlackServer struct {
	*httptest.Server

	mu        sync.Mutex
	failAll   bool
	viewOpens []ViewsOpenCall
	ephemeral []PostCall
	messages  []PostCall
}

// ViewsOpenCall is one recorded views.open request.
type ViewsOpenCall struct {
	TriggerID string
	View      json.RawMessage
}

// PostCall is one recorded chat.postEphemeral or chat.postMessage request.
type PostCall struct {
	Channel string
	User    string
	Text    string
}

// NewSlackServer starts a fake Slack API that shuts down with the test.
func NewSlackServer(t *testing.T) *SlackServer {
	t.Helper()

	s := &SlackServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/views.open", s.handleViewsOpen)
	mux.HandleFunc("/chat.postEphemeral", s.handlePostEphemeral)
	mux.HandleFunc("/chat.postMessage", s.handlePostMessage)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// APIURL is the value for slack.OptionAPIURL, trailing slash included.
func (s *SlackServer) APIURL() string {
	return s.URL + "/"
}

// FailAll makes every subsequent API call answer ok:false.
func (s *SlackServer) FailAll() {
	s.mu.Lock()
	s.failAll = true
	s.mu.Unlock()
}

func (s *SlackServer) ViewOpens() []ViewsOpenCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ViewsOpenCall(nil), s.viewOpens...)
}

func (s *SlackServer) Ephemeral() []PostCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PostCall(nil), s.ephemeral...)
}

func (s *SlackServer) Messages() []PostCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PostCall(nil), s.messages...)
}

// views.open is a JSON POST; the chat methods are form posts.

func (s *SlackServer) handleViewsOpen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TriggerID string          `json:"trigger_id"`
		View      json.RawMessage `json:"view"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.viewOpens = append(s.viewOpens, ViewsOpenCall{TriggerID: req.TriggerID, View: req.View})
	failed := s.failAll
	s.mu.Unlock()

	s.respond(w, failed)
}

func (s *SlackServer) handlePostEphemeral(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()

	s.mu.Lock()
	s.ephemeral = append(s.ephemeral, PostCall{
		Channel: r.FormValue("channel"),
		User:    r.FormValue("user"),
		Text:    r.FormValue("text"),
	})
	failed := s.failAll
	s.mu.Unlock()

	s.respond(w, failed)
}

func (s *SlackServer) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()

	s.mu.Lock()
	s.messages = append(s.messages, PostCall{
		Channel: r.FormValue("channel"),
		Text:    r.FormValue("text"),
	})
	failed := s.failAll
	s.mu.Unlock()

	s.respond(w, failed)
}

func (s *SlackServer) respond(w http.ResponseWriter, failed bool) {
	w.Header().Set("Content-Type", "application/json")
	if failed {
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "internal_error"})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"ok": true})
}
