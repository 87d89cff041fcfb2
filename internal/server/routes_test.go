package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/slack-go/slack"

	"github.com/tbracken/groqlet/internal/carrier"
	"github.com/tbracken/groqlet/internal/config"
	"github.com/tbracken/groqlet/internal/delivery"
	"github.com/tbracken/groqlet/internal/frontdoor"
	"github.com/tbracken/groqlet/internal/server"
	"github.com/tbracken/groqlet/internal/signing"
	"github.com/tbracken/groqlet/internal/testutil"
)

const testSigningSecret = "e2e-signing-secret"

type stubCompleter struct {
	answer string
}

func (s *stubCompleter) Complete(ctx context.Context, model, question string) (string, error) {
	return s.answer, nil
}

// wire assembles the same stack main builds: router chain, signature
// verification on the Slack routes, handler, dispatcher against a fake
// Slack API.
func wire(t *testing.T) (*server.Server, *testutil.SlackServer) {
	t.Helper()

	api := testutil.NewSlackServer(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := slack.New("xoxb-test", slack.OptionAPIURL(api.APIURL()))

	dispatcher := delivery.NewDispatcher(client, delivery.ModeEphemeral, logger)
	handler := frontdoor.NewHandler(client, &stubCompleter{answer: "forty-two"}, dispatcher, config.DefaultModels(), logger)

	srv := server.New(0, logger)
	srv.Router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok"}`)
	})
	srv.Router.Group(func(r chi.Router) {
		r.Use(server.VerifySlack(signing.NewVerifier(testSigningSecret)))
		r.Post("/slack/command", handler.HandleCommand)
		r.Post("/slack/interact", handler.HandleInteraction)
	})

	return srv, api
}

func signedForm(t *testing.T, path string, form url.Values) *http.Request {
	t.Helper()
	body := form.Encode()
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(signing.HeaderTimestamp, ts)
	req.Header.Set(signing.HeaderSignature, signing.Sign(testSigningSecret, ts, []byte(body)))
	return req
}

func TestRoutes_CommandOpensModal(t *testing.T) {
	srv, api := wire(t)

	form := url.Values{
		"command":    {"/ask"},
		"trigger_id": {"11.22.e2e"},
		"user_id":    {"U777"},
		"channel_id": {"C123"},
	}
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, signedForm(t, "/slack/command", form))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rec.Body.String())
	}

	opens := api.ViewOpens()
	if len(opens) != 1 {
		t.Fatalf("views.open calls = %d, want 1", len(opens))
	}
	if opens[0].TriggerID != "11.22.e2e" {
		t.Errorf("trigger id = %q", opens[0].TriggerID)
	}
	if !strings.Contains(string(opens[0].View), `"callback_id":"select_model"`) {
		t.Errorf("view JSON missing stage-1 callback:\n%s", opens[0].View)
	}
}

func TestRoutes_QuestionFlowDeliversAnswer(t *testing.T) {
	srv, api := wire(t)

	meta := carrier.State{Model: "meta-llama/llama-4-scout-17b-16e-instruct", ChannelID: "C123"}.Encode()
	payload := fmt.Sprintf(`{
		"type": "view_submission",
		"user": {"id": "U777"},
		"view": {
			"type": "modal",
			"callback_id": "submit_question",
			"private_metadata": %q,
			"state": {"values": {"question_block": {"question_action": {"type": "plain_text_input", "value": "meaning of life?"}}}}
		}
	}`, meta)

	form := url.Values{"payload": {payload}}
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, signedForm(t, "/slack/interact", form))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		ResponseAction string `json:"response_action"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	if resp.ResponseAction != "clear" {
		t.Errorf("response_action = %q, want clear", resp.ResponseAction)
	}

	// Delivery happens in the detached worker; wait for the fake API to see it
	deadline := time.Now().Add(2 * time.Second)
	for {
		if posts := api.Ephemeral(); len(posts) > 0 {
			if posts[0].Channel != "C123" || posts[0].User != "U777" {
				t.Errorf("ephemeral to %s/%s, want C123/U777", posts[0].Channel, posts[0].User)
			}
			if posts[0].Text != "*Answer:*\nforty-two" {
				t.Errorf("text = %q", posts[0].Text)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("no ephemeral delivery observed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRoutes_UnsignedRequestRejected(t *testing.T) {
	srv, api := wire(t)

	form := url.Values{"command": {"/ask"}, "trigger_id": {"1.2.3"}}
	req := httptest.NewRequest("POST", "/slack/command", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for missing headers", rec.Code)
	}
	if opens := api.ViewOpens(); len(opens) != 0 {
		t.Errorf("unsigned request reached Slack: %+v", opens)
	}
}

func TestRoutes_ForgedSignatureRejected(t *testing.T) {
	srv, api := wire(t)

	body := url.Values{"command": {"/ask"}}.Encode()
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req := httptest.NewRequest("POST", "/slack/command", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(signing.HeaderTimestamp, ts)
	req.Header.Set(signing.HeaderSignature, signing.Sign("wrong-secret", ts, []byte(body)))

	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if opens := api.ViewOpens(); len(opens) != 0 {
		t.Errorf("forged request reached Slack: %+v", opens)
	}
}

func TestRoutes_HealthzUnsigned(t *testing.T) {
	srv, _ := wire(t)

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}
