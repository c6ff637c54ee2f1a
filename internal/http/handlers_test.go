package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/facility-booking/internal/application"
	"github.com/example/facility-booking/internal/conversation"
	"github.com/example/facility-booking/internal/testfixtures"
)

type stubConversation struct {
	replies []application.Message
	err     error

	gotUser string
	gotText string
}

func (s *stubConversation) Handle(_ context.Context, userID, input string) ([]application.Message, error) {
	s.gotUser = userID
	s.gotText = input
	return s.replies, s.err
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func postUpdate(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/updates", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func decodeUpdate(t *testing.T, recorder *httptest.ResponseRecorder) updateResponse {
	t.Helper()
	var resp updateResponse
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestUpdateHandler(t *testing.T) {
	t.Parallel()

	logger := testfixtures.DiscardLogger()

	t.Run("returns replies with options", func(t *testing.T) {
		t.Parallel()
		conv := &stubConversation{replies: []application.Message{
			application.Text("hello"),
			{Text: "pick one", Options: []application.Option{{Label: "Room A", Value: "0"}}},
		}}
		router := NewRouter(RouterConfig{Updates: NewUpdateHandler(conv, logger)})

		recorder := postUpdate(t, router, `{"user_id":" 42 ","text":"/book"}`)
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if conv.gotUser != "42" || conv.gotText != "/book" {
			t.Fatalf("unexpected dispatch: user=%q text=%q", conv.gotUser, conv.gotText)
		}
		resp := decodeUpdate(t, recorder)
		if len(resp.Messages) != 2 {
			t.Fatalf("expected 2 messages, got %+v", resp.Messages)
		}
		if resp.Messages[0].Text != "hello" || resp.Messages[0].Options != nil {
			t.Fatalf("unexpected first message: %+v", resp.Messages[0])
		}
		if got := resp.Messages[1].Options; len(got) != 1 || got[0].Label != "Room A" || got[0].Value != "0" {
			t.Fatalf("unexpected options: %+v", got)
		}
	})

	t.Run("empty reply list encodes as an array", func(t *testing.T) {
		t.Parallel()
		router := NewRouter(RouterConfig{Updates: NewUpdateHandler(&stubConversation{}, logger)})

		recorder := postUpdate(t, router, `{"user_id":"42","text":"hi"}`)
		if !strings.Contains(recorder.Body.String(), `"messages":[]`) {
			t.Fatalf("expected empty array, got %s", recorder.Body.String())
		}
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		t.Parallel()
		router := NewRouter(RouterConfig{Updates: NewUpdateHandler(&stubConversation{}, logger)})

		recorder := postUpdate(t, router, `{"user_id":`)
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", recorder.Code)
		}
	})

	t.Run("missing user is a bad request", func(t *testing.T) {
		t.Parallel()
		conv := &stubConversation{err: conversation.ErrMissingUser}
		router := NewRouter(RouterConfig{Updates: NewUpdateHandler(conv, logger)})

		recorder := postUpdate(t, router, `{"user_id":"","text":"/start"}`)
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", recorder.Code)
		}
	})

	t.Run("unexpected failure hides details", func(t *testing.T) {
		t.Parallel()
		conv := &stubConversation{err: errors.New("boom")}
		router := NewRouter(RouterConfig{Updates: NewUpdateHandler(conv, logger)})

		recorder := postUpdate(t, router, `{"user_id":"42","text":"/start"}`)
		if recorder.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", recorder.Code)
		}
		if strings.Contains(recorder.Body.String(), "boom") {
			t.Fatalf("internal error leaked: %s", recorder.Body.String())
		}
	})

	t.Run("only POST is allowed", func(t *testing.T) {
		t.Parallel()
		router := NewRouter(RouterConfig{Updates: NewUpdateHandler(&stubConversation{}, logger)})

		req := httptest.NewRequest(http.MethodGet, "/updates", nil)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)
		if recorder.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", recorder.Code)
		}
		if allow := recorder.Header().Get("Allow"); allow != http.MethodPost {
			t.Fatalf("unexpected Allow header %q", allow)
		}
	})
}

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		pinger Pinger
		status int
		body   string
	}{
		{"no store", nil, http.StatusOK, "ok"},
		{"store reachable", stubPinger{}, http.StatusOK, "ok"},
		{"store down", stubPinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable, "unavailable"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			router := NewRouter(RouterConfig{Health: NewHealthHandler(tc.pinger, testfixtures.DiscardLogger())})

			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			recorder := httptest.NewRecorder()
			router.ServeHTTP(recorder, req)

			if recorder.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, recorder.Code)
			}
			var resp healthResponse
			if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tc.body {
				t.Fatalf("expected status %q, got %q", tc.body, resp.Status)
			}
		})
	}
}

func TestUpdatesDriveConversation(t *testing.T) {
	t.Parallel()

	env := testfixtures.NewEnv(t)
	env.Member(t, "100", "LTA Tan", "40", false)
	dispatcher := conversation.NewDispatcher(env.Services, conversation.Config{
		Now:    env.Clock.NowFunc(),
		NewID:  env.IDs.NextFunc(),
		Logger: testfixtures.DiscardLogger(),
	})
	router := NewRouter(RouterConfig{
		Updates:    NewUpdateHandler(dispatcher, testfixtures.DiscardLogger()),
		Middleware: []func(http.Handler) http.Handler{RequestLogger(testfixtures.DiscardLogger())},
	})

	resp := decodeUpdate(t, postUpdate(t, router, `{"user_id":"100","text":"/book"}`))
	if len(resp.Messages) != 1 {
		t.Fatalf("expected one prompt, got %+v", resp.Messages)
	}
	if len(resp.Messages[0].Options) != len(env.Services.Facilities) {
		t.Fatalf("expected facility options, got %+v", resp.Messages[0])
	}

	resp = decodeUpdate(t, postUpdate(t, router, `{"user_id":"100","text":"/cancel"}`))
	if len(resp.Messages) != 1 || resp.Messages[0].Text != "Action cancelled" {
		t.Fatalf("unexpected cancel reply: %+v", resp.Messages)
	}
}
