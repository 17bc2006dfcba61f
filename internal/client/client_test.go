package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chatbotyard/chatbotyard/internal/domain"
)

type fakeBackend struct {
	requests  atomic.Int32
	csrfCalls atomic.Int32
	token     string
	mux       *http.ServeMux
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	fb := &fakeBackend{token: "tok-1", mux: http.NewServeMux()}
	fb.mux.HandleFunc("GET /csrf-token", func(w http.ResponseWriter, r *http.Request) {
		fb.csrfCalls.Add(1)
		writeJSON(w, http.StatusOK, map[string]string{"csrfToken": fb.token})
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fb.requests.Add(1)
		if r.Method != http.MethodGet && r.URL.Path != "/csrf-token" && r.Header.Get(CSRFHeaderName) != fb.token {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid csrf token"})
			return
		}
		fb.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return fb, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestCreateSessionWithoutAssistantMakesNoRequest(t *testing.T) {
	fb, srv := newFakeBackend(t)
	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.CreateSession(context.Background(), &domain.Project{ID: "p1"})
	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if !errors.Is(err, domain.ErrNoAssistant) {
		t.Fatalf("expected ErrNoAssistant, got %v", err)
	}
	if n := fb.requests.Load(); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
}

func TestCreateSessionSendsCSRFToken(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.mux.HandleFunc("POST /chat-sessions/project/p1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, domain.Session{ID: "s1", ProjectID: "p1", AssistantID: "asst", Status: domain.SessionActive})
	})
	c, _ := New(srv.URL)

	s, err := c.CreateSession(context.Background(), &domain.Project{ID: "p1", AssistantID: "asst"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if s.ID != "s1" || s.Messages == nil || len(s.Messages) != 0 {
		t.Fatalf("unexpected session: %+v", s)
	}

	// The token is cached for later mutations.
	if _, err := c.CreateSession(context.Background(), &domain.Project{ID: "p1", AssistantID: "asst"}); err != nil {
		t.Fatalf("second CreateSession: %v", err)
	}
	if n := fb.csrfCalls.Load(); n != 1 {
		t.Fatalf("expected one csrf fetch, got %d", n)
	}
}

func TestSendMessageReturnsAssistantResponse(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.mux.HandleFunc("POST /chat-sessions/s1/messages", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message != "Hello" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad body"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"assistantResponse": domain.Message{MessageID: "m2", Role: domain.RoleAssistant, Content: "Hi there", Timestamp: time.Now()},
		})
	})
	c, _ := New(srv.URL)

	reply, err := c.SendMessage(context.Background(), "s1", "Hello")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if reply.Content != "Hi there" || reply.Role != domain.RoleAssistant {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

func TestServerErrorCarriesStatusAndMessage(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.mux.HandleFunc("POST /chat-sessions/s1/messages", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "assistant unavailable"})
	})
	c, _ := New(srv.URL)

	_, err := c.SendMessage(context.Background(), "s1", "Hello")
	var serverErr *domain.ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("expected ServerError, got %v", err)
	}
	if serverErr.StatusCode != http.StatusBadGateway || serverErr.Message != "assistant unavailable" {
		t.Fatalf("unexpected server error: %+v", serverErr)
	}
}

func TestForbiddenDropsCachedToken(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.mux.HandleFunc("PUT /projects/p1/configuration", func(w http.ResponseWriter, r *http.Request) {
		var cfg domain.Configuration
		_ = json.NewDecoder(r.Body).Decode(&cfg)
		writeJSON(w, http.StatusOK, cfg.Normalize())
	})
	c, _ := New(srv.URL)

	if _, err := c.SaveConfiguration(context.Background(), "p1", domain.DefaultConfiguration()); err != nil {
		t.Fatalf("first save: %v", err)
	}

	fb.token = "tok-2"
	if _, err := c.SaveConfiguration(context.Background(), "p1", domain.DefaultConfiguration()); err == nil {
		t.Fatal("expected forbidden with stale token")
	}
	if _, err := c.SaveConfiguration(context.Background(), "p1", domain.DefaultConfiguration()); err != nil {
		t.Fatalf("save after token refresh: %v", err)
	}
	if n := fb.csrfCalls.Load(); n != 2 {
		t.Fatalf("expected two csrf fetches, got %d", n)
	}
}

func TestNetworkErrorWhenServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, _ := New(url, WithTimeout(time.Second))
	_, err := c.GetConfiguration(context.Background(), "p1")
	var netErr *domain.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestTimeoutSurfacesAsNetworkError(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	c, _ := New(srv.URL, WithTimeout(50*time.Millisecond))
	_, err := c.FetchSessionDetails(context.Background(), "s1")
	var netErr *domain.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError on timeout, got %v", err)
	}
}

func TestListSessionsEncodesFilter(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.mux.HandleFunc("GET /chat-sessions/project/p1", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("status") != "completed" || q.Get("page") != "2" || q.Get("limit") != "5" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unexpected query " + r.URL.RawQuery})
			return
		}
		writeJSON(w, http.StatusOK, SessionPage{
			Sessions:   []domain.Session{{ID: "s9"}},
			Pagination: domain.Pagination{Page: 2, Limit: 5, Total: 6, Pages: 2},
		})
	})
	c, _ := New(srv.URL)

	page, err := c.ListSessions(context.Background(), "p1", domain.SessionFilter{Status: domain.SessionCompleted, Page: 2, Limit: 5})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(page.Sessions) != 1 || page.Pagination.Pages != 2 {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestWithHTTPClientLeavesCallerClientUntouched(t *testing.T) {
	shared := &http.Client{Timeout: time.Second}

	c, err := New("http://example.test", WithHTTPClient(shared), WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if shared.Jar != nil {
		t.Error("cookie jar was attached to the caller's client")
	}
	if shared.Timeout != time.Second {
		t.Errorf("caller timeout = %v, want 1s", shared.Timeout)
	}
	if c.http == shared {
		t.Fatal("client shares the caller's *http.Client")
	}
	if c.http.Jar == nil || c.http.Timeout != 50*time.Millisecond {
		t.Errorf("client http = jar %v, timeout %v", c.http.Jar, c.http.Timeout)
	}
}
