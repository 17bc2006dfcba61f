package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chatbotyard/chatbotyard/internal/assistant"
	"github.com/chatbotyard/chatbotyard/internal/client"
	"github.com/chatbotyard/chatbotyard/internal/domain"
	"github.com/chatbotyard/chatbotyard/internal/identity"
	"github.com/chatbotyard/chatbotyard/internal/store"
)

type fakeReplier struct {
	mu   sync.Mutex
	err  error
	last assistant.ReplyRequest
}

func (f *fakeReplier) Reply(_ context.Context, req assistant.ReplyRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = req
	if f.err != nil {
		return "", f.err
	}
	return "You said: " + req.Message, nil
}

func (f *fakeReplier) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeReplier) lastRequest() assistant.ReplyRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type testServer struct {
	*httptest.Server
	repo    *store.SQLiteStore
	replier *fakeReplier
	client  *client.Client
}

func newTestServer(t *testing.T, messagesPerMinute int) *testServer {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	ctx := context.Background()
	for _, p := range []*domain.Project{
		{ID: "p1", Name: "Acme", AssistantID: "asst-1", Configuration: domain.DefaultConfiguration()},
		{ID: "p2", Name: "Untrained", Configuration: domain.DefaultConfiguration()},
	} {
		if err := repo.UpsertProject(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	csrf, err := identity.NewCSRF("test-secret")
	if err != nil {
		t.Fatal(err)
	}
	limiterCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	replier := &fakeReplier{}
	srv := httptest.NewServer(NewRouter(RouterConfig{
		Repo:          repo,
		Replier:       replier,
		CSRF:          csrf,
		Limiter:       NewRateLimiter(limiterCtx, messagesPerMinute, time.Minute),
		IsDevelopment: true,
		ReplyTimeout:  time.Second,
	}))
	t.Cleanup(srv.Close)

	c, err := client.New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	return &testServer{Server: srv, repo: repo, replier: replier, client: c}
}

func wantStatus(t *testing.T, err error, status int) {
	t.Helper()
	var serverErr *domain.ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("err = %v, want ServerError %d", err, status)
	}
	if serverErr.StatusCode != status {
		t.Fatalf("status = %d (%s), want %d", serverErr.StatusCode, serverErr.Message, status)
	}
}

func TestProjectAndConfigurationRoutes(t *testing.T) {
	ts := newTestServer(t, 20)
	ctx := context.Background()

	p, err := ts.client.GetProject(ctx, "p1")
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if p.Name != "Acme" || !p.HasAssistant() {
		t.Errorf("project = %+v", p)
	}

	_, err = ts.client.GetProject(ctx, "missing")
	wantStatus(t, err, http.StatusNotFound)

	saved, err := ts.client.SaveConfiguration(ctx, "p1", domain.Configuration{
		WelcomeMessage:  "  Howdy  ",
		SampleQuestions: []string{"Hours?", " "},
		Appearance: domain.Appearance{
			MainColor:     "#aabbcc",
			LauncherIcon:  domain.LauncherSupport,
			CustomIconURL: "https://ignored.example/icon.png",
		},
	})
	if err != nil {
		t.Fatalf("SaveConfiguration: %v", err)
	}
	if saved.WelcomeMessage != "Howdy" || saved.Appearance.MainColor != "#AABBCC" ||
		len(saved.SampleQuestions) != 1 || saved.Appearance.CustomIconURL != "" {
		t.Errorf("saved = %+v", saved)
	}

	got, err := ts.client.GetConfiguration(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Appearance.LauncherIcon != domain.LauncherSupport {
		t.Errorf("stored icon = %s", got.Appearance.LauncherIcon)
	}

	_, err = ts.client.SaveConfiguration(ctx, "p1", domain.Configuration{
		Appearance: domain.Appearance{MainColor: "blue", LauncherIcon: domain.LauncherChat},
	})
	wantStatus(t, err, http.StatusBadRequest)

	reset, err := ts.client.ResetConfiguration(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if reset.WelcomeMessage != domain.DefaultWelcomeMessage {
		t.Errorf("reset = %+v", reset)
	}
}

func TestChatSessionFlow(t *testing.T) {
	ts := newTestServer(t, 20)
	ctx := context.Background()

	project, err := ts.client.GetProject(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	session, err := ts.client.CreateSession(ctx, project)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if session.Status != domain.SessionActive || session.AssistantID != "asst-1" || session.ThreadID == "" {
		t.Errorf("session = %+v", session)
	}

	reply, err := ts.client.SendMessage(ctx, session.ID, "hello")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if reply.Role != domain.RoleAssistant || reply.Content != "You said: hello" {
		t.Errorf("reply = %+v", reply)
	}
	if last := ts.replier.lastRequest(); last.AssistantID != "asst-1" || last.ThreadID != session.ThreadID {
		t.Errorf("reply request = %+v", last)
	}

	details, err := ts.client.FetchSessionDetails(ctx, session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if details.MessagesCount != 1 || len(details.Messages) != 2 {
		t.Fatalf("details = %+v", details)
	}
	if !details.Messages[1].Timestamp.After(details.Messages[0].Timestamp) {
		t.Error("assistant reply should be timestamped after the user message")
	}

	page, err := ts.client.ListSessions(ctx, "p1", domain.SessionFilter{Status: domain.SessionActive})
	if err != nil {
		t.Fatal(err)
	}
	if page.Pagination.Total != 1 || len(page.Sessions) != 1 || page.Pagination.Limit != domain.DefaultPageLimit {
		t.Errorf("page = %+v", page)
	}

	stats, err := ts.client.SessionStats(ctx, "p1", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalSessions != 1 || stats.TotalMessages != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestCreateSessionWithoutAssistant(t *testing.T) {
	ts := newTestServer(t, 20)

	// A stale client-side copy claims an assistant the server no longer has.
	_, err := ts.client.CreateSession(context.Background(), &domain.Project{ID: "p2", AssistantID: "stale"})
	wantStatus(t, err, http.StatusUnprocessableEntity)
}

func TestSendMessageFailuresStoreNothing(t *testing.T) {
	ts := newTestServer(t, 20)
	ctx := context.Background()
	project, _ := ts.client.GetProject(ctx, "p1")
	session, err := ts.client.CreateSession(ctx, project)
	if err != nil {
		t.Fatal(err)
	}

	ts.replier.fail(errors.New("model exploded"))
	_, err = ts.client.SendMessage(ctx, session.ID, "hi")
	wantStatus(t, err, http.StatusBadGateway)

	ts.replier.fail(assistant.ErrUnavailable)
	_, err = ts.client.SendMessage(ctx, session.ID, "hi")
	wantStatus(t, err, http.StatusServiceUnavailable)

	details, err := ts.client.FetchSessionDetails(ctx, session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(details.Messages) != 0 || details.MessagesCount != 0 {
		t.Errorf("failed sends were stored: %+v", details)
	}

	_, err = ts.client.SendMessage(ctx, "no-such-session", "hi")
	wantStatus(t, err, http.StatusNotFound)
}

func TestSendMessageToAbandonedSession(t *testing.T) {
	ts := newTestServer(t, 20)
	ctx := context.Background()
	project, _ := ts.client.GetProject(ctx, "p1")
	session, err := ts.client.CreateSession(ctx, project)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := ts.repo.AbandonIdleSessions(ctx, -time.Hour); err != nil {
		t.Fatal(err)
	}
	_, err = ts.client.SendMessage(ctx, session.ID, "anyone there?")
	wantStatus(t, err, http.StatusConflict)
}

func TestSendMessageRateLimited(t *testing.T) {
	ts := newTestServer(t, 1)
	ctx := context.Background()
	project, _ := ts.client.GetProject(ctx, "p1")
	session, err := ts.client.CreateSession(ctx, project)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := ts.client.SendMessage(ctx, session.ID, "one"); err != nil {
		t.Fatal(err)
	}
	_, err = ts.client.SendMessage(ctx, session.ID, "two")
	wantStatus(t, err, http.StatusTooManyRequests)
}

func TestMutationsRequireCSRFToken(t *testing.T) {
	ts := newTestServer(t, 20)

	resp, err := http.Post(ts.URL+"/chat-sessions/project/p1", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestListSessionsRejectsBadQuery(t *testing.T) {
	ts := newTestServer(t, 20)

	for _, q := range []string{"status=bogus", "page=0", "startDate=yesterday"} {
		resp, err := http.Get(ts.URL + "/chat-sessions/project/p1?" + q)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, resp.StatusCode)
		}
	}
}

func TestPreviewHTML(t *testing.T) {
	ts := newTestServer(t, 20)

	get := func(path string) string {
		t.Helper()
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: status %d", path, resp.StatusCode)
		}
		body, _ := io.ReadAll(resp.Body)
		return string(body)
	}

	open := get("/projects/p1/preview")
	if !strings.Contains(open, `class="cby-panel"`) || !strings.Contains(open, "How can I assist you today?") {
		t.Errorf("open preview missing panel or welcome:\n%s", open)
	}

	closed := get("/projects/p1/preview?closed=1")
	if !strings.Contains(closed, "cby-launcher") || strings.Contains(closed, "cby-panel") {
		t.Errorf("closed preview should only show the launcher:\n%s", closed)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, 20)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
