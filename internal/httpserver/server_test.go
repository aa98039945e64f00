package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/MrSnakeDoc/dash/internal/auth"
	"github.com/MrSnakeDoc/dash/internal/composer"
	"github.com/MrSnakeDoc/dash/internal/connector"
	"github.com/MrSnakeDoc/dash/internal/connector/httpx"
	"github.com/MrSnakeDoc/dash/internal/connector/mail"
	"github.com/MrSnakeDoc/dash/internal/connector/notes"
	"github.com/MrSnakeDoc/dash/internal/domain"
	"github.com/MrSnakeDoc/dash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/dash/internal/logger"
	"github.com/MrSnakeDoc/dash/internal/scheduler"
	"github.com/MrSnakeDoc/dash/internal/sources/layout"
	"github.com/MrSnakeDoc/dash/internal/store/memory"
)

// ─────────────────────────────────────────────────────────────────
// Fake connectors
// ─────────────────────────────────────────────────────────────────

type fakeBoard struct {
	boards     []domain.Board
	lists      map[string][]domain.List
	cards      []domain.TaskCard
	dueDays    int
	createdOn  []string
	failCreate bool
	pingErr    error
}

func (f *fakeBoard) ServiceType() domain.ServiceType { return domain.ServiceTaskBoard }
func (f *fakeBoard) Ping(context.Context) error      { return f.pingErr }

func (f *fakeBoard) ListBoards(context.Context) []domain.Board {
	if f.boards == nil {
		return []domain.Board{}
	}
	return f.boards
}

func (f *fakeBoard) ListLists(_ context.Context, boardID string) []domain.List {
	return f.lists[boardID]
}

func (f *fakeBoard) ListCardsOnList(_ context.Context, listID string) []domain.TaskCard {
	out := []domain.TaskCard{}
	for _, c := range f.cards {
		if c.ListID == listID {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeBoard) ListCardsDueWithin(_ context.Context, days int) []domain.TaskCard {
	f.dueDays = days
	return f.cards
}

func (f *fakeBoard) GetCard(_ context.Context, id string) (*domain.TaskCard, error) {
	for _, c := range f.cards {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, httpx.NewAPIError("task-board", http.StatusNotFound, []byte("card not found"))
}

func (f *fakeBoard) CreateCard(_ context.Context, listID string, in domain.CardInput) (*domain.TaskCard, bool) {
	if f.failCreate {
		return nil, false
	}
	f.createdOn = append(f.createdOn, listID)
	return &domain.TaskCard{
		ID:          "new-card",
		Title:       in.Name,
		Description: in.Description,
		Due:         in.Due,
		ListID:      listID,
		Labels:      []domain.Label{},
		Assignees:   []string{},
	}, true
}

type fakeNotes struct {
	pages      []domain.NotesPage
	contentErr error
	created    *domain.NotesPage
	lastLimit  int
}

func (f *fakeNotes) ServiceType() domain.ServiceType { return domain.ServiceNotes }
func (f *fakeNotes) Ping(context.Context) error      { return nil }

func (f *fakeNotes) ListRecentPages(_ context.Context, limit int) []domain.NotesPage {
	f.lastLimit = limit
	if limit < len(f.pages) {
		return f.pages[:limit]
	}
	return f.pages
}

func (f *fakeNotes) SearchPages(_ context.Context, query string) []domain.NotesPage {
	out := []domain.NotesPage{}
	for _, p := range f.pages {
		if strings.Contains(strings.ToLower(p.Title), strings.ToLower(query)) {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeNotes) CreatePage(_ context.Context, title, parentID string) (*domain.NotesPage, error) {
	if parentID == "" {
		return nil, &domain.MissingParameterError{Name: "parentId"}
	}
	return f.created, nil
}

func (f *fakeNotes) GetPageContent(_ context.Context, id string) (*domain.PageContent, error) {
	if f.contentErr != nil {
		return nil, f.contentErr
	}
	return &domain.PageContent{Page: map[string]any{"id": id}, Blocks: []domain.Block{}}, nil
}

type fakeMail struct {
	messages  []domain.MailMessage
	lastQuery string
	lastLimit int
}

func (f *fakeMail) ServiceType() domain.ServiceType { return domain.ServiceMail }
func (f *fakeMail) Ping(context.Context) error      { return nil }

func (f *fakeMail) ListRecent(_ context.Context, limit int) []domain.MailMessage {
	f.lastLimit = limit
	if limit < len(f.messages) {
		return f.messages[:limit]
	}
	return f.messages
}

func (f *fakeMail) ListUnread(_ context.Context, _ int) []domain.MailMessage {
	out := []domain.MailMessage{}
	for _, m := range f.messages {
		if m.Unread() {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeMail) Search(_ context.Context, query string, _ int) []domain.MailMessage {
	f.lastQuery = query
	return f.messages
}

func (f *fakeMail) GetMessage(_ context.Context, id string) (*domain.MailMessage, error) {
	for _, m := range f.messages {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, httpx.NewAPIError("mail", http.StatusNotFound, nil)
}

func (f *fakeMail) CreateTaskFromMessage(ctx context.Context, id string, board composer.CardCreator, listID string) (*domain.TaskCard, bool) {
	return composer.New(f, nil, time.UTC, logger.New("error", false)).CreateTaskFromMessage(ctx, id, board, listID)
}

// ─────────────────────────────────────────────────────────────────
// Harness
// ─────────────────────────────────────────────────────────────────

type testEnv struct {
	handler http.Handler
	repo    *memory.Store
	board   *fakeBoard
	notes   *fakeNotes
	mail    *fakeMail
	tokens  map[domain.ServiceType]string
}

func newTestEnv(t *testing.T, tweak func(*deps.Deps)) *testEnv {
	t.Helper()
	log := logger.New("error", false)

	catalog, err := layout.Load("")
	if err != nil {
		t.Fatalf("layout.Load() error = %v", err)
	}

	e := &testEnv{
		repo:   memory.New(),
		board:  &fakeBoard{lists: map[string][]domain.List{}},
		notes:  &fakeNotes{},
		mail:   &fakeMail{},
		tokens: map[domain.ServiceType]string{},
	}

	builder := func(serviceType, token string) (connector.Connector, error) {
		st, ok := domain.ParseServiceType(serviceType)
		if !ok {
			return nil, &connector.UnsupportedServiceTypeError{Tag: serviceType}
		}
		e.tokens[st] = token
		switch st {
		case domain.ServiceTaskBoard:
			return e.board, nil
		case domain.ServiceNotes:
			return e.notes, nil
		default:
			return e.mail, nil
		}
	}

	d := deps.Deps{
		Logger:     log,
		StartTime:  time.Now(),
		Version:    "test",
		RateBurst:  1000,
		RatePerMin: 1000,
		Store:      e.repo,
		Auth:       auth.NewManager(e.repo, catalog, time.Hour, log),
		Connectors: builder,
		Catalog:    catalog,
		Sweeper:    scheduler.NewCredentialSweeper(e.repo, log, time.Hour),
		Upstreams:  map[string]bool{"trello_api_key": false},
	}
	if tweak != nil {
		tweak(&d)
	}

	e.handler = NewHandler(d)
	return e
}

func (e *testEnv) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) register(t *testing.T, email string, tokens map[string]string) *http.Cookie {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/register", map[string]any{
		"email":    email,
		"password": "password123",
		"tokens":   tokens,
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body = %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	t.Fatal("register did not set a session cookie")
	return nil
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

// ─────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────

func TestHealthEndpoints(t *testing.T) {
	e := newTestEnv(t, nil)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/readyz", http.StatusOK},
		{http.MethodGet, "/infra", http.StatusOK},
		{http.MethodPost, "/sweep", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if rec := e.do(t, tt.method, tt.path, nil, nil); rec.Code != tt.want {
				t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
			}
		})
	}

	health := decode[map[string]any](t, e.do(t, http.MethodGet, "/healthz", nil, nil))
	if health["status"] != "ok" || health["store"] != "memory" {
		t.Errorf("healthz = %v", health)
	}

	infra := decode[map[string]any](t, e.do(t, http.MethodGet, "/infra", nil, nil))
	if infra["mode"] != "operational" {
		t.Errorf("infra mode = %v", infra["mode"])
	}
}

func TestHealthEndpointsHonorCIDRs(t *testing.T) {
	e := newTestEnv(t, func(d *deps.Deps) { d.AllowedCIDRS = []string{"10.0.0.0/8"} })

	// httptest requests come from 192.0.2.1.
	if rec := e.do(t, http.MethodGet, "/healthz", nil, nil); rec.Code != http.StatusForbidden {
		t.Errorf("GET /healthz = %d, want 403", rec.Code)
	}
}

func TestAPIRequiresSession(t *testing.T) {
	e := newTestEnv(t, nil)

	for _, path := range []string{"/api/auth/me", "/api/widgets", "/api/integrations", "/api/tasks/boards", "/api/notes/recent", "/api/mail/unread"} {
		t.Run(path, func(t *testing.T) {
			rec := e.do(t, http.MethodGet, path, nil, nil)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("GET %s = %d, want 401", path, rec.Code)
			}
		})
	}

	bogus := &http.Cookie{Name: auth.CookieName, Value: "not-a-session"}
	if rec := e.do(t, http.MethodGet, "/api/widgets", nil, bogus); rec.Code != http.StatusUnauthorized {
		t.Errorf("bogus session = %d, want 401", rec.Code)
	}
}

func TestAuthFlow(t *testing.T) {
	e := newTestEnv(t, nil)
	cookie := e.register(t, "flow@example.com", nil)

	me := decode[map[string]map[string]any](t, e.do(t, http.MethodGet, "/api/auth/me", nil, cookie))
	if me["user"]["email"] != "flow@example.com" {
		t.Errorf("me = %v", me)
	}
	if _, leaked := me["user"]["passwordHash"]; leaked {
		t.Error("password hash must not be serialized")
	}

	if rec := e.do(t, http.MethodPost, "/api/auth/register", map[string]any{"email": "flow@example.com", "password": "password123"}, nil); rec.Code != http.StatusConflict {
		t.Errorf("duplicate register = %d, want 409", rec.Code)
	}
	if rec := e.do(t, http.MethodPost, "/api/auth/login", map[string]any{"email": "flow@example.com", "password": "nope-nope"}, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad login = %d, want 401", rec.Code)
	}
	if rec := e.do(t, http.MethodPost, "/api/auth/login", map[string]any{"email": "flow@example.com", "password": "password123"}, nil); rec.Code != http.StatusOK {
		t.Errorf("login = %d, want 200", rec.Code)
	}

	if rec := e.do(t, http.MethodPost, "/api/auth/logout", nil, cookie); rec.Code != http.StatusNoContent {
		t.Errorf("logout = %d, want 204", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/api/auth/me", nil, cookie); rec.Code != http.StatusUnauthorized {
		t.Errorf("me after logout = %d, want 401", rec.Code)
	}
}

func TestRegisterWithTokensSeedsWidgets(t *testing.T) {
	e := newTestEnv(t, nil)
	cookie := e.register(t, "seed@example.com", map[string]string{"trello": "tb-token", "gmail": "mail-token"})

	widgets := decode[[]domain.Widget](t, e.do(t, http.MethodGet, "/api/widgets", nil, cookie))
	got := make([]string, 0, len(widgets))
	for _, w := range widgets {
		got = append(got, w.Type)
	}
	want := []string{"welcome", "tasks-due", "mail-unread"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("seeded widgets = %v, want %v", got, want)
	}

	rec := e.do(t, http.MethodPost, "/api/auth/register", map[string]any{
		"email": "bad@example.com", "password": "password123", "tokens": map[string]string{"slack": "x"},
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown service token = %d, want 400", rec.Code)
	}
}

func TestWidgetLifecycle(t *testing.T) {
	e := newTestEnv(t, nil)
	cookie := e.register(t, "widgets@example.com", nil)

	created := decode[domain.Widget](t, e.do(t, http.MethodPost, "/api/widgets", map[string]any{"type": "notes-recent"}, cookie))
	if created.Grid != domain.DefaultGrid() {
		t.Errorf("default grid = %+v", created.Grid)
	}
	if created.Name != "notes-recent" || created.Position != 1 {
		t.Errorf("created = %+v, want name=type and position after the seeded widget", created)
	}

	grid := domain.GridRect{X: 2, Y: 3, W: 4, H: 5}
	second := decode[domain.Widget](t, e.do(t, http.MethodPost, "/api/widgets", map[string]any{
		"type": "mail-unread", "name": "Inbox", "grid": grid, "config": map[string]any{"limit": 3},
	}, cookie))
	if second.Grid != grid {
		t.Errorf("grid round trip = %+v, want %+v", second.Grid, grid)
	}

	path := "/api/widgets/" + strconv.FormatInt(second.ID, 10)
	fetched := decode[domain.Widget](t, e.do(t, http.MethodGet, path, nil, cookie))
	if fetched.Grid != grid || fetched.Config["limit"] != float64(3) {
		t.Errorf("fetched = %+v", fetched)
	}

	patched := decode[domain.Widget](t, e.do(t, http.MethodPatch, path, map[string]any{"name": "Mail"}, cookie))
	if patched.Name != "Mail" || patched.Grid != grid {
		t.Errorf("patched = %+v", patched)
	}

	ordered := decode[[]domain.Widget](t, e.do(t, http.MethodPost, "/api/widgets/reorder", map[string]any{"ids": []int64{second.ID, created.ID}}, cookie))
	if len(ordered) != 3 || ordered[0].ID != second.ID || ordered[1].ID != created.ID {
		t.Errorf("reordered = %+v", ordered)
	}

	other := e.register(t, "other@example.com", nil)
	if rec := e.do(t, http.MethodGet, path, nil, other); rec.Code != http.StatusNotFound {
		t.Errorf("foreign widget = %d, want 404", rec.Code)
	}

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"missing type", http.MethodPost, "/api/widgets", map[string]any{"name": "x"}, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/widgets", map[string]any{"type": "x", "colour": "red"}, http.StatusBadRequest},
		{"bad id", http.MethodGet, "/api/widgets/abc", nil, http.StatusBadRequest},
		{"unknown reorder id", http.MethodPost, "/api/widgets/reorder", map[string]any{"ids": []int64{999}}, http.StatusBadRequest},
		{"negative position", http.MethodPatch, path, map[string]any{"position": -2}, http.StatusBadRequest},
		{"delete", http.MethodDelete, path, nil, http.StatusNoContent},
		{"delete again", http.MethodDelete, path, nil, http.StatusNotFound},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if rec := e.do(t, tt.method, tt.path, tt.body, cookie); rec.Code != tt.want {
				t.Errorf("%s %s = %d, want %d (%s)", tt.method, tt.path, rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestIntegrations(t *testing.T) {
	e := newTestEnv(t, nil)
	cookie := e.register(t, "int@example.com", nil)

	list := decode[[]map[string]any](t, e.do(t, http.MethodGet, "/api/integrations", nil, cookie))
	if len(list) != 3 {
		t.Fatalf("integrations = %d, want 3", len(list))
	}
	for _, it := range list {
		if it["connected"] != false {
			t.Errorf("%v should start disconnected", it["service"])
		}
	}

	rec := e.do(t, http.MethodPut, "/api/integrations/Trello", map[string]any{"token": "secret-token"}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT = %d, body %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "secret-token") {
		t.Error("token echoed back to the client")
	}

	// Config-only update keeps the stored token.
	e.do(t, http.MethodPut, "/api/integrations/task-board", map[string]any{"config": map[string]string{"defaultListId": "L1"}}, cookie)
	user, _ := e.repo.GetUserByEmail(context.Background(), "int@example.com")
	cred, err := e.repo.GetCredential(context.Background(), user.ID, domain.ServiceTaskBoard)
	if err != nil {
		t.Fatalf("GetCredential() error = %v", err)
	}
	if cred.Token != "secret-token" || !cred.Connected || cred.ConfigValue(domain.ConfigDefaultListID) != "L1" {
		t.Errorf("credential = %+v", cred)
	}

	test := decode[map[string]any](t, e.do(t, http.MethodPost, "/api/integrations/task-board/test", nil, cookie))
	if test["ok"] != true || e.tokens[domain.ServiceTaskBoard] != "secret-token" {
		t.Errorf("test = %v, token = %q", test, e.tokens[domain.ServiceTaskBoard])
	}

	e.board.pingErr = httpx.NewAPIError("task-board", http.StatusUnauthorized, []byte(`{"message":"invalid token"}`))
	test = decode[map[string]any](t, e.do(t, http.MethodPost, "/api/integrations/task-board/test", nil, cookie))
	if test["ok"] != false || !strings.Contains(test["error"].(string), "invalid token") {
		t.Errorf("failed test = %v", test)
	}

	past := time.Now().Add(-time.Hour)
	e.do(t, http.MethodPut, "/api/integrations/notes", map[string]any{"token": "n", "expiresAt": past}, cookie)
	if rec := e.do(t, http.MethodGet, "/api/notes/recent", nil, cookie); rec.Code != http.StatusConflict {
		t.Errorf("expired token route = %d, want 409", rec.Code)
	}

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown service", http.MethodPut, "/api/integrations/slack", map[string]any{"token": "x"}, http.StatusBadRequest},
		{"missing token", http.MethodPut, "/api/integrations/mail", map[string]any{}, http.StatusBadRequest},
		{"test unconnected", http.MethodPost, "/api/integrations/mail/test", nil, http.StatusConflict},
		{"delete", http.MethodDelete, "/api/integrations/trello", nil, http.StatusNoContent},
		{"delete missing", http.MethodDelete, "/api/integrations/trello", nil, http.StatusNotFound},
		{"route after delete", http.MethodGet, "/api/tasks/boards", nil, http.StatusConflict},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if rec := e.do(t, tt.method, tt.path, tt.body, cookie); rec.Code != tt.want {
				t.Errorf("%s %s = %d, want %d (%s)", tt.method, tt.path, rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestTaskRoutes(t *testing.T) {
	e := newTestEnv(t, nil)
	cookie := e.register(t, "tasks@example.com", map[string]string{"task-board": "tb"})

	due := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	e.board.boards = []domain.Board{{ID: "b1", Name: "Work"}}
	e.board.lists["b1"] = []domain.List{{ID: "l1", Name: "To Do", BoardID: "b1"}}
	e.board.cards = []domain.TaskCard{{ID: "c1", Title: "Ship", ListID: "l1", Due: &due, Status: "To Do", Labels: []domain.Label{}, Assignees: []string{}}}

	boards := decode[[]domain.Board](t, e.do(t, http.MethodGet, "/api/tasks/boards", nil, cookie))
	if len(boards) != 1 || boards[0].ID != "b1" {
		t.Errorf("boards = %+v", boards)
	}

	lists := decode[[]domain.List](t, e.do(t, http.MethodGet, "/api/tasks/boards/b1/lists", nil, cookie))
	if len(lists) != 1 || lists[0].Name != "To Do" {
		t.Errorf("lists = %+v", lists)
	}

	cards := decode[[]domain.TaskCard](t, e.do(t, http.MethodGet, "/api/tasks/lists/l1/cards", nil, cookie))
	if len(cards) != 1 || cards[0].ID != "c1" {
		t.Errorf("cards = %+v", cards)
	}

	e.do(t, http.MethodGet, "/api/tasks/due", nil, cookie)
	if e.board.dueDays != 7 {
		t.Errorf("default days = %d, want 7", e.board.dueDays)
	}
	e.do(t, http.MethodGet, "/api/tasks/due?days=30", nil, cookie)
	if e.board.dueDays != 30 {
		t.Errorf("days = %d, want 30", e.board.dueDays)
	}

	card := decode[domain.TaskCard](t, e.do(t, http.MethodPost, "/api/tasks/lists/l1/cards", map[string]any{"name": "Write tests", "due": due}, cookie))
	if card.Title != "Write tests" || card.ListID != "l1" || card.Due == nil || !card.Due.Equal(due) {
		t.Errorf("created card = %+v", card)
	}

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"bad days", http.MethodGet, "/api/tasks/due?days=-1", nil, http.StatusBadRequest},
		{"card found", http.MethodGet, "/api/tasks/cards/c1", nil, http.StatusOK},
		{"card missing upstream", http.MethodGet, "/api/tasks/cards/zzz", nil, http.StatusBadGateway},
		{"missing name", http.MethodPost, "/api/tasks/lists/l1/cards", map[string]any{"description": "x"}, http.StatusBadRequest},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if rec := e.do(t, tt.method, tt.path, tt.body, cookie); rec.Code != tt.want {
				t.Errorf("%s %s = %d, want %d (%s)", tt.method, tt.path, rec.Code, tt.want, rec.Body.String())
			}
		})
	}

	e.board.failCreate = true
	if rec := e.do(t, http.MethodPost, "/api/tasks/lists/l1/cards", map[string]any{"name": "x"}, cookie); rec.Code != http.StatusBadGateway {
		t.Errorf("failed create = %d, want 502", rec.Code)
	}
}

func TestListLimitsAreCapped(t *testing.T) {
	e := newTestEnv(t, nil)
	cookie := e.register(t, "limits@example.com", map[string]string{"notion": "nt", "gmail": "gm"})

	tests := []struct {
		path string
		last func() int
		want int
	}{
		{"/api/notes/recent?limit=500", func() int { return e.notes.lastLimit }, notes.MaxRecentLimit},
		{"/api/notes/recent?limit=3", func() int { return e.notes.lastLimit }, 3},
		{"/api/mail/recent?limit=500", func() int { return e.mail.lastLimit }, mail.MaxLimit},
		{"/api/mail/recent", func() int { return e.mail.lastLimit }, mail.DefaultLimit},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if rec := e.do(t, http.MethodGet, tt.path, nil, cookie); rec.Code != http.StatusOK {
				t.Fatalf("GET %s = %d", tt.path, rec.Code)
			}
			if got := tt.last(); got != tt.want {
				t.Errorf("connector limit = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNotesRoutes(t *testing.T) {
	e := newTestEnv(t, nil)
	cookie := e.register(t, "notes@example.com", map[string]string{"notion": "nt"})

	e.notes.pages = []domain.NotesPage{{ID: "p1", Title: "Roadmap"}, {ID: "p2", Title: "Journal"}}
	e.notes.created = &domain.NotesPage{ID: "p3", Title: "New"}

	recent := decode[[]domain.NotesPage](t, e.do(t, http.MethodGet, "/api/notes/recent?limit=1", nil, cookie))
	if len(recent) != 1 || recent[0].ID != "p1" {
		t.Errorf("recent = %+v", recent)
	}

	found := decode[[]domain.NotesPage](t, e.do(t, http.MethodGet, "/api/notes/search?q=road", nil, cookie))
	if len(found) != 1 || found[0].ID != "p1" {
		t.Errorf("search = %+v", found)
	}

	if rec := e.do(t, http.MethodGet, "/api/notes/pages/p1", nil, cookie); rec.Code != http.StatusOK {
		t.Errorf("page content = %d", rec.Code)
	}

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{"created", map[string]any{"title": "New", "parentId": "root"}, http.StatusCreated},
		{"missing title", map[string]any{"parentId": "root"}, http.StatusBadRequest},
		{"missing parent", map[string]any{"title": "New"}, http.StatusBadRequest},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if rec := e.do(t, http.MethodPost, "/api/notes/pages", tt.body, cookie); rec.Code != tt.want {
				t.Errorf("POST /api/notes/pages = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}

	e.notes.created = nil
	if rec := e.do(t, http.MethodPost, "/api/notes/pages", map[string]any{"title": "New", "parentId": "root"}, cookie); rec.Code != http.StatusBadGateway {
		t.Errorf("absent page = %d, want 502", rec.Code)
	}

	e.notes.contentErr = httpx.NewAPIError("notes", http.StatusInternalServerError, []byte(`{"message":"internal"}`))
	rec := e.do(t, http.MethodGet, "/api/notes/pages/p1", nil, cookie)
	if rec.Code != http.StatusBadGateway || !strings.Contains(rec.Body.String(), "internal") {
		t.Errorf("upstream failure = %d %s, want 502", rec.Code, rec.Body.String())
	}
}

func TestMailRoutes(t *testing.T) {
	e := newTestEnv(t, nil)
	cookie := e.register(t, "mail@example.com", map[string]string{"mail": "mt"})

	e.mail.messages = []domain.MailMessage{
		{ID: "m1", Subject: "Hello", LabelIDs: []string{"INBOX", "UNREAD"}},
		{ID: "m2", Subject: "Old", LabelIDs: []string{"INBOX"}},
	}

	unread := decode[[]domain.MailMessage](t, e.do(t, http.MethodGet, "/api/mail/unread", nil, cookie))
	if len(unread) != 1 || unread[0].ID != "m1" {
		t.Errorf("unread = %+v", unread)
	}

	e.do(t, http.MethodGet, "/api/mail/search?q=from:boss", nil, cookie)
	if e.mail.lastQuery != "from:boss" {
		t.Errorf("query = %q", e.mail.lastQuery)
	}

	if rec := e.do(t, http.MethodGet, "/api/mail/search", nil, cookie); rec.Code != http.StatusBadRequest {
		t.Errorf("search without q = %d, want 400", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/api/mail/m2", nil, cookie); rec.Code != http.StatusOK {
		t.Errorf("get message = %d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/api/mail/nope", nil, cookie); rec.Code != http.StatusBadGateway {
		t.Errorf("missing message = %d, want 502", rec.Code)
	}
	// The task board is not connected yet.
	if rec := e.do(t, http.MethodPost, "/api/mail/m1/task", nil, cookie); rec.Code != http.StatusConflict {
		t.Errorf("task without board = %d, want 409", rec.Code)
	}
}

func TestMailToTaskListResolution(t *testing.T) {
	tests := []struct {
		name       string
		body       map[string]any
		defaultID  string
		boards     []domain.Board
		lists      []domain.List
		wantStatus int
		wantList   string
	}{
		{
			name:       "explicit list wins",
			body:       map[string]any{"listId": "L-body"},
			defaultID:  "L-cfg",
			wantStatus: http.StatusCreated,
			wantList:   "L-body",
		},
		{
			name:       "configured default",
			defaultID:  "L-cfg",
			boards:     []domain.Board{{ID: "b1"}},
			lists:      []domain.List{{ID: "L-first"}},
			wantStatus: http.StatusCreated,
			wantList:   "L-cfg",
		},
		{
			name:       "first list of first board",
			boards:     []domain.Board{{ID: "b1"}, {ID: "b2"}},
			lists:      []domain.List{{ID: "L-first"}, {ID: "L-second"}},
			wantStatus: http.StatusCreated,
			wantList:   "L-first",
		},
		{
			name:       "no boards",
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "board without lists",
			boards:     []domain.Board{{ID: "b1"}},
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t, nil)
			cookie := e.register(t, "resolve@example.com", map[string]string{"mail": "mt"})

			cfg := map[string]string{}
			if tt.defaultID != "" {
				cfg[domain.ConfigDefaultListID] = tt.defaultID
			}
			if rec := e.do(t, http.MethodPut, "/api/integrations/task-board", map[string]any{"token": "tb", "config": cfg}, cookie); rec.Code != http.StatusOK {
				t.Fatalf("connect board = %d", rec.Code)
			}

			e.board.boards = tt.boards
			if len(tt.boards) > 0 {
				e.board.lists[tt.boards[0].ID] = tt.lists
			}
			e.mail.messages = []domain.MailMessage{{
				ID:      "m1",
				From:    "Alice <alice@example.com>",
				Subject: "Quarterly report",
				Snippet: "Please send the figures before 03/14/2025 at 2:30pm.",
			}}

			rec := e.do(t, http.MethodPost, "/api/mail/m1/task", tt.body, cookie)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusCreated {
				return
			}

			resp := decode[struct {
				Card   domain.TaskCard `json:"card"`
				ListID string          `json:"listId"`
			}](t, rec)
			if resp.ListID != tt.wantList || resp.Card.ListID != tt.wantList {
				t.Errorf("list = %q / %q, want %q", resp.ListID, resp.Card.ListID, tt.wantList)
			}
			if resp.Card.Title != "Quarterly report" || resp.Card.Due == nil {
				t.Errorf("card = %+v", resp.Card)
			}
		})
	}
}

func TestRateLimitOnAPI(t *testing.T) {
	e := newTestEnv(t, func(d *deps.Deps) {
		d.RateBurst = 2
		d.RatePerMin = 1
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, e.do(t, http.MethodGet, "/api/widgets", nil, nil).Code)
	}
	want := []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d = %d, want %d", i, codes[i], want[i])
		}
	}

	// Health routes are outside /api.
	if rec := e.do(t, http.MethodGet, "/healthz", nil, nil); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d, want 200", rec.Code)
	}
}
