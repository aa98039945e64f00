package notes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrSnakeDoc/dash/internal/connector/httpx"
	"github.com/MrSnakeDoc/dash/internal/domain"
	"github.com/MrSnakeDoc/dash/internal/logger"
)

func newTestConnector(t *testing.T, token string, handler http.Handler) *Connector {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(token, Config{BaseURL: srv.URL, RateLimit: 1000, RateBurst: 100}, logger.New("error", false))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestListRecentPages(t *testing.T) {
	var got searchRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST /search", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" || r.Header.Get("Notion-Version") != DefaultVersion {
			http.Error(w, `{"message":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, map[string]any{"results": []any{
			map[string]any{
				"id":               "aaaaaaaa-1111",
				"url":              "https://notes.test/a",
				"last_edited_time": "2025-03-10T09:00:00.000Z",
				"icon":             map[string]any{"type": "emoji", "emoji": "📝"},
				"properties":       map[string]any{"title": titleProp("title", "Plan")},
			},
			map[string]any{
				"id":               "bbbbbbbb-2222",
				"last_edited_time": "2025-03-09T09:00:00.000Z",
				"icon":             map[string]any{"type": "external", "external": map[string]any{"url": "https://img.test/i.png"}},
				"properties":       map[string]any{},
			},
		}})
	})

	pages := newTestConnector(t, "secret", mux).ListRecentPages(context.Background(), 0)

	if got.PageSize != DefaultRecentLimit || got.Sort.Direction != "descending" || got.Sort.Timestamp != "last_edited_time" {
		t.Errorf("search request = %+v", got)
	}
	if got.Filter.Value != "page" {
		t.Errorf("filter = %+v", got.Filter)
	}
	if len(pages) != 2 {
		t.Fatalf("ListRecentPages() returned %d pages, want 2", len(pages))
	}
	if pages[0].Title != "Plan" || pages[0].Icon == nil || pages[0].Icon.Value != "📝" {
		t.Errorf("pages[0] = %+v", pages[0])
	}
	if pages[1].Title != "Page bbbbbbbb" {
		t.Errorf("pages[1].Title = %q", pages[1].Title)
	}
	if pages[1].Icon == nil || pages[1].Icon.Type != "external" {
		t.Errorf("pages[1].Icon = %+v", pages[1].Icon)
	}
	if pages[0].LastEditedTime.IsZero() {
		t.Error("LastEditedTime not parsed")
	}
}

func TestSearchPagesSendsQueryAndLimit(t *testing.T) {
	var got searchRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST /search", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, map[string]any{"results": []any{}})
	})

	pages := newTestConnector(t, "secret", mux).SearchPages(context.Background(), "budget")
	if pages == nil || len(pages) != 0 {
		t.Errorf("SearchPages() = %v, want empty", pages)
	}
	if got.Query != "budget" || got.PageSize != 10 {
		t.Errorf("search request = %+v", got)
	}
}

func TestListOperationsDegradeToEmpty(t *testing.T) {
	c := newTestConnector(t, "secret", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	if got := c.ListRecentPages(context.Background(), 5); len(got) != 0 {
		t.Errorf("ListRecentPages() = %v, want empty", got)
	}
	if got := c.SearchPages(context.Background(), "x"); len(got) != 0 {
		t.Errorf("SearchPages() = %v, want empty", got)
	}
}

func TestGetPageContentPropagatesErrors(t *testing.T) {
	c := newTestConnector(t, "secret", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"object":"error","message":"internal"}`, http.StatusInternalServerError)
	}))

	content, err := c.GetPageContent(context.Background(), "p1")
	if content != nil {
		t.Errorf("GetPageContent() content = %+v, want nil", content)
	}
	apiErr, ok := httpx.AsAPIError(err)
	if !ok || apiErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("GetPageContent() error = %v, want 500 APIError", err)
	}
	if apiErr.Message != "internal" {
		t.Errorf("Message = %q, want internal", apiErr.Message)
	}
}

func TestGetPageContentFollowsCursor(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /pages/p1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": "p1", "object": "page"})
	})
	mux.HandleFunc("GET /blocks/p1/children", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start_cursor") == "" {
			writeJSON(w, map[string]any{
				"results": []any{map[string]any{
					"id": "b1", "type": "paragraph", "has_children": false,
					"paragraph": map[string]any{"rich_text": []any{
						map[string]any{"plain_text": "Hello, "},
						map[string]any{"plain_text": "world"},
					}},
				}},
				"has_more":    true,
				"next_cursor": "c2",
			})
			return
		}
		writeJSON(w, map[string]any{
			"results": []any{
				map[string]any{"id": "b2", "type": "divider", "divider": map[string]any{}},
				map[string]any{"id": "b3", "type": "toggle", "has_children": true,
					"toggle": map[string]any{"rich_text": []any{map[string]any{"text": map[string]any{"content": "More"}}}}},
			},
			"has_more":    false,
			"next_cursor": nil,
		})
	})

	content, err := newTestConnector(t, "secret", mux).GetPageContent(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetPageContent() error = %v", err)
	}
	if content.Page["id"] != "p1" {
		t.Errorf("Page = %v", content.Page)
	}
	if len(content.Blocks) != 3 {
		t.Fatalf("len(Blocks) = %d, want 3", len(content.Blocks))
	}
	if content.Blocks[0].Text != "Hello, world" {
		t.Errorf("Blocks[0].Text = %q", content.Blocks[0].Text)
	}
	if content.Blocks[1].Text != "" || content.Blocks[1].Type != "divider" {
		t.Errorf("Blocks[1] = %+v", content.Blocks[1])
	}
	if !content.Blocks[2].HasChildren || content.Blocks[2].Text != "More" {
		t.Errorf("Blocks[2] = %+v", content.Blocks[2])
	}
}

func TestCreatePage(t *testing.T) {
	var got createPageRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST /pages", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, map[string]any{
			"id":         "cccccccc-3333",
			"url":        "https://notes.test/c",
			"properties": map[string]any{"title": titleProp("title", "Ideas")},
		})
	})
	c := newTestConnector(t, "secret", mux)

	page, err := c.CreatePage(context.Background(), "Ideas", "parent-1")
	if err != nil || page == nil {
		t.Fatalf("CreatePage() = (%v, %v)", page, err)
	}
	if got.Parent.PageID != "parent-1" {
		t.Errorf("parent = %+v", got.Parent)
	}
	if page.Title != "Ideas" {
		t.Errorf("Title = %q", page.Title)
	}
}

func TestCreatePageRequiresParent(t *testing.T) {
	c := newTestConnector(t, "secret", http.NotFoundHandler())

	_, err := c.CreatePage(context.Background(), "Ideas", "")
	var missing *domain.MissingParameterError
	if !errors.As(err, &missing) || missing.Name != "parentId" {
		t.Errorf("CreatePage() error = %v, want MissingParameterError(parentId)", err)
	}
}

func TestCreatePageFailureIsAbsent(t *testing.T) {
	c := newTestConnector(t, "secret", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	}))

	page, err := c.CreatePage(context.Background(), "Ideas", "parent-1")
	if page != nil || err != nil {
		t.Errorf("CreatePage() = (%v, %v), want (nil, nil)", page, err)
	}
}

func TestListRecentPagesKeepsMalformedPages(t *testing.T) {
	good := map[string]any{
		"id":               "aaaaaaaa-1111",
		"last_edited_time": "2025-03-10T09:00:00.000Z",
		"properties":       map[string]any{"title": titleProp("title", "Plan")},
	}

	tests := []struct {
		name string
		bad  any
	}{
		{name: "properties not an object", bad: map[string]any{
			"id": "cccccccc-3333", "last_edited_time": "2025-03-09T09:00:00.000Z", "properties": []any{"x"},
		}},
		{name: "empty edited time", bad: map[string]any{
			"id": "cccccccc-3333", "last_edited_time": "", "properties": map[string]any{},
		}},
		{name: "edited time not a string", bad: map[string]any{
			"id": "cccccccc-3333", "last_edited_time": 42, "icon": "nope", "child_page": []any{},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("POST /search", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, map[string]any{"results": []any{good, tt.bad, "not a page"}})
			})

			pages := newTestConnector(t, "secret", mux).ListRecentPages(context.Background(), 5)
			if len(pages) != 2 {
				t.Fatalf("ListRecentPages() returned %d pages, want 2: %+v", len(pages), pages)
			}
			if pages[0].Title != "Plan" || pages[0].LastEditedTime.IsZero() {
				t.Errorf("pages[0] = %+v", pages[0])
			}
			if pages[1].Title != "Page cccccccc" {
				t.Errorf("pages[1].Title = %q, want fallback", pages[1].Title)
			}
			if pages[1].Icon != nil {
				t.Errorf("pages[1].Icon = %+v, want nil", pages[1].Icon)
			}
		})
	}
}

func TestListRecentPagesCapsLimit(t *testing.T) {
	var got searchRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST /search", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, map[string]any{"results": []any{}})
	})

	newTestConnector(t, "secret", mux).ListRecentPages(context.Background(), 500)
	if got.PageSize != MaxRecentLimit {
		t.Errorf("page_size = %d, want %d", got.PageSize, MaxRecentLimit)
	}
}
