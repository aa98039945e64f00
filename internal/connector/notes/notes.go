// Package notes adapts a Notion-shaped workspace API (pages and blocks) to
// the dashboard's normalized records.
package notes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/MrSnakeDoc/dash/internal/connector/httpx"
	"github.com/MrSnakeDoc/dash/internal/domain"
	"github.com/MrSnakeDoc/dash/internal/logger"
)

const (
	DefaultBaseURL = "https://api.notion.com/v1"
	DefaultVersion = "2022-06-28"

	DefaultRecentLimit = 5
	MaxRecentLimit     = 100
	searchLimit        = 10
	blockPageSize      = 100
)

// Config holds the connection settings shared by every user's connector.
type Config struct {
	BaseURL    string
	Version    string
	Timeout    time.Duration
	RateLimit  float64
	RateBurst  int
	MaxRetries int
	// Limiter, when set, is shared with other connectors for the same user.
	Limiter    *rate.Limiter
	HTTPClient *http.Client
}

// Connector talks to the notes API with one user's token.
type Connector struct {
	token  string
	client *httpx.Client
	logger logger.Logger
}

func New(token string, cfg Config, log logger.Logger) *Connector {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}

	client := httpx.New(httpx.Config{
		Service:    string(domain.ServiceNotes),
		BaseURL:    cfg.BaseURL,
		Auth:       httpx.BearerToken{Token: token},
		Headers:    map[string]string{"Notion-Version": cfg.Version},
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		RateBurst:  cfg.RateBurst,
		MaxRetries: cfg.MaxRetries,
		Limiter:    cfg.Limiter,
		HTTPClient: cfg.HTTPClient,
	})

	return &Connector{
		token:  token,
		client: client,
		logger: log.With(logger.String("service", string(domain.ServiceNotes))),
	}
}

func (c *Connector) ServiceType() domain.ServiceType { return domain.ServiceNotes }

// Ping verifies the token against the bot-user endpoint.
func (c *Connector) Ping(ctx context.Context) error {
	var me map[string]any
	return c.fetch(ctx, httpx.Request{Method: http.MethodGet, Path: "users/me"}, &me)
}

func (c *Connector) fetch(ctx context.Context, req httpx.Request, out any) error {
	if c.token == "" {
		return domain.ErrMissingToken
	}
	return c.client.Do(ctx, req, out)
}

// ListRecentPages returns up to limit pages, most recently edited first.
// A non-positive limit selects DefaultRecentLimit and larger limits are capped
// at MaxRecentLimit, the API's page size ceiling. Failures yield an empty slice.
func (c *Connector) ListRecentPages(ctx context.Context, limit int) []domain.NotesPage {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	limit = min(limit, MaxRecentLimit)
	pages, err := c.search(ctx, "", limit)
	if err != nil {
		c.logger.Warn("failed to list recent pages", logger.Error(err))
		return []domain.NotesPage{}
	}
	return pages
}

// SearchPages returns up to 10 pages matching query, most recently edited
// first. An empty query behaves like ListRecentPages. Failures yield an empty slice.
func (c *Connector) SearchPages(ctx context.Context, query string) []domain.NotesPage {
	pages, err := c.search(ctx, query, searchLimit)
	if err != nil {
		c.logger.Warn("failed to search pages",
			logger.String("query", query),
			logger.Error(err))
		return []domain.NotesPage{}
	}
	return pages
}

func (c *Connector) search(ctx context.Context, query string, limit int) ([]domain.NotesPage, error) {
	body := searchRequest{
		Query:    query,
		Filter:   searchFilter{Property: "object", Value: "page"},
		Sort:     searchSort{Direction: "descending", Timestamp: "last_edited_time"},
		PageSize: limit,
	}

	var resp searchResponse
	if err := c.fetch(ctx, httpx.Request{Method: http.MethodPost, Path: "search", Body: body}, &resp); err != nil {
		return nil, err
	}

	pages := make([]domain.NotesPage, 0, len(resp.Results))
	for i, raw := range resp.Results {
		var p apiPage
		if err := json.Unmarshal(raw, &p); err != nil || p.ID == "" {
			c.logger.Debug("skipping unreadable page in search results",
				logger.Int("index", i),
				logger.Error(err))
			continue
		}
		pages = append(pages, p.toDomain())
	}
	return pages, nil
}

// CreatePage creates a page titled title under parentID. A missing parent
// is a *domain.MissingParameterError; an upstream failure returns (nil, nil).
func (c *Connector) CreatePage(ctx context.Context, title, parentID string) (*domain.NotesPage, error) {
	if parentID == "" {
		return nil, &domain.MissingParameterError{Name: "parentId"}
	}

	body := createPageRequest{
		Parent: pageParent{PageID: parentID},
		Properties: map[string]any{
			"title": map[string]any{
				"title": []any{
					map[string]any{"text": map[string]any{"content": title}},
				},
			},
		},
	}

	var created apiPage
	if err := c.fetch(ctx, httpx.Request{Method: http.MethodPost, Path: "pages", Body: body}, &created); err != nil {
		c.logger.Warn("failed to create page",
			logger.String("parent_id", parentID),
			logger.Error(err))
		return nil, nil
	}

	page := created.toDomain()
	return &page, nil
}

// GetPageContent returns a page's raw metadata and all of its top-level
// blocks. Unlike the list operations it propagates errors.
func (c *Connector) GetPageContent(ctx context.Context, pageID string) (*domain.PageContent, error) {
	var page map[string]any
	if err := c.fetch(ctx, httpx.Request{Method: http.MethodGet, Path: "pages/" + url.PathEscape(pageID)}, &page); err != nil {
		return nil, err
	}

	blocks := make([]domain.Block, 0)
	cursor := ""
	for {
		query := url.Values{"page_size": {strconv.Itoa(blockPageSize)}}
		if cursor != "" {
			query.Set("start_cursor", cursor)
		}

		var resp blockChildrenResponse
		req := httpx.Request{Method: http.MethodGet, Path: "blocks/" + url.PathEscape(pageID) + "/children", Query: query}
		if err := c.fetch(ctx, req, &resp); err != nil {
			return nil, err
		}

		for _, raw := range resp.Results {
			blocks = append(blocks, normalizeBlock(raw))
		}

		if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == "" {
			break
		}
		cursor = *resp.NextCursor
	}

	return &domain.PageContent{Page: page, Blocks: blocks}, nil
}

// normalizeBlock reduces a raw block to its id, type, plain text and typed payload.
func normalizeBlock(raw map[string]any) domain.Block {
	b := domain.Block{}
	b.ID, _ = raw["id"].(string)
	b.Type, _ = raw["type"].(string)
	b.HasChildren, _ = raw["has_children"].(bool)

	if content, ok := raw[b.Type].(map[string]any); ok {
		b.Content = content
		if runs, ok := content["rich_text"].([]any); ok {
			b.Text = richText(runs)
		}
	}
	return b
}
