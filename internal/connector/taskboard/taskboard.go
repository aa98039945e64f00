// Package taskboard adapts a Trello-shaped task-board API (boards, lists,
// cards) to the dashboard's normalized records.
package taskboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/MrSnakeDoc/dash/internal/connector/httpx"
	"github.com/MrSnakeDoc/dash/internal/domain"
	"github.com/MrSnakeDoc/dash/internal/logger"
)

const (
	// DefaultBaseURL is the public task-board API root.
	DefaultBaseURL = "https://api.trello.com/1"

	// defaultConcurrency bounds per-board fetches in ListCardsDueWithin.
	defaultConcurrency = 4

	cardFields = "name,desc,due,dueComplete,closed,idBoard,idList,shortUrl,labels"
)

// Config holds the connection settings shared by every user's connector.
type Config struct {
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
	RateLimit   float64
	RateBurst   int
	MaxRetries  int
	Concurrency int
	// Limiter, when set, is shared with other connectors for the same user.
	Limiter     *rate.Limiter
	HTTPClient  *http.Client
	Now         func() time.Time
}

// Connector talks to the task-board API with one user's token.
type Connector struct {
	token       string
	client      *httpx.Client
	logger      logger.Logger
	now         func() time.Time
	concurrency int
}

// New creates a Connector. An empty token is accepted; every call then
// fails with domain.ErrMissingToken and list operations return empty.
func New(token string, cfg Config, log logger.Logger) *Connector {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}

	client := httpx.New(httpx.Config{
		Service:    string(domain.ServiceTaskBoard),
		BaseURL:    cfg.BaseURL,
		Auth:       httpx.QueryParams{"key": cfg.APIKey, "token": token},
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		RateBurst:  cfg.RateBurst,
		MaxRetries: cfg.MaxRetries,
		Limiter:    cfg.Limiter,
		HTTPClient: cfg.HTTPClient,
	})

	return &Connector{
		token:       token,
		client:      client,
		logger:      log.With(logger.String("service", string(domain.ServiceTaskBoard))),
		now:         cfg.Now,
		concurrency: cfg.Concurrency,
	}
}

func (c *Connector) ServiceType() domain.ServiceType { return domain.ServiceTaskBoard }

// Ping verifies the token by fetching the token owner's profile.
func (c *Connector) Ping(ctx context.Context) error {
	var me struct {
		ID string `json:"id"`
	}
	return c.fetch(ctx, http.MethodGet, "members/me", url.Values{"fields": {"id"}}, &me)
}

// fetch is the single entry point to the upstream API.
func (c *Connector) fetch(ctx context.Context, method, path string, query url.Values, out any) error {
	if c.token == "" {
		return domain.ErrMissingToken
	}
	return c.client.Do(ctx, httpx.Request{Method: method, Path: path, Query: query}, out)
}

// ListBoards returns the boards of the token owner, or an empty slice on failure.
func (c *Connector) ListBoards(ctx context.Context) []domain.Board {
	var raw []apiBoard
	if err := c.fetch(ctx, http.MethodGet, "members/me/boards", url.Values{"fields": {"name,shortUrl"}}, &raw); err != nil {
		c.logger.Warn("failed to list boards", logger.Error(err))
		return []domain.Board{}
	}

	boards := make([]domain.Board, 0, len(raw))
	for _, b := range raw {
		boards = append(boards, b.toDomain())
	}
	return boards
}

// ListLists returns the open lists of a board, or an empty slice on failure.
func (c *Connector) ListLists(ctx context.Context, boardID string) []domain.List {
	lists, err := c.lists(ctx, boardID)
	if err != nil {
		c.logger.Warn("failed to list lists",
			logger.String("board_id", boardID),
			logger.Error(err))
		return []domain.List{}
	}
	return lists
}

// ListCardsOnList returns the cards of a list, or an empty slice on failure.
func (c *Connector) ListCardsOnList(ctx context.Context, listID string) []domain.TaskCard {
	var raw []json.RawMessage
	query := url.Values{"fields": {cardFields}, "members": {"true"}, "member_fields": {"initials"}}
	if err := c.fetch(ctx, http.MethodGet, "lists/"+url.PathEscape(listID)+"/cards", query, &raw); err != nil {
		c.logger.Warn("failed to list cards",
			logger.String("list_id", listID),
			logger.Error(err))
		return []domain.TaskCard{}
	}

	cards := make([]domain.TaskCard, 0, len(raw))
	for _, rc := range decodeCards(raw, c.skipCard(listID)) {
		cards = append(cards, rc.toDomain())
	}
	return cards
}

func (c *Connector) skipCard(container string) func(int, error) {
	return func(index int, err error) {
		c.logger.Warn("skipping unreadable card",
			logger.String("container", container),
			logger.Int("index", index),
			logger.Error(err))
	}
}

// GetCard returns one card. Unlike the list operations it propagates errors.
func (c *Connector) GetCard(ctx context.Context, cardID string) (*domain.TaskCard, error) {
	var raw apiCard
	query := url.Values{"fields": {cardFields}, "members": {"true"}, "member_fields": {"initials"}}
	if err := c.fetch(ctx, http.MethodGet, "cards/"+url.PathEscape(cardID), query, &raw); err != nil {
		return nil, err
	}
	card := raw.toDomain()
	return &card, nil
}

// CreateCard creates a card on listID. It returns (nil, false) instead of
// an error so that non-interactive callers are never aborted by it.
func (c *Connector) CreateCard(ctx context.Context, listID string, in domain.CardInput) (*domain.TaskCard, bool) {
	if listID == "" {
		c.logger.Warn("card creation skipped: empty list id")
		return nil, false
	}

	query := url.Values{
		"idList": {listID},
		"name":   {in.Name},
	}
	if in.Description != "" {
		query.Set("desc", in.Description)
	}
	if in.Due != nil {
		query.Set("due", in.Due.UTC().Format(time.RFC3339))
	}

	var raw apiCard
	if err := c.fetch(ctx, http.MethodPost, "cards", query, &raw); err != nil {
		c.logger.Warn("failed to create card",
			logger.String("list_id", listID),
			logger.Error(err))
		return nil, false
	}

	card := raw.toDomain()
	return &card, true
}

// ListCardsDueWithin returns every card, across all boards, whose due date
// lies in [now, now+days]. Cards keep the upstream order, board by board.
// Each card's Status is the name of its list, or domain.StatusUnknown.
func (c *Connector) ListCardsDueWithin(ctx context.Context, days int) []domain.TaskCard {
	if days < 0 {
		return []domain.TaskCard{}
	}

	boards := c.ListBoards(ctx)
	if len(boards) == 0 {
		return []domain.TaskCard{}
	}

	from := c.now()
	to := from.Add(time.Duration(days) * 24 * time.Hour)

	perBoard := make([][]domain.TaskCard, len(boards))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, board := range boards {
		g.Go(func() error {
			perBoard[i] = c.boardCardsDue(ctx, board.ID, from, to)
			return nil
		})
	}
	_ = g.Wait()

	due := make([]domain.TaskCard, 0)
	for _, cards := range perBoard {
		due = append(due, cards...)
	}
	return due
}

// boardCardsDue annotates one board's cards with their list names and
// keeps those due in [from, to]. Failures degrade to no cards.
func (c *Connector) boardCardsDue(ctx context.Context, boardID string, from, to time.Time) []domain.TaskCard {
	statusByList := make(map[string]string)
	lists, err := c.lists(ctx, boardID)
	if err != nil {
		c.logger.Warn("failed to list lists for due cards",
			logger.String("board_id", boardID),
			logger.Error(err))
	}
	for _, l := range lists {
		statusByList[l.ID] = l.Name
	}

	var raw []json.RawMessage
	if err := c.fetch(ctx, http.MethodGet, "boards/"+url.PathEscape(boardID)+"/cards", url.Values{"fields": {cardFields}}, &raw); err != nil {
		c.logger.Warn("failed to list board cards",
			logger.String("board_id", boardID),
			logger.Error(err))
		return nil
	}

	cards := make([]domain.TaskCard, 0, len(raw))
	for _, rc := range decodeCards(raw, c.skipCard(boardID)) {
		card := rc.toDomain()
		if !card.DueWithin(from, to) {
			continue
		}
		card.Status = domain.StatusUnknown
		if name, ok := statusByList[card.ListID]; ok {
			card.Status = name
		}
		card.Assignees = []string{}
		cards = append(cards, card)
	}
	return cards
}

func (c *Connector) lists(ctx context.Context, boardID string) ([]domain.List, error) {
	var raw []apiList
	query := url.Values{"fields": {"name,idBoard,closed"}, "filter": {"open"}}
	if err := c.fetch(ctx, http.MethodGet, "boards/"+url.PathEscape(boardID)+"/lists", query, &raw); err != nil {
		return nil, err
	}

	lists := make([]domain.List, 0, len(raw))
	for _, l := range raw {
		lists = append(lists, l.toDomain())
	}
	return lists, nil
}
