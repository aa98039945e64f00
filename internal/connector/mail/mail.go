// Package mail adapts the Gmail API to the dashboard's normalized records
// and hosts the email-to-task composition entry point.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/MrSnakeDoc/dash/internal/composer"
	"github.com/MrSnakeDoc/dash/internal/connector/httpx"
	"github.com/MrSnakeDoc/dash/internal/domain"
	"github.com/MrSnakeDoc/dash/internal/logger"
)

const (
	DefaultLimit = 10
	// MaxLimit caps list sizes; each listed message costs one more request.
	MaxLimit = 50

	userID      = "me"
	unreadQuery = "is:unread"
)

// Config holds the connection settings shared by every user's connector.
type Config struct {
	// BaseURL overrides the API endpoint; empty uses the library default.
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64
	RateBurst  int
	MaxRetries int
	HTTPClient *http.Client

	// Limiter, when set, is shared with other connectors for the same user.
	Limiter *rate.Limiter

	// Location and Extractor configure task composition.
	Location  *time.Location
	Extractor composer.Extractor
}

// Connector reads one user's mailbox.
type Connector struct {
	token    string
	cfg      Config
	limiter  *rate.Limiter
	logger   logger.Logger
	composer *composer.Composer

	once   sync.Once
	svc    *gmail.Service
	svcErr error
}

func New(token string, cfg Config, log logger.Logger) *Connector {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = httpx.NewLimiter(cfg.RateLimit, cfg.RateBurst)
	}

	c := &Connector{
		token:   token,
		cfg:     cfg,
		limiter: limiter,
		logger:  log.With(logger.String("service", string(domain.ServiceMail))),
	}
	c.composer = composer.New(c, cfg.Extractor, cfg.Location, c.logger)
	return c
}

func (c *Connector) ServiceType() domain.ServiceType { return domain.ServiceMail }

// service lazily builds the API client, attaching the token as a bearer
// credential on every request.
func (c *Connector) service() (*gmail.Service, error) {
	if c.token == "" {
		return nil, domain.ErrMissingToken
	}

	c.once.Do(func() {
		base := c.cfg.HTTPClient
		if base == nil {
			base = &http.Client{Timeout: c.cfg.Timeout}
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token, TokenType: "Bearer"}))
		hc.Timeout = base.Timeout

		opts := []option.ClientOption{option.WithHTTPClient(hc)}
		if c.cfg.BaseURL != "" {
			opts = append(opts, option.WithEndpoint(strings.TrimSuffix(c.cfg.BaseURL, "/")+"/"))
		}

		c.svc, c.svcErr = gmail.NewService(context.Background(), opts...)
		if c.svcErr != nil {
			c.svcErr = fmt.Errorf("mail: create service: %w", c.svcErr)
		}
	})
	return c.svc, c.svcErr
}

// Ping verifies the token by reading the mailbox profile.
func (c *Connector) Ping(ctx context.Context) error {
	svc, err := c.service()
	if err != nil {
		return err
	}
	return c.call(ctx, func() error {
		_, err := svc.Users.GetProfile(userID).Context(ctx).Do()
		return err
	})
}

// call runs one API request under the limiter, retrying 429/5xx answers
// up to MaxRetries times.
func (c *Connector) call(ctx context.Context, fn func() error) error {
	return httpx.Retry(ctx, c.cfg.MaxRetries, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		return toAPIError(fn())
	})
}

// ListRecent returns up to limit messages, newest first. Failures yield an empty slice.
func (c *Connector) ListRecent(ctx context.Context, limit int) []domain.MailMessage {
	return c.list(ctx, "", limit, "recent")
}

// ListUnread returns up to limit unread messages. Failures yield an empty slice.
func (c *Connector) ListUnread(ctx context.Context, limit int) []domain.MailMessage {
	return c.list(ctx, unreadQuery, limit, "unread")
}

// Search returns up to limit messages matching query using the mailbox
// search syntax. Failures yield an empty slice.
func (c *Connector) Search(ctx context.Context, query string, limit int) []domain.MailMessage {
	return c.list(ctx, query, limit, "search")
}

// GetMessage fetches and normalizes one message. Unlike the list
// operations it propagates errors.
func (c *Connector) GetMessage(ctx context.Context, id string) (*domain.MailMessage, error) {
	svc, err := c.service()
	if err != nil {
		return nil, err
	}
	return c.getMessage(ctx, svc, id)
}

// CreateTaskFromMessage turns a message into a card on listID. It never
// fails loudly: any problem yields (nil, false).
func (c *Connector) CreateTaskFromMessage(ctx context.Context, messageID string, board composer.CardCreator, listID string) (*domain.TaskCard, bool) {
	return c.composer.CreateTaskFromMessage(ctx, messageID, board, listID)
}

// list fetches a page of ids then each message in turn. Any failure
// discards the whole result.
func (c *Connector) list(ctx context.Context, query string, limit int, op string) []domain.MailMessage {
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	messages, err := c.fetchMessages(ctx, query, limit)
	if err != nil {
		c.logger.Warn("failed to list messages",
			logger.String("op", op),
			logger.Error(err))
		return []domain.MailMessage{}
	}
	return messages
}

func (c *Connector) fetchMessages(ctx context.Context, query string, limit int) ([]domain.MailMessage, error) {
	svc, err := c.service()
	if err != nil {
		return nil, err
	}
	listCall := svc.Users.Messages.List(userID).MaxResults(int64(limit)).Context(ctx)
	if query != "" {
		listCall = listCall.Q(query)
	}
	var resp *gmail.ListMessagesResponse
	if err := c.call(ctx, func() error {
		var err error
		resp, err = listCall.Do()
		return err
	}); err != nil {
		return nil, err
	}

	messages := make([]domain.MailMessage, 0, len(resp.Messages))
	for _, ref := range resp.Messages {
		msg, err := c.getMessage(ctx, svc, ref.Id)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, nil
}

func (c *Connector) getMessage(ctx context.Context, svc *gmail.Service, id string) (*domain.MailMessage, error) {
	var m *gmail.Message
	if err := c.call(ctx, func() error {
		var err error
		m, err = svc.Users.Messages.Get(userID, id).Format("full").Context(ctx).Do()
		return err
	}); err != nil {
		return nil, err
	}
	return normalize(m), nil
}

func normalize(m *gmail.Message) *domain.MailMessage {
	var headers []*gmail.MessagePartHeader
	if m.Payload != nil {
		headers = m.Payload.Headers
	}

	labels := m.LabelIds
	if labels == nil {
		labels = []string{}
	}

	return &domain.MailMessage{
		ID:        m.Id,
		ThreadID:  m.ThreadId,
		From:      header(headers, "From"),
		Subject:   header(headers, "Subject"),
		Snippet:   m.Snippet,
		Timestamp: time.UnixMilli(m.InternalDate),
		LabelIDs:  labels,
	}
}

// header returns the first header named name, compared case-insensitively, or "".
func header(headers []*gmail.MessagePartHeader, name string) string {
	for _, h := range headers {
		if h != nil && strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// toAPIError maps library errors onto the shared upstream error type.
func toAPIError(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = strings.TrimSpace(gerr.Body)
		}
		apiErr := httpx.NewAPIError(string(domain.ServiceMail), gerr.Code, nil)
		apiErr.Message = msg
		return apiErr
	}
	return fmt.Errorf("mail: %w", err)
}
