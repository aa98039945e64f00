// Package connector selects and builds the adapter for each third-party
// service a user can connect.
package connector

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/MrSnakeDoc/dash/internal/composer"
	"github.com/MrSnakeDoc/dash/internal/config"
	"github.com/MrSnakeDoc/dash/internal/connector/httpx"
	"github.com/MrSnakeDoc/dash/internal/connector/mail"
	"github.com/MrSnakeDoc/dash/internal/connector/notes"
	"github.com/MrSnakeDoc/dash/internal/connector/taskboard"
	"github.com/MrSnakeDoc/dash/internal/domain"
	"github.com/MrSnakeDoc/dash/internal/logger"
)

// Connector is the capability shared by every service adapter.
type Connector interface {
	ServiceType() domain.ServiceType
	// Ping verifies the token against the upstream service.
	Ping(ctx context.Context) error
}

// TaskBoard lists and creates task cards.
// List operations return an empty slice when the upstream is unavailable.
type TaskBoard interface {
	Connector
	ListBoards(ctx context.Context) []domain.Board
	ListLists(ctx context.Context, boardID string) []domain.List
	ListCardsOnList(ctx context.Context, listID string) []domain.TaskCard
	ListCardsDueWithin(ctx context.Context, days int) []domain.TaskCard
	GetCard(ctx context.Context, cardID string) (*domain.TaskCard, error)
	CreateCard(ctx context.Context, listID string, in domain.CardInput) (*domain.TaskCard, bool)
}

// Notes lists, reads and creates workspace pages.
type Notes interface {
	Connector
	ListRecentPages(ctx context.Context, limit int) []domain.NotesPage
	SearchPages(ctx context.Context, query string) []domain.NotesPage
	CreatePage(ctx context.Context, title, parentID string) (*domain.NotesPage, error)
	GetPageContent(ctx context.Context, pageID string) (*domain.PageContent, error)
}

// Mail reads a mailbox and turns messages into task cards.
type Mail interface {
	Connector
	ListRecent(ctx context.Context, limit int) []domain.MailMessage
	ListUnread(ctx context.Context, limit int) []domain.MailMessage
	Search(ctx context.Context, query string, limit int) []domain.MailMessage
	GetMessage(ctx context.Context, id string) (*domain.MailMessage, error)
	CreateTaskFromMessage(ctx context.Context, messageID string, board composer.CardCreator, listID string) (*domain.TaskCard, bool)
}

// UnsupportedServiceTypeError is returned by New for an unknown tag.
type UnsupportedServiceTypeError struct {
	Tag string
}

func (e *UnsupportedServiceTypeError) Error() string {
	return fmt.Sprintf("unsupported service type: %q", e.Tag)
}

// Options carries process-wide connector settings.
type Options struct {
	Logger logger.Logger

	TrelloAPIKey  string
	TrelloBaseURL string
	NotionBaseURL string
	NotionVersion string
	GmailBaseURL  string

	Timeout    time.Duration
	RateLimit  float64
	RateBurst  int
	MaxRetries int
	HTTPClient *http.Client

	// Limiters shares one rate budget per (service, token) across every
	// connector built from these Options. Nil gives each connector its own.
	Limiters *httpx.Limiters

	Location  *time.Location
	Extractor composer.Extractor
}

// OptionsFromConfig maps the environment configuration onto Options.
func OptionsFromConfig(cfg *config.Config, log logger.Logger) Options {
	return Options{
		Logger:        log,
		TrelloAPIKey:  cfg.TrelloAPIKey,
		TrelloBaseURL: cfg.TrelloBaseURL,
		NotionBaseURL: cfg.NotionBaseURL,
		NotionVersion: cfg.NotionVersion,
		GmailBaseURL:  cfg.GmailBaseURL,
		Timeout:       cfg.ConnectorTimeout,
		RateLimit:     cfg.ConnectorRate,
		RateBurst:     cfg.ConnectorBurst,
		MaxRetries:    cfg.ConnectorRetries,
		Limiters:      httpx.NewLimiters(cfg.ConnectorRate, cfg.ConnectorBurst),
	}
}

// Builder constructs a connector for a service tag and token.
type Builder func(serviceType, token string) (Connector, error)

// Builder binds opts into a Builder. Connectors it builds for the same
// service and token share a rate limiter.
func (o Options) Builder() Builder {
	if o.Limiters == nil {
		o.Limiters = httpx.NewLimiters(o.RateLimit, o.RateBurst)
	}
	return func(serviceType, token string) (Connector, error) {
		return New(serviceType, token, o)
	}
}

// New builds the connector for serviceType, matched case-insensitively.
// It never returns a nil Connector without an error. An empty token is
// accepted: calls then degrade per operation.
func New(serviceType, token string, opts Options) (Connector, error) {
	st, ok := domain.ParseServiceType(serviceType)
	if !ok {
		return nil, &UnsupportedServiceTypeError{Tag: serviceType}
	}

	log := opts.Logger
	if log == nil {
		log = logger.New("error", false)
	}

	var limiter *rate.Limiter
	if opts.Limiters != nil {
		limiter = opts.Limiters.For(string(st), token)
	}

	switch st {
	case domain.ServiceTaskBoard:
		return taskboard.New(token, taskboard.Config{
			APIKey:     opts.TrelloAPIKey,
			BaseURL:    opts.TrelloBaseURL,
			Timeout:    opts.Timeout,
			RateLimit:  opts.RateLimit,
			RateBurst:  opts.RateBurst,
			MaxRetries: opts.MaxRetries,
			Limiter:    limiter,
			HTTPClient: opts.HTTPClient,
		}, log), nil
	case domain.ServiceNotes:
		return notes.New(token, notes.Config{
			BaseURL:    opts.NotionBaseURL,
			Version:    opts.NotionVersion,
			Timeout:    opts.Timeout,
			RateLimit:  opts.RateLimit,
			RateBurst:  opts.RateBurst,
			MaxRetries: opts.MaxRetries,
			Limiter:    limiter,
			HTTPClient: opts.HTTPClient,
		}, log), nil
	case domain.ServiceMail:
		return mail.New(token, mail.Config{
			BaseURL:    opts.GmailBaseURL,
			Timeout:    opts.Timeout,
			RateLimit:  opts.RateLimit,
			RateBurst:  opts.RateBurst,
			MaxRetries: opts.MaxRetries,
			Limiter:    limiter,
			HTTPClient: opts.HTTPClient,
			Location:   opts.Location,
			Extractor:  opts.Extractor,
		}, log), nil
	}

	return nil, &UnsupportedServiceTypeError{Tag: serviceType}
}

func AsTaskBoard(c Connector) (TaskBoard, bool) {
	tb, ok := c.(TaskBoard)
	return tb, ok
}

func AsNotes(c Connector) (Notes, bool) {
	n, ok := c.(Notes)
	return n, ok
}

func AsMail(c Connector) (Mail, bool) {
	m, ok := c.(Mail)
	return m, ok
}

var (
	_ TaskBoard = (*taskboard.Connector)(nil)
	_ Notes     = (*notes.Connector)(nil)
	_ Mail      = (*mail.Connector)(nil)
)
