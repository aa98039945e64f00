// Package composer derives records in one service from data in another,
// currently a task-board card from an email message.
package composer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MrSnakeDoc/dash/internal/domain"
	"github.com/MrSnakeDoc/dash/internal/logger"
)

// DueLayout formats the "Due:" line of a composed description.
const DueLayout = "Mon, Jan 2, 2006 3:04 PM"

// MessageSource fetches one normalized message.
type MessageSource interface {
	GetMessage(ctx context.Context, id string) (*domain.MailMessage, error)
}

// CardCreator creates a card on a list; a nil card means the upstream call failed.
type CardCreator interface {
	CreateCard(ctx context.Context, listID string, in domain.CardInput) (*domain.TaskCard, bool)
}

// Composer turns email messages into task cards.
type Composer struct {
	source    MessageSource
	extractor Extractor
	location  *time.Location
	logger    logger.Logger
}

// New creates a Composer. A nil extractor selects the RegexExtractor.
func New(source MessageSource, extractor Extractor, loc *time.Location, log logger.Logger) *Composer {
	if extractor == nil {
		extractor = NewRegexExtractor()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Composer{
		source:    source,
		extractor: extractor,
		location:  loc,
		logger:    log,
	}
}

// CreateTaskFromMessage fetches messageID, extracts a due date and an action
// phrase from its snippet and creates a card on listID.
//
// It is best-effort: any failure, including a panic in the extractor, yields
// (nil, false) and is only logged.
func (c *Composer) CreateTaskFromMessage(ctx context.Context, messageID string, board CardCreator, listID string) (card *domain.TaskCard, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("task composition panicked",
				logger.String("message_id", messageID),
				logger.String("panic", fmt.Sprint(r)))
			card, ok = nil, false
		}
	}()

	if board == nil || listID == "" {
		c.logger.Warn("task composition skipped: no target list",
			logger.String("message_id", messageID))
		return nil, false
	}

	msg, err := c.source.GetMessage(ctx, messageID)
	if err != nil {
		c.logger.Warn("task composition failed to fetch message",
			logger.String("message_id", messageID),
			logger.Error(err))
		return nil, false
	}

	in := c.Compose(msg)

	card, ok = board.CreateCard(ctx, listID, in)
	if !ok {
		c.logger.Warn("task composition failed to create card",
			logger.String("message_id", messageID),
			logger.String("list_id", listID))
		return nil, false
	}

	c.logger.Info("created task from email",
		logger.String("message_id", messageID),
		logger.String("card_id", card.ID))
	return card, true
}

// Compose builds the card payload for msg without calling any service.
func (c *Composer) Compose(msg *domain.MailMessage) domain.CardInput {
	due := c.extractor.ExtractDue(msg.Snippet, c.location)
	action := c.extractor.ExtractAction(msg.Snippet)

	return domain.CardInput{
		Name:        msg.Subject,
		Description: Describe(msg, action, due),
		Due:         due,
	}
}

// Describe renders the card description for msg.
func Describe(msg *domain.MailMessage, action string, due *time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Re: %s\nFrom: %s\n", msg.Subject, msg.From)
	if action != "" {
		fmt.Fprintf(&b, "Action: %s\n", action)
	}
	if due != nil {
		fmt.Fprintf(&b, "Due: %s", due.Format(DueLayout))
	}
	return b.String()
}
