package taskboard

import (
	"encoding/json"
	"time"

	"github.com/MrSnakeDoc/dash/internal/domain"
)

// Upstream payloads, limited to the fields the dashboard reads.

type apiBoard struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ShortURL string `json:"shortUrl"`
}

type apiList struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IDBoard string `json:"idBoard"`
	Closed  bool   `json:"closed"`
}

type apiLabel struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type apiMember struct {
	ID       string `json:"id"`
	Initials string `json:"initials"`
}

type apiCard struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Desc        string      `json:"desc"`
	Due         json.RawMessage `json:"due"`
	DueComplete bool        `json:"dueComplete"`
	Closed      bool        `json:"closed"`
	IDBoard     string      `json:"idBoard"`
	IDList      string      `json:"idList"`
	ShortURL    string      `json:"shortUrl"`
	Labels      []apiLabel  `json:"labels"`
	Members     []apiMember `json:"members"`
}

func (b apiBoard) toDomain() domain.Board {
	return domain.Board{ID: b.ID, Name: b.Name, ShortURL: b.ShortURL}
}

func (l apiList) toDomain() domain.List {
	return domain.List{ID: l.ID, Name: l.Name, BoardID: l.IDBoard, Closed: l.Closed}
}

func (c apiCard) toDomain() domain.TaskCard {
	labels := make([]domain.Label, 0, len(c.Labels))
	for _, l := range c.Labels {
		labels = append(labels, domain.Label{ID: l.ID, Name: l.Name, Color: l.Color})
	}

	assignees := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		if m.Initials != "" {
			assignees = append(assignees, m.Initials)
		}
	}

	return domain.TaskCard{
		ID:          c.ID,
		Title:       c.Name,
		Description: c.Desc,
		Due:         parseDue(c.Due),
		Completed:   c.DueComplete,
		BoardID:     c.IDBoard,
		ListID:      c.IDList,
		Labels:      labels,
		Assignees:   assignees,
		URL:         c.ShortURL,
	}
}

// parseDue returns nil unless raw is a non-empty RFC3339 string.
func parseDue(raw json.RawMessage) *time.Time {
	var s string
	if json.Unmarshal(raw, &s) != nil || s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

// decodeCards decodes each card on its own and drops the ones that do not
// fit apiCard, so one bad record cannot hide the rest of a list.
func decodeCards(raw []json.RawMessage, log func(index int, err error)) []apiCard {
	cards := make([]apiCard, 0, len(raw))
	for i, r := range raw {
		var c apiCard
		if err := json.Unmarshal(r, &c); err != nil {
			log(i, err)
			continue
		}
		cards = append(cards, c)
	}
	return cards
}
