package domain

import "time"

// StatusUnknown is the status given to a card whose list cannot be resolved.
const StatusUnknown = "Unknown"

// Board is a task-board container of lists.
type Board struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ShortURL string `json:"shortUrl"`
}

// List is a column on a board. Its name doubles as the card status.
type List struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	BoardID string `json:"boardId,omitempty"`
	Closed  bool   `json:"closed,omitempty"`
}

// Label is a colored tag attached to a card.
type Label struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// TaskCard is the normalized task unit.
//
// Status is synthesized from the name of the card's list. The task-board
// service has no first-class status, so "To Do"/"Done" style values are only
// as meaningful as the user's list names.
type TaskCard struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Due         *time.Time `json:"due,omitempty"`
	Completed   bool       `json:"completed"`
	BoardID     string     `json:"boardId"`
	ListID      string     `json:"listId"`
	Status      string     `json:"status,omitempty"`
	Labels      []Label    `json:"labels"`
	Assignees   []string   `json:"assignees"`
	URL         string     `json:"url,omitempty"`
}

// DueWithin reports whether the card has a due date in the closed interval [from, to].
func (c *TaskCard) DueWithin(from, to time.Time) bool {
	if c == nil || c.Due == nil {
		return false
	}
	return !c.Due.Before(from) && !c.Due.After(to)
}

// CardInput is the payload for creating a card.
type CardInput struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Due         *time.Time `json:"due,omitempty"`
}
