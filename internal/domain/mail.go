package domain

import "time"

// MailMessage is the normalized email-message unit.
type MailMessage struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"threadId,omitempty"`
	From      string    `json:"from"`
	Subject   string    `json:"subject"`
	Snippet   string    `json:"snippet"`
	Timestamp time.Time `json:"timestamp"`
	LabelIDs  []string  `json:"labelIds"`
}

// Unread reports whether the message carries the UNREAD label.
func (m *MailMessage) Unread() bool {
	for _, l := range m.LabelIDs {
		if l == "UNREAD" {
			return true
		}
	}
	return false
}
