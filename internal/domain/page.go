package domain

import "time"

// Icon describes a page icon: an emoji, or an external/uploaded file URL.
type Icon struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// NotesPage is the normalized summary of a workspace page.
type NotesPage struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Icon           *Icon     `json:"icon,omitempty"`
	LastEditedTime time.Time `json:"lastEditedTime"`
	URL            string    `json:"url"`
}

// Block is one normalized content block of a page.
type Block struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Text        string         `json:"text"`
	Content     map[string]any `json:"content,omitempty"`
	HasChildren bool           `json:"hasChildren"`
}

// PageContent is a page's raw metadata plus its ordered blocks.
type PageContent struct {
	Page   map[string]any `json:"page"`
	Blocks []Block        `json:"blocks"`
}
