package notes

import (
	"encoding/json"
	"time"

	"github.com/MrSnakeDoc/dash/internal/domain"
)

type searchRequest struct {
	Query    string       `json:"query,omitempty"`
	Filter   searchFilter `json:"filter"`
	Sort     searchSort   `json:"sort"`
	PageSize int          `json:"page_size"`
}

type searchFilter struct {
	Property string `json:"property"`
	Value    string `json:"value"`
}

type searchSort struct {
	Direction string `json:"direction"`
	Timestamp string `json:"timestamp"`
}

// searchResponse keeps results raw so one malformed page cannot fail the batch.
type searchResponse struct {
	Results []json.RawMessage `json:"results"`
}

type createPageRequest struct {
	Parent     pageParent     `json:"parent"`
	Properties map[string]any `json:"properties"`
}

type pageParent struct {
	PageID string `json:"page_id"`
}

type blockChildrenResponse struct {
	Results    []map[string]any `json:"results"`
	HasMore    bool             `json:"has_more"`
	NextCursor *string          `json:"next_cursor"`
}

type apiFile struct {
	URL string `json:"url"`
}

type apiIcon struct {
	Type     string   `json:"type"`
	Emoji    string   `json:"emoji"`
	External *apiFile `json:"external"`
	File     *apiFile `json:"file"`
}

// apiPage decodes only the id and url strictly. The other fields are parsed
// best-effort and fall back to zero values.
type apiPage struct {
	ID             string          `json:"id"`
	URL            string          `json:"url"`
	LastEditedTime json.RawMessage `json:"last_edited_time"`
	Icon           json.RawMessage `json:"icon"`
	Properties     json.RawMessage `json:"properties"`
	ChildPage      json.RawMessage `json:"child_page"`
}

func (p apiPage) toDomain() domain.NotesPage {
	return domain.NotesPage{
		ID:             p.ID,
		Title:          extractTitle(p.ID, p.properties(), p.childTitle()),
		Icon:           p.icon().toDomain(),
		LastEditedTime: p.editedAt(),
		URL:            p.URL,
	}
}

func (p apiPage) editedAt() time.Time {
	var s string
	if json.Unmarshal(p.LastEditedTime, &s) != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (p apiPage) properties() map[string]any {
	var props map[string]any
	if json.Unmarshal(p.Properties, &props) != nil {
		return nil
	}
	return props
}

func (p apiPage) childTitle() string {
	var child struct {
		Title string `json:"title"`
	}
	if json.Unmarshal(p.ChildPage, &child) != nil {
		return ""
	}
	return child.Title
}

func (p apiPage) icon() *apiIcon {
	var icon apiIcon
	if len(p.Icon) == 0 || json.Unmarshal(p.Icon, &icon) != nil {
		return nil
	}
	return &icon
}

func (i *apiIcon) toDomain() *domain.Icon {
	if i == nil {
		return nil
	}
	switch i.Type {
	case "emoji":
		if i.Emoji != "" {
			return &domain.Icon{Type: "emoji", Value: i.Emoji}
		}
	case "external":
		if i.External != nil && i.External.URL != "" {
			return &domain.Icon{Type: "external", Value: i.External.URL}
		}
	case "file":
		if i.File != nil && i.File.URL != "" {
			return &domain.Icon{Type: "file", Value: i.File.URL}
		}
	}
	return nil
}
