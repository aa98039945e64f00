package notes

import (
	"sort"
	"strings"
)

// titlePropertyNames are tried, in order, before scanning by type.
var titlePropertyNames = []string{"title", "Title", "Name", "name"}

// extractTitle derives a display title from a page's raw properties.
// It never fails: unusable properties fall back to "Page " + id[:8].
func extractTitle(id string, properties map[string]any, childPageTitle string) (title string) {
	defer func() {
		if recover() != nil {
			title = fallbackTitle(id)
		}
	}()

	if childPageTitle != "" {
		return childPageTitle
	}

	for _, name := range titlePropertyNames {
		if prop, ok := properties[name].(map[string]any); ok {
			if t := firstText(prop); t != "" {
				return t
			}
		}
	}

	// Map order is random; scan in key order so the result is stable.
	keys := make([]string, 0, len(properties))
	for k := range properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, kind := range []string{"title", "rich_text"} {
		for _, k := range keys {
			prop, ok := properties[k].(map[string]any)
			if !ok || prop["type"] != kind {
				continue
			}
			if t := firstText(prop); t != "" {
				return t
			}
		}
	}

	return fallbackTitle(id)
}

func fallbackTitle(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return "Page " + id
}

// firstText returns the text of the first entry of a title or rich_text property.
func firstText(prop map[string]any) string {
	for _, key := range []string{"title", "rich_text"} {
		runs, ok := prop[key].([]any)
		if !ok || len(runs) == 0 {
			continue
		}
		if t := runText(runs[0]); t != "" {
			return t
		}
	}
	return ""
}

// richText concatenates the plain text of every run.
func richText(runs []any) string {
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(runText(r))
	}
	return b.String()
}

func runText(run any) string {
	m, ok := run.(map[string]any)
	if !ok {
		return ""
	}
	if s, ok := m["plain_text"].(string); ok && s != "" {
		return s
	}
	if text, ok := m["text"].(map[string]any); ok {
		if s, ok := text["content"].(string); ok {
			return s
		}
	}
	return ""
}
