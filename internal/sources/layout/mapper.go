package layout

import (
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/dash/internal/domain"
)

// Catalog is a validated set of widget templates.
type Catalog struct {
	templates []WidgetTemplate
}

// NewCatalog validates config. Every template needs a type, and "requires",
// when set, must name a supported service.
func NewCatalog(config *TemplatesConfig) (*Catalog, error) {
	templates := make([]WidgetTemplate, 0, len(config.Widgets))
	for i, t := range config.Widgets {
		t.Type = strings.TrimSpace(t.Type)
		if t.Type == "" {
			return nil, fmt.Errorf("widget template %d: missing type", i)
		}
		if t.Requires != "" {
			st, ok := domain.ParseServiceType(t.Requires)
			if !ok {
				return nil, fmt.Errorf("widget template %d (%s): unknown service %q", i, t.Type, t.Requires)
			}
			t.Requires = string(st)
		}
		if t.Name == "" {
			t.Name = t.Type
		}
		templates = append(templates, t)
	}
	return &Catalog{templates: templates}, nil
}

// Load reads templates from filePath (empty for the built-in set) and validates them.
func Load(filePath string) (*Catalog, error) {
	config, err := NewLoader(filePath).Load()
	if err != nil {
		return nil, err
	}
	return NewCatalog(config)
}

// Len returns the number of templates.
func (c *Catalog) Len() int {
	return len(c.templates)
}

// WidgetsFor returns the widgets to seed for userID, given which services
// the user supplied a token for. Positions follow template order.
func (c *Catalog) WidgetsFor(userID int64, connected map[domain.ServiceType]bool) []*domain.Widget {
	widgets := make([]*domain.Widget, 0, len(c.templates))
	for _, t := range c.templates {
		if t.Requires != "" && !connected[domain.ServiceType(t.Requires)] {
			continue
		}

		grid := domain.DefaultGrid()
		if t.Grid != nil {
			grid = t.Grid.Normalize()
		}

		config := make(map[string]any, len(t.Config))
		for k, v := range t.Config {
			config[k] = v
		}

		widgets = append(widgets, &domain.Widget{
			UserID:   userID,
			Type:     t.Type,
			Name:     t.Name,
			Config:   config,
			Position: len(widgets),
			Grid:     grid,
		})
	}
	return widgets
}
