package layout

import "github.com/MrSnakeDoc/dash/internal/domain"

// TemplatesConfig is the top-level structure of a widget templates file.
type TemplatesConfig struct {
	Widgets []WidgetTemplate `yaml:"widgets"`
}

// WidgetTemplate describes one widget to seed for a new account.
type WidgetTemplate struct {
	Type     string           `yaml:"type"`
	Name     string           `yaml:"name"`
	Requires string           `yaml:"requires,omitempty"`
	Config   map[string]any   `yaml:"config,omitempty"`
	Grid     *domain.GridRect `yaml:"grid,omitempty"`
}
