// Package layout loads the default widget templates seeded into new accounts.
package layout

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultTemplates []byte

// templateVarRe matches {{DASH_VAR_NAME}} placeholders.
var templateVarRe = regexp.MustCompile(`\{\{\s*(DASH_VAR_[A-Z0-9_]+)\s*\}\}`)

// Loader reads widget templates from a file, or the built-in set when no
// file is configured.
type Loader struct {
	filePath string
}

func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Load reads and parses the templates file.
func (l *Loader) Load() (*TemplatesConfig, error) {
	data := defaultTemplates
	if l.filePath != "" {
		raw, err := os.ReadFile(l.filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read widget templates: %w", err)
		}
		data = raw
	}

	data = expandTemplateVariables(data)

	var config TemplatesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse widget templates: %w", err)
	}
	return &config, nil
}

// expandTemplateVariables substitutes {{DASH_VAR_X}} with the environment
// value of DASH_VAR_X, quoted so an empty value stays valid YAML.
// Example: parentId: {{DASH_VAR_NOTES_PARENT}} -> parentId: "abc123"
func expandTemplateVariables(data []byte) []byte {
	return templateVarRe.ReplaceAllFunc(data, func(m []byte) []byte {
		name := templateVarRe.FindSubmatch(m)[1]
		value := strings.ReplaceAll(os.Getenv(string(name)), `"`, `\"`)
		return []byte(`"` + value + `"`)
	})
}
