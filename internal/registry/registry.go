// Package registry holds the built-in perspective catalog. Perspectives are
// loaded once at process start from an embedded YAML file and are immutable
// afterwards.
package registry

import (
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed perspectives.yaml
var catalogYAML []byte

// Category groups perspectives for listing and UI purposes.
type Category string

const (
	CategoryBusiness   Category = "business"
	CategoryStrategic  Category = "strategic"
	CategoryCompliance Category = "compliance"
	CategoryTechnical  Category = "technical"
	CategoryHuman      Category = "human"
)

// Categories is the fixed display order.
var Categories = []Category{
	CategoryBusiness,
	CategoryStrategic,
	CategoryCompliance,
	CategoryTechnical,
	CategoryHuman,
}

// Perspective is one built-in analysis persona. The prompt template instructs
// the model to answer with a JSON object; the field vocabulary varies per
// perspective and downstream code must not assume any particular schema.
type Perspective struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Category    Category `yaml:"category" json:"category"`
	CoreFocus   string   `yaml:"core_focus" json:"coreFocus"`
	Description string   `yaml:"description" json:"description"`
	Prompt      string   `yaml:"prompt" json:"-"`
}

// CategoryInfo carries the display metadata for one category.
type CategoryInfo struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

type catalog struct {
	Categories   map[Category]CategoryInfo `yaml:"categories"`
	Perspectives []Perspective             `yaml:"perspectives"`
}

// DefaultSelectors is the perspective set applied when a request names none.
var DefaultSelectors = []string{"investor", "legal", "strategy"}

var (
	all          []Perspective
	byID         map[string]Perspective
	categoryInfo map[Category]CategoryInfo
)

func init() {
	if err := load(catalogYAML); err != nil {
		panic(err)
	}
}

func load(raw []byte) error {
	var c catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return eris.Wrap(err, "registry: parse embedded catalog")
	}
	if len(c.Perspectives) == 0 {
		return eris.New("registry: embedded catalog is empty")
	}
	index := make(map[string]Perspective, len(c.Perspectives))
	for i := range c.Perspectives {
		p := &c.Perspectives[i]
		p.Prompt = strings.TrimSpace(p.Prompt)
		if p.ID == "" || p.Prompt == "" {
			return eris.Errorf("registry: perspective %q missing id or prompt", p.Name)
		}
		if _, dup := index[p.ID]; dup {
			return eris.Errorf("registry: duplicate perspective id %q", p.ID)
		}
		if _, ok := c.Categories[p.Category]; !ok {
			return eris.Errorf("registry: perspective %q has unknown category %q", p.ID, p.Category)
		}
		index[p.ID] = *p
	}
	all = c.Perspectives
	byID = index
	categoryInfo = c.Categories
	return nil
}

// Resolve looks up a built-in perspective by identifier.
func Resolve(id string) (Perspective, bool) {
	p, ok := byID[id]
	return p, ok
}

// All returns the catalog in its fixed definition order.
func All() []Perspective {
	out := make([]Perspective, len(all))
	copy(out, all)
	return out
}

// ByCategory returns the perspectives of one category, preserving catalog
// order.
func ByCategory(c Category) []Perspective {
	var out []Perspective
	for _, p := range all {
		if p.Category == c {
			out = append(out, p)
		}
	}
	return out
}

// Describe returns the display metadata for a category.
func Describe(c Category) (CategoryInfo, bool) {
	info, ok := categoryInfo[c]
	return info, ok
}
