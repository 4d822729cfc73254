// Package recognizer holds the recognizer registry: the YAML catalogue schema,
// the layered merge, and compilation into runtime patterns used by the scanner.
package recognizer

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/dativo-io/veil/internal/entity"
)

// File is the top-level YAML structure for a recognizer catalogue file.
// Mirrors Presidio's recognizer registry YAML format.
type File struct {
	Version     string   `yaml:"version"`
	Recognizers []Config `yaml:"recognizers"`
}

// Config is a single recognizer definition: a named bundle of patterns
// targeting one category, plus context keywords kept as score-boosting
// metadata for future use.
type Config struct {
	Name            string          `yaml:"name" json:"name"`
	SupportedEntity string          `yaml:"supported_entity" json:"supported_entity"`
	Enabled         *bool           `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Patterns        []PatternConfig `yaml:"patterns,omitempty" json:"patterns,omitempty"`
	Context         []string        `yaml:"context,omitempty" json:"context,omitempty"`
}

// PatternConfig is a single regex pattern within a recognizer. Group is the
// index of the capture group holding the sensitive span; 0 means the whole match.
type PatternConfig struct {
	Name  string  `yaml:"name" json:"name"`
	Regex string  `yaml:"regex" json:"regex"`
	Score float64 `yaml:"score" json:"score"`
	Group int     `yaml:"group,omitempty" json:"group,omitempty"`
}

// isEnabled returns true if the recognizer is enabled (defaults to true when nil).
func (c *Config) isEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// UnknownCategoryError is the configuration error returned when a requested
// category is not part of the fixed enumeration. It is fatal and surfaced
// before any document is processed.
type UnknownCategoryError struct {
	Name string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown category %q", e.Name)
}

// ParseFile parses recognizer YAML bytes.
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing recognizer YAML: %w", err)
	}
	return &f, nil
}

// LoadFile reads and parses a recognizer YAML file from disk. Returns nil
// (not an error) if the file does not exist, so callers can treat a missing
// operator override file as a no-op.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading recognizer file %s: %w", path, err)
	}
	return ParseFile(data)
}

// Merge layers recognizer configs: embedded defaults, then operator overrides,
// then caller-supplied recognizers. Later layers override earlier ones by
// matching on Name. New recognizers are appended.
func Merge(layers ...[]Config) []Config {
	index := make(map[string]int)
	var merged []Config

	for _, layer := range layers {
		for _, rc := range layer {
			if idx, exists := index[rc.Name]; exists {
				merged[idx] = rc
			} else {
				index[rc.Name] = len(merged)
				merged = append(merged, rc)
			}
		}
	}

	return merged
}

// Pattern is a compiled matching rule.
type Pattern struct {
	Name  string
	Regex *regexp.Regexp
	Score float64
	Group int
}

// Recognizer is a compiled, ready-to-scan recognizer bound to one category.
type Recognizer struct {
	Name     string
	Category entity.Category
	Patterns []Pattern
	Context  []string
}

// ParseCategories validates a list of category names. An empty list selects
// every known category.
func ParseCategories(names []string) ([]entity.Category, error) {
	if len(names) == 0 {
		return entity.All(), nil
	}
	cats := make([]entity.Category, 0, len(names))
	for _, n := range names {
		c, err := entity.Parse(n)
		if err != nil {
			return nil, &UnknownCategoryError{Name: n}
		}
		cats = append(cats, c)
	}
	return cats, nil
}

// Build compiles the recognizers owning the selected categories. Disabled
// recognizers are skipped. A recognizer whose supported_entity is not a known
// category is a configuration error, as is a regex that does not compile or a
// group index the regex does not have.
func Build(configs []Config, selected []entity.Category) ([]Recognizer, error) {
	want := make(map[entity.Category]bool, len(selected))
	for _, c := range selected {
		want[c] = true
	}

	var out []Recognizer
	for _, rc := range configs {
		if !rc.isEnabled() {
			continue
		}
		cat := entity.Category(rc.SupportedEntity)
		if !cat.Valid() {
			return nil, fmt.Errorf("recognizer %q: %w", rc.Name, &UnknownCategoryError{Name: rc.SupportedEntity})
		}
		if !want[cat] {
			continue
		}

		rec := Recognizer{
			Name:     rc.Name,
			Category: cat,
			Context:  rc.Context,
		}
		for _, p := range rc.Patterns {
			compiled, err := regexp.Compile(p.Regex)
			if err != nil {
				return nil, fmt.Errorf("compiling pattern %q in recognizer %q: %w", p.Name, rc.Name, err)
			}
			if p.Group < 0 || p.Group > compiled.NumSubexp() {
				return nil, fmt.Errorf("pattern %q in recognizer %q: group %d out of range (regex has %d groups)",
					p.Name, rc.Name, p.Group, compiled.NumSubexp())
			}
			rec.Patterns = append(rec.Patterns, Pattern{
				Name:  p.Name,
				Regex: compiled,
				Score: p.Score,
				Group: p.Group,
			})
		}
		out = append(out, rec)
	}

	return out, nil
}
