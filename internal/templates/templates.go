// Package templates provides predefined avatars and composite assemblies
// (clusters, dumbbells, containers, hoppers) built from an embedded YAML
// catalogue.
package templates

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"scenecore/pkg/domain"
)

//go:embed catalogue.yaml
var catalogueYAML []byte

// ErrUnknownTemplate is returned for names absent from the catalogue.
var ErrUnknownTemplate = errors.New("unknown avatar template")

// Range bounds an adjustable template parameter.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Template describes one predefined avatar. Params are keyed by project file
// field names.
type Template struct {
	Name        string            `yaml:"name"`
	Label       string            `yaml:"label"`
	Description string            `yaml:"description"`
	Category    string            `yaml:"category"`
	Dimension   int               `yaml:"dimension"`
	Kind        domain.AvatarKind `yaml:"kind"`
	Params      map[string]any    `yaml:"params"`
	Schema      map[string]Range  `yaml:"schema"`
}

// Catalogue indexes templates by dimension and name.
type Catalogue struct {
	byDim map[int]map[string]Template
}

// Parse decodes a catalogue document and checks every template builds a
// valid avatar with its defaults.
func Parse(data []byte) (*Catalogue, error) {
	var doc struct {
		Templates []Template `yaml:"templates"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse template catalogue: %w", err)
	}
	c := &Catalogue{byDim: map[int]map[string]Template{}}
	for _, t := range doc.Templates {
		if t.Dimension != 2 && t.Dimension != 3 {
			return nil, fmt.Errorf("template %s: dimension must be 2 or 3, got %d", t.Name, t.Dimension)
		}
		if c.byDim[t.Dimension] == nil {
			c.byDim[t.Dimension] = map[string]Template{}
		}
		if _, dup := c.byDim[t.Dimension][t.Name]; dup {
			return nil, fmt.Errorf("template %s declared twice for dimension %d", t.Name, t.Dimension)
		}
		c.byDim[t.Dimension][t.Name] = t
		if _, err := t.build(make([]float64, t.Dimension), "check", "check", "", nil); err != nil {
			return nil, fmt.Errorf("template %s: %w", t.Name, err)
		}
	}
	return c, nil
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalogue
)

// Default returns the embedded catalogue. It panics if the embedded document
// is malformed, which only a broken build can cause.
func Default() *Catalogue {
	defaultOnce.Do(func() {
		c, err := Parse(catalogueYAML)
		if err != nil {
			panic(err)
		}
		defaultCat = c
	})
	return defaultCat
}

// Get returns the named template for dimension.
func (c *Catalogue) Get(name string, dimension int) (Template, error) {
	t, ok := c.byDim[dimension][name]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s (%dD)", ErrUnknownTemplate, name, dimension)
	}
	return t, nil
}

// List returns the templates available in dimension ordered by category then
// name.
func (c *Catalogue) List(dimension int) []Template {
	out := make([]Template, 0, len(c.byDim[dimension]))
	for _, t := range c.byDim[dimension] {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Categories groups template names by category for dimension.
func (c *Catalogue) Categories(dimension int) map[string][]string {
	out := map[string][]string{}
	for _, t := range c.List(dimension) {
		out[t.Category] = append(out[t.Category], t.Name)
	}
	return out
}

// Instantiate builds an avatar from the named template. Overrides replace
// default parameters and must stay within the template's schema.
func (c *Catalogue) Instantiate(name string, dimension int, center []float64, material, model, color string, overrides map[string]float64) (domain.Avatar, error) {
	t, err := c.Get(name, dimension)
	if err != nil {
		return domain.Avatar{}, err
	}
	return t.build(center, material, model, color, overrides)
}

// Instantiate builds an avatar from the embedded catalogue.
func Instantiate(name string, dimension int, center []float64, material, model, color string, overrides map[string]float64) (domain.Avatar, error) {
	return Default().Instantiate(name, dimension, center, material, model, color, overrides)
}

func (t Template) build(center []float64, material, model, color string, overrides map[string]float64) (domain.Avatar, error) {
	record := make(map[string]any, len(t.Params)+len(overrides)+5)
	for k, v := range t.Params {
		record[k] = v
	}
	for k, v := range overrides {
		bounds, ok := t.Schema[k]
		if !ok {
			return domain.Avatar{}, domain.ValidationError{Entity: domain.EntityAvatar, Field: k, Message: fmt.Sprintf("%s does not accept %s", t.Name, k)}
		}
		if v < bounds.Min || v > bounds.Max {
			return domain.Avatar{}, domain.ValidationError{Entity: domain.EntityAvatar, Field: k, Message: fmt.Sprintf("%g outside [%g, %g]", v, bounds.Min, bounds.Max)}
		}
		record[k] = v
	}
	if color == "" {
		color = domain.DefaultColor
	}
	record["type"] = t.Kind
	record["center"] = center
	record["material"] = material
	record["model"] = model
	record["color"] = color
	data, err := json.Marshal(record)
	if err != nil {
		return domain.Avatar{}, fmt.Errorf("encode template %s: %w", t.Name, err)
	}
	var a domain.Avatar
	if err := json.Unmarshal(data, &a); err != nil {
		return domain.Avatar{}, err
	}
	if err := domain.ValidateAvatar(a, t.Dimension); err != nil {
		return domain.Avatar{}, err
	}
	return a, nil
}
