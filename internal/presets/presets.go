// Package presets provides the static ammunition reference loads offered to
// callers as starting points for a calculation.
package presets

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/iwvelando/trajectory-calc/internal/ballistics"
	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var builtin []byte

// Preset is one factory load.
type Preset struct {
	ID                   string  `yaml:"id" json:"id"`
	Name                 string  `yaml:"name" json:"name"`
	Caliber              string  `yaml:"caliber" json:"caliber"`
	BulletWeight         float64 `yaml:"bulletWeight" json:"bulletWeight"`
	MuzzleVelocity       float64 `yaml:"muzzleVelocity" json:"muzzleVelocity"`
	BallisticCoefficient float64 `yaml:"ballisticCoefficient" json:"ballisticCoefficient"`
}

// Apply fills the projectile fields of in from the preset. Values the caller
// supplied explicitly are kept.
func (p Preset) Apply(in ballistics.Input) ballistics.Input {
	if in.BulletWeight == nil {
		in.BulletWeight = ballistics.Float(p.BulletWeight)
	}
	if in.MuzzleVelocity == nil {
		in.MuzzleVelocity = ballistics.Float(p.MuzzleVelocity)
	}
	if in.BallisticCoefficient == nil {
		in.BallisticCoefficient = ballistics.Float(p.BallisticCoefficient)
	}
	return in
}

// Catalog is an ordered, read-only set of presets.
type Catalog struct {
	presets []Preset
	byKey   map[string]int
}

type document struct {
	Presets []Preset `yaml:"presets"`
}

// Load returns the built-in catalog.
func Load() (*Catalog, error) {
	return Decode(bytes.NewReader(builtin))
}

// MustLoad is Load for package initialisation and tests.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// Decode reads a YAML preset document. Every preset needs a unique id and
// projectile values inside the calculator's accepted ranges.
func Decode(r io.Reader) (*Catalog, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse presets: %w", err)
	}

	c := &Catalog{byKey: make(map[string]int, len(doc.Presets)*2)}
	ids := make(map[string]bool, len(doc.Presets))
	for _, p := range doc.Presets {
		if strings.TrimSpace(p.ID) == "" {
			return nil, fmt.Errorf("preset %q has no id", p.Name)
		}
		if ids[key(p.ID)] {
			return nil, fmt.Errorf("duplicate preset id %q", p.ID)
		}
		ids[key(p.ID)] = true
		load := p.Apply(ballistics.Input{Distance: ballistics.Float(0)})
		if err := ballistics.ValidateInput(load); err != nil {
			return nil, fmt.Errorf("preset %q: %w", p.ID, err)
		}
		c.presets = append(c.presets, p)
	}

	// Ids win over names; the first preset to use a name keeps it.
	for i, p := range c.presets {
		if p.Name == "" || ids[key(p.Name)] {
			continue
		}
		if _, taken := c.byKey[key(p.Name)]; !taken {
			c.byKey[key(p.Name)] = i
		}
	}
	for i, p := range c.presets {
		c.byKey[key(p.ID)] = i
	}
	return c, nil
}

// All returns a copy of every preset in catalog order.
func (c *Catalog) All() []Preset {
	return append([]Preset(nil), c.presets...)
}

// Lookup finds a preset by id or display name, ignoring case.
func (c *Catalog) Lookup(name string) (Preset, bool) {
	i, ok := c.byKey[key(name)]
	if !ok {
		return Preset{}, false
	}
	return c.presets[i], true
}

func key(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
