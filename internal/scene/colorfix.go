package scene

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"
)

//go:embed colorfix.yaml
var defaultRulesYAML []byte

// shininessEpsilon absorbs float noise from exporters writing 0.34999999.
const shininessEpsilon = 1e-6

// MaterialMatch selects materials. Unset fields match anything; all set
// fields must match.
type MaterialMatch struct {
	Diffuse   string   `yaml:"diffuse,omitempty"`
	Specular  string   `yaml:"specular,omitempty"`
	Shininess *float64 `yaml:"shininess,omitempty"`
}

// MaterialPatch overrides material values. Unset fields are left alone.
type MaterialPatch struct {
	Diffuse   string   `yaml:"diffuse,omitempty"`
	Specular  string   `yaml:"specular,omitempty"`
	Shininess *float64 `yaml:"shininess,omitempty"`
}

type ColorRule struct {
	Name  string        `yaml:"name"`
	Match MaterialMatch `yaml:"match"`
	Set   MaterialPatch `yaml:"set"`
}

type ColorRules struct {
	Rules []ColorRule `yaml:"rules"`
}

// ColorFixer recolours known material values after load.
type ColorFixer struct {
	rules []ColorRule
}

// DefaultColorFixer returns the built-in rules for KiCad board exports.
func DefaultColorFixer() *ColorFixer {
	f, err := ParseColorRules(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("scene: embedded colour rules: %v", err))
	}
	return f
}

// LoadColorFixer reads rules from a YAML file.
func LoadColorFixer(path string) (*ColorFixer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseColorRules(data)
}

func ParseColorRules(data []byte) (*ColorFixer, error) {
	var rr ColorRules
	if err := yaml.Unmarshal(data, &rr); err != nil {
		return nil, err
	}
	for i, r := range rr.Rules {
		for _, h := range []string{r.Match.Diffuse, r.Match.Specular, r.Set.Diffuse, r.Set.Specular} {
			if h == "" {
				continue
			}
			if _, err := colorful.Hex(h); err != nil {
				return nil, fmt.Errorf("rule %d (%s): bad colour %q: %w", i, r.Name, h, err)
			}
		}
	}
	return &ColorFixer{rules: rr.Rules}, nil
}

func (f *ColorFixer) Rules() []ColorRule {
	return f.rules
}

// Apply runs the rules in order over every distinct material of the scene and
// returns how many materials changed. A rule sees the result of earlier rules.
func (f *ColorFixer) Apply(s *Scene) int {
	fixed := 0
	for _, m := range s.Materials() {
		changed := false
		for _, r := range f.rules {
			if r.Match.matches(m) {
				r.Set.apply(m)
				changed = true
			}
		}
		if changed {
			fixed++
		}
	}
	return fixed
}

func sameHex(c colorful.Color, hex string) bool {
	return c.Clamped().Hex() == strings.ToLower(hex)
}

func (mm MaterialMatch) matches(m *Material) bool {
	if mm.Diffuse == "" && mm.Specular == "" && mm.Shininess == nil {
		return false
	}
	if mm.Diffuse != "" && !sameHex(m.Diffuse, mm.Diffuse) {
		return false
	}
	if mm.Specular != "" && !sameHex(m.Specular, mm.Specular) {
		return false
	}
	if mm.Shininess != nil && math.Abs(m.Shininess-*mm.Shininess) > shininessEpsilon {
		return false
	}
	return true
}

func (p MaterialPatch) apply(m *Material) {
	if p.Diffuse != "" {
		m.Diffuse, _ = colorful.Hex(p.Diffuse)
	}
	if p.Specular != "" {
		m.Specular, _ = colorful.Hex(p.Specular)
	}
	if p.Shininess != nil {
		m.Shininess = *p.Shininess
	}
}
