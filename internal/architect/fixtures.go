// Package architect turns free-text project descriptions into schema and
// workflow blueprints without calling a model. Its output is the fallback
// for every generation path in the engine.
package architect

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/aether-os/engine/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed fixtures.yaml
var fixturesYAML []byte

// Fixture names.
const (
	FixtureEcommerce = "ecommerce"
	FixtureBlog      = "blog"
	FixtureDefault   = "default"
)

// Blueprint is the {sql,nodes,edges} triple produced for a prompt.
type Blueprint struct {
	SQL   string        `json:"sql" yaml:"sql"`
	Nodes []models.Node `json:"nodes" yaml:"nodes"`
	Edges []models.Edge `json:"edges" yaml:"edges"`
}

type fixture struct {
	Blueprint `yaml:",inline"`
	Keywords  []string `yaml:"keywords"`
}

type plan struct {
	Blueprint   `yaml:",inline"`
	Description string `yaml:"description"`
}

type catalog struct {
	Fixtures      map[string]fixture `yaml:"fixtures"`
	SimulatedPlan plan               `yaml:"simulated_plan"`
	FallbackPlan  plan               `yaml:"fallback_plan"`
}

// matchOrder is the fixed precedence used when a prompt hits several families.
var matchOrder = []string{FixtureEcommerce, FixtureBlog}

var fixtures = mustLoadCatalog(fixturesYAML)

func mustLoadCatalog(raw []byte) catalog {
	var c catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		panic(fmt.Sprintf("architect: parse fixtures: %v", err))
	}
	for _, name := range []string{FixtureEcommerce, FixtureBlog, FixtureDefault} {
		if _, ok := c.Fixtures[name]; !ok {
			panic("architect: missing fixture " + name)
		}
	}
	return c
}

// MatchFixture returns the name and blueprint of the first fixture whose
// keywords occur in the lower-cased prompt, or the default fixture.
func MatchFixture(prompt string) (string, Blueprint) {
	p := strings.ToLower(prompt)
	for _, name := range matchOrder {
		f := fixtures.Fixtures[name]
		for _, kw := range f.Keywords {
			if strings.Contains(p, kw) {
				return name, f.Blueprint.clone()
			}
		}
	}
	return FixtureDefault, fixtures.Fixtures[FixtureDefault].Blueprint.clone()
}

// SimulatedPlan is served by the plan endpoint when no model is configured.
func SimulatedPlan() models.Plan { return fixtures.SimulatedPlan.toPlan() }

// FallbackPlan is substituted when the planning step fails.
func FallbackPlan() models.Plan { return fixtures.FallbackPlan.toPlan() }

func (p plan) toPlan() models.Plan {
	b := p.Blueprint.clone()
	return models.Plan{SQL: b.SQL, Nodes: b.Nodes, Edges: b.Edges, Description: p.Description}
}

// clone copies the slices so callers can mutate the result freely.
func (b Blueprint) clone() Blueprint {
	out := Blueprint{SQL: b.SQL}
	if b.Nodes != nil {
		out.Nodes = make([]models.Node, len(b.Nodes))
		for i, n := range b.Nodes {
			out.Nodes[i] = n.Clone()
		}
	}
	out.Edges = append([]models.Edge(nil), b.Edges...)
	return out
}
