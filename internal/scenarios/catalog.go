// Package scenarios loads the read-only catalog of named stress scenarios
package scenarios

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/enori/stock-skills/internal/models"
)

//go:embed catalog.yaml
var builtinCatalog []byte

// ErrInvalidScenario is returned for catalog entries that cannot be used.
var ErrInvalidScenario = errors.New("invalid scenario")

// MaxShock bounds the magnitude of any single factor shock.
const MaxShock = 1.0

type catalogFile struct {
	Scenarios []models.Scenario `yaml:"scenarios"`
}

// Catalog is an immutable, ordered set of scenarios. Safe for concurrent use.
type Catalog struct {
	scenarios []models.Scenario
	index     map[string]int
}

// Load reads a catalog from a YAML file, or the built-in catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scenario catalog %s: %w", path, err)
	}
	return c, nil
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(builtinCatalog)
}

// MustDefault returns the built-in catalog and panics if it does not validate.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse scenario catalog: %w", err)
	}
	return New(file.Scenarios)
}

// New validates scenarios and builds a catalog preserving their order.
func New(scenarios []models.Scenario) (*Catalog, error) {
	c := &Catalog{
		scenarios: make([]models.Scenario, 0, len(scenarios)),
		index:     make(map[string]int, len(scenarios)),
	}
	for _, s := range scenarios {
		if err := Validate(s); err != nil {
			return nil, err
		}
		if _, dup := c.index[s.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate scenario name %q", ErrInvalidScenario, s.Name)
		}
		c.index[s.Name] = len(c.scenarios)
		c.scenarios = append(c.scenarios, clone(s))
	}
	return c, nil
}

// Validate checks a single scenario definition.
func Validate(s models.Scenario) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: scenario name is empty", ErrInvalidScenario)
	}
	for factor, shock := range s.Shocks {
		if _, _, ok := models.ParseFactor(factor); !ok {
			return fmt.Errorf("%w: scenario %q: unrecognised factor %q", ErrInvalidScenario, s.Name, factor)
		}
		if math.IsNaN(shock) || math.IsInf(shock, 0) {
			return fmt.Errorf("%w: scenario %q: factor %q shock is not finite", ErrInvalidScenario, s.Name, factor)
		}
		if math.Abs(shock) > MaxShock {
			return fmt.Errorf("%w: scenario %q: factor %q shock %.4f outside [-%.0f, %.0f]",
				ErrInvalidScenario, s.Name, factor, shock, MaxShock, MaxShock)
		}
	}
	return nil
}

// Scenarios returns a copy of the scenarios in catalog order.
func (c *Catalog) Scenarios() []models.Scenario {
	out := make([]models.Scenario, len(c.scenarios))
	for i, s := range c.scenarios {
		out[i] = clone(s)
	}
	return out
}

// Get returns the named scenario.
func (c *Catalog) Get(name string) (models.Scenario, bool) {
	i, ok := c.index[name]
	if !ok {
		return models.Scenario{}, false
	}
	return clone(c.scenarios[i]), true
}

// Names returns scenario names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.scenarios))
	for i, s := range c.scenarios {
		names[i] = s.Name
	}
	return names
}

// Len returns the number of scenarios.
func (c *Catalog) Len() int {
	return len(c.scenarios)
}

func clone(s models.Scenario) models.Scenario {
	shocks := make(map[string]float64, len(s.Shocks))
	for k, v := range s.Shocks {
		shocks[k] = v
	}
	s.Shocks = shocks
	return s
}
