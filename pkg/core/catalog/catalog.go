package catalog

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// DefaultMultiplier applies to committees without a declared difficulty multiplier
const DefaultMultiplier = 1.0

var validate = validator.New()

// PortfolioKey identifies a claimable portfolio.
// Subgroup is empty for committees that are not divided into subgroups.
type PortfolioKey struct {
	Committee string
	Subgroup  string
	Name      string
}

// String renders the key as "COMMITTEE / Subgroup / Name"
func (k PortfolioKey) String() string {
	if k.Subgroup == "" {
		return fmt.Sprintf("%s / %s", k.Committee, k.Name)
	}
	return fmt.Sprintf("%s / %s / %s", k.Committee, k.Subgroup, k.Name)
}

// Entry is a single portfolio in the inventory
type Entry struct {
	Key PortfolioKey

	// Tier is the resolved tier (unranked portfolios resolve to Tier5)
	Tier Tier

	// Order is the declaration position across the whole catalog
	Order int
}

// Committee describes a committee and its inventory
type Committee struct {
	Code          string
	Name          string
	Multiplier    float64
	SubgroupLabel string
	Subgroups     []string
}

// HasSubgroups reports whether portfolios of this committee are qualified by a subgroup
func (c Committee) HasSubgroups() bool {
	return len(c.Subgroups) > 0
}

// Catalog is the read-only portfolio inventory with tier membership
type Catalog struct {
	committees []Committee
	entries    []Entry

	byCode map[string]int
	byKey  map[PortfolioKey]int

	// byName indexes entries by committee then portfolio name, across subgroups
	byName map[string]map[string][]int
}

type portfolioGroups struct {
	Tier1    []string `yaml:"tier1" validate:"dive,required"`
	Tier2    []string `yaml:"tier2" validate:"dive,required"`
	Tier3    []string `yaml:"tier3" validate:"dive,required"`
	Tier4    []string `yaml:"tier4" validate:"dive,required"`
	Tier5    []string `yaml:"tier5" validate:"dive,required"`
	Unranked []string `yaml:"unranked" validate:"dive,required"`
	Tier6    []string `yaml:"tier6" validate:"dive,required"`
}

func (g portfolioGroups) inOrder() []struct {
	tier  Tier
	names []string
} {
	return []struct {
		tier  Tier
		names []string
	}{
		{Tier1, g.Tier1},
		{Tier2, g.Tier2},
		{Tier3, g.Tier3},
		{Tier4, g.Tier4},
		{Tier5, g.Tier5},
		{Tier5, g.Unranked},
		{Tier6, g.Tier6},
	}
}

type subgroupFile struct {
	Name       string          `yaml:"name" validate:"required"`
	Portfolios portfolioGroups `yaml:"portfolios"`
}

type committeeFile struct {
	Code          string          `yaml:"code" validate:"required"`
	Name          string          `yaml:"name" validate:"required"`
	Multiplier    float64         `yaml:"multiplier" validate:"omitempty,gte=1,lte=1.5"`
	SubgroupLabel string          `yaml:"subgroupLabel"`
	Portfolios    portfolioGroups `yaml:"portfolios"`
	Subgroups     []subgroupFile  `yaml:"subgroups" validate:"dive"`
}

type catalogFile struct {
	Committees []committeeFile `yaml:"committees" validate:"required,min=1,dive"`
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the embedded catalog, parsed once per process
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Load(defaultCatalogYAML)
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", defaultErr))
	}
	return defaultCatalog
}

// Load parses and validates a catalog document
func Load(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	if err := validate.Struct(&file); err != nil {
		return nil, fmt.Errorf("catalog validation failed: %w", err)
	}

	c := &Catalog{
		byCode: make(map[string]int),
		byKey:  make(map[PortfolioKey]int),
		byName: make(map[string]map[string][]int),
	}

	for _, cf := range file.Committees {
		if _, exists := c.byCode[cf.Code]; exists {
			return nil, fmt.Errorf("duplicate committee %q", cf.Code)
		}

		committee := Committee{
			Code:          cf.Code,
			Name:          cf.Name,
			Multiplier:    cf.Multiplier,
			SubgroupLabel: cf.SubgroupLabel,
		}
		if committee.Multiplier == 0 {
			committee.Multiplier = DefaultMultiplier
		}
		c.byName[cf.Code] = make(map[string][]int)

		if len(cf.Subgroups) > 0 {
			if len(cf.Portfolios.Tier1)+len(cf.Portfolios.Tier2)+len(cf.Portfolios.Tier3)+
				len(cf.Portfolios.Tier4)+len(cf.Portfolios.Tier5)+len(cf.Portfolios.Unranked)+len(cf.Portfolios.Tier6) > 0 {
				return nil, fmt.Errorf("committee %q declares subgroups and ungrouped portfolios", cf.Code)
			}
			seen := make(map[string]bool)
			for _, sg := range cf.Subgroups {
				if seen[sg.Name] {
					return nil, fmt.Errorf("duplicate subgroup %q in committee %q", sg.Name, cf.Code)
				}
				seen[sg.Name] = true
				committee.Subgroups = append(committee.Subgroups, sg.Name)
				if err := c.addGroups(cf.Code, sg.Name, sg.Portfolios); err != nil {
					return nil, err
				}
			}
		} else if err := c.addGroups(cf.Code, "", cf.Portfolios); err != nil {
			return nil, err
		}

		c.byCode[cf.Code] = len(c.committees)
		c.committees = append(c.committees, committee)
	}

	return c, nil
}

func (c *Catalog) addGroups(committee, subgroup string, groups portfolioGroups) error {
	for _, group := range groups.inOrder() {
		for _, name := range group.names {
			key := PortfolioKey{Committee: committee, Subgroup: subgroup, Name: strings.TrimSpace(name)}
			if _, exists := c.byKey[key]; exists {
				return fmt.Errorf("portfolio %s is listed more than once", key)
			}
			idx := len(c.entries)
			c.entries = append(c.entries, Entry{Key: key, Tier: group.tier, Order: idx})
			c.byKey[key] = idx
			c.byName[committee][key.Name] = append(c.byName[committee][key.Name], idx)
		}
	}
	return nil
}

// Committees returns committees in declaration order
func (c *Catalog) Committees() []Committee {
	out := make([]Committee, len(c.committees))
	copy(out, c.committees)
	return out
}

// Committee returns the committee with the given code
func (c *Catalog) Committee(code string) (Committee, bool) {
	idx, ok := c.byCode[code]
	if !ok {
		return Committee{}, false
	}
	return c.committees[idx], true
}

// Entries returns every portfolio in declaration order
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Lookup finds the entry with exactly this key
func (c *Catalog) Lookup(key PortfolioKey) (Entry, bool) {
	idx, ok := c.byKey[key]
	if !ok {
		return Entry{}, false
	}
	return c.entries[idx], true
}

// Resolve finds a portfolio by committee, optional subgroup and name.
// For subgrouped committees an empty subgroup resolves only when the name is
// unique within the committee.
func (c *Catalog) Resolve(committee, subgroup, name string) (Entry, bool) {
	name = strings.TrimSpace(name)
	if subgroup != "" {
		return c.Lookup(PortfolioKey{Committee: committee, Subgroup: subgroup, Name: name})
	}

	candidates := c.byName[committee][name]
	if len(candidates) != 1 {
		return Entry{}, false
	}
	return c.entries[candidates[0]], true
}

// Classify returns the tier of a portfolio identified by committee and name.
// Tiers 1-4 are searched in order; an explicit tier6 seat resolves to Tier6;
// anything else, including portfolios absent from the catalog, is Tier5.
func (c *Catalog) Classify(committee, name string) Tier {
	candidates := c.byName[committee][strings.TrimSpace(name)]

	for _, tier := range GatedTiers {
		for _, idx := range candidates {
			if c.entries[idx].Tier == tier {
				return tier
			}
		}
	}

	for _, idx := range candidates {
		if c.entries[idx].Tier == Tier6 {
			return Tier6
		}
	}

	return Tier5
}

// Multiplier returns the committee difficulty multiplier (1.0 for unknown committees)
func (c *Catalog) Multiplier(committee string) float64 {
	if cm, ok := c.Committee(committee); ok {
		return cm.Multiplier
	}
	return DefaultMultiplier
}
