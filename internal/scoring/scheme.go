// Package scoring computes composite scores for candidate parcels from the
// reference zones within walking distance of each parcel.
package scoring

import (
	"os"
	"slices"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// CategorySpec is one named group of indicators.
type CategorySpec struct {
	Heading    string   `yaml:"heading" json:"heading"`
	Indicators []string `yaml:"indicators" json:"indicators"`
}

// SchemeSpec is the serializable form of a scoring scheme.
type SchemeSpec struct {
	Categories []CategorySpec `yaml:"categories" json:"categories"`
	// Negative lists indicators where a higher value is a worse outcome.
	Negative   []string `yaml:"negative" json:"negative"`
	NormPrefix string   `yaml:"norm_prefix" json:"norm_prefix"`
	// ZoneKey is the zone attribute reported as the parcel's dominant zone.
	ZoneKey string `yaml:"zone_key" json:"zone_key"`
}

// Scheme is a validated, immutable scoring configuration.
type Scheme struct {
	spec       SchemeSpec
	indicators []string
	categoryOf map[string]string
	negative   map[string]bool
}

// DefaultSpec returns the four fixed categories and the negative-impact
// indicators used for the Scottish datazone scoring.
func DefaultSpec() SchemeSpec {
	return SchemeSpec{
		Categories: []CategorySpec{
			{
				Heading: "Eradicating_Child_Poverty",
				Indicators: []string{
					"HEALTH OUTCOMES",
					"CHILDREN IN FAMILIES WITH LIMITED RESOURCES",
					"CHILD BENEFIT",
				},
			},
			{
				Heading: "Growing_the_Economy",
				Indicators: []string{
					"INDEX OF MULTIPLE DEPRIVATION",
					"BUSINESS DEMOGRAPHY",
					"ECONOMIC ACTIVITY",
					"HOUSE SALES PRICE",
					"EARNINGS",
					"UNDEREMPLOYMENT",
				},
			},
			{
				Heading: "Tackling_the_Climate_Emergency",
				Indicators: []string{
					"CAR OWNERSHIP",
					"HOUSING QUALITY",
					"ENERGY CONSUMPTION",
					"POPULATION ESTIMATES",
				},
			},
			{
				Heading: "Ensuring_High_Quality_and_Sustainable_Public_Services",
				Indicators: []string{
					"LOCAL SERVICE SATISFACTION",
					"ACCESS TO PUBLIC TRANSPORT",
					"BUS ACCESSIBILITY",
					"GEOGRAPHIC ACCESS TO SERVICES INDICATOR",
				},
			},
		},
		Negative: []string{
			"CHILDREN IN FAMILIES WITH LIMITED RESOURCES",
			"INDEX OF MULTIPLE DEPRIVATION",
			"ENERGY CONSUMPTION",
			"CHILD BENEFIT",
			"HEALTH OUTCOMES",
			"GEOGRAPHIC ACCESS TO SERVICES INDICATOR",
		},
		NormPrefix: "norm_",
		ZoneKey:    "DataZone",
	}
}

// DefaultScheme returns the compiled default scheme.
func DefaultScheme() *Scheme {
	s, err := NewScheme(DefaultSpec())
	if err != nil {
		panic(err)
	}
	return s
}

// NewScheme validates spec and compiles it. The spec is deep-copied so later
// changes to the caller's slices do not leak into the scheme.
func NewScheme(spec SchemeSpec) (*Scheme, error) {
	if len(spec.Categories) == 0 {
		return nil, eris.New("scoring: scheme has no categories")
	}

	s := &Scheme{
		categoryOf: make(map[string]string),
		negative:   make(map[string]bool, len(spec.Negative)),
	}
	s.spec.NormPrefix = spec.NormPrefix
	s.spec.ZoneKey = spec.ZoneKey

	headings := make(map[string]bool, len(spec.Categories))
	for _, c := range spec.Categories {
		if c.Heading == "" {
			return nil, eris.New("scoring: category with empty heading")
		}
		if headings[c.Heading] {
			return nil, eris.Errorf("scoring: duplicate category %q", c.Heading)
		}
		headings[c.Heading] = true
		if len(c.Indicators) == 0 {
			return nil, eris.Errorf("scoring: category %q has no indicators", c.Heading)
		}
		for _, ind := range c.Indicators {
			if ind == "" {
				return nil, eris.Errorf("scoring: empty indicator in category %q", c.Heading)
			}
			if prev, ok := s.categoryOf[ind]; ok {
				return nil, eris.Errorf("scoring: indicator %q listed in both %q and %q", ind, prev, c.Heading)
			}
			s.categoryOf[ind] = c.Heading
			s.indicators = append(s.indicators, ind)
		}
		s.spec.Categories = append(s.spec.Categories, CategorySpec{
			Heading:    c.Heading,
			Indicators: slices.Clone(c.Indicators),
		})
	}

	for _, n := range spec.Negative {
		if _, ok := s.categoryOf[n]; !ok {
			return nil, eris.Errorf("scoring: negative indicator %q is not in any category", n)
		}
		s.negative[n] = true
		s.spec.Negative = append(s.spec.Negative, n)
	}

	return s, nil
}

// LoadScheme reads a YAML scheme file. Unset prefix and zone key fall back
// to the defaults.
func LoadScheme(path string) (*Scheme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scoring: read scheme %s", path)
	}
	def := DefaultSpec()
	spec := SchemeSpec{NormPrefix: def.NormPrefix, ZoneKey: def.ZoneKey}
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, eris.Wrapf(err, "scoring: parse scheme %s", path)
	}
	return NewScheme(spec)
}

// Spec returns a copy of the scheme's serializable form.
func (s *Scheme) Spec() SchemeSpec {
	out := SchemeSpec{
		NormPrefix: s.spec.NormPrefix,
		ZoneKey:    s.spec.ZoneKey,
		Negative:   slices.Clone(s.spec.Negative),
	}
	for _, c := range s.spec.Categories {
		out.Categories = append(out.Categories, CategorySpec{
			Heading:    c.Heading,
			Indicators: slices.Clone(c.Indicators),
		})
	}
	return out
}

// Indicators returns every indicator name in category order.
func (s *Scheme) Indicators() []string {
	return slices.Clone(s.indicators)
}

// Category returns the heading of the category containing indicator.
func (s *Scheme) Category(indicator string) string {
	return s.categoryOf[indicator]
}

// IsNegative reports whether higher values of indicator are worse.
func (s *Scheme) IsNegative(indicator string) bool {
	return s.negative[indicator]
}

// NormKey returns the property name of the normalized indicator.
func (s *Scheme) NormKey(indicator string) string {
	return s.spec.NormPrefix + indicator
}

// NormPrefix returns the normalized-field prefix.
func (s *Scheme) NormPrefix() string {
	return s.spec.NormPrefix
}

// ZoneKey returns the zone attribute used for the dominant zone.
func (s *Scheme) ZoneKey() string {
	return s.spec.ZoneKey
}
