// Package tariff holds the rate engine: jurisdiction routing, preferential
// program resolution and duty arithmetic. Everything here is pure and safe
// for concurrent use once a Rules value is built.
package tariff

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/tariff-engine/internal/core/domain"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// RulesFile is the on-disk shape of the routing and program tables.
type RulesFile struct {
	Baseline           string                `yaml:"baseline"`
	SearchJurisdiction string                `yaml:"search_jurisdiction"`
	Jurisdictions      []domain.Jurisdiction `yaml:"jurisdictions"`
	Programs           []domain.ProgramRule  `yaml:"programs"`
	Countries          map[string]string     `yaml:"countries"`
}

// Rules is the immutable routing table plus origin→program mapping.
type Rules struct {
	baseline      domain.Jurisdiction
	search        domain.Jurisdiction
	jurisdictions []domain.Jurisdiction
	byKey         map[string]domain.Jurisdiction
	countries     map[string]string
	programs      []domain.ProgramRule
	programByCode map[string]string
}

// DefaultRules builds Rules from the embedded table.
func DefaultRules() (*Rules, error) {
	return ParseRules(defaultRulesYAML)
}

// LoadRules reads a YAML rules file; an empty path selects the embedded table.
func LoadRules(path string) (*Rules, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRules()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tariff rules: %w", err)
	}
	return ParseRules(raw)
}

func ParseRules(raw []byte) (*Rules, error) {
	var file RulesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode tariff rules: %w", err)
	}
	return NewRules(file)
}

func NewRules(file RulesFile) (*Rules, error) {
	if len(file.Jurisdictions) == 0 {
		return nil, fmt.Errorf("tariff rules: at least one jurisdiction is required")
	}

	r := &Rules{
		byKey:         make(map[string]domain.Jurisdiction),
		countries:     make(map[string]string),
		programByCode: make(map[string]string),
	}

	for _, j := range file.Jurisdictions {
		code := normalizeKey(j.Code)
		if code == "" {
			return nil, fmt.Errorf("tariff rules: jurisdiction without code")
		}
		if _, dup := r.byKey[code]; dup {
			return nil, fmt.Errorf("tariff rules: duplicate jurisdiction key %q", code)
		}
		j.Code = code
		r.jurisdictions = append(r.jurisdictions, j)
		r.byKey[code] = j
		for _, alias := range j.Aliases {
			key := normalizeKey(alias)
			if existing, dup := r.byKey[key]; dup && existing.Code != code {
				return nil, fmt.Errorf("tariff rules: alias %q maps to both %s and %s", key, existing.Code, code)
			}
			r.byKey[key] = j
			r.countries[key] = code
		}
	}

	for name, code := range file.Countries {
		r.countries[normalizeKey(name)] = normalizeKey(code)
	}

	baseline, ok := r.byKey[normalizeKey(file.Baseline)]
	if !ok {
		return nil, fmt.Errorf("tariff rules: baseline %q is not a configured jurisdiction", file.Baseline)
	}
	r.baseline = baseline

	r.search = baseline
	if strings.TrimSpace(file.SearchJurisdiction) != "" {
		search, ok := r.byKey[normalizeKey(file.SearchJurisdiction)]
		if !ok {
			return nil, fmt.Errorf("tariff rules: search jurisdiction %q is not configured", file.SearchJurisdiction)
		}
		r.search = search
	}

	for _, p := range file.Programs {
		p.Key = strings.ToLower(strings.TrimSpace(p.Key))
		if p.Key == "" {
			return nil, fmt.Errorf("tariff rules: program without key")
		}
		origins := make([]string, 0, len(p.Origins))
		for _, origin := range p.Origins {
			code := r.NormalizeCountry(origin)
			if other, dup := r.programByCode[code]; dup {
				return nil, fmt.Errorf("tariff rules: origin %s mapped to programs %s and %s", code, other, p.Key)
			}
			r.programByCode[code] = p.Key
			origins = append(origins, code)
		}
		p.Origins = origins
		r.programs = append(r.programs, p)
	}

	return r, nil
}

// Baseline is the jurisdiction used for unrecognized arrival countries.
func (r *Rules) Baseline() domain.Jurisdiction {
	return r.baseline
}

// SearchJurisdiction is the single table keyword search runs against.
func (r *Rules) SearchJurisdiction() domain.Jurisdiction {
	return r.search
}

// Jurisdictions lists configured jurisdictions sorted by code.
func (r *Rules) Jurisdictions() []domain.Jurisdiction {
	out := append([]domain.Jurisdiction(nil), r.jurisdictions...)
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (r *Rules) Programs() []domain.ProgramRule {
	return append([]domain.ProgramRule(nil), r.programs...)
}

// ProgramFor returns the preferential program mapped to an origin country.
func (r *Rules) ProgramFor(origin string) (string, bool) {
	key, ok := r.programByCode[r.NormalizeCountry(origin)]
	return key, ok
}

// NormalizeCountry turns a country code or configured name into its code.
// Unknown input is returned upper-cased so callers can still compare it.
func (r *Rules) NormalizeCountry(country string) string {
	key := normalizeKey(country)
	if code, ok := r.countries[key]; ok {
		return code
	}
	return key
}

func normalizeKey(s string) string {
	// cases.Caser keeps state, so each call gets its own.
	upper := cases.Upper(language.Und).String(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-':
			return '_'
		default:
			return r
		}
	}, upper)
}
