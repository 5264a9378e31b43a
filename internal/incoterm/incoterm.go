// Package incoterm maps Incoterm codes to the legs the buyer pays for.
package incoterm

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/quote-cli/internal/model"
)

// Table is an immutable Incoterm rule table.
type Table struct {
	rules map[string]model.LegPlan
}

// Default returns the standard rule table.
func Default() *Table {
	o := model.FlowOverseas
	return &Table{rules: map[string]model.LegPlan{
		"EXW": model.NewLegPlan(o, 1, 2, 3),
		"FCA": model.NewLegPlan(o, 2, 3),
		"FAS": model.NewLegPlan(o, 2, 3),
		"FOB": model.NewLegPlan(o, 2, 3),
		"CFR": model.NewLegPlan(o, 3),
		"CIF": model.NewLegPlan(o, 3),
		"CPT": model.NewLegPlan(o, 3),
		"CIP": model.NewLegPlan(o, 3),
		"DAP": model.NewLegPlan(model.FlowInland, 1),
		"DPU": model.NewLegPlan(model.FlowInland, 1),
		"DDP": model.NewLegPlan(o),
	}}
}

// Canonical upper-cases and trims a code.
func Canonical(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Lookup returns the leg plan for code. Inland plans always owe leg 1 only.
func (t *Table) Lookup(code string) (model.LegPlan, error) {
	c := Canonical(code)
	if c == "" {
		return model.LegPlan{}, eris.Wrap(model.ErrUnsupportedIncoterm, "incoterm: empty code")
	}
	plan, ok := t.rules[c]
	if !ok {
		return model.LegPlan{}, eris.Wrapf(model.ErrUnsupportedIncoterm, "incoterm: %q", c)
	}
	if plan.Flow == model.FlowInland {
		return model.NewLegPlan(model.FlowInland, model.LegOriginInland), nil
	}
	return model.NewLegPlan(plan.Flow, plan.Legs...), nil
}

// Supported reports whether code is in the table.
func (t *Table) Supported(code string) bool {
	_, ok := t.rules[Canonical(code)]
	return ok
}

// Codes lists the supported codes alphabetically.
func (t *Table) Codes() []string {
	out := make([]string, 0, len(t.rules))
	for k := range t.rules {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ruleFile is the YAML layout accepted by LoadRules:
//
//	rules:
//	  FCA: {flow: Overseas, legs: [2, 3]}
type ruleFile struct {
	Rules map[string]struct {
		Flow string `yaml:"flow"`
		Legs []int  `yaml:"legs"`
	} `yaml:"rules"`
}

// LoadRules reads a YAML override file and returns the default table with
// the file's rules layered on top.
func LoadRules(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "incoterm: read %s", path)
	}
	return ParseRules(data)
}

// ParseRules is LoadRules for in-memory YAML.
func ParseRules(data []byte) (*Table, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "incoterm: parse rules")
	}

	t := Default()
	for code, r := range f.Rules {
		var flow model.FlowType
		switch strings.ToLower(strings.TrimSpace(r.Flow)) {
		case "overseas":
			flow = model.FlowOverseas
		case "inland":
			flow = model.FlowInland
		default:
			return nil, eris.Errorf("incoterm: %s: unknown flow %q", code, r.Flow)
		}
		legs := make([]model.Leg, 0, len(r.Legs))
		for _, l := range r.Legs {
			if l < 1 || l > 3 {
				return nil, eris.Errorf("incoterm: %s: leg %d out of range", code, l)
			}
			legs = append(legs, model.Leg(l))
		}
		if len(legs) == 0 && flow == model.FlowInland {
			return nil, eris.Errorf("incoterm: %s: inland rule with no legs", code)
		}
		t.rules[Canonical(code)] = model.NewLegPlan(flow, legs...)
	}
	return t, nil
}
