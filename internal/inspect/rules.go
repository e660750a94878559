package inspect

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"tidysheet/internal/frame"
)

// Rule checks every cell of one column. Check is a validator tag such as
// "gte=60,lte=250" or "oneof=M F"; Required flags missing cells.
type Rule struct {
	Name     string `yaml:"name"`
	Column   string `yaml:"column"`
	Check    string `yaml:"check"`
	Required bool   `yaml:"required"`
}

type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

type Violation struct {
	Rule   string
	Row    int
	Column string
	Value  string
	Check  string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: row %d %s=%q fails %s", v.Rule, v.Row, v.Column, v.Value, v.Check)
}

// LoadRules reads a YAML rule file.
func LoadRules(path string) ([]Rule, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var set RuleSet
	if err := yaml.Unmarshal(content, &set); err != nil {
		return nil, fmt.Errorf("failed to parse rules %s: %w", path, err)
	}
	if len(set.Rules) == 0 {
		return nil, fmt.Errorf("rule file %s has no rules", path)
	}
	for i := range set.Rules {
		r := &set.Rules[i]
		if r.Column == "" {
			return nil, frame.InvalidArgument("rule %d in %s has no column", i+1, path)
		}
		if r.Name == "" {
			r.Name = r.Column
		}
	}
	return set.Rules, nil
}

// Validate applies rules to t and returns every failing cell, rule by rule
// in row order.
func Validate(t *frame.Table, rules []Rule) ([]Violation, error) {
	v := validator.New()
	var out []Violation
	for _, rule := range rules {
		col, err := t.Col(rule.Column)
		if err != nil {
			return nil, err
		}
		for i, value := range col.Values {
			if value == nil {
				if rule.Required {
					out = append(out, Violation{Rule: rule.Name, Row: i + 1, Column: rule.Column, Value: "NA", Check: "required"})
				}
				continue
			}
			if rule.Check == "" {
				continue
			}
			ok, err := checkValue(v, value, rule.Check)
			if err != nil {
				return nil, frame.InvalidArgument("rule %q: %v", rule.Name, err)
			}
			if !ok {
				out = append(out, Violation{Rule: rule.Name, Row: i + 1, Column: rule.Column, Value: frame.Format(value), Check: rule.Check})
			}
		}
	}
	return out, nil
}

// checkValue runs one validator tag. The validator panics on unknown tags,
// which is reported as an error instead.
func checkValue(v *validator.Validate, value any, tag string) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bad check %q: %v", tag, r)
		}
	}()
	verr := v.Var(value, tag)
	if verr == nil {
		return true, nil
	}
	if _, isFieldErr := verr.(validator.ValidationErrors); isFieldErr {
		return false, nil
	}
	return false, verr
}
