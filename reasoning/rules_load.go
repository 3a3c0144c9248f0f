package reasoning

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ruleFile is the on-disk shape of one rules_file entry: a pattern, an
// action (select or reject), and a confidence value.
type ruleFile struct {
	Pattern         []string                  `json:"pattern" yaml:"pattern"`
	Select          []string                  `json:"select,omitempty" yaml:"select,omitempty"`
	Parallel        bool                      `json:"parallel,omitempty" yaml:"parallel,omitempty"`
	ParamsTemplate  map[string]map[string]any `json:"params_template,omitempty" yaml:"params_template,omitempty"`
	Reject          string                    `json:"reject,omitempty" yaml:"reject,omitempty"`
	Confidence      float64                   `json:"confidence" yaml:"confidence"`
}

// LoadRulesFile reads a JSON or YAML rule table (reasoner.rules_file) and
// returns it as an ordered []Rule, preserving declaration order so
// RuleTable's tie-breaking rule ("earlier rule order") is honored.
func LoadRulesFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reasoning: reading rules file: %w", err)
	}

	var raw []ruleFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("reasoning: parsing YAML rules file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("reasoning: parsing JSON rules file: %w", err)
		}
	default:
		return nil, fmt.Errorf("reasoning: unsupported rules file extension %q: use .json, .yaml, or .yml", ext)
	}

	rules := make([]Rule, 0, len(raw))
	for _, rf := range raw {
		rules = append(rules, Rule{
			Pattern:    rf.Pattern,
			Confidence: rf.Confidence,
			Action: RuleAction{
				Select:         rf.Select,
				Parallel:       rf.Parallel,
				ParamsTemplate: rf.ParamsTemplate,
				Reject:         rf.Reject,
			},
		})
	}
	return rules, nil
}
