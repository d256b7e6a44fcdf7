package classify

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/expatdesk/docvault/internal/core/domain"
)

//go:embed rules.yaml
var rulesYAML []byte

// Rule matches a document type by keyword patterns. Read-only after load.
type Rule struct {
	Type       domain.DocumentType `yaml:"type"`
	Priority   int                 `yaml:"priority"`
	Confidence float64             `yaml:"confidence"`
	Patterns   []string            `yaml:"patterns"`
	Exclude    []string            `yaml:"exclude"`
	Tags       []string            `yaml:"tags"`
}

type ruleSet struct {
	Vocabulary []string `yaml:"vocabulary"`
	Rules      []Rule   `yaml:"rules"`
}

var (
	rules      []Rule
	vocabulary map[string]struct{}
)

func init() {
	loaded, err := loadRules(rulesYAML)
	if err != nil {
		panic(fmt.Sprintf("classify: embedded rule table is invalid: %v", err))
	}
	rules = loaded.Rules
	vocabulary = make(map[string]struct{}, len(loaded.Vocabulary))
	for _, tag := range loaded.Vocabulary {
		vocabulary[tag] = struct{}{}
	}
}

func loadRules(raw []byte) (ruleSet, error) {
	var set ruleSet
	if err := yaml.Unmarshal(raw, &set); err != nil {
		return ruleSet{}, fmt.Errorf("parse rules yaml: %w", err)
	}
	if len(set.Rules) == 0 {
		return ruleSet{}, fmt.Errorf("rule table is empty")
	}
	if len(set.Vocabulary) == 0 {
		return ruleSet{}, fmt.Errorf("tag vocabulary is empty")
	}
	allowed := make(map[string]struct{}, len(set.Vocabulary))
	for _, tag := range set.Vocabulary {
		allowed[tag] = struct{}{}
	}
	for _, rule := range set.Rules {
		if rule.Type == "" || len(rule.Patterns) == 0 {
			return ruleSet{}, fmt.Errorf("rule %q: type and patterns are required", rule.Type)
		}
		if rule.Confidence <= 0 || rule.Confidence > 1 {
			return ruleSet{}, fmt.Errorf("rule %q: confidence %v out of range", rule.Type, rule.Confidence)
		}
		for _, tag := range rule.Tags {
			if _, ok := allowed[tag]; !ok {
				return ruleSet{}, fmt.Errorf("rule %q: tag %q not in vocabulary", rule.Type, tag)
			}
		}
	}
	// Stable evaluation order independent of yaml layout.
	sort.SliceStable(set.Rules, func(i, j int) bool {
		return set.Rules[i].Priority > set.Rules[j].Priority
	})
	return set, nil
}

// AllowedTag reports whether tag is part of the closed vocabulary.
func AllowedTag(tag string) bool {
	_, ok := vocabulary[tag]
	return ok
}
