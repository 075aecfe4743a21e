package suggest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/praxislabs/foresight/internal/models"
)

// Rule is one contextual trigger. A rule fires when every set matcher
// agrees with the context; unset matchers are ignored.
type Rule struct {
	Name       string   `yaml:"name"`
	HourStart  *int     `yaml:"hour_start,omitempty"`
	HourEnd    *int     `yaml:"hour_end,omitempty"`
	OnError    bool     `yaml:"on_error,omitempty"`
	Extensions []string `yaml:"extensions,omitempty"`
	Projects   []string `yaml:"projects,omitempty"`
	Action     string   `yaml:"action"`
	Confidence float64  `yaml:"confidence"`
	Reason     string   `yaml:"reason"`
}

// RuleSet holds the contextual rules consulted by the contextual strategy
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

// DefaultRules returns the built-in contextual rules. Base confidences sit
// in the 0.6-0.9 band; error triggers carry the highest.
func DefaultRules() *RuleSet {
	morningStart, morningEnd := 8, 11
	eveningStart, eveningEnd := 17, 20
	return &RuleSet{
		Rules: []Rule{
			{
				Name:       "error_debug",
				OnError:    true,
				Action:     "debug_assistance",
				Confidence: 0.9,
				Reason:     "an error was just encountered",
			},
			{
				Name:       "test_file_run",
				Extensions: []string{"_test.go", ".test.ts", ".spec.ts", "_test.py"},
				Action:     "run_tests",
				Confidence: 0.8,
				Reason:     "a test file is open",
			},
			{
				Name:       "morning_review",
				HourStart:  &morningStart,
				HourEnd:    &morningEnd,
				Action:     "review_pending_changes",
				Confidence: 0.6,
				Reason:     "start-of-day review window",
			},
			{
				Name:       "evening_commit",
				HourStart:  &eveningStart,
				HourEnd:    &eveningEnd,
				Action:     "commit_work_in_progress",
				Confidence: 0.65,
				Reason:     "end-of-day checkpoint window",
			},
			{
				Name:       "source_file_lint",
				Extensions: []string{".go", ".ts", ".py", ".rs"},
				Action:     "lint_current_file",
				Confidence: 0.6,
				Reason:     "a source file is open",
			},
		},
	}
}

// LoadRules reads a rule set from a YAML file, falling back to the built-in
// rules when path is empty.
func LoadRules(path string) (*RuleSet, error) {
	if path == "" {
		return DefaultRules(), nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var rules RuleSet
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	for i, rule := range rules.Rules {
		if rule.Action == "" {
			return nil, fmt.Errorf("rule %q (index %d) has no action", rule.Name, i)
		}
		if rule.Confidence <= 0 || rule.Confidence > 1 {
			return nil, fmt.Errorf("rule %q has confidence %f outside (0, 1]", rule.Name, rule.Confidence)
		}
	}

	return &rules, nil
}

// Match returns the rules that fire for the given context
func (rs *RuleSet) Match(sctx *models.Context) []Rule {
	var matched []Rule
	for _, rule := range rs.Rules {
		if rule.matches(sctx) {
			matched = append(matched, rule)
		}
	}
	return matched
}

func (r *Rule) matches(sctx *models.Context) bool {
	if r.OnError && !sctx.Error {
		return false
	}
	if r.HourStart != nil && r.HourEnd != nil {
		hour := sctx.HourOfDay()
		if hour < *r.HourStart || hour >= *r.HourEnd {
			return false
		}
	}
	if len(r.Extensions) > 0 {
		if sctx.CurrentFile == "" {
			return false
		}
		found := false
		for _, ext := range r.Extensions {
			if strings.HasSuffix(sctx.CurrentFile, ext) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(r.Projects) > 0 {
		if sctx.ProjectID == "" {
			return false
		}
		found := false
		for _, project := range r.Projects {
			if sctx.ProjectID == project {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
