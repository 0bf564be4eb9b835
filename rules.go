package decompress

import (
	"fmt"
	"strings"

	"github.com/woozymasta/pathrules"
)

// RulesFilter builds a FilterFunc from gitignore-style include and exclude rules.
// Later rules override earlier ones; records matching no rule use opts.DefaultAction
// (include when left unset). Paths are matched after stripping, without a trailing slash.
func RulesFilter(rules []pathrules.Rule, opts pathrules.MatcherOptions) (FilterFunc, error) {
	if opts.DefaultAction == pathrules.ActionUnknown {
		opts.DefaultAction = pathrules.ActionInclude
	}

	normalized := make([]pathrules.Rule, 0, len(rules))
	for _, rule := range rules {
		pattern := strings.TrimPrefix(strings.ReplaceAll(strings.TrimSpace(rule.Pattern), "\\", "/"), "./")
		if pattern == "" {
			continue
		}
		normalized = append(normalized, pathrules.Rule{Action: rule.Action, Pattern: pattern})
	}

	matcher, err := pathrules.NewMatcher(normalized, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to compile filter rules: %w", err)
	}

	return func(f File) bool {
		return matcher.Included(strings.TrimSuffix(f.Path, "/"), f.IsDir())
	}, nil
}

// IncludeRules returns include rules for the given patterns, for use with RulesFilter
// and an exclude default action.
func IncludeRules(patterns ...string) []pathrules.Rule {
	rules := make([]pathrules.Rule, 0, len(patterns))
	for _, pattern := range patterns {
		rules = append(rules, pathrules.Rule{Action: pathrules.ActionInclude, Pattern: pattern})
	}
	return rules
}
