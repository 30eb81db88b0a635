package rule

import (
	"fmt"
	"regexp"
	"strings"
)

// FilterConfig specifies include and exclude patterns for catalog filtering.
type FilterConfig struct {
	Include []string // Regex patterns - only matching labels included
	Exclude []string // Regex patterns - matching labels excluded
}

// ParsePatterns splits a comma-separated string into individual patterns.
// Patterns are trimmed of whitespace.
func ParsePatterns(patterns string) []string {
	if patterns == "" {
		return []string{}
	}

	parts := strings.Split(patterns, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Filter applies include and exclude patterns to catalog labels.
// Include is applied first, then exclude.
// Empty include means "include all".
// Returns error if any pattern is invalid regex.
func Filter(patterns []*Pattern, config FilterConfig) ([]*Pattern, error) {
	if len(patterns) == 0 {
		return patterns, nil
	}

	// Compile include patterns
	var includeRegexes []*regexp.Regexp
	for _, pattern := range config.Include {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
		}
		includeRegexes = append(includeRegexes, re)
	}

	// Compile exclude patterns
	var excludeRegexes []*regexp.Regexp
	for _, pattern := range config.Exclude {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
		}
		excludeRegexes = append(excludeRegexes, re)
	}

	// Apply include filter
	filtered := patterns
	if len(includeRegexes) > 0 {
		filtered = applyInclude(patterns, includeRegexes)
	}

	// Apply exclude filter
	if len(excludeRegexes) > 0 {
		filtered = applyExclude(filtered, excludeRegexes)
	}

	return filtered, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func applyInclude(patterns []*Pattern, regexes []*regexp.Regexp) []*Pattern {
	result := make([]*Pattern, 0)
	for _, p := range patterns {
		if matchesAny(p.Spec.Label, regexes) {
			result = append(result, p)
		}
	}
	return result
}

func applyExclude(patterns []*Pattern, regexes []*regexp.Regexp) []*Pattern {
	result := make([]*Pattern, 0)
	for _, p := range patterns {
		if !matchesAny(p.Spec.Label, regexes) {
			result = append(result, p)
		}
	}
	return result
}

func matchesAny(label string, regexes []*regexp.Regexp) bool {
	for _, re := range regexes {
		if re.MatchString(label) {
			return true
		}
	}
	return false
}
