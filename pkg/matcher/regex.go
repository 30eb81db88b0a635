package matcher

import (
	"errors"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/praetorian-inc/sift/pkg/types"
)

// DefaultRegexTimeout bounds a single regex evaluation to prevent
// catastrophic backtracking.
const DefaultRegexTimeout = 5 * time.Second

// compileRegex compiles expr with regexp2. RE2 syntax is tried first and the
// Perl-compatible dialect is used when RE2 rejects the expression (for
// lookarounds and similar features).
func compileRegex(expr string, caseSensitive bool, timeout time.Duration) (*regexp2.Regexp, error) {
	var extra regexp2.RegexOptions
	if !caseSensitive {
		extra = regexp2.IgnoreCase
	}

	re, err := regexp2.Compile(expr, regexp2.RE2|regexp2.Multiline|extra)
	if err != nil {
		var fallbackErr error
		re, fallbackErr = regexp2.Compile(expr, regexp2.Multiline|extra)
		if fallbackErr != nil {
			return nil, fallbackErr
		}
	}
	if timeout <= 0 {
		timeout = DefaultRegexTimeout
	}
	re.MatchTimeout = timeout
	return re, nil
}

// namedGroups returns the user-visible group names of re. regexp2 reports
// unnamed groups by number; those are skipped.
func namedGroups(re *regexp2.Regexp) []string {
	var names []string
	for _, name := range re.GetGroupNames() {
		if name == "" || (name[0] >= '0' && name[0] <= '9') {
			continue
		}
		names = append(names, name)
	}
	return names
}

// extractNamedGroups returns the spans of named groups that participated in m.
// regexp2 reports group positions in codepoints, matching buffer offsets.
func extractNamedGroups(m *regexp2.Match, names []string) map[string]types.Span {
	if len(names) == 0 {
		return nil
	}
	var groups map[string]types.Span
	for _, name := range names {
		g := m.GroupByName(name)
		if g == nil || len(g.Captures) == 0 {
			continue
		}
		if groups == nil {
			groups = make(map[string]types.Span, len(names))
		}
		groups[name] = types.Span{Start: g.Index, End: g.Index + g.Length}
	}
	return groups
}

// isTimeout reports whether err came from regexp2's match timeout.
func isTimeout(err error) bool {
	return err != nil && strings.Contains(err.Error(), "match timeout")
}

// regexEvalError wraps a runtime regex failure for the pattern label.
func regexEvalError(label string, err error) *types.Error {
	msg := "regex evaluation failed: " + err.Error()
	if isTimeout(err) {
		msg = "regex timed out; pattern skipped for this text"
	}
	return &types.Error{Kind: types.KindPartialEvaluation, Label: label, Message: msg, Err: err}
}

var errEmptyPattern = errors.New("empty pattern")
