package extract

import (
	"strings"
	"sync"

	"github.com/praetorian-inc/sift/pkg/matcher"
	"github.com/praetorian-inc/sift/pkg/types"
)

const (
	// maxEmailLen is the maximum length of an email address per RFC 5321.
	maxEmailLen = 254

	monthNames = `(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|June?|July?|Aug(?:ust)?|Sep(?:t(?:ember)?)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)`
)

// classSpecs are the built-in pattern classes. Several specs may share a
// class; overlaps between them are settled by entity resolution, where the
// larger span wins.
var classSpecs = []types.PatternSpec{
	{
		Label:      "email",
		Kind:       types.PatternRegex,
		EntityType: types.EntityEmail,
		Pattern:    `(?<![\w.%+\-])[A-Za-z0-9._%+\-]+@[A-Za-z0-9\-]+(?:\.[A-Za-z0-9\-]+)*\.[A-Za-z]{2,}\b`,
		Keywords:   []string{"@"},
	},
	{
		Label:      "url",
		Kind:       types.PatternRegex,
		EntityType: types.EntityURL,
		Pattern:    `\b(?:https?|ftp)://[A-Za-z0-9\-._~:/?#\[\]@!$&'()*+,;=%]+`,
		Keywords:   []string{"://"},
	},
	{
		Label:      "url_www",
		Kind:       types.PatternRegex,
		EntityType: types.EntityURL,
		Pattern:    `(?<![\w.@/])www\.[A-Za-z0-9\-]+(?:\.[A-Za-z0-9\-]+)+(?:/[A-Za-z0-9\-._~:/?#\[\]@!$&'()*+,;=%]*)?`,
		Keywords:   []string{"www."},
	},
	{
		Label:      "date_iso",
		Kind:       types.PatternRegex,
		EntityType: types.EntityDate,
		Pattern:    `\b\d{4}-(?:0[1-9]|1[0-2])-(?:0[1-9]|[12]\d|3[01])(?:[T ]\d{2}:\d{2}(?::\d{2})?)?\b`,
	},
	{
		Label:      "date_numeric",
		Kind:       types.PatternRegex,
		EntityType: types.EntityDate,
		Pattern:    `\b\d{1,2}[/.]\d{1,2}[/.](?:\d{4}|\d{2})\b`,
	},
	{
		Label:         "date_month_day",
		Kind:          types.PatternRegex,
		EntityType:    types.EntityDate,
		Pattern:       `\b` + monthNames + `\.?\s+\d{1,2}(?:st|nd|rd|th)?(?:,?\s+\d{4})?\b`,
		CaseSensitive: boolPtr(false),
	},
	{
		Label:         "date_day_month",
		Kind:          types.PatternRegex,
		EntityType:    types.EntityDate,
		Pattern:       `\b\d{1,2}(?:st|nd|rd|th)?\s+(?:of\s+)?` + monthNames + `\.?(?:,?\s+\d{4})?\b`,
		CaseSensitive: boolPtr(false),
	},
	{
		Label:      "phone",
		Kind:       types.PatternRegex,
		EntityType: types.EntityPhone,
		Pattern:    `(?<![\w+])(?:\+\d{1,3}[\s.\-]?)?(?:\(\d{2,4}\)|\d{3})[\s.\-]?\d{3}[\s.\-]?\d{4}(?!\w)`,
	},
	{
		Label:      "phone_intl",
		Kind:       types.PatternRegex,
		EntityType: types.EntityPhone,
		Pattern:    `(?<![\w+])\+\d{1,3}(?:[\s.\-]?\d{2,4}){2,5}(?!\w)`,
		Keywords:   []string{"+"},
	},
	{
		Label:      "number",
		Kind:       types.PatternRegex,
		EntityType: types.EntityNumber,
		Pattern:    `(?<![\p{L}\p{N}_.,])[\-+]?(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?%?(?![\p{L}\p{N}_])`,
	},
}

func boolPtr(b bool) *bool {
	return &b
}

// BuiltinClasses lists the entity types with built-in pattern classes.
func BuiltinClasses() []types.EntityType {
	return []types.EntityType{
		types.EntityEmail,
		types.EntityURL,
		types.EntityDate,
		types.EntityNumber,
		types.EntityPhone,
	}
}

// ClassPatterns returns a copy of the built-in pattern class specs.
func ClassPatterns() []types.PatternSpec {
	return append([]types.PatternSpec(nil), classSpecs...)
}

var (
	classOnce    sync.Once
	classMatcher *matcher.Compiled
	classCompErr error
)

// sharedClasses compiles the built-in classes once per process.
func sharedClasses() (*matcher.Compiled, error) {
	classOnce.Do(func() {
		classMatcher, classCompErr = matcher.Compile(classSpecs, matcher.CompileOptions{Strict: true})
	})
	return classMatcher, classCompErr
}

// urlTrailing is punctuation that usually closes the surrounding sentence
// rather than the URL.
const urlTrailing = ".,;:!?)]}>'\""

// refineClassMatch adjusts a raw class match to its entity span. It returns
// false when the match should be discarded.
func refineClassMatch(runes []rune, entityType types.EntityType, span types.Span) (types.Span, bool) {
	switch entityType {
	case types.EntityURL:
		for span.End > span.Start && strings.ContainsRune(urlTrailing, runes[span.End-1]) {
			// Keep a closing paren that balances one inside the URL.
			if runes[span.End-1] == ')' && strings.Count(string(runes[span.Start:span.End]), "(") >= strings.Count(string(runes[span.Start:span.End]), ")") {
				break
			}
			span.End--
		}
		return span, span.Len() > len("www.")
	case types.EntityEmail:
		return span, span.Len() <= maxEmailLen
	}
	return span, true
}
