package rule

import (
	"sort"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/praetorian-inc/sift/pkg/matcher"
	"github.com/praetorian-inc/sift/pkg/textbuf"
	"github.com/praetorian-inc/sift/pkg/types"
)

// KeywordLabel labels the keyword vocabulary pattern.
const KeywordLabel = "sift.keywords"

// KeywordPattern builds one whole-word, case-insensitive pattern that
// matches any word of the vocabulary.
func KeywordPattern(words []string) types.PatternSpec {
	sorted := append([]string(nil), words...)
	// Longer words first so an alternation never stops at a prefix.
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	alts := make([]string, 0, len(sorted))
	for _, w := range sorted {
		if w = strings.TrimSpace(w); w != "" {
			alts = append(alts, regexp2.Escape(w))
		}
	}
	return types.Regex(KeywordLabel, `\b(?:`+strings.Join(alts, "|")+`)\b`).IgnoreCase()
}

// Keywords returns the distinct vocabulary words found in buf, lower-cased
// and sorted.
func Keywords(m *matcher.Compiled, buf *textbuf.Buffer) ([]string, error) {
	res, err := m.Match(buf, matcher.Options{})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(res.Matches))
	words := make([]string, 0, len(res.Matches))
	for _, match := range res.Matches {
		w := strings.ToLower(match.Text)
		if !seen[w] {
			seen[w] = true
			words = append(words, w)
		}
	}
	sort.Strings(words)
	return words, nil
}
