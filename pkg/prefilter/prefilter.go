// Package prefilter gates regex evaluation on keyword presence.
package prefilter

import (
	"bytes"
	"sort"
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// Entry registers the keywords of one pattern. An entry without keywords is
// always selected.
type Entry struct {
	ID       int
	Keywords []string
}

// Prefilter uses Aho-Corasick for efficient keyword matching. Keywords are
// compared case-insensitively; the prefilter only has to admit a superset of
// the patterns that can match.
type Prefilter struct {
	matcher      *ahocorasick.Matcher
	keywords     []string         // lowered keyword at each index
	keywordIDs   map[string][]int // keyword -> entries needing it
	noKeywordIDs []int            // entries without keywords (always checked)
}

// New creates a prefilter from entries.
func New(entries []Entry) *Prefilter {
	pf := &Prefilter{
		keywordIDs: make(map[string][]int),
	}

	seen := make(map[string]bool)
	for _, e := range entries {
		kws := nonEmpty(e.Keywords)
		if len(kws) == 0 {
			pf.noKeywordIDs = append(pf.noKeywordIDs, e.ID)
			continue
		}
		for _, kw := range kws {
			kw = strings.ToLower(kw)
			if !seen[kw] {
				seen[kw] = true
				pf.keywords = append(pf.keywords, kw)
			}
			pf.keywordIDs[kw] = append(pf.keywordIDs[kw], e.ID)
		}
	}

	if len(pf.keywords) > 0 {
		pf.matcher = ahocorasick.NewStringMatcher(pf.keywords)
	}
	return pf
}

func nonEmpty(kws []string) []string {
	out := kws[:0:0]
	for _, kw := range kws {
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// Filter returns the IDs of entries that might match content, in ascending
// order. Entries without keywords are always included.
func (pf *Prefilter) Filter(content []byte) []int {
	result := make([]int, 0, len(pf.noKeywordIDs))
	result = append(result, pf.noKeywordIDs...)

	if pf.matcher == nil {
		sort.Ints(result)
		return result
	}

	seen := make(map[int]bool, len(result))
	for _, id := range result {
		seen[id] = true
	}

	// MatchThreadSafe lets one Prefilter serve concurrent scans.
	for _, hit := range pf.matcher.MatchThreadSafe(bytes.ToLower(content)) {
		for _, id := range pf.keywordIDs[pf.keywords[hit]] {
			if !seen[id] {
				seen[id] = true
				result = append(result, id)
			}
		}
	}
	sort.Ints(result)
	return result
}

// Len returns the number of distinct keywords.
func (pf *Prefilter) Len() int {
	return len(pf.keywords)
}
