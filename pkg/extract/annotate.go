package extract

import (
	"strings"

	"github.com/praetorian-inc/sift/pkg/textbuf"
	"github.com/praetorian-inc/sift/pkg/types"
)

// annotateWindow is how many codepoints on each side of a match are searched
// for pronoun and sentiment cues.
const annotateWindow = 50

var pronounSets = []struct {
	label string
	words map[string]bool
}{
	{"he/him", map[string]bool{"he": true, "him": true, "his": true, "himself": true}},
	{"she/her", map[string]bool{"she": true, "her": true, "hers": true, "herself": true}},
	{"they/them", map[string]bool{"they": true, "them": true, "their": true, "theirs": true, "themselves": true}},
}

var positiveWords = map[string]bool{
	"love": true, "happy": true, "grateful": true, "appreciate": true, "enjoy": true,
	"like": true, "wonderful": true, "great": true, "amazing": true, "fantastic": true,
	"supportive": true, "helpful": true, "kind": true, "caring": true,
}

var negativeWords = map[string]bool{
	"hate": true, "angry": true, "frustrated": true, "annoyed": true, "upset": true,
	"disappointed": true, "sad": true, "hurt": true, "betrayed": true, "difficult": true,
	"problematic": true, "toxic": true, "abusive": true,
}

// contextCues adds "pronouns" and "sentiment" attributes derived from the
// words around span. A pronoun set wins only with a strict plurality; they/them
// is the fallback whenever any of its forms occur.
func contextCues(buf *textbuf.Buffer, toks []textbuf.Token, span types.Span, attrs map[string]string) map[string]string {
	lo, hi := span.Start-annotateWindow, span.End+annotateWindow
	counts := make([]int, len(pronounSets))
	pos, neg := 0, 0
	for _, t := range toks {
		if t.Span.End <= lo || t.Span.Start >= hi {
			continue
		}
		w := strings.ToLower(buf.Slice(t.Span))
		// contractions such as "she's" count for their first part
		if k := strings.IndexAny(w, "'’"); k > 0 {
			w = w[:k]
		}
		for i, set := range pronounSets {
			if set.words[w] {
				counts[i]++
			}
		}
		if positiveWords[w] {
			pos++
		}
		if negativeWords[w] {
			neg++
		}
	}

	out := make(map[string]string, len(attrs)+2)
	for k, v := range attrs {
		out[k] = v
	}
	he, she, they := counts[0], counts[1], counts[2]
	switch {
	case he > 0 && he > she && he > they:
		out["pronouns"] = pronounSets[0].label
	case she > 0 && she > he && she > they:
		out["pronouns"] = pronounSets[1].label
	case they > 0:
		out["pronouns"] = pronounSets[2].label
	}
	switch {
	case pos > neg:
		out["sentiment"] = "positive"
	case neg > pos:
		out["sentiment"] = "negative"
	case pos > 0:
		out["sentiment"] = "mixed"
	}
	return out
}
