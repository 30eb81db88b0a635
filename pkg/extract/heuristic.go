package extract

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/praetorian-inc/sift/pkg/textbuf"
	"github.com/praetorian-inc/sift/pkg/types"
)

// stopwords never take part in a capitalized run. Pronouns, determiners,
// calendar words and common verbs and adjectives are capitalized at sentence
// starts far more often than they name anything.
var stopwords = []string{
	"a", "an", "the", "my", "your", "our", "their", "his", "her", "its",
	"i", "me", "we", "you", "he", "she", "it", "they", "us", "them",
	"this", "that", "these", "those", "who", "what", "when", "where", "why", "how",
	"and", "or", "but", "if", "so", "then", "there", "here", "yes", "no", "not",
	"hi", "hello", "hey", "dear", "thanks", "please", "ok", "okay",
	"today", "yesterday", "tomorrow", "tonight",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	"january", "february", "march", "april", "may", "june", "july", "august",
	"september", "october", "november", "december",
	"just", "really", "very", "also", "too", "even", "still", "already",
	"talked", "said", "told", "asked", "called", "met", "saw", "went",
	"good", "great", "bad", "nice", "happy", "sad", "angry", "upset",
	"dinner", "lunch", "breakfast", "meeting", "conversation", "call", "text",
	"last", "next", "first", "old", "other", "another",
}

// designators mark organization names.
var designators = []string{
	"inc", "corp", "corporation", "co", "company", "llc", "llp", "ltd", "plc",
	"gmbh", "ag", "sa", "group", "holdings", "partners", "bank", "university",
	"college", "institute", "foundation", "association", "agency", "ministry",
	"department", "committee", "council", "hospital", "school", "labs",
}

// titles mark person names. The title itself is not part of the entity.
var titles = []string{
	"mr", "mrs", "ms", "miss", "mx", "dr", "prof", "professor", "sir", "dame",
	"lord", "lady", "rev", "fr", "capt", "sgt", "gen", "col", "judge", "senator",
}

// connectors may join capitalized tokens inside a run.
var connectors = map[string]bool{
	"of": true, "de": true, "van": true, "von": true, "der": true, "den": true,
	"la": true, "le": true, "du": true, "da": true, "del": true, "di": true, "bin": true,
}

// locationCues precede place names.
var locationCues = map[string]bool{
	"in": true, "at": true, "from": true, "near": true, "outside": true, "across": true,
}

func wordSet(base []string, extra []string) map[string]bool {
	set := make(map[string]bool, len(base)+len(extra))
	for _, w := range base {
		set[w] = true
	}
	for _, w := range extra {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			set[w] = true
		}
	}
	return set
}

// heuristicRule proposes candidates from tokens. A rule that panics
// contributes nothing and is reported as a diagnostic.
type heuristicRule struct {
	name string
	run  func(h *heuristicRecognizer, buf *textbuf.Buffer, toks []textbuf.Token, emit func(candidate))
}

type heuristicRecognizer struct {
	cfg         HeuristicConfig
	minConf     float64
	stopwords   map[string]bool
	designators map[string]bool
	titles      map[string]bool
	rules       []heuristicRule
}

func newHeuristicRecognizer(cfg HeuristicConfig, minConf float64) *heuristicRecognizer {
	return &heuristicRecognizer{
		cfg:         cfg,
		minConf:     minConf,
		stopwords:   wordSet(stopwords, cfg.Stopwords),
		designators: wordSet(designators, cfg.Designators),
		titles:      wordSet(titles, cfg.Titles),
		rules: []heuristicRule{
			{name: "capitalized_run", run: capitalizedRuns},
		},
	}
}

// Confidence evaluates the heuristic confidence formula.
func (c HeuristicConfig) Confidence(tokens int, designator, title, sentenceStart bool) float64 {
	v := c.Base + c.PerExtraToken*float64(tokens-1)
	if designator {
		v += c.Designator
	}
	if title {
		v += c.Title
	}
	if sentenceStart {
		v -= c.SentenceStart
	}
	return math.Max(0, math.Min(c.MaxConfidence, v))
}

func (h *heuristicRecognizer) recognize(buf *textbuf.Buffer, emit func(candidate)) []types.Diagnostic {
	toks := buf.Tokens()
	var diags []types.Diagnostic
	for _, rule := range h.rules {
		var found []candidate
		if err := runIsolated(func() {
			rule.run(h, buf, toks, func(c candidate) { found = append(found, c) })
		}); err != nil {
			diags = append(diags, types.Diagnostic{
				Kind:    types.KindPartialEvaluation,
				Label:   rule.name,
				Stage:   types.StageHeuristic.String(),
				Message: err.Error(),
			})
			continue
		}
		for _, c := range found {
			if c.confidence >= h.minConf {
				emit(c)
			}
		}
	}
	return diags
}

func runIsolated(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("heuristic rule panicked: %v", r)
		}
	}()
	fn()
	return nil
}

func (h *heuristicRecognizer) capitalized(buf *textbuf.Buffer, tok textbuf.Token) bool {
	if tok.Kind != textbuf.TokenWord {
		return false
	}
	runes := buf.Runes()
	if !unicode.IsUpper(runes[tok.Span.Start]) {
		return false
	}
	word := strings.ToLower(buf.Slice(tok.Span))
	if h.stopwords[word] {
		return false
	}
	// A lone capital letter is an initial only when a period follows.
	if tok.Span.Len() == 1 {
		return tok.Span.End < len(runes) && runes[tok.Span.End] == '.'
	}
	return true
}

// gapKind classifies the text between two adjacent tokens.
type gapKind int

const (
	gapBreak  gapKind = iota
	gapSpace          // blanks only
	gapPeriod         // a period then blanks, as after "Dr." or an initial
	gapAmp            // blanks around an ampersand
)

func classifyGap(runes []rune, from, to int) gapKind {
	if from >= to {
		return gapBreak
	}
	g := runes[from:to]
	kind := gapSpace
	i := 0
	if g[0] == '.' {
		kind = gapPeriod
		i = 1
	}
	amp := false
	for ; i < len(g); i++ {
		switch {
		case g[i] == ' ' || g[i] == '\t' || g[i] == '\u00a0':
		case g[i] == '&' && !amp && kind == gapSpace:
			amp = true
		default:
			return gapBreak
		}
	}
	if amp {
		return gapAmp
	}
	if kind == gapPeriod && len(g) == 1 {
		return gapBreak
	}
	return kind
}

// capitalizedRuns proposes PERSON, ORG and LOCATION candidates from runs of
// capitalized tokens joined by blanks, connectors or ampersands.
func capitalizedRuns(h *heuristicRecognizer, buf *textbuf.Buffer, toks []textbuf.Token, emit func(candidate)) {
	runes := buf.Runes()
	lower := func(t textbuf.Token) string { return strings.ToLower(buf.Slice(t.Span)) }

	for i := 0; i < len(toks); {
		if !h.capitalized(buf, toks[i]) {
			i++
			continue
		}

		// Leading title: "Dr. Jane Smith" yields "Jane Smith".
		title := ""
		start := i
		if h.titles[lower(toks[i])] && i+1 < len(toks) {
			g := classifyGap(runes, toks[i].Span.End, toks[i+1].Span.Start)
			if (g == gapSpace || g == gapPeriod) && h.capitalized(buf, toks[i+1]) && !h.titles[lower(toks[i+1])] {
				title = buf.Slice(toks[i].Span)
				start = i + 1
			}
		}

		end := start // index of last token in the run
		n := 1
		designator := h.designators[lower(toks[start])]
		for j := end + 1; j < len(toks); {
			g := classifyGap(runes, toks[end].Span.End, toks[j].Span.Start)
			prevInitial := toks[end].Span.Len() == 1
			switch {
			case g == gapSpace || g == gapAmp || (g == gapPeriod && prevInitial):
				// After an initial the period does not end the sentence.
				if h.capitalized(buf, toks[j]) && (!toks[j].SentenceStart || g == gapPeriod) {
					end, n = j, n+1
					designator = designator || h.designators[lower(toks[j])]
					j++
					continue
				}
				// connector followed by a capitalized token
				if g == gapSpace && connectors[lower(toks[j])] && j+1 < len(toks) &&
					classifyGap(runes, toks[j].Span.End, toks[j+1].Span.Start) == gapSpace &&
					h.capitalized(buf, toks[j+1]) && !toks[j+1].SentenceStart {
					end, n = j+1, n+1
					designator = designator || h.designators[lower(toks[j+1])]
					j += 2
					continue
				}
			}
			break
		}

		span := types.Span{Start: toks[start].Span.Start, End: toks[end].Span.End}
		designator = designator && n > 1
		lone := n == 1 && title == "" && !designator
		sentenceStart := lone && toks[start].SentenceStart

		entityType := types.EntityPerson
		switch {
		case designator:
			entityType = types.EntityOrg
		case title != "":
			entityType = types.EntityPerson
		case i > 0 && locationCues[lower(toks[i-1])]:
			entityType = types.EntityLocation
		}

		c := candidate{
			entityType: entityType,
			span:       span,
			stage:      types.StageHeuristic,
			confidence: h.cfg.Confidence(n, designator, title != "", sentenceStart),
			source:     "heuristic:capitalized_run",
		}
		if title != "" {
			c.attributes = map[string]string{"title": title}
		}
		// A bare initial is not a name.
		if !(n == 1 && span.Len() == 1) {
			emit(c)
		}
		i = end + 1
	}
}
