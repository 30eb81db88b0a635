package matcher

import (
	"sort"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/praetorian-inc/sift/pkg/textbuf"
	"github.com/praetorian-inc/sift/pkg/types"
)

// budgetCheckInterval is how many steps pass between deadline checks.
const budgetCheckInterval = 1024

// budget tracks the step and wall-clock allowance of one Match call.
type budget struct {
	maxSteps   int64
	deadline   time.Time
	steps      int64
	sinceCheck int64
	exhausted  bool
}

// spend charges n steps and reports whether the scan may continue.
func (b *budget) spend(n int) bool {
	if b.exhausted {
		return false
	}
	b.steps += int64(n)
	if b.maxSteps > 0 && b.steps > b.maxSteps {
		b.exhausted = true
		return false
	}
	if b.deadline.IsZero() {
		return true
	}
	b.sinceCheck += int64(n)
	if b.sinceCheck >= budgetCheckInterval {
		b.sinceCheck = 0
		b.exhausted = time.Now().After(b.deadline)
	}
	return !b.exhausted
}

// checkDeadline forces a deadline check regardless of the step interval.
func (b *budget) checkDeadline() bool {
	if !b.exhausted && !b.deadline.IsZero() && time.Now().After(b.deadline) {
		b.exhausted = true
	}
	return !b.exhausted
}

type candidate struct {
	span   types.Span
	index  int
	groups map[string]types.Span
}

// longerFirst orders candidates by start, then longer first, then by
// registration index.
func longerFirst(a, b *candidate) bool {
	if a.span.Start != b.span.Start {
		return a.span.Start < b.span.Start
	}
	if a.span.Len() != b.span.Len() {
		return a.span.Len() > b.span.Len()
	}
	return a.index < b.index
}

// overlapOrder orders candidates by start, registration index, then end.
func overlapOrder(a, b *candidate) bool {
	if a.span.Start != b.span.Start {
		return a.span.Start < b.span.Start
	}
	if a.index != b.index {
		return a.index < b.index
	}
	return a.span.End < b.span.End
}

// scanState carries the per-call state of one Match.
type scanState struct {
	c           *Compiled
	runes       []rune
	budget      *budget
	diagnostics []types.Diagnostic
}

// Match scans buf. In non-overlapping mode the result is the leftmost-longest
// cover: the scan takes the earliest starting match, prefers the longest at
// that start and the lowest registration index among equals, then resumes at
// its end. In overlapping mode every occurrence is reported.
//
// Matches are ordered by start offset. When MaxMatches or the step/deadline
// budget stops the scan while further matches exist, the partial result has
// Truncated set. Runtime regex failures skip that pattern for this call and
// are reported as diagnostics.
func (c *Compiled) Match(buf *textbuf.Buffer, opts Options) (*types.MatchResult, error) {
	if buf == nil {
		return nil, types.NewError(types.KindInvalidConfiguration, "", "nil buffer")
	}
	if opts.MaxMatches < 0 || opts.MaxSteps < 0 || opts.ContextLines < 0 {
		return nil, types.NewError(types.KindInvalidConfiguration, "", "max_matches, max_steps and context_lines must not be negative")
	}

	st := &scanState{
		c:     c,
		runes: buf.Runes(),
		budget: &budget{
			maxSteps: opts.MaxSteps,
			deadline: opts.deadline(time.Now()),
		},
		diagnostics: c.Diagnostics(),
	}

	active := c.activeRegexes(buf)

	var (
		selected  []candidate
		truncated bool
	)
	if opts.Overlapping {
		selected, truncated = st.collectOverlapping(active, opts.MaxMatches)
	} else {
		selected, truncated = st.resolveLeftmostLongest(active, opts.MaxMatches)
	}

	result := &types.MatchResult{
		Matches:     make([]types.Match, 0, len(selected)),
		Truncated:   truncated || st.budget.exhausted,
		Diagnostics: st.diagnostics,
	}
	for _, cand := range selected {
		result.Matches = append(result.Matches, st.buildMatch(buf, cand, opts.ContextLines))
	}
	return result, nil
}

// activeRegexes returns the usable regex patterns whose keywords occur in buf.
func (c *Compiled) activeRegexes(buf *textbuf.Buffer) []int {
	if c.prefilter == nil {
		return nil
	}
	return c.prefilter.Filter([]byte(buf.String()))
}

func (st *scanState) buildMatch(buf *textbuf.Buffer, cand candidate, contextLines int) types.Match {
	p := &st.c.patterns[cand.index]
	m := types.Match{
		Label:  p.spec.Label,
		Index:  cand.index,
		Span:   cand.span,
		Text:   strings.Clone(buf.Slice(cand.span)),
		Groups: cand.groups,
	}
	if contextLines > 0 {
		before, after := ExtractContext(st.runes, cand.span.Start, cand.span.End, contextLines)
		m.Context = &types.Context{Before: before, After: after}
	}
	return m
}

// scanLiterals runs both literal automata over the text in a single pass.
//
// When limit > 0 only the first limit hits in overlapOrder are needed: hits
// are trimmed to that many and the scan stops once no later hit can start at
// or before the last kept one.
func (st *scanState) scanLiterals(limit int) []candidate {
	c := st.c
	if c.exact.empty() && c.folded.empty() {
		return nil
	}

	var hits []candidate
	bound := -1
	trim := func() {
		sort.Slice(hits, func(i, j int) bool { return overlapOrder(&hits[i], &hits[j]) })
		hits = hits[:limit]
		bound = hits[limit-1].span.Start
	}
	add := func(start, end, id int) {
		if bound >= 0 && start > bound {
			return
		}
		hits = append(hits, candidate{span: types.Span{Start: start, End: end}, index: id})
		if limit > 0 && (len(hits) >= 2*limit || (bound < 0 && len(hits) >= limit)) {
			trim()
		}
	}

	var es, fs int32
	for i, r := range st.runes {
		if !st.budget.spend(1) {
			break
		}
		if !c.exact.empty() {
			es = c.exact.step(es, r)
			c.exact.emit(es, i+1, add)
		}
		if !c.folded.empty() {
			fs = c.folded.step(fs, r)
			c.folded.emit(fs, i+1, add)
		}
		// The earliest start any later hit can have is i+2-maxLiteral.
		if bound >= 0 && i+2-c.maxLiteral > bound {
			break
		}
	}
	return hits
}

// findFrom returns the first non-empty match of pattern p starting at or
// after from, or nil.
func (st *scanState) findFrom(p *compiledPattern, from int) (*candidate, error) {
	for from <= len(st.runes) {
		m, err := p.re.FindRunesMatchStartingAt(st.runes, from)
		if err != nil {
			return nil, err
		}
		if m == nil {
			st.budget.spend(len(st.runes) - from)
			return nil, nil
		}
		end := m.Index + m.Length
		if !st.budget.spend(end - from) {
			return nil, nil
		}
		if m.Length == 0 {
			from = m.Index + 1
			continue
		}
		return st.candidateFrom(p, m), nil
	}
	return nil, nil
}

func (st *scanState) candidateFrom(p *compiledPattern, m *regexp2.Match) *candidate {
	return &candidate{
		span:   types.Span{Start: m.Index, End: m.Index + m.Length},
		index:  p.index,
		groups: extractNamedGroups(m, p.groups),
	}
}

func (st *scanState) regexFailed(p *compiledPattern, err error) {
	st.diagnostics = append(st.diagnostics, types.DiagnosticFrom(regexEvalError(p.spec.Label, err), "match"))
}

type regexCursor struct {
	p    *compiledPattern
	next *candidate
	done bool
}

// literalStream feeds the non-overlapping resolver the leftmost-longest
// literal hit at or after a cursor, consuming text only as far as needed to
// decide it.
type literalStream struct {
	st      *scanState
	pos     int
	es, fs  int32
	pending []candidate
	stopped bool
}

func (st *scanState) newLiteralStream() *literalStream {
	c := st.c
	if c.exact.empty() && c.folded.empty() {
		return nil
	}
	return &literalStream{st: st}
}

// next returns the best literal hit starting at or after cursor, or nil.
// Every hit starting at or before the returned one ends within maxLiteral
// runes of its start, so once the scan has passed that point the choice is
// final. A non-negative horizon is the start of a competing candidate: the
// scan stops once no literal starting at or before it can still appear, and
// a hit returned past the horizon may not be final. After the budget stops
// the scan, the best hit seen so far is returned.
func (ls *literalStream) next(cursor, horizon int) *candidate {
	c := ls.st.c
	kept := ls.pending[:0]
	for _, h := range ls.pending {
		if h.span.Start >= cursor {
			kept = append(kept, h)
		}
	}
	ls.pending = kept

	add := func(start, end, id int) {
		if start >= cursor {
			ls.pending = append(ls.pending, candidate{span: types.Span{Start: start, End: end}, index: id})
		}
	}
	for {
		best := ls.best()
		decide := -1
		if best != nil {
			decide = best.span.Start
		}
		if horizon >= 0 && (decide < 0 || horizon < decide) {
			decide = horizon
		}
		if decide >= 0 && ls.pos >= decide+c.maxLiteral {
			return best
		}
		if ls.stopped || ls.pos >= len(ls.st.runes) {
			return best
		}
		if !ls.st.budget.spend(1) {
			ls.stopped = true
			continue
		}
		r := ls.st.runes[ls.pos]
		ls.pos++
		if !c.exact.empty() {
			ls.es = c.exact.step(ls.es, r)
			c.exact.emit(ls.es, ls.pos, add)
		}
		if !c.folded.empty() {
			ls.fs = c.folded.step(ls.fs, r)
			c.folded.emit(ls.fs, ls.pos, add)
		}
	}
}

func (ls *literalStream) best() *candidate {
	var best *candidate
	for i := range ls.pending {
		if best == nil || longerFirst(&ls.pending[i], best) {
			best = &ls.pending[i]
		}
	}
	if best == nil {
		return nil
	}
	b := *best
	return &b
}

// resolveLeftmostLongest selects non-overlapping matches. Literal hits come
// from a stream that stops once the selection is decided. Each regex keeps
// its next match at or after the cursor and is re-queried lazily once the
// cursor passes it, so a regex match hidden behind a rejected candidate is
// still found.
func (st *scanState) resolveLeftmostLongest(active []int, max int) ([]candidate, bool) {
	lits := st.newLiteralStream()

	cursors := make([]regexCursor, len(active))
	for i, idx := range active {
		cursors[i] = regexCursor{p: &st.c.patterns[idx]}
	}

	var out []candidate
	cursor := 0
	// A budget spent inside the literal stream leaves only literal hits.
	literalOnly := false
	for {
		if !literalOnly && !st.budget.checkDeadline() {
			return out, true
		}
		var best *candidate
		if !literalOnly {
			for i := range cursors {
				rc := &cursors[i]
				if rc.done {
					continue
				}
				if rc.next == nil || rc.next.span.Start < cursor {
					next, err := st.findFrom(rc.p, cursor)
					if err != nil {
						st.regexFailed(rc.p, err)
						rc.done = true
						continue
					}
					if st.budget.exhausted {
						return out, true
					}
					if next == nil {
						rc.done = true
						continue
					}
					rc.next = next
				}
				if best == nil || longerFirst(rc.next, best) {
					best = rc.next
				}
			}
		}
		if lits != nil {
			horizon := -1
			if best != nil {
				horizon = best.span.Start
			}
			if lit := lits.next(cursor, horizon); lit != nil && (best == nil || longerFirst(lit, best)) {
				best = lit
			}
			if lits.stopped {
				literalOnly = true
			}
		}

		if best == nil {
			return out, literalOnly
		}
		if max > 0 && len(out) == max {
			return out, true
		}
		out = append(out, *best)
		cursor = best.span.End
	}
}

// collectOverlapping gathers every occurrence of every pattern. With a limit,
// each source contributes at most max+1 hits, which is enough to decide both
// the first max matches and whether more exist.
func (st *scanState) collectOverlapping(active []int, max int) ([]candidate, bool) {
	limit := 0
	if max > 0 {
		limit = max + 1
	}
	all := st.scanLiterals(limit)

	for _, idx := range active {
		if !st.budget.checkDeadline() {
			break
		}
		p := &st.c.patterns[idx]
		all = st.iterateRegex(p, all, limit)
		if st.budget.exhausted {
			break
		}
	}

	sort.Slice(all, func(i, j int) bool { return overlapOrder(&all[i], &all[j]) })
	if max > 0 && len(all) > max {
		return all[:max], true
	}
	return all, false
}

func (st *scanState) iterateRegex(p *compiledPattern, all []candidate, limit int) []candidate {
	m, err := p.re.FindRunesMatch(st.runes)
	pos, found, mark := 0, 0, len(all)
	for {
		if err != nil {
			st.regexFailed(p, err)
			return all[:mark]
		}
		if m == nil {
			st.budget.spend(len(st.runes) - pos)
			return all
		}
		end := m.Index + m.Length
		if end > pos {
			if !st.budget.spend(end - pos) {
				return all
			}
			pos = end
		}
		if m.Length > 0 {
			all = append(all, *st.candidateFrom(p, m))
			found++
			if limit > 0 && found >= limit {
				return all
			}
		}
		m, err = p.re.FindNextMatch(m)
	}
}
