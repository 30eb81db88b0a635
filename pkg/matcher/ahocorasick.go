package matcher

import "unicode"

// acNode is one state of a rune-level Aho-Corasick automaton.
type acNode struct {
	next   map[rune]int32
	fail   int32
	output []int32 // slot ids ending at this state, including those reached via fail links
}

// runeAutomaton matches a fixed set of literals over decoded codepoints.
// When fold is set, patterns and input are mapped through foldRune so that
// matching is case-insensitive while rune counts stay unchanged.
type runeAutomaton struct {
	nodes   []acNode
	lengths []int // rune length per slot id
	ids     []int // pattern registration index per slot id
	fold    bool
}

func newRuneAutomaton(fold bool) *runeAutomaton {
	return &runeAutomaton{
		nodes: []acNode{{}},
		fold:  fold,
	}
}

// add inserts a literal for the pattern at registration index id.
func (a *runeAutomaton) add(pattern []rune, id int) {
	cur := int32(0)
	for _, r := range pattern {
		if a.fold {
			r = foldRune(r)
		}
		nxt, ok := a.nodes[cur].next[r]
		if !ok {
			a.nodes = append(a.nodes, acNode{})
			nxt = int32(len(a.nodes) - 1)
			if a.nodes[cur].next == nil {
				a.nodes[cur].next = make(map[rune]int32)
			}
			a.nodes[cur].next[r] = nxt
		}
		cur = nxt
	}
	slot := int32(len(a.ids))
	a.ids = append(a.ids, id)
	a.lengths = append(a.lengths, len(pattern))
	a.nodes[cur].output = append(a.nodes[cur].output, slot)
}

// build computes fail links breadth-first and merges outputs along them.
func (a *runeAutomaton) build() {
	queue := make([]int32, 0, len(a.nodes))
	for _, child := range a.nodes[0].next {
		a.nodes[child].fail = 0
		queue = append(queue, child)
	}

	for len(queue) > 0 {
		r := queue[0]
		queue = queue[1:]
		for c, s := range a.nodes[r].next {
			queue = append(queue, s)
			f := a.nodes[r].fail
			for f != 0 {
				if _, ok := a.nodes[f].next[c]; ok {
					break
				}
				f = a.nodes[f].fail
			}
			if nxt, ok := a.nodes[f].next[c]; ok && nxt != s {
				a.nodes[s].fail = nxt
			} else {
				a.nodes[s].fail = 0
			}
			a.nodes[s].output = append(a.nodes[s].output, a.nodes[a.nodes[s].fail].output...)
		}
	}
}

// step advances from state over r.
func (a *runeAutomaton) step(state int32, r rune) int32 {
	if a.fold {
		r = foldRune(r)
	}
	for {
		if nxt, ok := a.nodes[state].next[r]; ok {
			return nxt
		}
		if state == 0 {
			return 0
		}
		state = a.nodes[state].fail
	}
}

// emit reports every literal ending at state. end is the exclusive codepoint
// offset just past the last rune consumed.
func (a *runeAutomaton) emit(state int32, end int, fn func(start, end, id int)) {
	for _, slot := range a.nodes[state].output {
		fn(end-a.lengths[slot], end, a.ids[slot])
	}
}

func (a *runeAutomaton) empty() bool {
	return len(a.ids) == 0
}

// foldRune maps r to the smallest rune in its simple case-folding orbit, so
// two runes fold to the same value exactly when they are equal under simple
// case folding.
func foldRune(r rune) rune {
	if r < 0x80 {
		if 'a' <= r && r <= 'z' {
			return r - 'a' + 'A'
		}
		return r
	}
	min := r
	for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
		if f < min {
			min = f
		}
	}
	return min
}
