package extract

import (
	"sort"

	"github.com/praetorian-inc/sift/pkg/types"
)

// candidate is a proposed entity before resolution.
type candidate struct {
	entityType types.EntityType
	span       types.Span
	stage      types.Stage
	confidence float64
	source     string
	attributes map[string]string
	seq        int // arrival order, the final tie-break
}

// resolve pools candidates from every stage into a non-overlapping,
// start-ordered set.
//
// Candidates with identical spans collapse to the most precise stage. The
// survivors are then accepted greedily by larger span, earlier start and
// more precise stage, skipping any that overlap an accepted one.
func resolve(cands []candidate) []candidate {
	if len(cands) == 0 {
		return nil
	}

	best := make(map[types.Span]int, len(cands))
	for i, c := range cands {
		j, ok := best[c.span]
		if !ok || c.stage < cands[j].stage || (c.stage == cands[j].stage && c.seq < cands[j].seq) {
			best[c.span] = i
		}
	}
	unique := make([]candidate, 0, len(best))
	for _, i := range best {
		unique = append(unique, cands[i])
	}

	sort.Slice(unique, func(i, j int) bool {
		a, b := unique[i], unique[j]
		if a.span.Len() != b.span.Len() {
			return a.span.Len() > b.span.Len()
		}
		if a.span.Start != b.span.Start {
			return a.span.Start < b.span.Start
		}
		if a.stage != b.stage {
			return a.stage < b.stage
		}
		return a.seq < b.seq
	})

	var accepted []candidate // kept sorted by start
	for _, c := range unique {
		// first accepted candidate ending after c starts
		k := sort.Search(len(accepted), func(i int) bool { return accepted[i].span.End > c.span.Start })
		if k < len(accepted) && accepted[k].span.Overlaps(c.span) {
			continue
		}
		accepted = append(accepted, candidate{})
		copy(accepted[k+1:], accepted[k:])
		accepted[k] = c
	}
	return accepted
}
