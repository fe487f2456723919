package diag

import (
	"sort"

	"github.com/OpenTraceLab/RetroBusDiag/pkg/bus"
)

// lineSet is a union-find over the unified bit space.
type lineSet struct {
	parent [bus.NumLines]bus.Line
	rank   [bus.NumLines]int
}

func newLineSet() *lineSet {
	s := &lineSet{}
	for i := range s.parent {
		s.parent[i] = bus.Line(i)
	}
	return s
}

// find returns the representative line, compressing the path on the way.
func (s *lineSet) find(l bus.Line) bus.Line {
	root := l
	for s.parent[root] != root {
		root = s.parent[root]
	}
	for l != root {
		next := s.parent[l]
		s.parent[l] = root
		l = next
	}
	return root
}

func (s *lineSet) union(a, b bus.Line) {
	ra, rb := s.find(a), s.find(b)
	if ra == rb {
		return
	}
	switch {
	case s.rank[ra] < s.rank[rb]:
		s.parent[ra] = rb
	case s.rank[ra] > s.rank[rb]:
		s.parent[rb] = ra
	default:
		s.parent[rb] = ra
		s.rank[ra]++
	}
}

// CouplingGroups merges the couplings of a crosstalk result into sets of
// lines that disturb each other, directly or through a shared neighbour.
// Only groups of two or more lines are returned, each as a mask, ordered by
// their lowest line.
func CouplingGroups(r *CrosstalkResult) []bus.Mask {
	if r == nil || len(r.Couplings) == 0 {
		return nil
	}

	set := newLineSet()
	involved := bus.Mask(0)
	for _, c := range r.Couplings {
		involved |= bus.LineMask(c.Source) | c.Destination
		for _, d := range c.Destination.Lines() {
			set.union(c.Source, d)
		}
	}

	byRoot := make(map[bus.Line]bus.Mask)
	for _, l := range involved.Lines() {
		root := set.find(l)
		byRoot[root] |= bus.LineMask(l)
	}

	groups := make([]bus.Mask, 0, len(byRoot))
	for _, m := range byRoot {
		if m.Count() < 2 {
			continue
		}
		groups = append(groups, m)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Lines()[0] < groups[j].Lines()[0]
	})
	return groups
}
