package detect

import (
	"sort"
)

// Resolve merges detections from any mix of sources into a single ordered
// list with no overlapping [start,end) ranges.
//
// Candidates are sorted by source priority (custom < regex < ai), then for
// two candidates from the same source by span length descending (the longer,
// more specific match wins), then by start offset. A greedy pass accepts each
// candidate whose range does not overlap an already-accepted one. The
// accepted set is re-sorted by position so rendering can do a single
// left-to-right walk.
func Resolve(lists ...[]Detection) []Detection {
	var all []Detection
	for _, list := range lists {
		all = append(all, list...)
	}
	if len(all) == 0 {
		return []Detection{}
	}

	sorted := make([]Detection, len(all))
	copy(sorted, all)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if pa, pb := sourcePriority[a.Source], sourcePriority[b.Source]; pa != pb {
			return pa < pb
		}
		if a.Source == b.Source {
			la, lb := a.End-a.Start, b.End-b.Start
			if la != lb {
				return la > lb
			}
		}
		return a.Start < b.Start
	})

	accepted := make([]Detection, 0, len(sorted))
	for _, cand := range sorted {
		if !overlapsAny(cand, accepted) {
			accepted = append(accepted, cand)
		}
	}

	sort.SliceStable(accepted, func(i, j int) bool {
		return accepted[i].Start < accepted[j].Start
	})
	return accepted
}

func overlapsAny(d Detection, accepted []Detection) bool {
	for _, a := range accepted {
		if d.Start < a.End && a.Start < d.End {
			return true
		}
	}
	return false
}
