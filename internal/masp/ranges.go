package masp

import "sort"

// FetchedRanges tracks the set of block heights the fetch pipeline has
// already pulled, as a sorted flat sequence of disjoint closed intervals
// [l0,r0,l1,r1,...] with r[i] < l[i+1]-1. The zero value is the empty set.
type FetchedRanges struct {
	bounds []uint64
}

// First returns the smallest height not yet covered, counting from 1: 1 if
// the set is empty, otherwise r0+1 where r0 is the upper bound of the
// first interval.
func (s *FetchedRanges) First() uint64 {
	if len(s.bounds) == 0 {
		return 1
	}
	return s.bounds[1] + 1
}

// Contains reports whether h falls inside any tracked interval.
func (s *FetchedRanges) Contains(h uint64) bool {
	for i := 0; i+1 < len(s.bounds); i += 2 {
		if h >= s.bounds[i] && h <= s.bounds[i+1] {
			return true
		}
	}
	return false
}

// Insert adds the closed interval [lo,hi] to the set and re-simplifies,
// merging any intervals it overlaps or touches.
func (s *FetchedRanges) Insert(lo, hi uint64) {
	if lo > hi {
		return
	}
	s.bounds = append(s.bounds, lo, hi)
	s.simplify()
}

// simplify sorts and merges the interval set so it is strictly increasing
// with every gap l[i+1] > r[i]+1.
func (s *FetchedRanges) simplify() {
	n := len(s.bounds) / 2
	type interval struct{ lo, hi uint64 }
	intervals := make([]interval, n)
	for i := 0; i < n; i++ {
		intervals[i] = interval{s.bounds[2*i], s.bounds[2*i+1]}
	}
	sort.Slice(intervals, func(i, j int) bool { return intervals[i].lo < intervals[j].lo })

	merged := intervals[:0:0]
	for _, iv := range intervals {
		if len(merged) == 0 {
			merged = append(merged, iv)
			continue
		}
		last := &merged[len(merged)-1]
		if iv.lo <= last.hi+1 {
			if iv.hi > last.hi {
				last.hi = iv.hi
			}
			continue
		}
		merged = append(merged, iv)
	}

	s.bounds = s.bounds[:0]
	for _, iv := range merged {
		s.bounds = append(s.bounds, iv.lo, iv.hi)
	}
}

// BlocksLeftToFetch returns the minimal ordered list of [lo,hi] subintervals
// of [from,to] that are disjoint from the tracked set.
func (s *FetchedRanges) BlocksLeftToFetch(from, to uint64) [][2]uint64 {
	if from > to {
		return nil
	}
	var gaps [][2]uint64
	cursor := from
	for i := 0; i+1 < len(s.bounds) && cursor <= to; i += 2 {
		lo, hi := s.bounds[i], s.bounds[i+1]
		if hi < cursor {
			continue
		}
		if lo > to {
			break
		}
		if lo > cursor {
			gapHi := lo - 1
			if gapHi > to {
				gapHi = to
			}
			gaps = append(gaps, [2]uint64{cursor, gapHi})
		}
		if hi+1 > cursor {
			cursor = hi + 1
		}
	}
	if cursor <= to {
		gaps = append(gaps, [2]uint64{cursor, to})
	}
	return gaps
}

// Bounds returns the flat [l0,r0,l1,r1,...] representation, for
// persistence and tests.
func (s *FetchedRanges) Bounds() []uint64 {
	out := make([]uint64, len(s.bounds))
	copy(out, s.bounds)
	return out
}

// FetchedRangesFromBounds reconstructs a FetchedRanges from a previously
// persisted flat bounds slice, without re-validating simplification (the
// caller is expected to pass back exactly what Bounds produced).
func FetchedRangesFromBounds(bounds []uint64) *FetchedRanges {
	s := &FetchedRanges{bounds: append([]uint64(nil), bounds...)}
	return s
}
