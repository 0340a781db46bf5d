// Copyright 2026, the declstack authors. All rights reserved.

package diag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// NearestKnown returns up to n candidates from known that are closest to
// found by edit distance, closest first. Used for "did you mean" hints on
// unknown template keys (§4.2) and unknown identifiers (§4.5).
func NearestKnown(found string, known []string, n int) []string {
	type scored struct {
		name string
		dist float64
	}
	candidates := make([]scored, 0, len(known))
	for _, k := range known {
		if k == found {
			continue
		}
		candidates = append(candidates, scored{k, levenshtein.Distance(found, k, nil)})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
	if n > len(candidates) {
		n = len(candidates)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = candidates[i].name
	}
	return out
}

// DidYouMeanHint formats NearestKnown's top suggestion as a diagnostic detail
// string, or the empty string if there is no close candidate.
func DidYouMeanHint(found string, known []string) string {
	return DidYouMeanHintN(found, known, 1)
}

// DidYouMeanHintN formats up to n of NearestKnown's closest candidates as a
// diagnostic detail string, or the empty string if there are none. Unknown
// identifier references (§4.5) use n=3.
func DidYouMeanHintN(found string, known []string, n int) string {
	nearest := NearestKnown(found, known, n)
	if len(nearest) == 0 {
		return ""
	}
	if len(nearest) == 1 {
		return fmt.Sprintf("did you mean '%s'?", nearest[0])
	}
	quoted := make([]string, len(nearest))
	for i, s := range nearest {
		quoted[i] = "'" + s + "'"
	}
	return fmt.Sprintf("did you mean one of %s?", strings.Join(quoted, ", "))
}
