package watch

import "sort"

// Dedupe collapses points sharing a Key, keeping the newest of each, and
// returns the survivors ordered by Less. The input slice is not modified.
// Returns an empty slice (not nil) for empty input.
func Dedupe(points []Point) []Point {
	latest := make(map[Key]Point, len(points))
	for _, p := range points {
		cur, ok := latest[p.Key()]
		if !ok || p.Newer(cur) {
			latest[p.Key()] = p
		}
	}

	out := make([]Point, 0, len(latest))
	for _, p := range latest {
		out = append(out, p)
	}
	Sort(out)
	return out
}

// Sort orders points in place by Less.
func Sort(points []Point) {
	sort.SliceStable(points, func(i, j int) bool {
		return Less(points[i], points[j])
	})
}
