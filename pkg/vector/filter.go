package vector

import (
	"fmt"
	"math"
	"sort"
)

// Filter is a conjunction of exact-match constraints on document metadata.
type Filter struct {
	// Match requires metadata[key] == value.
	Match map[string]string

	// AnyOf requires the list stored at metadata[key] to share at least one
	// value with the given set. An empty set is ignored.
	AnyOf map[string][]string
}

// IsEmpty reports whether the filter has no constraints.
func (f Filter) IsEmpty() bool {
	for _, vals := range f.AnyOf {
		if len(vals) > 0 {
			return false
		}
	}
	return len(f.Match) == 0
}

// MatchKeys returns the Match keys in sorted order so drivers render
// deterministic queries.
func (f Filter) MatchKeys() []string {
	keys := make([]string, 0, len(f.Match))
	for k := range f.Match {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AnyOfKeys returns the non-empty AnyOf keys in sorted order.
func (f Filter) AnyOfKeys() []string {
	keys := make([]string, 0, len(f.AnyOf))
	for k, vals := range f.AnyOf {
		if len(vals) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Matches evaluates the filter against metadata in process. Used by the
// in-memory driver and by test doubles.
func (f Filter) Matches(metadata map[string]any) bool {
	for k, want := range f.Match {
		got, ok := metadata[k]
		if !ok || fmt.Sprint(got) != want {
			return false
		}
	}

	for k, set := range f.AnyOf {
		if len(set) == 0 {
			continue
		}
		have := StringList(metadata[k])
		if !intersects(have, set) {
			return false
		}
	}

	return true
}

// StringList converts a metadata value into a []string. It accepts
// []string, []any (as produced by JSON decoding) and a single string.
func StringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, fmt.Sprint(e))
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	default:
		return nil
	}
}

func intersects(a, b []string) bool {
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	for _, v := range a {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

// CosineSimilarity returns the cosine similarity of a and b, or 0 when the
// lengths differ or either vector has zero magnitude.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
