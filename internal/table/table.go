// Package table provides pure, order-preserving operations over in-memory
// record slices. Every operation takes its input by value and returns a new
// slice; callers keep ownership of what they pass in. Operations are total
// over well-typed input except Derive, whose row function may fail.
package table

import "sort"

// Filter returns the rows satisfying pred, in input order.
func Filter[R any](rows []R, pred func(R) bool) []R {
	out := make([]R, 0, len(rows))
	for _, r := range rows {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}

// TopN returns the n rows with the largest value, in descending order.
// Ties keep input order (stable). n greater than len(rows) returns all rows.
func TopN[R any](rows []R, n int, value func(R) float64) []R {
	if n < 0 {
		n = 0
	}
	if n > len(rows) {
		n = len(rows)
	}
	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return value(rows[idx[a]]) > value(rows[idx[b]])
	})
	out := make([]R, n)
	for i := 0; i < n; i++ {
		out[i] = rows[idx[i]]
	}
	return out
}

// Derive maps each row through fn, producing a new slice. The first error
// aborts the whole operation; no partial result is returned.
func Derive[R any](rows []R, fn func(R) (R, error)) ([]R, error) {
	out := make([]R, len(rows))
	for i, r := range rows {
		d, err := fn(r)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

// Joined pairs one left row with its matching right row.
type Joined[L, R any] struct {
	Left  L
	Right R
}

// AntiJoin returns the rows of left whose key does not appear in right.
func AntiJoin[L, R any, K comparable](left []L, right []R, leftKey func(L) K, rightKey func(R) K) []L {
	seen := make(map[K]struct{}, len(right))
	for _, r := range right {
		seen[rightKey(r)] = struct{}{}
	}
	out := make([]L, 0)
	for _, l := range left {
		if _, ok := seen[leftKey(l)]; !ok {
			out = append(out, l)
		}
	}
	return out
}

// InnerJoin matches left rows against right rows by key, in left order.
// No matches yields an empty result, not an error. Keys are expected to be
// unique per side (one retrieval's result set); on a duplicate right key the
// first occurrence wins.
func InnerJoin[L, R any, K comparable](left []L, right []R, leftKey func(L) K, rightKey func(R) K) []Joined[L, R] {
	byKey := make(map[K]R, len(right))
	for _, r := range right {
		k := rightKey(r)
		if _, ok := byKey[k]; !ok {
			byKey[k] = r
		}
	}
	out := make([]Joined[L, R], 0)
	for _, l := range left {
		if r, ok := byKey[leftKey(l)]; ok {
			out = append(out, Joined[L, R]{Left: l, Right: r})
		}
	}
	return out
}

// SignFlip negates the column read by get for rows matching match.
// Presentation-only: used to split a pyramid chart into two directions.
func SignFlip[R any](rows []R, match func(R) bool, get func(R) float64, set func(R, float64) R) []R {
	out := make([]R, len(rows))
	for i, r := range rows {
		if match(r) {
			r = set(r, -get(r))
		}
		out[i] = r
	}
	return out
}
