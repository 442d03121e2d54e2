// Package perm provides permutation utilities for layer ordering: index
// sequences, bounded enumeration with Heap's algorithm, and inversion
// counting.
package perm

import "slices"

// Seq returns a slice containing the sequence [0, 1, 2, ..., n-1].
//
// For n <= 0, Seq returns an empty slice.
func Seq(n int) []int {
	result := make([]int, max(n, 0))
	for i := range result {
		result[i] = i
	}
	return result
}

// Factorial returns n!, saturating at the largest int instead of
// overflowing. For n <= 1, Factorial returns 1.
func Factorial(n int) int {
	const maxInt = int(^uint(0) >> 1)
	result := 1
	for i := 2; i <= n; i++ {
		if result > maxInt/i {
			return maxInt
		}
		result *= i
	}
	return result
}

// Generate returns permutations of [0, 1, ..., n-1] using Heap's algorithm.
// The first permutation is always the identity.
//
// If limit > 0, Generate returns at most limit permutations.
// If limit <= 0, Generate returns all n! permutations; callers must bound n.
//
// Each returned slice is a separate allocation.
func Generate(n, limit int) [][]int {
	if n <= 1 {
		return [][]int{Seq(n)}
	}

	p := Seq(n)
	state := make([]int, n)

	capacity := Factorial(min(n, 8))
	if limit > 0 {
		capacity = min(capacity, limit)
	}
	result := make([][]int, 0, capacity)
	result = append(result, slices.Clone(p))

	for i := 0; i < n && (limit <= 0 || len(result) < limit); {
		if state[i] < i {
			if i&1 == 0 {
				p[0], p[i] = p[i], p[0]
			} else {
				p[state[i]], p[i] = p[i], p[state[i]]
			}
			result = append(result, slices.Clone(p))
			state[i]++
			i = 0
		} else {
			state[i] = 0
			i++
		}
	}
	return result
}

// Apply returns items rearranged so that result[k] = items[p[k]].
func Apply[T any](p []int, items []T) []T {
	out := make([]T, len(p))
	for k, idx := range p {
		out[k] = items[idx]
	}
	return out
}

// Positions maps each id in order to its index.
func Positions(order []int) map[int]int {
	m := make(map[int]int, len(order))
	for i, id := range order {
		m[id] = i
	}
	return m
}

// Inversions counts pairs i < j with seq[i] > seq[j]. Values must lie in
// [0, len(seq)). It uses a Fenwick tree and runs in O(n log n).
func Inversions(seq []int) int {
	fenwick := make([]int, len(seq)+1)
	inv := 0
	for seen, v := range seq {
		lessOrEqual := 0
		for q := v + 1; q > 0; q -= q & (-q) {
			lessOrEqual += fenwick[q]
		}
		inv += seen - lessOrEqual
		for q := v + 1; q < len(fenwick); q += q & (-q) {
			fenwick[q]++
		}
	}
	return inv
}

// Crossings counts the pairs of shared ids whose relative order differs
// between two orders. Ids present in only one order are ignored.
func Crossings(upper, lower []int) int {
	lowerPos := Positions(lower)
	var shared []int
	for _, id := range upper {
		if _, ok := lowerPos[id]; ok {
			shared = append(shared, id)
		}
	}
	if len(shared) < 2 {
		return 0
	}
	// Rank shared ids by their position in lower, in upper's order.
	byLower := slices.Clone(shared)
	slices.SortFunc(byLower, func(a, b int) int { return lowerPos[a] - lowerPos[b] })
	rank := Positions(byLower)
	seq := make([]int, len(shared))
	for i, id := range shared {
		seq[i] = rank[id]
	}
	return Inversions(seq)
}
