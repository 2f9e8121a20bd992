// Package assignment solves the rectangular minimum-cost bipartite
// matching problem the line-item feature computation needs. No
// library in the retrieval pack provides this — it is domain
// algorithm code, the same category as the feature formulas
// themselves, not a substitute for an ambient library concern.
package assignment

import "math"

// Result is the outcome of solving an n x m cost matrix: RowToCol[i]
// is the column matched to row i, or -1 if row i is unmatched (only
// possible when n > m). TotalCost sums the cost of matched pairs only.
type Result struct {
	RowToCol  []int
	TotalCost float64
}

// Solve finds the assignment of rows to distinct columns that
// minimizes total cost, matching exactly min(n, m) pairs. cost must be
// a non-nil n x m matrix (n, m > 0); entries should be non-negative,
// as is guaranteed by the feature engine's cost formula.
//
// Implemented as the classic O(k^3) Jonker-Volgenant/Kuhn-Munkres
// shortest-augmenting-path algorithm with row/column potentials,
// applied to the square matrix obtained by padding the smaller
// dimension with zero-cost dummy entries. Padding with zero (rather
// than a large cost) is correct here, not just convenient: it makes
// "unmatched" exactly as cheap as any real match can be, which is what
// reproduces the rectangular assignment semantics (some rows or
// columns are legitimately allowed to go unmatched when n != m).
func Solve(cost [][]float64) Result {
	n := len(cost)
	if n == 0 {
		return Result{}
	}
	m := len(cost[0])
	if m == 0 {
		return Result{RowToCol: fill(n, -1)}
	}

	size := n
	if m > size {
		size = m
	}

	// Pad to a square matrix; padded cells cost 0.
	sq := make([][]float64, size)
	for i := 0; i < size; i++ {
		sq[i] = make([]float64, size)
		for j := 0; j < size; j++ {
			if i < n && j < m {
				sq[i][j] = cost[i][j]
			}
		}
	}

	colMatch := solveSquare(sq, size)

	rowToCol := fill(n, -1)
	total := 0.0
	for j := 0; j < size; j++ {
		i := colMatch[j]
		if i < n && j < m {
			rowToCol[i] = j
			total += cost[i][j]
		}
	}
	return Result{RowToCol: rowToCol, TotalCost: total}
}

func fill(n int, v int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = v
	}
	return s
}

// solveSquare runs the Hungarian algorithm on an n x n cost matrix
// (1-indexed internally, per the standard formulation) and returns
// colMatch where colMatch[j] is the row assigned to column j.
func solveSquare(a [][]float64, n int) []int {
	const inf = math.MaxFloat64 / 2

	u := make([]float64, n+1)
	v := make([]float64, n+1)
	p := make([]int, n+1) // p[j] = row matched to column j (1-indexed columns)
	way := make([]int, n+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, n+1)
		used := make([]bool, n+1)
		for j := 0; j <= n; j++ {
			minv[j] = inf
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := -1
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := a[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	colMatch := make([]int, n)
	for j := 1; j <= n; j++ {
		if p[j] != 0 {
			colMatch[j-1] = p[j] - 1
		} else {
			colMatch[j-1] = -1
		}
	}
	return colMatch
}
