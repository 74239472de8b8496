// Package cluster groups accident locations with Ward agglomerative clustering
// and dissolves the groups into counted regions.
package cluster

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// ErrTooFewPoints is returned when there are fewer points than requested clusters.
var ErrTooFewPoints = errors.New("not enough points to cluster")

// Merge is one step of the hierarchy: clusters represented by A and B joined at Height.
type Merge struct {
	A, B   int
	Height float64
}

// Agglomerative assigns each point one of k labels using Ward linkage.
// Labels are numbered in order of first appearance in points, so the result
// only depends on the input order and coordinates.
func Agglomerative(points []orb.Point, k int) ([]int, error) {
	n := len(points)
	if k <= 0 {
		return nil, fmt.Errorf("cluster count must be > 0, got %d", k)
	}
	if n < k {
		return nil, fmt.Errorf("%w: %d points for %d clusters", ErrTooFewPoints, n, k)
	}

	merges := Ward(points)
	sort.SliceStable(merges, func(i, j int) bool { return merges[i].Height < merges[j].Height })

	uf := newUnionFind(n)
	for _, m := range merges[:n-k] {
		uf.union(m.A, m.B)
	}

	labels := make([]int, n)
	byRoot := make(map[int]int, k)
	for i := range n {
		root := uf.find(i)
		label, ok := byRoot[root]
		if !ok {
			label = len(byRoot)
			byRoot[root] = label
		}
		labels[i] = label
	}

	return labels, nil
}

// Ward builds the full Ward hierarchy with the nearest-neighbour chain algorithm.
// A cluster is represented by the lowest point index it contains. Merges are
// returned in the order they were found, which is not sorted by height.
func Ward(points []orb.Point) []Merge {
	n := len(points)
	if n < 2 {
		return nil
	}

	size := make([]float64, n)
	cx := make([]float64, n)
	cy := make([]float64, n)
	active := make([]bool, n)
	for i, p := range points {
		size[i], cx[i], cy[i], active[i] = 1, p[0], p[1], true
	}

	// squared Ward distance, 2*ni*nj/(ni+nj) * |ci-cj|^2
	dist := func(i, j int) float64 {
		dx, dy := cx[i]-cx[j], cy[i]-cy[j]
		return 2 * size[i] * size[j] / (size[i] + size[j]) * (dx*dx + dy*dy)
	}

	merges := make([]Merge, 0, n-1)
	chain := make([]int, 0, 16)
	next := 0

	for remaining := n; remaining > 1; {
		if len(chain) == 0 {
			for !active[next] {
				next++
			}
			chain = append(chain, next)
		}

		a := chain[len(chain)-1]
		prev := -1
		best := math.Inf(1)
		if len(chain) > 1 {
			prev = chain[len(chain)-2]
			best = dist(a, prev)
		}

		b := prev
		for j := range n {
			if j == a || !active[j] {
				continue
			}
			if d := dist(a, j); d < best {
				best, b = d, j
			}
		}

		if b != prev {
			chain = append(chain, b)
			continue
		}

		// a and b are reciprocal nearest neighbours
		chain = chain[:len(chain)-2]
		keep, drop := min(a, b), max(a, b)

		total := size[keep] + size[drop]
		cx[keep] = (size[keep]*cx[keep] + size[drop]*cx[drop]) / total
		cy[keep] = (size[keep]*cy[keep] + size[drop]*cy[drop]) / total
		size[keep] = total
		active[drop] = false

		merges = append(merges, Merge{A: keep, B: drop, Height: math.Sqrt(best)})
		remaining--
	}

	return merges
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}
