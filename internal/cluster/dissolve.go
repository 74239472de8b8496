package cluster

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"gonum.org/v1/gonum/floats"
)

// Region is the dissolved footprint of one cluster.
type Region struct {
	Polygon  orb.Polygon
	Centroid orb.Point
	Members  []int // indices into the clustered points
	Label    int
	Count    int
}

// Area returns the polygon area in squared units of the input reference system.
func (r Region) Area() float64 {
	return planar.Area(r.Polygon)
}

// Dissolve merges the points of every label into one polygon with the
// number of contributing records. The polygon is the convex hull of the
// members; degenerate hulls are replaced by their bound padded by buffer.
// Regions are ordered by label.
func Dissolve(points []orb.Point, labels []int, buffer float64) ([]Region, error) {
	if len(points) != len(labels) {
		return nil, fmt.Errorf("dissolve: %d points but %d labels", len(points), len(labels))
	}

	groups := make(map[int][]int)
	for i, l := range labels {
		groups[l] = append(groups[l], i)
	}

	regions := make([]Region, 0, len(groups))
	for label, members := range groups {
		pts := make([]orb.Point, len(members))
		xs := make([]float64, len(members))
		ys := make([]float64, len(members))
		for i, idx := range members {
			pts[i] = points[idx]
			xs[i], ys[i] = points[idx][0], points[idx][1]
		}

		n := float64(len(members))
		regions = append(regions, Region{
			Label:    label,
			Count:    len(members),
			Members:  members,
			Centroid: orb.Point{floats.Sum(xs) / n, floats.Sum(ys) / n},
			Polygon:  footprint(pts, buffer),
		})
	}

	sort.Slice(regions, func(i, j int) bool { return regions[i].Label < regions[j].Label })
	return regions, nil
}

func footprint(pts []orb.Point, buffer float64) orb.Polygon {
	hull := ConvexHull(pts)
	if len(hull) < 4 {
		return orb.MultiPoint(pts).Bound().Pad(buffer).ToPolygon()
	}
	return orb.Polygon{hull}
}

// ConvexHull returns the closed counter-clockwise hull ring of the points
// using Andrew's monotone chain. Collinear points are dropped, so fewer than
// three distinct non-collinear points give a ring shorter than four.
func ConvexHull(pts []orb.Point) orb.Ring {
	sorted := make([]orb.Point, len(pts))
	copy(sorted, pts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i][0] != sorted[j][0] {
			return sorted[i][0] < sorted[j][0]
		}
		return sorted[i][1] < sorted[j][1]
	})

	if len(sorted) < 3 {
		return orb.Ring(sorted)
	}

	cross := func(o, a, b orb.Point) float64 {
		return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
	}

	hull := make(orb.Ring, 0, 2*len(sorted))
	for _, p := range sorted {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	lower := len(hull) + 1
	for i := len(sorted) - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	// the last point equals the first, closing the ring
	return hull
}
