package cluster

import (
	"encoding/json"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blobs returns count points around each centre, in input order centre by centre.
func blobs(centres []orb.Point, count int, spread float64, seed int64) []orb.Point {
	rng := rand.New(rand.NewSource(seed))
	pts := make([]orb.Point, 0, len(centres)*count)
	for _, c := range centres {
		for range count {
			pts = append(pts, orb.Point{
				c[0] + (rng.Float64()-0.5)*spread,
				c[1] + (rng.Float64()-0.5)*spread,
			})
		}
	}
	return pts
}

func TestAgglomerative_SeparatesBlobs(t *testing.T) {
	centres := []orb.Point{{0, 0}, {10000, 0}, {0, 10000}}
	pts := blobs(centres, 30, 500, 1)

	labels, err := Agglomerative(pts, 3)
	require.NoError(t, err)
	require.Len(t, labels, len(pts))

	for b := range centres {
		for i := 1; i < 30; i++ {
			assert.Equal(t, labels[b*30], labels[b*30+i], "blob %d point %d", b, i)
		}
	}
	// labels follow first appearance
	assert.Equal(t, []int{0, 1, 2}, []int{labels[0], labels[30], labels[60]})
}

func TestAgglomerative_Deterministic(t *testing.T) {
	pts := blobs([]orb.Point{{0, 0}, {3000, 1000}, {500, 7000}, {9000, 9000}}, 50, 4000, 7)

	first, err := Agglomerative(pts, 20)
	require.NoError(t, err)

	for range 5 {
		again, err := Agglomerative(pts, 20)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestAgglomerative_ClusterCount(t *testing.T) {
	pts := blobs([]orb.Point{{0, 0}}, 100, 10000, 3)

	for _, k := range []int{1, 2, 20, 100} {
		labels, err := Agglomerative(pts, k)
		require.NoError(t, err)

		distinct := map[int]bool{}
		for _, l := range labels {
			distinct[l] = true
			assert.Less(t, l, k)
		}
		assert.Len(t, distinct, k)
	}
}

func TestAgglomerative_TooFewPoints(t *testing.T) {
	_, err := Agglomerative(nil, 20)
	assert.ErrorIs(t, err, ErrTooFewPoints)

	_, err = Agglomerative([]orb.Point{{0, 0}, {1, 1}}, 3)
	assert.ErrorIs(t, err, ErrTooFewPoints)

	_, err = Agglomerative([]orb.Point{{0, 0}}, 0)
	assert.Error(t, err)
}

func TestAgglomerative_DuplicatePoints(t *testing.T) {
	pts := []orb.Point{{1, 1}, {1, 1}, {1, 1}, {50, 50}, {50, 50}}

	labels, err := Agglomerative(pts, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 1, 1}, labels)
}

func TestWard_Heights(t *testing.T) {
	// two pairs one unit apart, pairs ten units apart
	pts := []orb.Point{{0, 0}, {1, 0}, {10, 0}, {11, 0}}

	merges := Ward(pts)
	require.Len(t, merges, 3)

	heights := []float64{merges[0].Height, merges[1].Height, merges[2].Height}
	assert.ElementsMatch(t, []float64{1, 1, math.Sqrt(200)}, heights)
}

func TestDissolve_CountsSumToInput(t *testing.T) {
	pts := blobs([]orb.Point{{0, 0}, {5000, 5000}, {9000, 0}}, 40, 2000, 11)
	labels, err := Agglomerative(pts, 20)
	require.NoError(t, err)

	regions, err := Dissolve(pts, labels, 100)
	require.NoError(t, err)
	require.Len(t, regions, 20)

	total := 0
	for i, r := range regions {
		assert.Equal(t, i, r.Label)
		assert.Len(t, r.Members, r.Count)
		assert.Greater(t, r.Area(), 0.0)
		total += r.Count
	}
	assert.Equal(t, len(pts), total)
}

func TestDissolve_DegenerateGroups(t *testing.T) {
	pts := []orb.Point{{0, 0}, {10, 10}, {20, 20}, {100, 100}}
	labels := []int{0, 0, 0, 1}

	regions, err := Dissolve(pts, labels, 5)
	require.NoError(t, err)
	require.Len(t, regions, 2)

	// collinear members fall back to the padded bound
	assert.Equal(t, orb.Bound{Min: orb.Point{-5, -5}, Max: orb.Point{25, 25}}, regions[0].Polygon.Bound())
	assert.Equal(t, orb.Point{10, 10}, regions[0].Centroid)

	// a single point becomes a square of twice the buffer
	assert.InDelta(t, 100, regions[1].Area(), 1e-9)
	assert.Equal(t, 1, regions[1].Count)
}

func TestDissolve_LengthMismatch(t *testing.T) {
	_, err := Dissolve([]orb.Point{{0, 0}}, []int{0, 1}, 1)
	assert.Error(t, err)
}

func TestConvexHull(t *testing.T) {
	pts := []orb.Point{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {1, 1}, {1, 0}}
	hull := ConvexHull(pts)

	require.Len(t, hull, 5)
	assert.True(t, hull.Closed())
	assert.ElementsMatch(t, []orb.Point{{0, 0}, {2, 0}, {2, 2}, {0, 2}}, []orb.Point(hull[:4]))
	assert.Equal(t, orb.CCW, hull.Orientation())
}

func TestSaveGeoJSON(t *testing.T) {
	regions := []Region{{
		Label:   0,
		Count:   3,
		Polygon: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}.ToPolygon(),
	}}
	shift := func(p orb.Point) orb.Point { return orb.Point{p[0] + 10, p[1]} }

	path := filepath.Join(t.TempDir(), "out", "regions.geojson")
	require.NoError(t, SaveGeoJSON(path, regions, shift))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Coordinates [][][]float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]float64 `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "FeatureCollection", doc.Type)
	require.Len(t, doc.Features, 1)
	assert.Equal(t, 3.0, doc.Features[0].Properties["count"])
	assert.Equal(t, 10.0, doc.Features[0].Geometry.Coordinates[0][0][0])

	// source polygon is not projected in place
	assert.Equal(t, 0.0, regions[0].Polygon[0][0][0])
}

// bruteWard merges the cheapest pair by Ward cost until k clusters remain
// and numbers the groups by first appearance.
func bruteWard(points []orb.Point, k int) []int {
	type group struct {
		members []int
		cx, cy  float64
	}

	groups := make([]*group, len(points))
	for i, p := range points {
		groups[i] = &group{members: []int{i}, cx: p[0], cy: p[1]}
	}

	for len(groups) > k {
		bi, bj, best := 0, 1, math.Inf(1)
		for i := range groups {
			for j := i + 1; j < len(groups); j++ {
				a, b := groups[i], groups[j]
				na, nb := float64(len(a.members)), float64(len(b.members))
				dx, dy := a.cx-b.cx, a.cy-b.cy
				if d := na * nb / (na + nb) * (dx*dx + dy*dy); d < best {
					bi, bj, best = i, j, d
				}
			}
		}

		a, b := groups[bi], groups[bj]
		na, nb := float64(len(a.members)), float64(len(b.members))
		a.cx = (na*a.cx + nb*b.cx) / (na + nb)
		a.cy = (na*a.cy + nb*b.cy) / (na + nb)
		a.members = append(a.members, b.members...)
		groups = append(groups[:bj], groups[bj+1:]...)
	}

	owner := make([]int, len(points))
	for g, grp := range groups {
		for _, m := range grp.members {
			owner[m] = g
		}
	}

	labels := make([]int, len(points))
	seen := make(map[int]int)
	for i, g := range owner {
		l, ok := seen[g]
		if !ok {
			l = len(seen)
			seen[g] = l
		}
		labels[i] = l
	}
	return labels
}

func TestAgglomerative_MatchesBruteForceWard(t *testing.T) {
	for seed := int64(1); seed <= 15; seed++ {
		rng := rand.New(rand.NewSource(seed))
		pts := make([]orb.Point, 60)
		for i := range pts {
			pts[i] = orb.Point{rng.Float64() * 50000, rng.Float64() * 50000}
		}

		got, err := Agglomerative(pts, 8)
		require.NoError(t, err)
		assert.Equal(t, bruteWard(pts, 8), got, "seed %d", seed)
	}
}
