package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// EarthRadius is the sphere radius used by Web Mercator.
const EarthRadius = 6378137.0

// originShift is half the Web Mercator world width in metres.
const originShift = math.Pi * EarthRadius

// MaxLat is the latitude where Web Mercator becomes square.
const MaxLat = 85.05112878

// WorldPixels returns the world width in pixels at zoom z.
func WorldPixels(z, tileSize int) float64 {
	return float64(tileSize) * math.Exp2(float64(z))
}

// MercatorToPixel maps Web Mercator metres to global pixel coordinates at zoom z.
// Pixel Y grows southward, as with XYZ tiles.
func MercatorToPixel(p orb.Point, z, tileSize int) (px, py float64) {
	world := WorldPixels(z, tileSize)
	px = (p[0] + originShift) / (2 * originShift) * world
	py = (originShift - p[1]) / (2 * originShift) * world
	return px, py
}

// PixelToMercator is the inverse of MercatorToPixel.
func PixelToMercator(px, py float64, z, tileSize int) orb.Point {
	world := WorldPixels(z, tileSize)
	return orb.Point{
		px/world*2*originShift - originShift,
		originShift - py/world*2*originShift,
	}
}

// ZoomForBound picks the smallest zoom level whose resolution is at least
// as fine as the bound stretched over widthPx pixels, clamped to [0, maxZoom].
func ZoomForBound(b orb.Bound, widthPx, tileSize, maxZoom int) int {
	width := b.Max[0] - b.Min[0]
	if width <= 0 || widthPx <= 0 {
		return maxZoom
	}

	metresPerPixel := width / float64(widthPx)
	z := int(math.Ceil(math.Log2(2 * originShift / (float64(tileSize) * metresPerPixel))))

	if z < 0 {
		return 0
	}
	if z > maxZoom {
		return maxZoom
	}

	return z
}

// Pad grows the bound by a fraction of its larger side on every edge.
// A degenerate bound is grown by minSize metres instead.
func Pad(b orb.Bound, fraction, minSize float64) orb.Bound {
	side := math.Max(b.Max[0]-b.Min[0], b.Max[1]-b.Min[1])
	d := side * fraction
	if d <= 0 {
		d = minSize
	}

	return b.Pad(d)
}
