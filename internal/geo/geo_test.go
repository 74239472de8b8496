package geo

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKrovakToWGS84_KnownCities(t *testing.T) {
	tests := []struct {
		name     string
		in       orb.Point
		lon, lat float64
	}{
		{"Prague", orb.Point{-743000, -1043000}, 14.4187, 50.0874},
		{"Brno", orb.Point{-598000, -1160000}, 16.6091, 49.2020},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ll := KrovakToWGS84(tt.in)
			assert.InDelta(t, tt.lon, ll[0], 1e-3)
			assert.InDelta(t, tt.lat, ll[1], 1e-3)
		})
	}
}

func TestKrovak_RoundTrip(t *testing.T) {
	for _, p := range []orb.Point{
		{-743000, -1043000},
		{-598000, -1160000},
		{-470000, -1100000},
		{-850000, -1000000},
	} {
		back := WGS84ToKrovak(KrovakToWGS84(p))
		assert.InDelta(t, p[0], back[0], 0.5)
		assert.InDelta(t, p[1], back[1], 0.5)
	}
}

func TestReproject(t *testing.T) {
	p := orb.Point{-598000, -1160000}

	same, err := Reproject(p, SJTSK, SJTSK)
	require.NoError(t, err)
	assert.Equal(t, p, same)

	merc, err := Reproject(p, SJTSK, WebMercator)
	require.NoError(t, err)
	// Brno lies around 1.85e6 E, 6.31e6 N in web mercator
	assert.InDelta(t, 1.849e6, merc[0], 5e3)
	assert.InDelta(t, 6.309e6, merc[1], 5e3)

	ll, err := Reproject(merc, WebMercator, WGS84)
	require.NoError(t, err)
	assert.InDelta(t, 16.6091, ll[0], 1e-3)
	assert.InDelta(t, 49.2020, ll[1], 1e-3)

	_, err = Reproject(p, "EPSG:32633", WGS84)
	assert.True(t, errors.Is(err, ErrUnsupportedCRS))

	_, err = Reproject(p, SJTSK, "EPSG:32633")
	assert.True(t, errors.Is(err, ErrUnsupportedCRS))
}

func TestProjection(t *testing.T) {
	_, err := Projection(SJTSK, "EPSG:2065")
	require.ErrorIs(t, err, ErrUnsupportedCRS)

	proj, err := Projection(WGS84, WebMercator)
	require.NoError(t, err)
	assert.InDelta(t, 0, proj(orb.Point{0, 0})[0], 1e-9)
}

func TestMercatorPixel_RoundTrip(t *testing.T) {
	p := orb.Point{1.85e6, 6.31e6}
	for _, z := range []int{0, 5, 12} {
		px, py := MercatorToPixel(p, z, 256)
		back := PixelToMercator(px, py, z, 256)
		assert.InDelta(t, p[0], back[0], 1e-6)
		assert.InDelta(t, p[1], back[1], 1e-6)
	}

	px, py := MercatorToPixel(orb.Point{0, 0}, 1, 256)
	assert.InDelta(t, 256, px, 1e-9)
	assert.InDelta(t, 256, py, 1e-9)
}

func TestZoomForBound(t *testing.T) {
	world := orb.Bound{Min: orb.Point{-originShift, -originShift}, Max: orb.Point{originShift, originShift}}
	assert.Equal(t, 0, ZoomForBound(world, 250, 256, 18))
	assert.Equal(t, 2, ZoomForBound(world, 1000, 256, 18))
	assert.Equal(t, 3, ZoomForBound(world, 1100, 256, 18))
	assert.Equal(t, 1, ZoomForBound(world, 1<<20, 256, 1))

	empty := orb.Bound{Min: orb.Point{1, 1}, Max: orb.Point{1, 1}}
	assert.Equal(t, 14, ZoomForBound(empty, 500, 256, 14))
}

func TestPad(t *testing.T) {
	b := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{100, 50}}
	padded := Pad(b, 0.1, 10)
	assert.Equal(t, orb.Point{-10, -10}, padded.Min)
	assert.Equal(t, orb.Point{110, 60}, padded.Max)

	point := orb.Bound{Min: orb.Point{5, 5}, Max: orb.Point{5, 5}}
	padded = Pad(point, 0.1, 250)
	assert.Equal(t, orb.Point{-245, -245}, padded.Min)
}
