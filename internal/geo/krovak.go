package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// Ellipsoid parameters.
type ellipsoid struct {
	a  float64 // semi-major axis
	e2 float64 // first eccentricity squared
}

func newEllipsoid(a, invF float64) ellipsoid {
	f := 1 / invF
	return ellipsoid{a: a, e2: 2*f - f*f}
}

var (
	bessel1841 = newEllipsoid(6377397.155, 299.1528128)
	wgs84      = newEllipsoid(6378137.0, 298.257223563)
)

// helmert is a position vector 7-parameter transformation.
// Translations in metres, rotations in arc-seconds, scale in ppm.
type helmert struct {
	tx, ty, tz float64
	rx, ry, rz float64
	s          float64
}

// S-JTSK to WGS84, the towgs84 set published with EPSG:5514 in proj.
var sjtskToWGS84 = helmert{tx: 589, ty: 76, tz: 480}

// Krovak oblique conformal conic on Bessel 1841, EPSG:5514 constants.
var krovak = newKrovakParams(
	49.5,              // latitude of projection centre
	24.83333333333333, // longitude of origin (Greenwich)
	30.28813972222222, // co-latitude of cone axis
	78.5,              // latitude of pseudo standard parallel
	0.9999,            // scale factor on pseudo standard parallel
)

type krovakParams struct {
	lon0, alphaC, phiP float64
	e, b, t0, n, r0    float64
	tanPhiP            float64
}

func newKrovakParams(latC, lon0, alphaC, latP, k float64) krovakParams {
	phiC := deg2rad(latC)
	phiP := deg2rad(latP)
	e2 := bessel1841.e2
	e := math.Sqrt(e2)

	sinC := math.Sin(phiC)
	a := bessel1841.a * math.Sqrt(1-e2) / (1 - e2*sinC*sinC)
	b := math.Sqrt(1 + e2*math.Pow(math.Cos(phiC), 4)/(1-e2))
	gamma0 := math.Asin(sinC / b)
	t0 := math.Tan(math.Pi/4+gamma0/2) *
		math.Pow((1+e*sinC)/(1-e*sinC), e*b/2) /
		math.Pow(math.Tan(math.Pi/4+phiC/2), b)

	return krovakParams{
		lon0:    deg2rad(lon0),
		alphaC:  deg2rad(alphaC),
		phiP:    phiP,
		e:       e,
		b:       b,
		t0:      t0,
		n:       math.Sin(phiP),
		r0:      k * a / math.Tan(phiP),
		tanPhiP: math.Tan(math.Pi/4 + phiP/2),
	}
}

// KrovakToWGS84 converts an EPSG:5514 (easting, northing) point to WGS84 (lon, lat).
func KrovakToWGS84(p orb.Point) orb.Point {
	lon, lat := krovak.inverse(p[0], p[1])
	return datumShift(lon, lat, bessel1841, wgs84, sjtskToWGS84)
}

// WGS84ToKrovak converts a WGS84 (lon, lat) point to EPSG:5514 (easting, northing).
func WGS84ToKrovak(p orb.Point) orb.Point {
	ll := datumShift(deg2rad(p[0]), deg2rad(p[1]), wgs84, bessel1841, sjtskToWGS84.reverse())
	x, y := krovak.forward(deg2rad(ll[0]), deg2rad(ll[1]))
	return orb.Point{x, y}
}

// forward projects Bessel geodetic radians to East North metres.
func (k krovakParams) forward(lon, lat float64) (easting, northing float64) {
	esin := k.e * math.Sin(lat)
	u := 2 * (math.Atan(k.t0*math.Pow(math.Tan(lat/2+math.Pi/4), k.b)/
		math.Pow((1+esin)/(1-esin), k.e*k.b/2)) - math.Pi/4)
	v := k.b * (k.lon0 - lon)

	t := math.Asin(math.Cos(k.alphaC)*math.Sin(u) + math.Sin(k.alphaC)*math.Cos(u)*math.Cos(v))
	d := math.Asin(math.Cos(u) * math.Sin(v) / math.Cos(t))
	theta := k.n * d
	r := k.r0 * math.Pow(k.tanPhiP, k.n) / math.Pow(math.Tan(t/2+math.Pi/4), k.n)

	southing := r * math.Cos(theta)
	westing := r * math.Sin(theta)

	return -westing, -southing
}

// inverse unprojects East North metres to Bessel geodetic radians.
func (k krovakParams) inverse(easting, northing float64) (lon, lat float64) {
	southing := -northing
	westing := -easting

	r := math.Hypot(southing, westing)
	theta := math.Atan2(westing, southing)
	d := theta / k.n
	t := 2 * (math.Atan(math.Pow(k.r0/r, 1/k.n)*k.tanPhiP) - math.Pi/4)
	u := math.Asin(math.Cos(k.alphaC)*math.Sin(t) - math.Sin(k.alphaC)*math.Cos(t)*math.Cos(d))
	v := math.Asin(math.Cos(t) * math.Sin(d) / math.Cos(u))

	lon = k.lon0 - v/k.b

	base := math.Pow(k.t0, -1/k.b) * math.Pow(math.Tan(u/2+math.Pi/4), 1/k.b)
	lat = u
	for range 15 {
		esin := k.e * math.Sin(lat)
		next := 2 * (math.Atan(base*math.Pow((1+esin)/(1-esin), k.e/2)) - math.Pi/4)
		if math.Abs(next-lat) < 1e-12 {
			lat = next
			break
		}
		lat = next
	}

	return lon, lat
}

func (h helmert) reverse() helmert {
	return helmert{tx: -h.tx, ty: -h.ty, tz: -h.tz, rx: -h.rx, ry: -h.ry, rz: -h.rz, s: -h.s}
}

func (h helmert) apply(x, y, z float64) (float64, float64, float64) {
	const arcsec = math.Pi / (180 * 3600)
	rx, ry, rz := h.rx*arcsec, h.ry*arcsec, h.rz*arcsec
	m := 1 + h.s*1e-6

	return h.tx + m*(x-rz*y+ry*z),
		h.ty + m*(rz*x+y-rx*z),
		h.tz + m*(-ry*x+rx*y+z)
}

// datumShift moves geodetic radians between ellipsoids and returns degrees.
func datumShift(lon, lat float64, from, to ellipsoid, h helmert) orb.Point {
	sinLat := math.Sin(lat)
	nu := from.a / math.Sqrt(1-from.e2*sinLat*sinLat)
	x := nu * math.Cos(lat) * math.Cos(lon)
	y := nu * math.Cos(lat) * math.Sin(lon)
	z := nu * (1 - from.e2) * sinLat

	x, y, z = h.apply(x, y, z)

	p := math.Hypot(x, y)
	outLon := math.Atan2(y, x)
	outLat := math.Atan2(z, p*(1-to.e2))
	for range 10 {
		s := math.Sin(outLat)
		n := to.a / math.Sqrt(1-to.e2*s*s)
		height := p/math.Cos(outLat) - n
		outLat = math.Atan2(z, p*(1-to.e2*n/(n+height)))
	}

	return orb.Point{rad2deg(outLon), rad2deg(outLat)}
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }
