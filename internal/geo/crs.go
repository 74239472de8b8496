// Package geo handles coordinate reference systems and the conversions between them.
package geo

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// CRS is a coordinate reference system identifier in "EPSG:<code>" form.
type CRS string

// Supported coordinate reference systems.
const (
	SJTSK       CRS = "EPSG:5514" // S-JTSK / Krovak East North, metres
	WGS84       CRS = "EPSG:4326" // longitude, latitude in degrees
	WebMercator CRS = "EPSG:3857" // spherical mercator, metres
)

// ErrUnsupportedCRS is returned for reference systems outside the supported set.
var ErrUnsupportedCRS = errors.New("unsupported coordinate reference system")

// Reproject converts a point between two supported reference systems.
// Conversions pass through WGS84.
func Reproject(p orb.Point, from, to CRS) (orb.Point, error) {
	if from == to {
		return p, nil
	}

	ll, err := toWGS84(p, from)
	if err != nil {
		return orb.Point{}, err
	}

	switch to {
	case WGS84:
		return ll, nil
	case WebMercator:
		return project.Point(ll, project.WGS84.ToMercator), nil
	case SJTSK:
		return WGS84ToKrovak(ll), nil
	}

	return orb.Point{}, fmt.Errorf("%w: %s", ErrUnsupportedCRS, to)
}

// Projection returns an orb.Projection for the given pair, usable with project.Geometry.
func Projection(from, to CRS) (orb.Projection, error) {
	if err := from.check(); err != nil {
		return nil, err
	}
	if err := to.check(); err != nil {
		return nil, err
	}

	return func(p orb.Point) orb.Point {
		// both ends were checked, Reproject cannot fail here
		out, _ := Reproject(p, from, to)
		return out
	}, nil
}

func toWGS84(p orb.Point, from CRS) (orb.Point, error) {
	switch from {
	case WGS84:
		return p, nil
	case WebMercator:
		return project.Point(p, project.Mercator.ToWGS84), nil
	case SJTSK:
		return KrovakToWGS84(p), nil
	}

	return orb.Point{}, fmt.Errorf("%w: %s", ErrUnsupportedCRS, from)
}

func (c CRS) check() error {
	switch c {
	case SJTSK, WGS84, WebMercator:
		return nil
	}

	return fmt.Errorf("%w: %s", ErrUnsupportedCRS, c)
}
