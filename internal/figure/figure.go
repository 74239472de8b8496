// Package figure builds the accident map figures from a geospatial table.
package figure

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/woozymasta/crashmap/internal/config"
	"github.com/woozymasta/crashmap/internal/render"
	"github.com/woozymasta/crashmap/internal/tiles"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/plot/vg"
)

// ErrEmptySelection is returned when no record passes the figure filters.
var ErrEmptySelection = errors.New("no records match the figure selection")

// minExtent is the smallest map side in metres around a single point.
const minExtent = 2000

const titleSize = vg.Length(16)

// Output says where a figure goes. Path and Show are independent.
type Output struct {
	// Path of the written figure; the extension selects the format.
	Path string
	// RegionsPath receives the cluster regions as GeoJSON (cluster figure only).
	RegionsPath string
	// Show opens the figure in the system viewer.
	Show bool
	// Open overrides the viewer launcher.
	Open render.Opener
}

func (o Output) emit(name string, w, h vg.Length, dpi int, paint render.Painter) error {
	if o.Path != "" {
		if err := render.Save(o.Path, w, h, dpi, paint); err != nil {
			return fmt.Errorf("save %s figure: %w", name, err)
		}
		log.Info().Str("figure", name).Str("path", o.Path).Msg("Figure saved")
	}

	if o.Show {
		err := render.Show(o.Open, o.Path, w, h, dpi, paint)
		if errors.Is(err, render.ErrViewer) {
			log.Warn().Err(err).Str("figure", name).Msg("Figure not displayed")
		} else if err != nil {
			return fmt.Errorf("show %s figure: %w", name, err)
		}
	}

	return nil
}

// basemap fetches and fades the background for bound, or returns nil without a provider.
func basemap(ctx context.Context, tp tiles.Provider, cfg *config.Config, bound orb.Bound, w, h vg.Length) (image.Image, error) {
	if tp == nil {
		return nil, nil
	}

	img, err := tiles.Basemap(ctx, tp, bound, pixels(w, cfg.DPI), pixels(h, cfg.DPI), tiles.Options{
		TileSize:    cfg.Basemap.TileSize,
		ZoomLimit:   cfg.Basemap.ZoomLimit,
		Concurrency: cfg.Basemap.Concurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("basemap: %w", err)
	}

	return render.Fade(img, cfg.Basemap.Alpha), nil
}

func pixels(l vg.Length, dpi int) int {
	return max(int(math.Round(l.Dots(float64(dpi)))), 1)
}

// fitAspect grows the bound around its centre until width/height equals aspect.
func fitAspect(b orb.Bound, aspect float64) orb.Bound {
	w, h := b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]
	if w <= 0 || h <= 0 || aspect <= 0 {
		return b
	}

	c := b.Center()
	if w/h < aspect {
		w = h * aspect
	} else {
		h = w / aspect
	}

	return orb.Bound{
		Min: orb.Point{c[0] - w/2, c[1] - h/2},
		Max: orb.Point{c[0] + w/2, c[1] + h/2},
	}
}

func inches(v float64) vg.Length {
	return vg.Length(v) * vg.Inch
}
