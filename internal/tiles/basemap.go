package tiles

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/woozymasta/crashmap/internal/geo"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// Options controls basemap composition.
type Options struct {
	TileSize    int
	ZoomLimit   int
	Concurrency int
}

// Basemap renders the Web Mercator bound into a width x height image
// stitched from provider tiles. Any tile error aborts the call.
func Basemap(ctx context.Context, p Provider, bound orb.Bound, width, height int, opts Options) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid basemap size %dx%d", width, height)
	}
	if bound.Max[0] <= bound.Min[0] || bound.Max[1] <= bound.Min[1] {
		return nil, errors.New("empty basemap bound")
	}

	ts := opts.TileSize
	if ts <= 0 {
		ts = 256
	}

	z := geo.ZoomForBound(bound, width, ts, opts.ZoomLimit)
	maxTile := (1 << z) - 1

	// top left and bottom right in global pixels
	left, top := geo.MercatorToPixel(orb.Point{bound.Min[0], bound.Max[1]}, z, ts)
	right, bottom := geo.MercatorToPixel(orb.Point{bound.Max[0], bound.Min[1]}, z, ts)

	x0, y0 := clamp(int(math.Floor(left))/ts, maxTile), clamp(int(math.Floor(top))/ts, maxTile)
	x1, y1 := clamp(int(math.Ceil(right)-1)/ts, maxTile), clamp(int(math.Ceil(bottom)-1)/ts, maxTile)

	log.Debug().
		Int("zoom", z).
		Int("tiles", (x1-x0+1)*(y1-y0+1)).
		Msg("Composing basemap")

	mosaic := image.NewRGBA(image.Rect(0, 0, (x1-x0+1)*ts, (y1-y0+1)*ts))

	g, gctx := errgroup.WithContext(ctx)
	if opts.Concurrency > 0 {
		g.SetLimit(opts.Concurrency)
	}

	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			c := Coordinate{Z: z, X: x, Y: y}
			g.Go(func() error {
				img, err := p.Tile(gctx, c)
				if err != nil {
					return err
				}

				// each tile owns a disjoint region of the mosaic
				dst := image.Rect((c.X-x0)*ts, (c.Y-y0)*ts, (c.X-x0+1)*ts, (c.Y-y0+1)*ts)
				if img.Bounds().Dx() == ts && img.Bounds().Dy() == ts {
					draw.Draw(mosaic, dst, img, img.Bounds().Min, draw.Src)
				} else {
					xdraw.CatmullRom.Scale(mosaic, dst, img, img.Bounds(), draw.Src, nil)
				}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("basemap: %w", err)
	}

	originX, originY := float64(x0*ts), float64(y0*ts)
	crop := image.Rect(
		int(math.Floor(left-originX)),
		int(math.Floor(top-originY)),
		int(math.Ceil(right-originX)),
		int(math.Ceil(bottom-originY)),
	).Intersect(mosaic.Bounds())

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(out, out.Bounds(), mosaic, crop, draw.Src, nil)

	return out, nil
}

func clamp(v, maxV int) int {
	if v < 0 {
		return 0
	}
	if v > maxV {
		return maxV
	}
	return v
}
