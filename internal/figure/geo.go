package figure

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strconv"
	"time"

	"github.com/woozymasta/crashmap/internal/accident"
	"github.com/woozymasta/crashmap/internal/config"
	"github.com/woozymasta/crashmap/internal/geo"
	"github.com/woozymasta/crashmap/internal/render"
	"github.com/woozymasta/crashmap/internal/tiles"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var pointColor = color.RGBA{R: 200, G: 20, B: 30, A: 255}

// Panel is one year of the alcohol accidents grid.
type Panel struct {
	Plot   *plot.Plot
	Points []orb.Point
	Year   int
}

// PlotGeo draws alcohol-related accidents of the configured region as a grid
// with one panel per year. All panels share the extent of the whole selection.
func PlotGeo(ctx context.Context, table *accident.Table, cfg *config.Config, tp tiles.Provider, out Output) error {
	start := time.Now()

	sel := table.Filter(
		accident.InRegion(cfg.Region),
		accident.AlcoholAtLeast(cfg.Geo.AlcoholThreshold),
	)
	if sel.Len() == 0 {
		return fmt.Errorf("alcohol accidents in %s: %w", cfg.Region, ErrEmptySelection)
	}

	merc, err := sel.Reproject(geo.WebMercator)
	if err != nil {
		return fmt.Errorf("reproject selection: %w", err)
	}

	cols := cfg.Geo.Columns
	rows := (len(cfg.Geo.Years) + cols - 1) / cols
	width, height := inches(cfg.Geo.Width), inches(cfg.Geo.Height)
	cellW, cellH := width/vg.Length(cols), (height-2*titleSize)/vg.Length(rows)

	bound := fitAspect(geo.Pad(merc.Bound(), cfg.Padding, minExtent), float64(cellW/cellH))

	bg, err := basemap(ctx, tp, cfg, bound, cellW, cellH)
	if err != nil {
		return err
	}

	panels := GeoPanels(merc, cfg, bound, bg)

	log.Info().
		Str("region", cfg.Region).
		Int("records", merc.Len()).
		Int("panels", len(panels)).
		Dur("elapsed", time.Since(start)).
		Msg("Alcohol accidents grid prepared")

	paint := func(c draw.Canvas) {
		c = render.DrawTitle(c, cfg.Geo.Title, titleSize)
		drawGrid(c, panels, rows, cols)
	}

	return out.emit("geo", width, height, cfg.DPI, paint)
}

// GeoPanels builds one panel per configured year from a Web Mercator table.
// Each panel holds only its year's records; a year without records keeps the basemap.
func GeoPanels(merc *accident.Table, cfg *config.Config, bound orb.Bound, bg image.Image) []Panel {
	panels := make([]Panel, 0, len(cfg.Geo.Years))

	for _, year := range cfg.Geo.Years {
		pts := merc.Filter(accident.InYear(year)).Points()

		p := plot.New()
		p.Title.Text = strconv.Itoa(year)
		render.HideAxes(p)

		if bg != nil {
			p.Add(render.Basemap(bg, bound))
		}
		if len(pts) > 0 {
			s, err := render.Points(pts, pointColor, vg.Points(cfg.Geo.PointSize))
			if err != nil {
				// only non-finite coordinates fail here
				log.Warn().Err(err).Int("year", year).Msg("Skipping year points")
			} else {
				p.Add(s)
			}
		}
		p.Add(render.Attribution{Text: cfg.Basemap.Attribution})
		render.SetBound(p, bound)

		log.Debug().Int("year", year).Int("records", len(pts)).Msg("Year panel built")

		panels = append(panels, Panel{Plot: p, Points: pts, Year: year})
	}

	return panels
}

func drawGrid(c draw.Canvas, panels []Panel, rows, cols int) {
	grid := make([][]*plot.Plot, rows)
	for r := range grid {
		grid[r] = make([]*plot.Plot, cols)
		for i := range grid[r] {
			blank := plot.New()
			blank.HideAxes()
			grid[r][i] = blank
		}
	}
	for i, pn := range panels {
		grid[i/cols][i%cols] = pn.Plot
	}

	layout := draw.Tiles{
		Rows:      rows,
		Cols:      cols,
		PadX:      vg.Millimeter * 4,
		PadY:      vg.Millimeter * 4,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
	}

	canvases := plot.Align(grid, layout, c)
	for r := range grid {
		for i, p := range grid[r] {
			p.Draw(canvases[r][i])
		}
	}
}
