package figure

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/woozymasta/crashmap/internal/accident"
	"github.com/woozymasta/crashmap/internal/cluster"
	"github.com/woozymasta/crashmap/internal/config"
	"github.com/woozymasta/crashmap/internal/geo"
	"github.com/woozymasta/crashmap/internal/render"
	"github.com/woozymasta/crashmap/internal/tiles"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const colorBarWidth = vg.Inch

// PlotCluster groups road accidents of the configured region into clusters
// and draws each cluster footprint coloured by its accident count.
func PlotCluster(ctx context.Context, table *accident.Table, cfg *config.Config, tp tiles.Provider, out Output) error {
	start := time.Now()

	sel := table.Filter(
		accident.InRegion(cfg.Region),
		accident.RoadClassIn(cfg.Cluster.RoadClasses...),
	)
	if sel.Len() == 0 {
		return fmt.Errorf("road accidents in %s: %w", cfg.Region, ErrEmptySelection)
	}

	merc, err := sel.Reproject(geo.WebMercator)
	if err != nil {
		return fmt.Errorf("reproject selection: %w", err)
	}

	pts := merc.Points()
	regions, err := Regions(pts, cfg.Cluster)
	if err != nil {
		return err
	}

	log.Info().
		Str("region", cfg.Region).
		Int("records", len(pts)).
		Int("clusters", len(regions)).
		Dur("elapsed", time.Since(start)).
		Msg("Accidents clustered")

	if out.RegionsPath != "" {
		proj, err := geo.Projection(geo.WebMercator, geo.WGS84)
		if err != nil {
			return err
		}
		if err := cluster.SaveGeoJSON(out.RegionsPath, regions, proj); err != nil {
			return fmt.Errorf("save cluster regions: %w", err)
		}
		log.Info().Str("path", out.RegionsPath).Msg("Cluster regions saved")
	}

	width, height := inches(cfg.Cluster.Width), inches(cfg.Cluster.Height)
	mapW, mapH := width-colorBarWidth, height-2*titleSize

	extent := pts.Bound()
	for _, r := range regions {
		extent = extent.Union(r.Polygon.Bound())
	}
	bound := fitAspect(geo.Pad(extent, cfg.Padding, minExtent), float64(mapW/mapH))

	bg, err := basemap(ctx, tp, cfg, bound, mapW, mapH)
	if err != nil {
		return err
	}

	p, bar, err := clusterPlots(pts, regions, cfg, bound, bg)
	if err != nil {
		return err
	}

	paint := func(c draw.Canvas) {
		c = render.DrawTitle(c, cfg.Cluster.Title, titleSize)
		split := c.Max.X - colorBarWidth

		p.Draw(draw.Crop(c, 0, split-c.Max.X, 0, 0))

		barH := (c.Max.Y - c.Min.Y) / 8
		bar.Draw(draw.Crop(c, split-c.Min.X+vg.Millimeter*4, 0, barH, -barH))
	}

	return out.emit("cluster", width, height, cfg.DPI, paint)
}

// Regions clusters the points and dissolves every cluster into a region.
func Regions(pts []orb.Point, cfg config.Cluster) ([]cluster.Region, error) {
	labels, err := cluster.Agglomerative(pts, cfg.Clusters)
	if err != nil {
		return nil, fmt.Errorf("cluster %d points into %d groups: %w", len(pts), cfg.Clusters, err)
	}

	regions, err := cluster.Dissolve(pts, labels, cfg.HullBuffer)
	if err != nil {
		return nil, fmt.Errorf("dissolve clusters: %w", err)
	}

	return regions, nil
}

func clusterPlots(pts []orb.Point, regions []cluster.Region, cfg *config.Config, bound orb.Bound, bg image.Image) (*plot.Plot, *plot.Plot, error) {
	polygons := make([]orb.Polygon, len(regions))
	counts := make([]float64, len(regions))
	for i, r := range regions {
		polygons[i] = r.Polygon
		counts[i] = float64(r.Count)
	}

	ch := render.NewChoropleth(polygons, counts, moreland.SmoothBlueRed(), cfg.Cluster.Opacity)

	p := plot.New()
	render.HideAxes(p)
	if bg != nil {
		p.Add(render.Basemap(bg, bound))
	}
	p.Add(ch)

	for _, r := range regions {
		members := make([]orb.Point, len(r.Members))
		for i, m := range r.Members {
			members[i] = pts[m]
		}

		s, err := render.Points(members, ch.Color(float64(r.Count)), vg.Points(cfg.Cluster.PointSize))
		if err != nil {
			return nil, nil, fmt.Errorf("cluster %d points: %w", r.Label, err)
		}
		p.Add(s)
	}

	p.Add(render.Attribution{Text: cfg.Basemap.Attribution})
	render.SetBound(p, bound)

	return p, render.ColorBar(ch.ColorMap, "Accidents"), nil
}
