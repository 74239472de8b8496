package figure

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/woozymasta/crashmap/internal/accident"
	"github.com/woozymasta/crashmap/internal/cluster"
	"github.com/woozymasta/crashmap/internal/config"
	"github.com/woozymasta/crashmap/internal/geo"
	"github.com/woozymasta/crashmap/internal/tiles"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var grey = tiles.Solid{Color: color.RGBA{R: 230, G: 230, B: 230, A: 255}, Size: 256}

func record(id string, year, alcohol, road int, x, y float64) accident.Record {
	return accident.Record{
		ID:        id,
		Region:    "JHM",
		Date:      time.Date(year, time.June, 1, 0, 0, 0, 0, time.UTC),
		HasDate:   true,
		Geometry:  orb.Point{x, y},
		Alcohol:   alcohol,
		RoadClass: road,
	}
}

// eightRows spans 2018-2021 around Brno with alcohol codes on both sides of 4.
func eightRows() *accident.Table {
	return &accident.Table{
		CRS: geo.SJTSK,
		Records: []accident.Record{
			record("1", 2018, 4, 1, -598000, -1160000),
			record("2", 2018, 1, 1, -599000, -1161000),
			record("3", 2019, 5, 2, -600000, -1162000),
			record("4", 2019, 9, 3, -597000, -1159000),
			record("5", 2020, 0, 1, -596000, -1158000),
			record("6", 2020, 7, 2, -601000, -1163000),
			record("7", 2021, 4, 3, -602000, -1164000),
			record("8", 2021, 6, 9, -595000, -1157000),
		},
	}
}

func smallConfig() *config.Config {
	cfg := config.Default()
	cfg.DPI = 30
	cfg.Geo.Width, cfg.Geo.Height = 4, 4
	cfg.Cluster.Width, cfg.Cluster.Height = 5, 4
	cfg.Basemap.ZoomLimit = 10
	return cfg
}

func TestGeoPanelsPerYear(t *testing.T) {
	cfg := smallConfig()
	sel := eightRows().Filter(accident.InRegion(cfg.Region), accident.AlcoholAtLeast(cfg.Geo.AlcoholThreshold))
	require.Equal(t, 6, sel.Len())

	merc, err := sel.Reproject(geo.WebMercator)
	require.NoError(t, err)

	panels := GeoPanels(merc, cfg, merc.Bound().Pad(1000), nil)
	require.Len(t, panels, 4)

	wantCounts := map[int]int{2018: 1, 2019: 2, 2020: 1, 2021: 2}
	for i, p := range panels {
		assert.Equal(t, cfg.Geo.Years[i], p.Year)
		assert.Equal(t, wantCounts[p.Year], len(p.Points), "year %d", p.Year)
		assert.Equal(t, []orb.Point(merc.Filter(accident.InYear(p.Year)).Points()), p.Points)
		assert.Equal(t, strconv.Itoa(p.Year), p.Plot.Title.Text)
	}
}

func TestGeoPanelsEmptyYear(t *testing.T) {
	cfg := smallConfig()
	cfg.Geo.Years = []int{2017, 2018}

	merc, err := eightRows().Reproject(geo.WebMercator)
	require.NoError(t, err)

	bg := image.NewRGBA(image.Rect(0, 0, 4, 4))
	panels := GeoPanels(merc, cfg, merc.Bound().Pad(1000), bg)
	require.Len(t, panels, 2)
	assert.Empty(t, panels[0].Points)
	assert.Len(t, panels[1].Points, 2)
}

func TestPlotGeoWritesFigure(t *testing.T) {
	cfg := smallConfig()
	path := filepath.Join(t.TempDir(), "geo1.png")

	err := PlotGeo(context.Background(), eightRows(), cfg, grey, Output{Path: path})
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	img, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 120, img.Width)
	assert.Equal(t, 120, img.Height)
}

func TestPlotGeoEmptySelection(t *testing.T) {
	cfg := smallConfig()
	cfg.Region = "PHA"
	path := filepath.Join(t.TempDir(), "geo1.png")

	err := PlotGeo(context.Background(), eightRows(), cfg, grey, Output{Path: path})
	require.ErrorIs(t, err, ErrEmptySelection)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPlotGeoShowWithoutPath(t *testing.T) {
	var opened string
	out := Output{
		Show: true,
		Open: func(path string) error {
			opened = path
			return nil
		},
	}

	require.NoError(t, PlotGeo(context.Background(), eightRows(), smallConfig(), nil, out))
	require.NotEmpty(t, opened)
	t.Cleanup(func() { _ = os.Remove(opened) })

	_, err := os.Stat(opened)
	assert.NoError(t, err)
}

func TestPlotGeoViewerFailureKeepsFigure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geo1.png")
	out := Output{
		Path: path,
		Show: true,
		Open: func(string) error { return errors.New("xdg-open: executable file not found") },
	}

	require.NoError(t, PlotGeo(context.Background(), eightRows(), smallConfig(), grey, out))
	assert.FileExists(t, path)
}

func TestPlotGeoTileError(t *testing.T) {
	boom := errors.New("tile server down")
	failing := tiles.ProviderFunc(func(context.Context, tiles.Coordinate) (image.Image, error) {
		return nil, boom
	})

	err := PlotGeo(context.Background(), eightRows(), smallConfig(), failing, Output{})
	require.ErrorIs(t, err, boom)
}

// blobs returns n records in each of three groups a few kilometres apart.
func blobs(n int) *accident.Table {
	centres := []orb.Point{{-598000, -1160000}, {-560000, -1150000}, {-620000, -1190000}}
	t := &accident.Table{CRS: geo.SJTSK}
	for c, centre := range centres {
		for i := range n {
			dx := float64(i%4) * 150
			dy := float64(i/4) * 150
			t.Records = append(t.Records, record("x", 2020, 0, 1+c, centre[0]+dx, centre[1]+dy))
		}
	}
	return t
}

func TestPlotClusterWritesFigureAndRegions(t *testing.T) {
	cfg := smallConfig()
	cfg.Cluster.Clusters = 3
	dir := t.TempDir()
	out := Output{
		Path:        filepath.Join(dir, "geo2.png"),
		RegionsPath: filepath.Join(dir, "regions.geojson"),
	}

	require.NoError(t, PlotCluster(context.Background(), blobs(10), cfg, grey, out))

	f, err := os.Open(out.Path)
	require.NoError(t, err)
	defer f.Close()
	img, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 150, img.Width)
	assert.Equal(t, 120, img.Height)

	data, err := os.ReadFile(out.RegionsPath)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 3)

	total := 0.0
	for _, feat := range fc.Features {
		total += feat.Properties.MustFloat64("count")

		// regions are written in WGS84 around Brno
		c := feat.Geometry.Bound().Center()
		assert.InDelta(t, 16.6, c[0], 1)
		assert.InDelta(t, 49.2, c[1], 1)
	}
	assert.InDelta(t, 30, total, 0)
}

func TestPlotClusterRoadFilter(t *testing.T) {
	cfg := smallConfig()
	cfg.Cluster.RoadClasses = []int{9}

	err := PlotCluster(context.Background(), blobs(5), cfg, grey, Output{})
	require.ErrorIs(t, err, ErrEmptySelection)
}

func TestPlotClusterTooFewPoints(t *testing.T) {
	cfg := smallConfig()
	cfg.Cluster.RoadClasses = []int{1}

	err := PlotCluster(context.Background(), blobs(5), cfg, grey, Output{})
	require.ErrorIs(t, err, cluster.ErrTooFewPoints)
}

func TestRegionsCountInvariant(t *testing.T) {
	merc, err := blobs(7).Reproject(geo.WebMercator)
	require.NoError(t, err)

	cfg := config.Default().Cluster
	cfg.Clusters = 5

	regions, err := Regions(merc.Points(), cfg)
	require.NoError(t, err)
	require.Len(t, regions, 5)

	sum := 0
	for _, r := range regions {
		sum += r.Count
	}
	assert.Equal(t, merc.Len(), sum)
}

func TestFitAspect(t *testing.T) {
	b := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 20}}

	wide := fitAspect(b, 2)
	assert.Equal(t, b.Center(), wide.Center())
	assert.InDelta(t, 40, wide.Max[0]-wide.Min[0], 1e-9)
	assert.InDelta(t, 20, wide.Max[1]-wide.Min[1], 1e-9)

	tall := fitAspect(b, 0.25)
	assert.InDelta(t, 10, tall.Max[0]-tall.Min[0], 1e-9)
	assert.InDelta(t, 40, tall.Max[1]-tall.Min[1], 1e-9)

	assert.Equal(t, b, fitAspect(b, 0))
}
