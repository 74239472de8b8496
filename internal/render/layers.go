// Package render draws map layers with gonum/plot and writes figures to disk.
package render

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/paulmach/orb"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	vgdraw "gonum.org/v1/plot/vg/draw"
)

// Fade blends img over white with the given opacity.
func Fade(img image.Image, alpha float64) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, image.White, image.Point{}, draw.Src)
	mask := image.NewUniform(color.Alpha{A: uint8(clamp01(alpha) * 255)})
	draw.DrawMask(out, b, img, b.Min, mask, image.Point{}, draw.Over)
	return out
}

// Basemap returns a plotter drawing img stretched over bound.
func Basemap(img image.Image, bound orb.Bound) *plotter.Image {
	return plotter.NewImage(img, bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1])
}

// Points returns a scatter of the points with small filled circles.
func Points(pts []orb.Point, c color.Color, radius vg.Length) (*plotter.Scatter, error) {
	xys := make(plotter.XYs, len(pts))
	for i, p := range pts {
		xys[i].X, xys[i].Y = p[0], p[1]
	}

	s, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, err
	}
	s.GlyphStyle.Shape = vgdraw.CircleGlyph{}
	s.GlyphStyle.Color = c
	s.GlyphStyle.Radius = radius

	return s, nil
}

// Choropleth fills polygons with a colour picked from ColorMap by value.
type Choropleth struct {
	ColorMap  palette.ColorMap
	Polygons  []orb.Polygon
	Values    []float64
	LineStyle vgdraw.LineStyle
	Opacity   float64
}

// NewChoropleth creates a choropleth whose colour map spans the values.
func NewChoropleth(polygons []orb.Polygon, values []float64, cm palette.ColorMap, opacity float64) *Choropleth {
	lo, hi := valueRange(values)
	cm.SetMin(lo)
	cm.SetMax(hi)

	return &Choropleth{
		ColorMap: cm,
		Polygons: polygons,
		Values:   values,
		Opacity:  opacity,
		LineStyle: vgdraw.LineStyle{
			Color: color.Gray{Y: 40},
			Width: vg.Points(0.6),
		},
	}
}

// Plot implements plot.Plotter.
func (c *Choropleth) Plot(dc vgdraw.Canvas, p *plot.Plot) {
	trX, trY := p.Transforms(&dc)

	for i, poly := range c.Polygons {
		if len(poly) == 0 || len(poly[0]) == 0 {
			continue
		}

		ring := poly[0]
		pts := make([]vg.Point, len(ring))
		for j, pt := range ring {
			pts[j] = vg.Point{X: trX(pt[0]), Y: trY(pt[1])}
		}

		dc.FillPolygon(withAlpha(c.Color(c.Values[i]), c.Opacity), dc.ClipPolygonXY(pts))
		dc.StrokeLines(c.LineStyle, dc.ClipLinesXY(pts)...)
	}
}

// DataRange implements plot.DataRanger.
func (c *Choropleth) DataRange() (xmin, xmax, ymin, ymax float64) {
	if len(c.Polygons) == 0 {
		return 0, 0, 0, 0
	}

	b := c.Polygons[0].Bound()
	for _, poly := range c.Polygons[1:] {
		b = b.Union(poly.Bound())
	}

	return b.Min[0], b.Max[0], b.Min[1], b.Max[1]
}

// Color returns the opaque colour of a value, clamped to the colour map range.
func (c *Choropleth) Color(v float64) color.Color {
	v = min(max(v, c.ColorMap.Min()), c.ColorMap.Max())
	col, err := c.ColorMap.At(v)
	if err != nil {
		return color.Black
	}
	return col
}

// ColorBar returns a vertical colour bar plot for the colour map.
func ColorBar(cm palette.ColorMap, title string) *plot.Plot {
	p := plot.New()
	p.Add(&plotter.ColorBar{ColorMap: cm, Vertical: true})
	p.HideX()
	p.Y.Padding = 0
	p.Title.Text = title
	return p
}

// Attribution writes provider credits in the lower right corner of the data area.
type Attribution struct {
	Text string
}

// Plot implements plot.Plotter.
func (a Attribution) Plot(dc vgdraw.Canvas, _ *plot.Plot) {
	if a.Text == "" {
		return
	}

	sty := text.Style{
		Color:   color.Gray{Y: 60},
		Font:    font.From(plot.DefaultFont, vg.Points(6)),
		XAlign:  text.XRight,
		YAlign:  text.YBottom,
		Handler: plot.DefaultTextHandler,
	}
	pad := vg.Points(2)
	dc.FillText(sty, vg.Point{X: dc.Max.X - pad, Y: dc.Min.Y + pad}, a.Text)
}

// DrawTitle writes a centred heading at the top of c and returns the canvas below it.
func DrawTitle(c vgdraw.Canvas, title string, size vg.Length) vgdraw.Canvas {
	if title == "" {
		return c
	}

	sty := text.Style{
		Color:   color.Black,
		Font:    font.From(plot.DefaultFont, size),
		XAlign:  text.XCenter,
		YAlign:  text.YTop,
		Handler: plot.DefaultTextHandler,
	}
	pad := size / 2
	c.FillText(sty, vg.Point{X: (c.Min.X + c.Max.X) / 2, Y: c.Max.Y - pad}, title)

	return vgdraw.Crop(c, 0, 0, 0, -(sty.Height(title) + 2*pad))
}

// HideAxes removes ticks, labels and lines, leaving the data area only.
func HideAxes(p *plot.Plot) {
	p.HideAxes()
	p.X.Padding = 0
	p.Y.Padding = 0
}

// SetBound pins the plot axes to the bound.
func SetBound(p *plot.Plot, b orb.Bound) {
	p.X.Min, p.X.Max = b.Min[0], b.Max[0]
	p.Y.Min, p.Y.Max = b.Min[1], b.Max[1]
}

func valueRange(values []float64) (lo, hi float64) {
	if len(values) == 0 {
		return 0, 1
	}

	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if hi <= lo {
		hi = lo + 1
	}

	return lo, hi
}

func withAlpha(c color.Color, alpha float64) color.Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = uint8(float64(n.A) * clamp01(alpha))
	return n
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
