package render

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/chai2010/webp"
	"github.com/rs/zerolog/log"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/svg"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgpdf"
	"gonum.org/v1/plot/vg/vgsvg"
)

// ErrUnsupportedFormat is returned for output extensions without a writer.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Painter draws a complete figure onto a canvas.
type Painter func(draw.Canvas)

// Formats lists output formats accepted by Render and Save.
var Formats = []string{"png", "jpg", "jpeg", "tif", "tiff", "webp", "svg", "pdf"}

// Format returns the lowercase output format implied by the path extension.
func Format(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Render paints a w by h figure and encodes it into wr.
func Render(wr io.Writer, format string, w, h vg.Length, dpi int, paint Painter) error {
	c, err := newCanvas(format, w, h, dpi)
	if err != nil {
		return err
	}

	paint(draw.New(c))

	if _, err := c.WriteTo(wr); err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}

	return nil
}

// Save renders the figure into path, picking the encoder from its extension.
func Save(path string, w, h vg.Length, dpi int, paint Painter) error {
	format := Format(path)
	if !slices.Contains(Formats, format) {
		return fmt.Errorf("%s: %w: %q", path, ErrUnsupportedFormat, format)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := Render(f, format, w, h, dpi, paint); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	log.Debug().Str("path", path).Str("format", format).Msg("Figure written")
	return nil
}

func newCanvas(format string, w, h vg.Length, dpi int) (vg.CanvasWriterTo, error) {
	raster := func() *vgimg.Canvas {
		return vgimg.NewWith(vgimg.UseWH(w, h), vgimg.UseDPI(dpi))
	}

	switch format {
	case "png":
		return vgimg.PngCanvas{Canvas: raster()}, nil
	case "jpg", "jpeg":
		return vgimg.JpegCanvas{Canvas: raster()}, nil
	case "tif", "tiff":
		return vgimg.TiffCanvas{Canvas: raster()}, nil
	case "webp":
		return webpCanvas{Canvas: raster()}, nil
	case "svg":
		return svgCanvas{Canvas: vgsvg.New(w, h)}, nil
	case "pdf":
		return vgpdf.New(w, h), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

type webpCanvas struct {
	*vgimg.Canvas
}

func (c webpCanvas) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, c.Image(), &webp.Options{Quality: 90}); err != nil {
		return 0, err
	}
	return buf.WriteTo(w)
}

type svgCanvas struct {
	*vgsvg.Canvas
}

func (c svgCanvas) WriteTo(w io.Writer) (int64, error) {
	var raw bytes.Buffer
	if _, err := c.Canvas.WriteTo(&raw); err != nil {
		return 0, err
	}

	m := minify.New()
	m.AddFunc("image/svg+xml", svg.Minify)

	var out bytes.Buffer
	if err := m.Minify("image/svg+xml", &out, &raw); err != nil {
		return 0, fmt.Errorf("minify svg: %w", err)
	}

	return out.WriteTo(w)
}

// ErrViewer wraps failures to launch the figure viewer.
var ErrViewer = errors.New("figure viewer unavailable")

// Opener launches the system viewer for a file.
type Opener func(path string) error

// OpenFile hands path to the desktop's default viewer without waiting for it.
func OpenFile(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open viewer: %w", err)
	}

	go func() { _ = cmd.Wait() }()
	return nil
}

// Show displays the figure. Without a saved path it is rendered to a temporary png first.
func Show(open Opener, path string, w, h vg.Length, dpi int, paint Painter) error {
	if open == nil {
		open = OpenFile
	}

	if path == "" {
		f, err := os.CreateTemp("", "crashmap-*.png")
		if err != nil {
			return err
		}
		path = f.Name()

		if err := Render(f, "png", w, h, dpi, paint); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	log.Info().Str("path", path).Msg("Opening figure in viewer")
	if err := open(path); err != nil {
		return fmt.Errorf("%w: %w", ErrViewer, err)
	}
	return nil
}
