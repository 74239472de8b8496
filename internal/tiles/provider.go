// Package tiles fetches, caches and stitches XYZ basemap tiles.
package tiles

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"

	"github.com/woozymasta/crashmap/internal/observability"

	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrStatus is returned when a tile server answers with a non-200 status.
var ErrStatus = errors.New("unexpected tile status")

// Coordinate represents a specific tile.
type Coordinate struct {
	Z, X, Y int
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// Provider returns the image of a single tile.
type Provider interface {
	Tile(ctx context.Context, c Coordinate) (image.Image, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, c Coordinate) (image.Image, error)

// Tile calls f.
func (f ProviderFunc) Tile(ctx context.Context, c Coordinate) (image.Image, error) {
	return f(ctx, c)
}

// Counted reports every tile served by inner to metrics under source.
func Counted(inner Provider, metrics *observability.Metrics, source string) Provider {
	return ProviderFunc(func(ctx context.Context, c Coordinate) (image.Image, error) {
		img, err := inner.Tile(ctx, c)
		if err == nil {
			metrics.TileFetched(source)
		}
		return img, err
	})
}

// HTTPProvider downloads tiles from a URL template with {z}, {x}, {y} and {tms_y} placeholders.
type HTTPProvider struct {
	client      *http.Client
	urlTemplate string
	userAgent   string
}

// NewHTTPProvider creates a tile provider backed by a tile server.
func NewHTTPProvider(client *http.Client, urlTemplate, userAgent string) *HTTPProvider {
	return &HTTPProvider{
		client:      client,
		urlTemplate: urlTemplate,
		userAgent:   userAgent,
	}
}

// Tile downloads and decodes one tile.
func (p *HTTPProvider) Tile(ctx context.Context, c Coordinate) (image.Image, error) {
	url := buildURL(p.urlTemplate, c)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tile %s: %w", c, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w %d: %s", ErrStatus, resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tile %s: %w", c, err)
	}

	img, format, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decode tile %s: %w", c, err)
	}

	log.Trace().Str("url", url).Str("format", format).Msg("Tile downloaded")
	return img, nil
}

func buildURL(tpl string, c Coordinate) string {
	s := strings.ReplaceAll(tpl, "{z}", fmt.Sprintf("%d", c.Z))
	s = strings.ReplaceAll(s, "{x}", fmt.Sprintf("%d", c.X))
	s = strings.ReplaceAll(s, "{y}", fmt.Sprintf("%d", c.Y))

	if strings.Contains(s, "{tms_y}") {
		maxCoord := (1 << c.Z) - 1
		tmsY := maxCoord - c.Y
		s = strings.ReplaceAll(s, "{tms_y}", fmt.Sprintf("%d", tmsY))
	}

	return s
}

// Solid returns uniformly coloured tiles. Used when the basemap is disabled.
type Solid struct {
	Color color.Color
	Size  int
}

// Tile returns a tile filled with the provider colour.
func (s Solid) Tile(_ context.Context, _ Coordinate) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, s.Size, s.Size))
	draw.Draw(img, img.Bounds(), image.NewUniform(s.Color), image.Point{}, draw.Src)
	return img, nil
}
