package tiles

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/woozymasta/crashmap/internal/observability"

	"github.com/chai2010/webp"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Cache stores tiles of an inner provider on disk as <dir>/<z>/<x>/<y>.webp.
type Cache struct {
	inner   Provider
	clock   clockwork.Clock
	metrics *observability.Metrics
	dir     string
	ttl     time.Duration
}

// NewCache wraps a provider with a disk cache. A zero ttl keeps tiles forever.
func NewCache(inner Provider, dir string, ttl time.Duration, metrics *observability.Metrics) *Cache {
	return &Cache{
		inner:   inner,
		dir:     dir,
		ttl:     ttl,
		clock:   clockwork.NewRealClock(),
		metrics: metrics,
	}
}

// Tile returns the cached tile when fresh, otherwise fetches and stores it.
func (c *Cache) Tile(ctx context.Context, coord Coordinate) (image.Image, error) {
	path := c.path(coord)

	if img, ok := c.lookup(path); ok {
		c.metrics.TileFetched("cache")
		return img, nil
	}

	img, err := c.inner.Tile(ctx, coord)
	if err != nil {
		return nil, err
	}

	if err := c.store(path, img); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to cache tile")
	}

	return img, nil
}

func (c *Cache) path(coord Coordinate) string {
	return filepath.Join(
		c.dir,
		fmt.Sprintf("%d", coord.Z),
		fmt.Sprintf("%d", coord.X),
		fmt.Sprintf("%d", coord.Y)+".webp")
}

func (c *Cache) lookup(path string) (image.Image, bool) {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return nil, false
	}
	if c.ttl > 0 && c.clock.Since(info.ModTime()) > c.ttl {
		log.Trace().Str("path", path).Msg("Cached tile expired")
		return nil, false
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		log.Trace().Err(err).Str("path", path).Msg("Failed to decode cached tile")
		return nil, false
	}

	return img, true
}

func (c *Cache) store(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Error().Err(closeErr).Str("path", path).Msg("Failed to close file")
		}
	}()

	return webp.Encode(f, img, &webp.Options{Lossless: false, Quality: 85})
}
