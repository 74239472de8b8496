// Package config handles configuration loading and shared data structures.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the root configuration file structure.
type Config struct {
	Basemap Basemap `yaml:"basemap"`
	Geo     Geo     `yaml:"geo"`
	Cluster Cluster `yaml:"cluster"`

	// Region is the region code both figures are restricted to.
	Region string `yaml:"region"`
	// Padding is the fraction of the data extent added around each map.
	Padding float64 `yaml:"padding"`
	// DPI of raster outputs.
	DPI int `yaml:"dpi"`
}

// Geo configures the yearly alcohol-related accidents grid.
type Geo struct {
	Title string `yaml:"title"`
	Years []int  `yaml:"years"`
	// AlcoholThreshold is the minimum p11 code counted as alcohol-related.
	AlcoholThreshold int     `yaml:"alcohol_threshold"`
	Columns          int     `yaml:"columns"`
	Width            float64 `yaml:"width"`  // inches
	Height           float64 `yaml:"height"` // inches
	PointSize        float64 `yaml:"point_size"`
}

// Cluster configures the clustered accident density map.
type Cluster struct {
	Title       string  `yaml:"title"`
	RoadClasses []int   `yaml:"road_classes"`
	Clusters    int     `yaml:"clusters"`
	HullBuffer  float64 `yaml:"hull_buffer"` // metres
	Opacity     float64 `yaml:"opacity"`
	Width       float64 `yaml:"width"`  // inches
	Height      float64 `yaml:"height"` // inches
	PointSize   float64 `yaml:"point_size"`
}

// Basemap configures the background tile layer.
type Basemap struct {
	URL         string        `yaml:"url"`
	Attribution string        `yaml:"attribution,omitempty"`
	UserAgent   string        `yaml:"user_agent"`
	CacheDir    string        `yaml:"cache_dir,omitempty"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	Timeout     time.Duration `yaml:"timeout"`
	Alpha       float64       `yaml:"alpha"`
	ZoomLimit   int           `yaml:"zoom"`
	TileSize    int           `yaml:"tile_size"`
	Concurrency int           `yaml:"concurrency"`
	Disabled    bool          `yaml:"disabled,omitempty"`
}

// Default returns the configuration reproducing the fixed figures:
// region JHM, alcohol code 4 and above, years 2018-2021, road classes 1-3
// and 20 clusters.
func Default() *Config {
	return &Config{
		Region:  "JHM",
		Padding: 0.03,
		DPI:     100,
		Geo: Geo{
			Title:            "Alcohol-related accidents",
			Years:            []int{2018, 2019, 2020, 2021},
			AlcoholThreshold: 4,
			Columns:          2,
			Width:            12,
			Height:           11,
			PointSize:        1.5,
		},
		Cluster: Cluster{
			Title:       "Accidents on 1st to 3rd class roads",
			RoadClasses: []int{1, 2, 3},
			Clusters:    20,
			HullBuffer:  500,
			Opacity:     0.55,
			Width:       12,
			Height:      9,
			PointSize:   1,
		},
		Basemap: Basemap{
			URL:         "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
			Attribution: "© OpenStreetMap contributors",
			UserAgent:   "crashmap/1.0",
			CacheDir:    ".tiles",
			CacheTTL:    7 * 24 * time.Hour,
			Timeout:     15 * time.Second,
			Alpha:       0.9,
			ZoomLimit:   12,
			TileSize:    256,
			Concurrency: 8,
		},
	}
}

// Load reads the YAML configuration file from the specified path on top of Default.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects values the figures cannot be built with.
func (c *Config) Validate() error {
	if c.Region == "" {
		return errors.New("region is required")
	}
	if len(c.Geo.Years) == 0 {
		return errors.New("geo.years must not be empty")
	}
	if c.Geo.Columns <= 0 {
		return errors.New("geo.columns must be > 0")
	}
	if len(c.Cluster.RoadClasses) == 0 {
		return errors.New("cluster.road_classes must not be empty")
	}
	if c.Cluster.Clusters <= 0 {
		return errors.New("cluster.clusters must be > 0")
	}
	if c.Basemap.Alpha < 0 || c.Basemap.Alpha > 1 {
		return errors.New("basemap.alpha must be within [0, 1]")
	}
	if c.Cluster.Opacity < 0 || c.Cluster.Opacity > 1 {
		return errors.New("cluster.opacity must be within [0, 1]")
	}
	if c.Basemap.TileSize <= 0 {
		return errors.New("basemap.tile_size must be > 0")
	}
	if c.Basemap.ZoomLimit < 0 {
		return errors.New("basemap.zoom must be >= 0")
	}
	if c.Padding < 0 {
		return errors.New("padding must be >= 0")
	}
	if c.DPI <= 0 {
		return errors.New("dpi must be > 0")
	}
	if c.Geo.Width <= 0 || c.Geo.Height <= 0 {
		return errors.New("geo.width and geo.height must be > 0")
	}
	if c.Cluster.Width <= 0 || c.Cluster.Height <= 0 {
		return errors.New("cluster.width and cluster.height must be > 0")
	}

	return nil
}
