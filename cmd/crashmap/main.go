package main

import (
	"context"
	"crypto/tls"
	"errors"
	"image/color"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/woozymasta/crashmap/internal/accident"
	"github.com/woozymasta/crashmap/internal/config"
	"github.com/woozymasta/crashmap/internal/figure"
	"github.com/woozymasta/crashmap/internal/logger"
	"github.com/woozymasta/crashmap/internal/observability"
	"github.com/woozymasta/crashmap/internal/tiles"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile  string `short:"c" long:"config"       env:"CONFIG_FILE"  description:"Path to configuration file (defaults are used when empty)"`
	Input       string `short:"i" long:"input"        env:"INPUT"        description:"Accidents CSV (optionally .gz) path or URL" default:"accidents.csv.gz"`
	Delimiter   string `short:"d" long:"delimiter"    env:"DELIMITER"    description:"CSV field delimiter" default:","`
	GeoOut      string `long:"geo-out"                env:"GEO_OUT"      description:"Alcohol accidents grid figure path" default:"geo1.png"`
	ClusterOut  string `long:"cluster-out"            env:"CLUSTER_OUT"  description:"Clustered accidents figure path" default:"geo2.png"`
	RegionsOut  string `long:"regions-out"            env:"REGIONS_OUT"  description:"Write cluster regions as GeoJSON to this path"`
	MetricsFile string `long:"metrics-file"           env:"METRICS_FILE" description:"Write Prometheus metrics in textfile format to this path"`
	Concurrency int    `short:"p" long:"concurrency"  env:"CONCURRENCY"  description:"Concurrent tile downloads (overrides config)"`
	ZoomLimit   int    `short:"z" long:"zoom-limit"   env:"ZOOM_LIMIT"   description:"Basemap zoom limit (overrides config)"`
	NoShow      bool   `long:"no-show"                env:"NO_SHOW"      description:"Do not open figures in the system viewer"`
	NoBasemap   bool   `long:"no-basemap"             description:"Draw a plain background instead of map tiles"`
	GeoOnly     bool   `short:"g" long:"geo-only"     description:"Build the alcohol accidents grid only"`
	ClusterOnly bool   `short:"k" long:"cluster-only" description:"Build the clustered accidents figure only"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if opts.Concurrency > 0 {
		cfg.Basemap.Concurrency = opts.Concurrency
	}
	if opts.ZoomLimit > 0 {
		cfg.Basemap.ZoomLimit = opts.ZoomLimit
	}
	if opts.NoBasemap {
		cfg.Basemap.Disabled = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()
	err = run(ctx, opts, cfg, metrics)

	if opts.MetricsFile != "" {
		if mErr := metrics.WriteTextfile(opts.MetricsFile); mErr != nil {
			log.Error().Err(mErr).Str("path", opts.MetricsFile).Msg("Failed to write metrics")
		}
	}

	if err != nil {
		stop()
		log.Fatal().Err(err).Msg("Crashmap failed")
	}

	log.Info().Msg("Crashmap finished successfully")
}

func run(ctx context.Context, opts Options, cfg *config.Config, metrics *observability.Metrics) error {
	client := &http.Client{
		Transport: &http.Transport{
			TLSNextProto:        make(map[string]func(string, *tls.Conn) http.RoundTripper),
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
		},
		Timeout: cfg.Basemap.Timeout,
	}

	delimiter := ','
	if opts.Delimiter != "" {
		delimiter = []rune(opts.Delimiter)[0]
	}

	log.Info().
		Str("input", opts.Input).
		Str("region", cfg.Region).
		Bool("basemap", !cfg.Basemap.Disabled).
		Msg("Starting crashmap")

	table, err := accident.Load(ctx, client, opts.Input, delimiter)
	if err != nil {
		return err
	}
	metrics.Rows(table.Stats.Read, table.Stats.Dropped, table.Stats.Undated)

	provider := tileProvider(client, cfg, metrics)
	show := !opts.NoShow

	var errs []error

	if !opts.ClusterOnly {
		start := time.Now()
		err := figure.PlotGeo(ctx, table, cfg, provider, figure.Output{Path: opts.GeoOut, Show: show})
		metrics.Rendered("geo", time.Since(start), err)
		if err != nil {
			log.Error().Err(err).Msg("Failed to build alcohol accidents grid")
			errs = append(errs, err)
		}
	}

	if !opts.GeoOnly {
		start := time.Now()
		err := figure.PlotCluster(ctx, table, cfg, provider, figure.Output{
			Path:        opts.ClusterOut,
			RegionsPath: opts.RegionsOut,
			Show:        show,
		})
		metrics.Rendered("cluster", time.Since(start), err)
		if err != nil {
			log.Error().Err(err).Msg("Failed to build clustered accidents figure")
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func tileProvider(client *http.Client, cfg *config.Config, metrics *observability.Metrics) tiles.Provider {
	if cfg.Basemap.Disabled {
		return tiles.Solid{Color: color.RGBA{R: 242, G: 239, B: 233, A: 255}, Size: cfg.Basemap.TileSize}
	}

	p := tiles.Counted(tiles.NewHTTPProvider(client, cfg.Basemap.URL, cfg.Basemap.UserAgent), metrics, "network")
	if cfg.Basemap.CacheDir != "" {
		p = tiles.NewCache(p, cfg.Basemap.CacheDir, cfg.Basemap.CacheTTL, metrics)
	}

	return p
}
