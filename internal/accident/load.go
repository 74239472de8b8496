package accident

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/woozymasta/crashmap/internal/geo"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/klauspost/compress/gzip"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"
)

// Source column names.
const (
	ColumnID        = "p1"
	ColumnDate      = "p2a"
	ColumnAlcohol   = "p11"
	ColumnRoadClass = "p36"
	ColumnX         = "d"
	ColumnY         = "e"
	ColumnRegion    = "region"
)

// RequiredColumns lists the columns a source frame must carry.
var RequiredColumns = []string{ColumnID, ColumnDate, ColumnAlcohol, ColumnRoadClass, ColumnX, ColumnY, ColumnRegion}

// ErrMissingColumn is returned when a required column is absent from the source.
var ErrMissingColumn = errors.New("missing column")

// dateLayouts are tried in order when parsing p2a.
var dateLayouts = []string{
	time.DateOnly,
	time.DateTime,
	"02.01.2006",
	time.RFC3339,
}

// Load reads a CSV or gzip compressed CSV from a local path or http(s) URL
// and builds the geospatial table.
func Load(ctx context.Context, client *http.Client, source string, delimiter rune) (*Table, error) {
	rc, err := Open(ctx, client, source)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	df, err := ReadFrame(rc, delimiter)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}

	return MakeGeo(df)
}

// Open returns a reader over the source, transparently decompressing ".gz" sources.
func Open(ctx context.Context, client *http.Client, source string) (io.ReadCloser, error) {
	var raw io.ReadCloser

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		log.Info().Str("url", source).Msg("Downloading accident table")

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("download failed: %d", resp.StatusCode)
		}
		raw = resp.Body
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, err
		}
		raw = f
	}

	if !strings.HasSuffix(strings.ToLower(strings.SplitN(source, "?", 2)[0]), ".gz") {
		return raw, nil
	}

	zr, err := gzip.NewReader(raw)
	if err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("gzip %s: %w", source, err)
	}

	return &gzipReadCloser{Reader: zr, raw: raw}, nil
}

type gzipReadCloser struct {
	*gzip.Reader
	raw io.Closer
}

func (g *gzipReadCloser) Close() error {
	return errors.Join(g.Reader.Close(), g.raw.Close())
}

// ReadFrame parses CSV into a data frame with coordinate columns typed as floats
// and everything else kept as strings.
func ReadFrame(r io.Reader, delimiter rune) (dataframe.DataFrame, error) {
	if delimiter == 0 {
		delimiter = ','
	}

	df := dataframe.ReadCSV(r, append(frameOptions(), dataframe.WithDelimiter(delimiter))...)
	return df, df.Err
}

// FrameFromRecords builds a data frame from string records, the first being the header.
func FrameFromRecords(records [][]string) dataframe.DataFrame {
	return dataframe.LoadRecords(records, frameOptions()...)
}

func frameOptions() []dataframe.LoadOption {
	return []dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithTypes(map[string]series.Type{
			ColumnX: series.Float,
			ColumnY: series.Float,
		}),
		dataframe.NaNValues([]string{"", "NA", "NaN", "nan", "<nil>"}),
	}
}

// MakeGeo converts a data frame into a table in EPSG:5514.
// Rows missing either coordinate are dropped; rows with an unparseable date
// are kept with HasDate unset. The frame is not modified.
func MakeGeo(df dataframe.DataFrame) (*Table, error) {
	if df.Err != nil {
		return nil, df.Err
	}

	names := df.Names()
	for _, col := range RequiredColumns {
		if !slices.Contains(names, col) {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	notNA := func(el series.Element) bool { return !el.IsNA() }
	located := df.
		Filter(dataframe.F{Colname: ColumnX, Comparator: series.CompFunc, Comparando: notNA}).
		Filter(dataframe.F{Colname: ColumnY, Comparator: series.CompFunc, Comparando: notNA})
	if located.Err != nil {
		return nil, fmt.Errorf("filter coordinates: %w", located.Err)
	}

	n := located.Nrow()
	xs := located.Col(ColumnX).Float()
	ys := located.Col(ColumnY).Float()
	ids := located.Col(ColumnID).Records()
	dates := located.Col(ColumnDate).Records()
	regions := located.Col(ColumnRegion).Records()
	alcohol := located.Col(ColumnAlcohol).Records()
	roads := located.Col(ColumnRoadClass).Records()

	t := &Table{
		CRS:     geo.SJTSK,
		Records: make([]Record, n),
		Stats: Stats{
			Read:    df.Nrow(),
			Dropped: df.Nrow() - n,
		},
	}

	for i := range n {
		date, ok := parseDate(dates[i])
		if !ok {
			t.Stats.Undated++
		}

		t.Records[i] = Record{
			ID:        ids[i],
			Region:    regions[i],
			DateRaw:   dates[i],
			Date:      date,
			HasDate:   ok,
			Alcohol:   parseCode(alcohol[i]),
			RoadClass: parseCode(roads[i]),
			Geometry:  orb.Point{xs[i], ys[i]},
		}
	}

	if t.Stats.Undated > 0 {
		log.Warn().
			Int("rows", t.Stats.Undated).
			Str("column", ColumnDate).
			Msg("Rows with unparseable dates kept without a date")
	}

	log.Debug().
		Int("read", t.Stats.Read).
		Int("dropped", t.Stats.Dropped).
		Int("kept", n).
		Msg("Geospatial table built")

	return t, nil
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// parseCode reads an integer code, tolerating float notation such as "4.0".
func parseCode(s string) int {
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) {
		return int(f)
	}
	return -1
}
