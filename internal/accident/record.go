// Package accident loads police traffic-accident records and turns them into a geospatial table.
package accident

import (
	"fmt"
	"slices"
	"time"

	"github.com/woozymasta/crashmap/internal/geo"

	"github.com/paulmach/orb"
)

// Record is a single accident with its derived geometry and date.
type Record struct {
	Date      time.Time // zero when HasDate is false
	ID        string    // p1
	Region    string    // region
	DateRaw   string    // p2a
	Geometry  orb.Point // built from d, e
	Alcohol   int       // p11, -1 when missing
	RoadClass int       // p36, -1 when missing
	HasDate   bool
}

// Year returns the calendar year of the record, or 0 for undated records.
func (r Record) Year() int {
	if !r.HasDate {
		return 0
	}
	return r.Date.Year()
}

// Stats describes what happened to the raw rows while building a Table.
type Stats struct {
	Read    int // rows in the source frame
	Dropped int // rows without both coordinates
	Undated int // kept rows whose date could not be parsed
}

// Table is a set of accident records tagged with the reference system of their geometries.
type Table struct {
	CRS     geo.CRS
	Records []Record
	Stats   Stats
}

// Len returns the number of records.
func (t *Table) Len() int {
	return len(t.Records)
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	return &Table{
		CRS:     t.CRS,
		Records: slices.Clone(t.Records),
		Stats:   t.Stats,
	}
}

// Filter returns a new table with the records matching every predicate.
func (t *Table) Filter(preds ...Predicate) *Table {
	out := &Table{CRS: t.CRS, Stats: t.Stats}
	for _, r := range t.Records {
		if matchAll(r, preds) {
			out.Records = append(out.Records, r)
		}
	}

	return out
}

// Reproject returns a copy of the table with geometries converted to the target reference system.
func (t *Table) Reproject(to geo.CRS) (*Table, error) {
	proj, err := geo.Projection(t.CRS, to)
	if err != nil {
		return nil, fmt.Errorf("reproject %s to %s: %w", t.CRS, to, err)
	}

	out := t.Clone()
	out.CRS = to
	for i := range out.Records {
		out.Records[i].Geometry = proj(out.Records[i].Geometry)
	}

	return out, nil
}

// Points returns the record geometries in table order.
func (t *Table) Points() orb.MultiPoint {
	mp := make(orb.MultiPoint, len(t.Records))
	for i, r := range t.Records {
		mp[i] = r.Geometry
	}

	return mp
}

// Bound returns the bounding box of all geometries.
func (t *Table) Bound() orb.Bound {
	return t.Points().Bound()
}

// Predicate selects records.
type Predicate func(Record) bool

// InRegion selects records of the given region code.
func InRegion(code string) Predicate {
	return func(r Record) bool { return r.Region == code }
}

// AlcoholAtLeast selects records whose alcohol code meets the threshold.
func AlcoholAtLeast(threshold int) Predicate {
	return func(r Record) bool { return r.Alcohol >= threshold }
}

// RoadClassIn selects records on one of the road classes.
func RoadClassIn(classes ...int) Predicate {
	return func(r Record) bool { return slices.Contains(classes, r.RoadClass) }
}

// InYear selects dated records of the given calendar year.
func InYear(year int) Predicate {
	return func(r Record) bool { return r.HasDate && r.Date.Year() == year }
}

func matchAll(r Record, preds []Predicate) bool {
	for _, p := range preds {
		if !p(r) {
			return false
		}
	}
	return true
}
