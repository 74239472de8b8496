package accident

import (
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection converts the records to GeoJSON point features in the table CRS.
func (t *Table) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range t.Records {
		f := geojson.NewFeature(r.Geometry)
		f.ID = r.ID
		f.Properties["region"] = r.Region
		f.Properties[ColumnAlcohol] = r.Alcohol
		f.Properties[ColumnRoadClass] = r.RoadClass
		if r.HasDate {
			f.Properties["date"] = r.Date.Format("2006-01-02")
		}
		fc.Append(f)
	}

	return fc
}
