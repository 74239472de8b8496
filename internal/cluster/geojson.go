package cluster

import (
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
	"github.com/rs/zerolog/log"
)

// FeatureCollection converts regions to GeoJSON, projecting polygons with proj.
func FeatureCollection(regions []Region, proj orb.Projection) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range regions {
		poly := r.Polygon.Clone()
		if proj != nil {
			poly = project.Polygon(poly, proj)
		}

		f := geojson.NewFeature(poly)
		f.Properties["label"] = r.Label
		f.Properties["count"] = r.Count
		fc.Append(f)
	}

	return fc
}

// SaveGeoJSON writes the regions as a GeoJSON feature collection to path.
func SaveGeoJSON(path string, regions []Region, proj orb.Projection) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := FeatureCollection(regions, proj).MarshalJSON()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}

	log.Info().
		Str("path", path).
		Int("regions", len(regions)).
		Msg("Cluster regions written")

	return nil
}
