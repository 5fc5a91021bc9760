package spatial

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Polygon returns the cell boundary as a closed go-geom polygon with SRID 4326.
func (ix *Indexer) Polygon(id string) (*geom.Polygon, error) {
	ring, err := ix.CellBoundary(id)
	if err != nil {
		return nil, err
	}
	coords := make([]geom.Coord, 0, len(ring))
	for _, v := range ring {
		coords = append(coords, geom.Coord{v[0], v[1]})
	}
	poly, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{coords})
	if err != nil {
		return nil, eris.Wrapf(err, "spatial: build polygon for %s", id)
	}
	return poly.SetSRID(4326), nil
}

// BoundaryGeoJSON encodes the cell boundary as a GeoJSON Feature carrying the
// cell id and resolution as properties.
func (ix *Indexer) BoundaryGeoJSON(id string) ([]byte, error) {
	poly, err := ix.Polygon(id)
	if err != nil {
		return nil, err
	}
	f := &geojson.Feature{
		ID:       id,
		Geometry: poly,
		Properties: map[string]any{
			"cell":       id,
			"resolution": ix.resolution,
		},
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, eris.Wrap(err, "spatial: encode geojson")
	}
	return data, nil
}

// CollectionGeoJSON encodes several cells as a FeatureCollection. Invalid ids
// fail the whole call.
func (ix *Indexer) CollectionGeoJSON(ids []string) ([]byte, error) {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(ids))}
	for _, id := range ids {
		poly, err := ix.Polygon(id)
		if err != nil {
			return nil, err
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         id,
			Geometry:   poly,
			Properties: map[string]any{"cell": id},
		})
	}
	data, err := json.Marshal(fc)
	if err != nil {
		return nil, eris.Wrap(err, "spatial: encode geojson collection")
	}
	return data, nil
}
