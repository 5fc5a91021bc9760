package anchor

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ShapefileFields names the attribute columns read from a station shapefile.
type ShapefileFields struct {
	ID   string
	Name string
	Kind string
}

// DefaultShapefileFields match the common station export layout.
var DefaultShapefileFields = ShapefileFields{ID: "id", Name: "name", Kind: "kind"}

// LoadShapefile reads point facilities from a shapefile. X is longitude and
// Y latitude. Records without a point geometry or a name are skipped; a
// missing ID column falls back to the record number.
func LoadShapefile(path string, fields ShapefileFields) ([]Facility, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "anchor: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fieldIdx := make(map[string]int)
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	attr := func(col string) string {
		idx, ok := fieldIdx[strings.ToLower(col)]
		if !ok || col == "" {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
	}

	var out []Facility
	var skipped int
	for reader.Next() {
		n, shape := reader.Shape()
		pt, ok := shape.(*shp.Point)
		if !ok || pt == nil {
			skipped++
			continue
		}
		name := attr(fields.Name)
		if name == "" {
			skipped++
			continue
		}
		id := attr(fields.ID)
		if id == "" {
			id = strconv.Itoa(n)
		}
		kind := attr(fields.Kind)
		if kind == "" {
			kind = "station"
		}
		out = append(out, Facility{ID: id, Name: name, Kind: kind, Lat: pt.Y, Lng: pt.X})
	}

	if skipped > 0 {
		zap.L().Debug("anchor: skipped shapefile records", zap.String("path", path), zap.Int("skipped", skipped))
	}
	return out, nil
}

// NewShapefileFinder loads a shapefile into a StaticFinder.
func NewShapefileFinder(path string, fields ShapefileFields) (*StaticFinder, error) {
	facilities, err := LoadShapefile(path, fields)
	if err != nil {
		return nil, err
	}
	zap.L().Info("anchor: loaded shapefile facilities", zap.String("path", path), zap.Int("count", len(facilities)))
	return NewStaticFinder(facilities), nil
}
