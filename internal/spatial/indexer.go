// Package spatial maps coordinates onto a hexagonal grid and enumerates the
// cells that cover an analysis radius.
package spatial

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
)

// Default grid parameters.
const (
	DefaultResolution = 9
	DefaultRadiusM    = 500.0
)

// ErrInvalidCoordinate is returned for NaN, infinite or out-of-range input.
var ErrInvalidCoordinate = eris.New("spatial: invalid coordinate")

// ErrInvalidCell is returned when a cell id cannot be parsed.
var ErrInvalidCell = eris.New("spatial: invalid cell id")

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Cell is an immutable hexagon id at a fixed resolution.
type Cell struct {
	ID         string `json:"id"`
	Resolution int    `json:"resolution"`
	Center     Point  `json:"center"`
}

// Indexer converts between coordinates and grid cells at one resolution.
type Indexer struct {
	resolution int
}

// NewIndexer creates an Indexer. Resolutions outside [0,15] fall back to
// DefaultResolution.
func NewIndexer(resolution int) *Indexer {
	if resolution < 0 || resolution > 15 {
		resolution = DefaultResolution
	}
	return &Indexer{resolution: resolution}
}

// Resolution returns the grid resolution.
func (ix *Indexer) Resolution() int { return ix.resolution }

// ValidateCoordinate checks that lat/lng are finite and in range.
func ValidateCoordinate(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return eris.Wrapf(ErrInvalidCoordinate, "lat=%v lng=%v is not finite", lat, lng)
	}
	if lat < -90 || lat > 90 {
		return eris.Wrapf(ErrInvalidCoordinate, "lat=%v out of [-90,90]", lat)
	}
	if lng < -180 || lng > 180 {
		return eris.Wrapf(ErrInvalidCoordinate, "lng=%v out of [-180,180]", lng)
	}
	return nil
}

// CellFromPoint returns the cell containing the point.
func (ix *Indexer) CellFromPoint(lat, lng float64) (Cell, error) {
	if err := ValidateCoordinate(lat, lng); err != nil {
		return Cell{}, err
	}
	id := latLngToCell(lat, lng, ix.resolution)
	cLat, cLng := cellCenter(id)
	return Cell{
		ID:         id.String(),
		Resolution: ix.resolution,
		Center:     Point{Lat: cLat, Lng: cLng},
	}, nil
}

// RingCount is the number of neighbor rings needed to cover radiusM:
// ceil(radiusM / average edge length). Non-positive radii yield 0.
func (ix *Indexer) RingCount(radiusM float64) int {
	if radiusM <= 0 || math.IsNaN(radiusM) {
		return 0
	}
	return int(math.Ceil(radiusM / ix.EdgeLengthM()))
}

// EdgeLengthM is the average hexagon edge length at the indexer resolution.
func (ix *Indexer) EdgeLengthM() float64 {
	return edgeLengthM(ix.resolution)
}

// CellsInRadius returns the sorted ids of every cell within RingCount(radiusM)
// rings of the center cell, found by breadth-first neighbor expansion. The
// center cell is always included.
func (ix *Indexer) CellsInRadius(lat, lng, radiusM float64) ([]string, error) {
	if err := ValidateCoordinate(lat, lng); err != nil {
		return nil, err
	}
	center := latLngToCell(lat, lng, ix.resolution)
	rings := ix.RingCount(radiusM)

	seen := map[h3Cell]struct{}{center: {}}
	frontier := []h3Cell{center}
	for ring := 0; ring < rings; ring++ {
		var next []h3Cell
		for _, c := range frontier {
			for _, n := range neighbors(c) {
				if _, ok := seen[n]; ok {
					continue
				}
				seen[n] = struct{}{}
				next = append(next, n)
			}
		}
		frontier = next
	}

	ids := make([]string, 0, len(seen))
	for c := range seen {
		ids = append(ids, c.String())
	}
	sort.Strings(ids)
	return ids, nil
}

// CellCenter returns the center of a cell id.
func (ix *Indexer) CellCenter(id string) (Point, error) {
	c, err := parseCell(id)
	if err != nil {
		return Point{}, err
	}
	lat, lng := cellCenter(c)
	return Point{Lat: lat, Lng: lng}, nil
}

// CellBoundary returns the hexagon vertices as a closed ring of [lng, lat]
// pairs: the first vertex is repeated at the end.
func (ix *Indexer) CellBoundary(id string) ([][2]float64, error) {
	c, err := parseCell(id)
	if err != nil {
		return nil, err
	}
	verts := cellBoundary(c)
	if len(verts) == 0 {
		return nil, eris.Wrapf(ErrInvalidCell, "cell %s has no boundary", id)
	}
	ring := make([][2]float64, 0, len(verts)+1)
	for _, v := range verts {
		ring = append(ring, [2]float64{v.lng, v.lat})
	}
	ring = append(ring, ring[0])
	return ring, nil
}

// Haversine returns the great-circle distance in meters.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusM = 6371008.8
	toRad := math.Pi / 180
	dLat := (lat2 - lat1) * toRad
	dLng := (lng2 - lng1) * toRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*toRad)*math.Cos(lat2*toRad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Asin(math.Min(1, math.Sqrt(a)))
}

// AreaKM2 is the area of a circle with the given radius in square kilometers.
func AreaKM2(radiusM float64) float64 {
	r := radiusM / 1000
	return math.Pi * r * r
}
