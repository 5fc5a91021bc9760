package spatial

import (
	"github.com/rotisserie/eris"
	h3 "github.com/uber/h3-go/v4"
)

// All H3 calls live in this file.

type h3Cell = h3.Cell

type vertex struct {
	lat, lng float64
}

func latLngToCell(lat, lng float64, res int) h3Cell {
	return h3.LatLngToCell(h3.NewLatLng(lat, lng), res)
}

func cellCenter(c h3Cell) (lat, lng float64) {
	ll := h3.CellToLatLng(c)
	return ll.Lat, ll.Lng
}

func cellBoundary(c h3Cell) []vertex {
	b := h3.CellToBoundary(c)
	out := make([]vertex, 0, len(b))
	for _, ll := range b {
		out = append(out, vertex{lat: ll.Lat, lng: ll.Lng})
	}
	return out
}

// neighbors returns the ring-1 neighbors of c, excluding c.
func neighbors(c h3Cell) []h3Cell {
	disk := h3.GridDisk(c, 1)
	out := make([]h3Cell, 0, len(disk))
	for _, n := range disk {
		if n != c {
			out = append(out, n)
		}
	}
	return out
}

func edgeLengthM(res int) float64 {
	return h3.HexagonEdgeLengthAvgM(res)
}

func parseCell(id string) (h3Cell, error) {
	c := h3.Cell(h3.IndexFromString(id))
	if !c.IsValid() {
		return 0, eris.Wrapf(ErrInvalidCell, "%q", id)
	}
	return c, nil
}
