// Package mercator implements the Web-Mercator tile arithmetic used to turn
// a geographic request into a set of slippy-map tiles.
// http://wiki.openstreetmap.org/wiki/Slippy_map_tilenames
package mercator

import (
	"math"

	"github.com/paulmach/orb/maptile"
)

// MaxLatitude is the Web-Mercator projection limit. Latitudes beyond it do
// not project onto the tile grid.
const MaxLatitude = 85.05112878

// Index addresses a slot on the tile grid of one zoom level. Unlike
// maptile.Tile it can hold out-of-range values, so radius grids near the
// antimeridian or the poles can be represented before clamping.
type Index struct {
	Zoom int
	X, Y int64
}

// Tile converts an in-range index to a maptile.Tile.
func (i Index) Tile() maptile.Tile {
	return maptile.New(uint32(i.X), uint32(i.Y), maptile.Zoom(i.Zoom))
}

// InRange reports whether the index lies on the 2^zoom x 2^zoom grid.
func (i Index) InRange() bool {
	n := int64(1) << uint(i.Zoom)
	return i.X >= 0 && i.X < n && i.Y >= 0 && i.Y < n
}

// TileAt converts lat/lon to tile indices at the given zoom level.
func TileAt(lat, lon float64, zoom int) (int64, int64) {
	n := float64(int64(1) << uint(zoom))
	x := int64(math.Floor((lon + 180) / 360 * n))
	y := int64(math.Floor((1 - math.Asinh(math.Tan(lat*math.Pi/180))/math.Pi) / 2 * n))
	return x, y
}

// TileEdgeLon returns the longitude of the western edge of tile column x.
func TileEdgeLon(x int64, zoom int) float64 {
	n := float64(int64(1) << uint(zoom))
	return float64(x)/n*360 - 180
}

// TileEdgeLat returns the latitude of the northern edge of tile row y.
func TileEdgeLat(y int64, zoom int) float64 {
	n := float64(int64(1) << uint(zoom))
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*float64(y)/n)))
	return latRad * 180 / math.Pi
}

// TilesInRadius returns the (2r+1)^2 grid centered on the tile containing
// lat/lon. No clamping to the grid bounds is performed here; callers clip
// out-of-range indices.
func TilesInRadius(lat, lon float64, zoom, radius int) []Index {
	cx, cy := TileAt(lat, lon, zoom)
	out := make([]Index, 0, (2*radius+1)*(2*radius+1))
	for dx := -int64(radius); dx <= int64(radius); dx++ {
		for dy := -int64(radius); dy <= int64(radius); dy++ {
			out = append(out, Index{Zoom: zoom, X: cx + dx, Y: cy + dy})
		}
	}
	return out
}

// TilesInBoundingBox projects the box corners to tile indices and returns
// the inclusive rectangular span between them, unclamped.
func TilesInBoundingBox(zoom int, west, south, east, north float64) []Index {
	x1, y1 := TileAt(north, west, zoom)
	x2, y2 := TileAt(south, east, zoom)

	xmin, xmax := minmax(x1, x2)
	ymin, ymax := minmax(y1, y2)

	out := make([]Index, 0, (xmax-xmin+1)*(ymax-ymin+1))
	for x := xmin; x <= xmax; x++ {
		for y := ymin; y <= ymax; y++ {
			out = append(out, Index{Zoom: zoom, X: x, Y: y})
		}
	}
	return out
}

// CoverRadius expands a center+radius request across a zoom range. The
// radius is applied on the grid of minZoom only; every deeper zoom covers
// the exact footprint of that grid. The tile grids are nested powers of
// two, so each minZoom tile (x, y) maps to the 2^d x 2^d block starting at
// (x<<d, y<<d) one level down, and the per-zoom index span follows by
// shifting the minZoom span. Out-of-range indices are clipped. When world
// is set the single zoom-0 tile is included.
func CoverRadius(lat, lon float64, minZoom, maxZoom, radius int, world bool) maptile.Set {
	cx, cy := TileAt(lat, lon, minZoom)
	xmin, xmax := cx-int64(radius), cx+int64(radius)
	ymin, ymax := cy-int64(radius), cy+int64(radius)

	set := make(maptile.Set)
	for zoom := minZoom; zoom <= maxZoom; zoom++ {
		shift := uint(zoom - minZoom)
		for x := xmin << shift; x < (xmax+1)<<shift; x++ {
			for y := ymin << shift; y < (ymax+1)<<shift; y++ {
				idx := Index{Zoom: zoom, X: x, Y: y}
				if idx.InRange() {
					set[idx.Tile()] = true
				}
			}
		}
	}
	if world {
		set[maptile.New(0, 0, 0)] = true
	}
	return set
}

// CoverBoundingBox tiles a geographic bounding box at every zoom in the
// inclusive range, clipping each level to its grid, and unions the result.
func CoverBoundingBox(west, south, east, north float64, minZoom, maxZoom int, world bool) maptile.Set {
	set := make(maptile.Set)
	for zoom := minZoom; zoom <= maxZoom; zoom++ {
		for _, idx := range TilesInBoundingBox(zoom, west, south, east, north) {
			if idx.InRange() {
				set[idx.Tile()] = true
			}
		}
	}
	if world {
		set[maptile.New(0, 0, 0)] = true
	}
	return set
}

func minmax(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}
