package mercator

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

func TestTileAt_InRange(t *testing.T) {
	samples := []struct {
		lat, lon float64
		zoom     int
	}{
		{0, 0, 0},
		{0, 0, 10},
		{-33.8688, 151.2093, 13},
		{35.6824, 139.7531, 10},
		{85.0, -179.9, 6},
		{-85.0, 179.9, 6},
		{MaxLatitude - 0.001, 0, 15},
		{-MaxLatitude + 0.001, 0, 15},
	}

	for _, s := range samples {
		x, y := TileAt(s.lat, s.lon, s.zoom)
		n := int64(1) << uint(s.zoom)
		if x < 0 || x >= n || y < 0 || y >= n {
			t.Errorf("TileAt(%v, %v, %d) = (%d, %d), outside [0, %d)",
				s.lat, s.lon, s.zoom, x, y, n)
		}
	}
}

// The asinh formulation must agree with the classic log/tan formulation;
// the two are algebraically identical.
func TestTileAt_MatchesLogTanFormulation(t *testing.T) {
	samples := []struct {
		lat, lon float64
		zoom     int
	}{
		{-33.8688, 151.2093, 13},
		{37.7749, -122.4194, 12},
		{51.5072, -0.1276, 16},
		{-54.8019, -68.3030, 9},
	}

	for _, s := range samples {
		x, y := TileAt(s.lat, s.lon, s.zoom)

		latRad := s.lat * math.Pi / 180
		n := float64(int64(1) << uint(s.zoom))
		wantX := int64(n * ((s.lon + 180) / 360))
		wantY := int64(n * (1 - (math.Log(math.Tan(latRad)+1/math.Cos(latRad)) / math.Pi)) / 2)

		if x != wantX || y != wantY {
			t.Errorf("TileAt(%v, %v, %d) = (%d, %d), log/tan formulation gives (%d, %d)",
				s.lat, s.lon, s.zoom, x, y, wantX, wantY)
		}
	}
}

func TestTileAt_MatchesMaptile(t *testing.T) {
	samples := []struct {
		lat, lon float64
		zoom     int
	}{
		{-33.8688, 151.2093, 13},
		{35.6824, 139.7531, 10},
		{48.8566, 2.3522, 14},
	}

	for _, s := range samples {
		x, y := TileAt(s.lat, s.lon, s.zoom)
		want := maptile.At(orb.Point{s.lon, s.lat}, maptile.Zoom(s.zoom))
		if uint32(x) != want.X || uint32(y) != want.Y {
			t.Errorf("TileAt(%v, %v, %d) = (%d, %d), maptile.At gives (%d, %d)",
				s.lat, s.lon, s.zoom, x, y, want.X, want.Y)
		}
	}
}

func TestTileAt_Sydney(t *testing.T) {
	x, y := TileAt(-33.8688, 151.2093, 13)
	if x != 7536 || y != 4915 {
		t.Errorf("Sydney at z13: got (%d, %d), want (7536, 4915)", x, y)
	}
}

// Round-tripping an edge through the inverse mapping must recover the
// index up to floating-point tolerance; the latitude path goes through
// transcendental functions, so the comparison is on the fractional index.
func TestTileEdge_RoundTrip(t *testing.T) {
	const tol = 1e-6
	for _, zoom := range []int{5, 10, 13} {
		n := int64(1) << uint(zoom)
		fn := float64(n)
		for _, x := range []int64{1, n / 4, n / 2, n - 2} {
			for _, y := range []int64{1, n / 4, n / 2, n - 2} {
				lon := TileEdgeLon(x, zoom)
				lat := TileEdgeLat(y, zoom)

				fx := (lon + 180) / 360 * fn
				fy := (1 - math.Asinh(math.Tan(lat*math.Pi/180))/math.Pi) / 2 * fn

				if math.Abs(fx-float64(x)) > tol || math.Abs(fy-float64(y)) > tol {
					t.Errorf("round trip z=%d (%d, %d): got (%g, %g)", zoom, x, y, fx, fy)
				}
			}
		}
	}
}

func TestTilesInRadius_GridSize(t *testing.T) {
	tiles := TilesInRadius(-33.8688, 151.2093, 13, 4)
	if len(tiles) != 81 {
		t.Fatalf("expected 81 tiles for radius 4, got %d", len(tiles))
	}

	cx, cy := TileAt(-33.8688, 151.2093, 13)
	for _, idx := range tiles {
		if idx.X < cx-4 || idx.X > cx+4 || idx.Y < cy-4 || idx.Y > cy+4 {
			t.Errorf("tile (%d, %d) outside expected span", idx.X, idx.Y)
		}
	}
}

func TestTilesInRadius_NoClipping(t *testing.T) {
	// Center on the zoom-1 grid corner; the radius grid must extend past
	// the grid edge unclipped.
	tiles := TilesInRadius(85.0, -179.9, 1, 1)
	if len(tiles) != 9 {
		t.Fatalf("expected 9 tiles, got %d", len(tiles))
	}
	sawNegative := false
	for _, idx := range tiles {
		if idx.X < 0 || idx.Y < 0 {
			sawNegative = true
			if idx.InRange() {
				t.Errorf("index (%d, %d) reported in range", idx.X, idx.Y)
			}
		}
	}
	if !sawNegative {
		t.Error("expected unclipped out-of-range indices near the grid corner")
	}
}

func TestTilesInBoundingBox_Span(t *testing.T) {
	tiles := TilesInBoundingBox(10, -122.5, 37.7, -122.4, 37.8)
	if len(tiles) == 0 {
		t.Fatal("expected tiles for San Francisco box")
	}

	x1, y1 := TileAt(37.8, -122.5, 10)
	x2, y2 := TileAt(37.7, -122.4, 10)
	xmin, xmax := minmax(x1, x2)
	ymin, ymax := minmax(y1, y2)
	want := (xmax - xmin + 1) * (ymax - ymin + 1)
	if int64(len(tiles)) != want {
		t.Errorf("got %d tiles, want %d", len(tiles), want)
	}
}

func TestCoverRadius_MultiZoom(t *testing.T) {
	set := CoverRadius(-33.8688, 151.2093, 13, 14, 4, false)

	byZoom := map[maptile.Zoom]int{}
	for tile := range set {
		byZoom[tile.Z]++
	}

	if byZoom[13] != 81 {
		t.Errorf("zoom 13: got %d tiles, want 81", byZoom[13])
	}
	// Each of the 9x9 zoom-13 tiles splits into a 2x2 block one level
	// deeper, so the full footprint is an 18x18 grid.
	if byZoom[14] != 324 {
		t.Errorf("zoom 14: got %d tiles, want 324", byZoom[14])
	}

	// Every zoom-14 column of the footprint must be present, the edge
	// columns included: the zoom-13 span 7532..7540 doubles to
	// 15064..15081.
	for x := int64(15064); x <= 15081; x++ {
		if !set[maptile.New(uint32(x), 9822, 14)] {
			t.Errorf("zoom 14 column %d missing from the footprint", x)
		}
	}
}

func TestCoverRadius_WorldTile(t *testing.T) {
	set := CoverRadius(-33.8688, 151.2093, 13, 13, 0, true)
	if !set[maptile.New(0, 0, 0)] {
		t.Error("expected the zoom-0 world tile in the set")
	}
	if len(set) != 2 {
		t.Errorf("expected 2 tiles, got %d", len(set))
	}

	// Requesting the world tile when zoom 0 is already covered must not
	// produce a duplicate entry.
	whole := CoverRadius(0, 0, 0, 0, 0, true)
	if len(whole) != 1 {
		t.Errorf("expected a single deduplicated world tile, got %d", len(whole))
	}
}
