package pipeline

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/paulmach/orb/maptile"

	"github.com/muimaps/muitiles/internal/fetch"
	"github.com/muimaps/muitiles/internal/mercator"
)

// ErrInvalidRequest flags malformed request parameters; nothing is
// attempted for such a request.
var ErrInvalidRequest = errors.New("invalid request")

const (
	defaultWorkers = 4
	maxWorkers     = 8
	maxZoomLevel   = 19
)

// BoundingBox is a geographic extent in degrees.
type BoundingBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Request describes one download-and-convert run. Either a center with a
// tile radius or a bounding box selects the area.
type Request struct {
	Lat    float64
	Lon    float64
	Radius int
	BBox   *BoundingBox

	MinZoom int
	MaxZoom int

	Style Style

	OutputRoot   string
	KeepSource   bool
	Delay        time.Duration
	Workers      int
	IncludeWorld bool
}

// Validate rejects malformed parameters before any I/O happens.
func (r *Request) Validate() error {
	if r.BBox == nil {
		if !isFinite(r.Lat) || !isFinite(r.Lon) {
			return fmt.Errorf("%w: non-finite center coordinates", ErrInvalidRequest)
		}
		if r.Lat < -mercator.MaxLatitude || r.Lat > mercator.MaxLatitude {
			return fmt.Errorf("%w: latitude %v outside the Mercator range", ErrInvalidRequest, r.Lat)
		}
		if r.Lon < -180 || r.Lon > 180 {
			return fmt.Errorf("%w: longitude %v out of range", ErrInvalidRequest, r.Lon)
		}
		if r.Radius < 0 {
			return fmt.Errorf("%w: negative radius %d", ErrInvalidRequest, r.Radius)
		}
	} else {
		b := r.BBox
		if !isFinite(b.West) || !isFinite(b.South) || !isFinite(b.East) || !isFinite(b.North) {
			return fmt.Errorf("%w: non-finite bounding box", ErrInvalidRequest)
		}
		if b.South >= b.North {
			return fmt.Errorf("%w: south must be less than north", ErrInvalidRequest)
		}
		if b.West >= b.East {
			return fmt.Errorf("%w: west must be less than east", ErrInvalidRequest)
		}
	}

	if r.MinZoom < 0 || r.MaxZoom > maxZoomLevel {
		return fmt.Errorf("%w: zoom must be within 0..%d", ErrInvalidRequest, maxZoomLevel)
	}
	if r.MaxZoom < r.MinZoom {
		return fmt.Errorf("%w: max zoom %d below min zoom %d", ErrInvalidRequest, r.MaxZoom, r.MinZoom)
	}

	if r.Workers < 0 || r.Workers > maxWorkers {
		return fmt.Errorf("%w: workers must be within 0..%d", ErrInvalidRequest, maxWorkers)
	}
	if r.Delay < 0 {
		return fmt.Errorf("%w: negative delay", ErrInvalidRequest)
	}
	if r.OutputRoot == "" {
		return fmt.Errorf("%w: missing output root", ErrInvalidRequest)
	}

	tmpl := r.Style.Template
	for _, token := range []string{"{z}", "{x}", "{y}"} {
		if !strings.Contains(tmpl, token) {
			return fmt.Errorf("%w: template missing %s placeholder", ErrInvalidRequest, token)
		}
	}
	if _, err := fetch.BuildURL(tmpl, maptile.New(0, 0, 0)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	return nil
}

// workers returns the effective pool size.
func (r *Request) workers() int {
	if r.Workers == 0 {
		return defaultWorkers
	}
	return r.Workers
}

// TileSet expands the requested area and zoom range into the tile set to
// process.
func (r *Request) TileSet() maptile.Set {
	if r.BBox != nil {
		b := r.BBox
		return mercator.CoverBoundingBox(b.West, b.South, b.East, b.North, r.MinZoom, r.MaxZoom, r.IncludeWorld)
	}
	return mercator.CoverRadius(r.Lat, r.Lon, r.MinZoom, r.MaxZoom, r.Radius, r.IncludeWorld)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
