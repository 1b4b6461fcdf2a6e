package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/muimaps/muitiles/pkg/lvgl"
)

func tilePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 256, 256))
	for y := 0; y < 256; y++ {
		for x := 0; x < 256; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 64, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func testRequest(srvURL, root string) Request {
	return Request{
		Lat:     -33.8688,
		Lon:     151.2093,
		Radius:  4,
		MinZoom: 13,
		MaxZoom: 13,
		Style: Style{
			Name:     "osm",
			Folder:   "osm",
			Template: srvURL + "/{z}/{x}/{y}.png",
		},
		OutputRoot: root,
		Workers:    4,
	}
}

func TestRun_SydneyRadiusScenario(t *testing.T) {
	body := tilePNG(t)
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write(body)
	}))
	defer srv.Close()

	root := t.TempDir()
	runner := New("muitiles-test/1.0", zerolog.Nop())

	summary, err := runner.Run(context.Background(), testRequest(srv.URL, root))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.State != "completed" {
		t.Errorf("state = %q, want completed", summary.State)
	}
	if summary.Total != 81 || summary.Downloaded != 81 || summary.Converted != 81 || summary.Failed != 0 {
		t.Errorf("counters: %+v", summary.Snapshot)
	}

	// 81 .bin files under osm/13/<x>/<y>.bin, each header + 256*256*2 bytes.
	want := int64(lvgl.HeaderSize + 256*256*2)
	found := 0
	for x := 7532; x <= 7540; x++ {
		for y := 4911; y <= 4919; y++ {
			path := filepath.Join(root, "osm", "13", fmt.Sprint(x), fmt.Sprintf("%d.bin", y))
			info, err := os.Stat(path)
			if err != nil {
				t.Fatalf("missing %s: %v", path, err)
			}
			if info.Size() != want {
				t.Errorf("%s: size %d, want %d", path, info.Size(), want)
			}
			found++
		}
	}
	if found != 81 {
		t.Errorf("found %d files, want 81", found)
	}

	// Source images removed after conversion by default.
	matches, _ := filepath.Glob(filepath.Join(root, "osm", "13", "*", "*.png"))
	if len(matches) != 0 {
		t.Errorf("expected no leftover source images, found %d", len(matches))
	}
}

func TestRun_SecondRunPerformsNoRequests(t *testing.T) {
	body := tilePNG(t)
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write(body)
	}))
	defer srv.Close()

	root := t.TempDir()
	runner := New("muitiles-test/1.0", zerolog.Nop())
	req := testRequest(srv.URL, root)

	if _, err := runner.Run(context.Background(), req); err != nil {
		t.Fatalf("first run: %v", err)
	}
	firstRequests := requests.Load()

	summary, err := runner.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if requests.Load() != firstRequests {
		t.Errorf("second run performed %d network requests", requests.Load()-firstRequests)
	}
	// No conversions happened; every tile was already satisfied on disk.
	if summary.Skipped != 81 || summary.Converted != 0 || summary.Downloaded != 0 {
		t.Errorf("second run counters: %+v", summary.Snapshot)
	}
	if summary.Skipped+summary.Converted+summary.Failed != summary.Total {
		t.Errorf("counters do not account for all tiles: %+v", summary.Snapshot)
	}
}

func TestRun_KeepSource(t *testing.T) {
	body := tilePNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	root := t.TempDir()
	req := testRequest(srv.URL, root)
	req.Radius = 0
	req.KeepSource = true

	runner := New("muitiles-test/1.0", zerolog.Nop())
	if _, err := runner.Run(context.Background(), req); err != nil {
		t.Fatalf("Run: %v", err)
	}

	pngPath := filepath.Join(root, "osm", "13", "7536", "4915.png")
	if _, err := os.Stat(pngPath); err != nil {
		t.Errorf("expected retained source image at %s: %v", pngPath, err)
	}
}

func TestRun_ContinuesPastTileFailures(t *testing.T) {
	body := tilePNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/13/7536/4915") {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	defer srv.Close()

	req := testRequest(srv.URL, t.TempDir())
	req.Radius = 1

	runner := New("muitiles-test/1.0", zerolog.Nop())
	summary, err := runner.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.State != "completed" {
		t.Errorf("state = %q, want completed despite tile failure", summary.State)
	}
	if summary.Failed != 1 || summary.Converted != 8 {
		t.Errorf("counters: %+v", summary.Snapshot)
	}
	if !strings.Contains(summary.LastError, "13/7536/4915") {
		t.Errorf("last error %q does not name the failed tile", summary.LastError)
	}
}

func TestRun_Cancellation(t *testing.T) {
	body := tilePNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		w.Write(body)
	}))
	defer srv.Close()

	req := testRequest(srv.URL, t.TempDir())
	req.Workers = 1

	runner := New("muitiles-test/1.0", zerolog.Nop())
	events := runner.Subscribe()

	done := make(chan Summary, 1)
	go func() {
		summary, err := runner.Run(context.Background(), req)
		if err != nil {
			t.Errorf("Run: %v", err)
		}
		done <- summary
	}()

	// Cancel after the first tile completes.
	select {
	case <-events:
	case <-time.After(5 * time.Second):
		t.Fatal("no progress event before timeout")
	}
	runner.Cancel()

	select {
	case summary := <-done:
		if summary.State != "cancelled" {
			t.Errorf("state = %q, want cancelled", summary.State)
		}
		processed := summary.Converted + summary.Failed
		if processed == 0 || processed >= summary.Total {
			t.Errorf("processed %d of %d tiles, expected a partial run", processed, summary.Total)
		}
		// The tile whose request was aborted by the cancellation is not
		// a failure.
		if summary.Failed != 0 {
			t.Errorf("failed = %d after cancellation, want 0", summary.Failed)
		}
		if summary.LastError != "" {
			t.Errorf("last error %q for a cancelled run, want none", summary.LastError)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}
}

func TestEstimate(t *testing.T) {
	req := testRequest("https://tile.example.org", t.TempDir())

	count, size, err := Estimate(req)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if count != 81 {
		t.Errorf("count = %d, want 81", count)
	}
	if want := int64(81) * int64(lvgl.HeaderSize+256*256*2); size != want {
		t.Errorf("size = %d, want %d", size, want)
	}
}

func TestValidate_Rejections(t *testing.T) {
	base := testRequest("https://tile.example.org", "/tmp/out")

	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"nan latitude", func(r *Request) { r.Lat = math.NaN() }},
		{"infinite longitude", func(r *Request) { r.Lon = math.Inf(1) }},
		{"latitude beyond mercator", func(r *Request) { r.Lat = 89.9 }},
		{"max below min zoom", func(r *Request) { r.MinZoom = 10; r.MaxZoom = 5 }},
		{"negative radius", func(r *Request) { r.Radius = -1 }},
		{"negative delay", func(r *Request) { r.Delay = -time.Second }},
		{"too many workers", func(r *Request) { r.Workers = 64 }},
		{"missing output root", func(r *Request) { r.OutputRoot = "" }},
		{"template missing tokens", func(r *Request) { r.Style.Template = "https://tile.example.org/{z}/{x}.png" }},
		{"unparseable template", func(r *Request) { r.Style.Template = "::/{z}/{x}/{y}" }},
		{"inverted bbox", func(r *Request) {
			r.BBox = &BoundingBox{West: 10, South: 20, East: 5, North: 30}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			if err := req.Validate(); !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}

	if err := base.Validate(); err != nil {
		t.Errorf("base request should validate: %v", err)
	}
}

func TestStyleByName(t *testing.T) {
	s, err := StyleByName("osm")
	if err != nil {
		t.Fatalf("StyleByName: %v", err)
	}
	if s.Folder != "osm" || !strings.Contains(s.Template, "{z}") {
		t.Errorf("unexpected style %+v", s)
	}

	if _, err := StyleByName("no-such-style"); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}

	if len(Styles()) != 3 {
		t.Errorf("expected 3 built-in styles, got %d", len(Styles()))
	}
}

func TestStyleSourceExt(t *testing.T) {
	tests := []struct {
		template string
		want     string
	}{
		{"https://tile.example.org/{z}/{x}/{y}.png", "png"},
		{"https://tile.example.org/{z}/{x}/{y}.jpg", "jpg"},
		{"https://tile.example.org/{z}/{x}/{y}", "png"},
	}
	for _, tt := range tests {
		s := Style{Template: tt.template}
		if got := s.SourceExt(); got != tt.want {
			t.Errorf("SourceExt(%q) = %q, want %q", tt.template, got, tt.want)
		}
	}
}
