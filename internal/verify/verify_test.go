package verify

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/muimaps/muitiles/pkg/lvgl"
)

func writeTree(t *testing.T, root string, zoom, xlo, xhi, ylo, yhi int) {
	t.Helper()
	data, err := lvgl.Encode(image.NewRGBA(image.Rect(0, 0, 8, 8)))
	if err != nil {
		t.Fatal(err)
	}
	for x := xlo; x <= xhi; x++ {
		dir := filepath.Join(root, strconv.Itoa(zoom), strconv.Itoa(x))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		for y := ylo; y <= yhi; y++ {
			if err := os.WriteFile(filepath.Join(dir, strconv.Itoa(y)+".bin"), data, 0o644); err != nil {
				t.Fatal(err)
			}
		}
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		in     string
		lo, hi int64
		ok     bool
	}{
		{"7532..7540", 7532, 7540, true},
		{"5", 5, 5, true},
		{"10..3", 0, 0, false},
		{"a..b", 0, 0, false},
	}
	for _, tt := range tests {
		lo, hi, err := ParseRange(tt.in)
		if tt.ok != (err == nil) {
			t.Errorf("ParseRange(%q) err = %v", tt.in, err)
			continue
		}
		if tt.ok && (lo != tt.lo || hi != tt.hi) {
			t.Errorf("ParseRange(%q) = %d..%d, want %d..%d", tt.in, lo, hi, tt.lo, tt.hi)
		}
	}
}

func TestTree_CompleteRange(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, 13, 7532, 7535, 4911, 4914)

	report, err := Tree(Options{
		Root: root, Zoom: 13, Ext: "bin",
		XRange: "7532..7535", YRange: "4911..4914",
		CheckHeaders: true,
	})
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if report.Found != 16 || report.Checked != 16 || report.Missing != 0 {
		t.Errorf("report: %+v", report)
	}
	if len(report.Bad) != 0 {
		t.Errorf("unexpected bad files: %v", report.Bad)
	}
	if want := int64(lvgl.HeaderSize + 8*8*2); report.MinSize != want || report.MaxSize != want {
		t.Errorf("sizes %d..%d, want %d", report.MinSize, report.MaxSize, want)
	}
}

func TestTree_ReportsMissing(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, 13, 7532, 7533, 4911, 4912)
	if err := os.Remove(filepath.Join(root, "13", "7533", "4912.bin")); err != nil {
		t.Fatal(err)
	}

	report, err := Tree(Options{
		Root: root, Zoom: 13, Ext: "bin",
		XRange: "7532..7533", YRange: "4911..4912",
	})
	if !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
	if report.Missing != 1 || report.Found != 3 {
		t.Errorf("report: %+v", report)
	}
}

func TestTree_FlagsTruncatedBin(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, 13, 7532, 7532, 4911, 4911)

	path := filepath.Join(root, "13", "7532", "4911.bin")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data[:len(data)-10], 0o644); err != nil {
		t.Fatal(err)
	}

	report, err := Tree(Options{
		Root: root, Zoom: 13, Ext: "bin",
		XRange: "7532", YRange: "4911",
		CheckHeaders: true,
	})
	if !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
	if len(report.Bad) != 1 {
		t.Errorf("expected 1 bad file, got %v", report.Bad)
	}
}

func TestTree_WalkWithoutRanges(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, 13, 7532, 7534, 4911, 4913)

	report, err := Tree(Options{Root: root, Zoom: 13, Ext: "bin"})
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if report.Found != 9 {
		t.Errorf("found %d, want 9", report.Found)
	}
}

func TestTree_MissingZoomDir(t *testing.T) {
	if _, err := Tree(Options{Root: t.TempDir(), Zoom: 13, Ext: "bin"}); err == nil {
		t.Error("expected an error for a missing zoom directory")
	}
}
