// Package verify checks an exported tile tree for coverage and basic file
// sanity before the card leaves the workbench.
package verify

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/muimaps/muitiles/pkg/lvgl"
)

var ErrIncomplete = errors.New("tile tree incomplete")

// Options selects what to check. When XRange and YRange are set the
// rectangular span is checked for missing files; otherwise every matching
// file under the zoom directory is counted.
type Options struct {
	Root         string
	Zoom         int
	Ext          string
	XRange       string // "7532..7540" or a single index
	YRange       string
	CheckHeaders bool // decode each .bin header and validate payload length
}

// Report summarizes a tree check.
type Report struct {
	Found   int
	Checked int
	Missing int
	MinSize int64
	MaxSize int64
	Bad     []string // files with an invalid header or truncated payload
}

// ParseRange parses "a..b" or a single integer into an inclusive range.
func ParseRange(s string) (int64, int64, error) {
	if !strings.Contains(s, "..") {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("bad range %q: %w", s, err)
		}
		return v, v, nil
	}

	parts := strings.SplitN(s, "..", 2)
	lo, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad range %q: %w", s, err)
	}
	hi, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad range %q: %w", s, err)
	}
	if hi < lo {
		return 0, 0, fmt.Errorf("bad range %q: upper bound below lower", s)
	}
	return lo, hi, nil
}

// Tree walks the output tree and reports coverage. A report with missing
// tiles or bad files is returned together with ErrIncomplete.
func Tree(opts Options) (Report, error) {
	zdir := filepath.Join(opts.Root, strconv.Itoa(opts.Zoom))
	if _, err := os.Stat(zdir); err != nil {
		return Report{}, fmt.Errorf("missing zoom dir %s: %w", zdir, err)
	}

	var report Report

	record := func(path string, size int64) {
		if report.Found == 0 || size < report.MinSize {
			report.MinSize = size
		}
		if size > report.MaxSize {
			report.MaxSize = size
		}
		report.Found++

		if opts.CheckHeaders && opts.Ext == "bin" {
			if err := checkBin(path, size); err != nil {
				report.Bad = append(report.Bad, fmt.Sprintf("%s: %v", path, err))
			}
		}
	}

	if opts.XRange != "" && opts.YRange != "" {
		xlo, xhi, err := ParseRange(opts.XRange)
		if err != nil {
			return Report{}, err
		}
		ylo, yhi, err := ParseRange(opts.YRange)
		if err != nil {
			return Report{}, err
		}

		for x := xlo; x <= xhi; x++ {
			for y := ylo; y <= yhi; y++ {
				path := filepath.Join(zdir, strconv.FormatInt(x, 10),
					fmt.Sprintf("%d.%s", y, opts.Ext))
				report.Checked++
				info, err := os.Stat(path)
				if err != nil {
					report.Missing++
					continue
				}
				record(path, info.Size())
			}
		}
	} else {
		err := filepath.WalkDir(zdir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			if !strings.HasSuffix(path, "."+opts.Ext) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			record(path, info.Size())
			return nil
		})
		if err != nil {
			return Report{}, err
		}
	}

	if report.Missing > 0 || len(report.Bad) > 0 {
		return report, fmt.Errorf("%w: %d missing, %d bad", ErrIncomplete, report.Missing, len(report.Bad))
	}
	return report, nil
}

func checkBin(path string, size int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	h, err := lvgl.ReadHeader(f)
	if err != nil {
		return err
	}
	if want := int64(lvgl.HeaderSize + h.DataSize()); size != want {
		return fmt.Errorf("payload %d bytes, header says %d", size-lvgl.HeaderSize, h.DataSize())
	}
	return nil
}
