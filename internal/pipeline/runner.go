// Package pipeline drives the download-and-convert run: it expands a
// request into a tile set, schedules fetch and conversion per tile under a
// bounded worker pool and a politeness delay, and aggregates progress.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/paulmach/orb/maptile"
	"github.com/rs/zerolog"

	"github.com/muimaps/muitiles/internal/fetch"
	"github.com/muimaps/muitiles/pkg/lvgl"
)

// TileDim is the nominal pixel edge of a source tile, used for the
// pre-flight size estimate.
const TileDim = 256

// minBinSize is the plausibility floor for an existing .bin file; anything
// smaller is treated as a truncated write and rebuilt.
const minBinSize = 1024

// Summary is the final report of one run.
type Summary struct {
	Snapshot
	OutputDir string `json:"output_dir"`
}

// Runner executes download runs one at a time.
type Runner struct {
	fetcher  *fetch.Client
	log      zerolog.Logger
	progress Progress

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a runner.
func New(userAgent string, log zerolog.Logger) *Runner {
	return &Runner{
		fetcher: fetch.New(userAgent, log),
		log:     log,
	}
}

// Estimate validates the request and returns the tile count plus the
// approximate total output size for nominal 256-pixel tiles. The byte
// figure is a pre-flight estimate, not a guarantee.
func Estimate(req Request) (int, int64, error) {
	if err := req.Validate(); err != nil {
		return 0, 0, err
	}
	count := len(req.TileSet())
	perTile := int64(lvgl.HeaderSize + TileDim*TileDim*2)
	return count, int64(count) * perTile, nil
}

// Progress returns a snapshot of the current run's counters.
func (r *Runner) Progress() Snapshot {
	return r.progress.Snapshot()
}

// Subscribe returns a stream of per-tile events for the current run.
func (r *Runner) Subscribe() <-chan Event {
	return r.progress.Subscribe()
}

// Cancel requests cooperative cancellation: no new tile work is started
// and in-flight tiles finish without further retries.
func (r *Runner) Cancel() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run validates the request, expands the tile set and processes every tile.
// Per-tile failures are counted and reported but never abort the run; only
// request validation and output-directory setup are fatal.
func (r *Runner) Run(ctx context.Context, req Request) (Summary, error) {
	if err := req.Validate(); err != nil {
		return Summary{}, err
	}

	tiles := sortedTiles(req.TileSet())

	styleDir := filepath.Join(req.OutputRoot, req.Style.Folder)
	if err := os.MkdirAll(styleDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("create output dir: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	r.progress.reset(int64(len(tiles)))
	r.progress.setState(StateRunning)
	defer r.progress.closeWatchers()

	r.log.Info().
		Int("tiles", len(tiles)).
		Int("workers", req.workers()).
		Str("style", req.Style.Name).
		Str("output", styleDir).
		Msg("run started")

	jobs := make(chan maptile.Tile)
	var wg sync.WaitGroup
	for i := 0; i < req.workers(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				// Observed cancellation: drain without starting new work.
				if ctx.Err() != nil {
					continue
				}
				r.processTile(ctx, &req, t)
				if req.Delay > 0 {
					select {
					case <-ctx.Done():
					case <-time.After(req.Delay):
					}
				}
			}
		}()
	}

	for _, t := range tiles {
		select {
		case jobs <- t:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	if ctx.Err() != nil {
		r.progress.setState(StateCancelled)
	} else {
		r.progress.setState(StateCompleted)
	}
	r.progress.setCurrent("")

	summary := Summary{Snapshot: r.progress.Snapshot(), OutputDir: styleDir}
	r.log.Info().
		Str("state", summary.State).
		Int64("downloaded", summary.Downloaded).
		Int64("skipped", summary.Skipped).
		Int64("converted", summary.Converted).
		Int64("failed", summary.Failed).
		Msg("run finished")
	return summary, nil
}

func (r *Runner) processTile(ctx context.Context, req *Request, t maptile.Tile) {
	name := fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
	r.progress.setCurrent(name)

	dir := filepath.Join(req.OutputRoot, req.Style.Folder,
		strconv.Itoa(int(t.Z)), strconv.FormatUint(uint64(t.X), 10))
	src := filepath.Join(dir, fmt.Sprintf("%d.%s", t.Y, req.Style.SourceExt()))
	dst := filepath.Join(dir, fmt.Sprintf("%d.bin", t.Y))

	// Converted output already present with a plausible size: the tile is
	// satisfied without touching the network.
	if info, err := os.Stat(dst); err == nil && info.Size() > minBinSize {
		r.progress.skipped.Add(1)
		r.emit(name, nil)
		return
	}

	outcome, err := r.fetcher.Tile(ctx, req.Style.Template, t, src)
	if err != nil {
		// A request aborted by cancellation is not a tile failure; the
		// tile simply was not processed.
		if errors.Is(err, context.Canceled) {
			return
		}
		r.log.Warn().Str("tile", name).Err(err).Msg("tile fetch failed")
		r.progress.fail(name, err)
		r.emit(name, err)
		return
	}
	if outcome == fetch.Downloaded {
		r.progress.downloaded.Add(1)
	}

	if err := lvgl.ConvertFile(src, dst); err != nil {
		r.log.Warn().Str("tile", name).Err(err).Msg("tile conversion failed")
		r.progress.fail(name, err)
		r.emit(name, err)
		return
	}
	r.progress.converted.Add(1)

	if !req.KeepSource {
		// Best effort; a leftover source image is harmless.
		_ = os.Remove(src)
	}

	r.emit(name, nil)
}

func (r *Runner) emit(tile string, err error) {
	ev := Event{
		Tile:  tile,
		Done:  r.progress.done(),
		Total: r.progress.total.Load(),
	}
	if err != nil {
		ev.Failed = true
		ev.Error = err.Error()
	}
	r.progress.publish(ev)
}

func sortedTiles(set maptile.Set) []maptile.Tile {
	tiles := make([]maptile.Tile, 0, len(set))
	for t := range set {
		tiles = append(tiles, t)
	}
	sort.Slice(tiles, func(i, j int) bool {
		a, b := tiles[i], tiles[j]
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})
	return tiles
}
