package cmd

import (
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/muimaps/muitiles/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Download tiles for an area and convert them to RGB565 .bin",
	Long: `Download tiles around a center point (or inside a bounding box) across a
zoom range and convert each one to an LVGL RGB565 .bin file.

The radius is applied on the tile grid of the minimum zoom; deeper zoom
levels cover the same geographic footprint with proportionally more tiles.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Float64("lat", 0, "center latitude")
	runCmd.Flags().Float64("lon", 0, "center longitude")
	runCmd.Flags().String("bbox", "", "bounding box as 'west,south,east,north' (overrides --lat/--lon)")
	runCmd.Flags().Int("zoom", 13, "minimum zoom level")
	runCmd.Flags().Int("max-zoom", 0, "maximum zoom level (default: same as --zoom)")
	runCmd.Flags().Int("radius", 4, "tile radius at minimum zoom (grid = (2r+1)^2)")
	runCmd.Flags().String("style", "osm", "built-in style (see 'muitiles styles')")
	runCmd.Flags().String("template", "", "custom URL template with {z}, {x}, {y} and optional {s}")
	runCmd.Flags().StringP("out", "o", "./export", "output root folder")
	runCmd.Flags().Bool("keep-source", false, "keep downloaded source images next to the .bin files")
	runCmd.Flags().Duration("delay", 50*time.Millisecond, "politeness delay between requests per worker")
	runCmd.Flags().Int("workers", 4, "concurrent download workers (max 8)")
	runCmd.Flags().Bool("world", false, "also include the zoom-0 world overview tile")
	runCmd.Flags().Bool("estimate", false, "print the tile count and size estimate, then exit")

	viper.BindPFlag("run.lat", runCmd.Flags().Lookup("lat"))
	viper.BindPFlag("run.lon", runCmd.Flags().Lookup("lon"))
	viper.BindPFlag("run.bbox", runCmd.Flags().Lookup("bbox"))
	viper.BindPFlag("run.zoom", runCmd.Flags().Lookup("zoom"))
	viper.BindPFlag("run.max-zoom", runCmd.Flags().Lookup("max-zoom"))
	viper.BindPFlag("run.radius", runCmd.Flags().Lookup("radius"))
	viper.BindPFlag("run.style", runCmd.Flags().Lookup("style"))
	viper.BindPFlag("run.template", runCmd.Flags().Lookup("template"))
	viper.BindPFlag("run.out", runCmd.Flags().Lookup("out"))
	viper.BindPFlag("run.keep-source", runCmd.Flags().Lookup("keep-source"))
	viper.BindPFlag("run.delay", runCmd.Flags().Lookup("delay"))
	viper.BindPFlag("run.workers", runCmd.Flags().Lookup("workers"))
	viper.BindPFlag("run.world", runCmd.Flags().Lookup("world"))
}

func runRun(cmd *cobra.Command, args []string) error {
	req, err := buildRequest()
	if err != nil {
		return err
	}

	count, size, err := pipeline.Estimate(req)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "style=%s tiles=%d approx_size=%.1f MiB zoom=%d..%d\n",
		req.Style.Name, count, float64(size)/(1<<20), req.MinZoom, req.MaxZoom)

	if estimateOnly, _ := cmd.Flags().GetBool("estimate"); estimateOnly {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := pipeline.New(userAgent(), log)

	// Per-tile progress on stderr.
	events := runner.Subscribe()
	go func() {
		for ev := range events {
			status := "ok"
			if ev.Failed {
				status = "failed: " + ev.Error
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] %s %s\n", ev.Done, ev.Total, ev.Tile, status)
		}
	}()

	summary, err := runner.Run(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"\n%s downloaded=%d skipped=%d converted=%d failed=%d\n",
		summary.State, summary.Downloaded, summary.Skipped, summary.Converted, summary.Failed)
	if summary.Failed > 0 && summary.LastError != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "last error: %s\n", summary.LastError)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "SD-ready folder: %s\n", summary.OutputDir)

	return nil
}

func buildRequest() (pipeline.Request, error) {
	var style pipeline.Style
	if tmpl := viper.GetString("run.template"); tmpl != "" {
		name := viper.GetString("run.style")
		style = pipeline.Style{Name: name, Folder: name, Template: tmpl}
	} else {
		var err error
		style, err = pipeline.StyleByName(viper.GetString("run.style"))
		if err != nil {
			return pipeline.Request{}, err
		}
	}

	minZoom := viper.GetInt("run.zoom")
	maxZoom := viper.GetInt("run.max-zoom")
	if maxZoom == 0 {
		maxZoom = minZoom
	}

	req := pipeline.Request{
		Lat:          viper.GetFloat64("run.lat"),
		Lon:          viper.GetFloat64("run.lon"),
		Radius:       viper.GetInt("run.radius"),
		MinZoom:      minZoom,
		MaxZoom:      maxZoom,
		Style:        style,
		OutputRoot:   viper.GetString("run.out"),
		KeepSource:   viper.GetBool("run.keep-source"),
		Delay:        viper.GetDuration("run.delay"),
		Workers:      viper.GetInt("run.workers"),
		IncludeWorld: viper.GetBool("run.world"),
	}

	if bbox := viper.GetString("run.bbox"); bbox != "" {
		parsed, err := parseBBox(bbox)
		if err != nil {
			return pipeline.Request{}, err
		}
		req.BBox = parsed
	}

	return req, nil
}

// parseBBox parses 'west,south,east,north' in degrees.
func parseBBox(s string) (*pipeline.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must be 'west,south,east,north', got %q", s)
	}

	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid bbox component %q: %v", p, err)
		}
		vals[i] = v
	}

	return &pipeline.BoundingBox{West: vals[0], South: vals[1], East: vals[2], North: vals[3]}, nil
}
