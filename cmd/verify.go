package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muimaps/muitiles/internal/verify"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check an exported tile tree for missing or corrupt files",
	Long: `Check that an exported style folder holds every tile in a range, and
optionally validate each .bin header against its payload size.

Without --x/--y the whole zoom directory is walked and counted instead.`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().String("root", "", "style folder to check, e.g. ./export/osm (required)")
	verifyCmd.Flags().Int("zoom", 13, "zoom level to check")
	verifyCmd.Flags().String("ext", "bin", "file extension to look for")
	verifyCmd.Flags().String("x", "", "inclusive x range, e.g. 7532..7540")
	verifyCmd.Flags().String("y", "", "inclusive y range, e.g. 4911..4919")
	verifyCmd.Flags().Bool("check-headers", false, "decode each .bin header and validate the payload length")

	verifyCmd.MarkFlagRequired("root")
}

func runVerify(cmd *cobra.Command, args []string) error {
	root, _ := cmd.Flags().GetString("root")
	zoom, _ := cmd.Flags().GetInt("zoom")
	ext, _ := cmd.Flags().GetString("ext")
	xRange, _ := cmd.Flags().GetString("x")
	yRange, _ := cmd.Flags().GetString("y")
	checkHeaders, _ := cmd.Flags().GetBool("check-headers")

	report, err := verify.Tree(verify.Options{
		Root:         root,
		Zoom:         zoom,
		Ext:          ext,
		XRange:       xRange,
		YRange:       yRange,
		CheckHeaders: checkHeaders,
	})

	fmt.Fprintf(cmd.OutOrStdout(), "found=%d checked=%d missing=%d size=%d..%d bytes\n",
		report.Found, report.Checked, report.Missing, report.MinSize, report.MaxSize)
	for _, bad := range report.Bad {
		fmt.Fprintf(cmd.OutOrStdout(), "bad: %s\n", bad)
	}

	return err
}
