package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is overridden by the release build.
var Version = "0.1.0"

var (
	cfgFile string
	verbose bool
	log     zerolog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "muitiles",
	Short: "Download slippy-map tiles and convert them to LVGL RGB565 .bin files",
	Long: `muitiles downloads map tiles from a slippy-map tile server and converts
them into the LVGL binary image format (RGB565, no alpha), laid out as an
SD-ready folder tree:

  <output>/<style>/<z>/<x>/<y>.bin

Examples:
  # Download and convert a 9x9 tile grid around Sydney at zoom 13
  muitiles run --lat -33.8688 --lon 151.2093 --zoom 13 --radius 4 --style osm --out ./export

  # Cover the same footprint across zoom levels 12 to 14
  muitiles run --lat -33.8688 --lon 151.2093 --zoom 12 --max-zoom 14 --radius 4 --out ./export

  # Use a custom tile server template
  muitiles run --lat 35.6824 --lon 139.7531 --zoom 10 --radius 2 --template "https://{s}.tile.example.org/{z}/{x}/{y}.png" --out ./export

  # Verify an exported tree
  muitiles verify --root ./export/osm --zoom 13 --x 7532..7540 --y 4911..4919

  # Start the HTTP job API
  muitiles serve --port 8080`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.muitiles.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Optional .env next to the working directory.
	_ = godotenv.Load()

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".muitiles" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".muitiles")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func initLogger() {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

func userAgent() string {
	return "muitiles/" + Version + " (LVGL bin tile tool; +https://github.com/muimaps/muitiles)"
}
