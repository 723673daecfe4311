// Command vidxctl is the CLI front over pkg/vector: build, insert,
// search, vacuum, stats, prewarm, snapshot, and serve subcommands over a
// file-backed Index, grounded on the teacher's cmd/arx cobra root
// (package-level *cobra.Command vars, init()-wired flags, RunE handlers).
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arx-os/vecindex/internal/common/logger"
	"github.com/arx-os/vecindex/internal/config"
)

var (
	cfgFile  string
	dataPath string
	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "vidxctl",
	Short:         "Control plane for a disk-resident vector index",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		appConfig = cfg
		if dataPath == "" {
			dataPath = cfg.DataDir + "/index.vdx"
		}
		switch strings.ToLower(cfg.Logging.Level) {
		case "debug":
			logger.SetLevel(logger.DEBUG)
		case "warn", "warning":
			logger.SetLevel(logger.WARN)
		case "error":
			logger.SetLevel(logger.ERROR)
		default:
			logger.SetLevel(logger.INFO)
		}
		return nil
	},
}

func main() {
	v := viper.New()
	config.BindEnv(v)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default ~/.vecindex/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "", "path to the index file (default <data_dir>/index.vdx)")

	rootCmd.AddCommand(
		buildCmd,
		insertCmd,
		searchCmd,
		vacuumCmd,
		statsCmd,
		snapshotCmd,
		serveCmd,
		prewarmCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
