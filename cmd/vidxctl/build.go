package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arx-os/vecindex/pkg/vector"
)

var buildInputFile string

var buildCmd = &cobra.Command{
	Use:   "build <vectors.jsonl>",
	Short: "Cluster a vector set and materialize the index tree",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&buildInputFile, "input", "", "path to a newline-delimited JSON vector file (overrides positional arg)")
	buildCmd.Flags().IntSlice("lists", []int{256, 16}, "cluster fanout per level, root-first")
	buildCmd.Flags().Int("sampling-factor", 16, "input vectors sampled per leaf-level list for k-means")
	buildCmd.Flags().Bool("residual", true, "store residual-corrected H0/H1 codes")
	buildCmd.Flags().Bool("normalize", false, "L2-normalize vectors before rotation")
	buildCmd.Flags().Int("workers", 0, "k-means worker count (0 or 1 runs k-means sequentially)")
}

func runBuild(cmd *cobra.Command, args []string) error {
	path := buildInputFile
	if path == "" && len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("build requires a vectors file, via --input or a positional argument")
	}

	records, err := readVectorFile(path)
	if err != nil {
		return err
	}

	ix, err := openIndex()
	if err != nil {
		return err
	}
	defer ix.Close()

	lists, _ := cmd.Flags().GetIntSlice("lists")
	samplingFactor, _ := cmd.Flags().GetInt("sampling-factor")
	residual, _ := cmd.Flags().GetBool("residual")
	normalize, _ := cmd.Flags().GetBool("normalize")
	workers, _ := cmd.Flags().GetInt("workers")

	stats, err := ix.Build(context.Background(), sourceFromRecords(records), vector.BuildOptions{
		Lists:          lists,
		SamplingFactor: samplingFactor,
		Residual:       residual,
		Normalize:      normalize,
		Workers:        workers,
	})
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}
