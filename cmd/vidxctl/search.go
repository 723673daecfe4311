package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arx-os/vecindex/internal/search"
	"github.com/arx-os/vecindex/pkg/vector"
)

var (
	searchQueryFile string
	searchProbes    []int
	searchEps       float64
	searchMaxScan   int
	searchRadius    float32
	searchUseRadius bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query.json>",
	Short: "Search the index for a single query vector",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntSliceVar(&searchProbes, "probes", nil, "per-level beam width, level 1 (just above the leaves) first and the root's children last (required, length = height_of_root-1)")
	searchCmd.Flags().Float64Var(&searchEps, "eps", 1.9, "lower-bound slack factor")
	searchCmd.Flags().IntVar(&searchMaxScan, "max-scan", 10000, "maximum leaf tuples to scan (0 means unbounded)")
	searchCmd.Flags().Float32Var(&searchRadius, "radius", 0, "stop once distance reaches or exceeds this radius")
	searchCmd.Flags().BoolVar(&searchUseRadius, "use-radius", false, "enable the --radius cutoff")
}

func runSearch(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read query file: %w", err)
	}
	var rec vectorRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("parse query file: %w", err)
	}
	if len(searchProbes) == 0 {
		return fmt.Errorf("--probes is required")
	}

	ix, err := openIndex()
	if err != nil {
		return err
	}
	defer ix.Close()

	opts := vector.SearchOptions{
		Probes:        searchProbes,
		Eps:           searchEps,
		MaxScanTuples: searchMaxScan,
		Prefetch:      search.Plain,
		Rerank:        search.RerankIndex,
	}
	if searchUseRadius {
		opts.Radius = &searchRadius
	}

	ctx := context.Background()
	cur, err := ix.Search(ctx, rec.Vector, opts)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	for {
		result, ok, err := cur.Next(ctx)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		if !ok {
			break
		}
		if err := enc.Encode(result); err != nil {
			return err
		}
	}
	return nil
}
