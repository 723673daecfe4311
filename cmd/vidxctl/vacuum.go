package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arx-os/vecindex/pkg/vector"
)

var vacuumDeadFile string

var vacuumCmd = &cobra.Command{
	Use:   "vacuum",
	Short: "Drop dead rows from the index",
	Long: `Vacuum requires a list of dead payload ids, since vidxctl has no host
heap to consult. Pass --dead-ids as a JSON array file, e.g. [1, 4, 9].`,
	RunE: runVacuum,
}

func init() {
	vacuumCmd.Flags().StringVar(&vacuumDeadFile, "dead-ids", "", "path to a JSON array of dead payload ids (required)")
}

func runVacuum(cmd *cobra.Command, args []string) error {
	if vacuumDeadFile == "" {
		return fmt.Errorf("--dead-ids is required")
	}
	data, err := os.ReadFile(vacuumDeadFile)
	if err != nil {
		return fmt.Errorf("read dead-ids file: %w", err)
	}
	var deadIDs []uint64
	if err := json.Unmarshal(data, &deadIDs); err != nil {
		return fmt.Errorf("parse dead-ids file: %w", err)
	}
	dead := make(map[uint64]bool, len(deadIDs))
	for _, id := range deadIDs {
		dead[id] = true
	}

	ix, err := openIndex()
	if err != nil {
		return err
	}
	defer ix.Close()

	stats, err := ix.Vacuum(context.Background(), vector.VacuumOptions{
		IsDead: func(payload uint64) bool { return dead[payload] },
	})
	if err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}
