package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var insertInputFile string

var insertCmd = &cobra.Command{
	Use:   "insert <vectors.jsonl>",
	Short: "Insert one or more vectors into a built index",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInsert,
}

func init() {
	insertCmd.Flags().StringVar(&insertInputFile, "input", "", "path to a newline-delimited JSON vector file (overrides positional arg)")
}

func runInsert(cmd *cobra.Command, args []string) error {
	path := insertInputFile
	if path == "" && len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("insert requires a vectors file, via --input or a positional argument")
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

	ctx := context.Background()
	for i, r := range records {
		if err := ix.Insert(ctx, r.Payload, r.Vector); err != nil {
			return fmt.Errorf("insert record %d (payload %d): %w", i, r.Payload, err)
		}
	}
	fmt.Printf("inserted %d vectors\n", len(records))
	return nil
}
