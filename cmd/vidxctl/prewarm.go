package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var prewarmCmd = &cobra.Command{
	Use:   "prewarm",
	Short: "Walk internal-node pages to warm the page cache before serving queries",
	RunE:  runPrewarm,
}

func runPrewarm(cmd *cobra.Command, args []string) error {
	ix, err := openIndex()
	if err != nil {
		return err
	}
	defer ix.Close()

	if err := ix.Prewarm(context.Background()); err != nil {
		return fmt.Errorf("prewarm: %w", err)
	}
	fmt.Println("prewarm complete")
	return nil
}
