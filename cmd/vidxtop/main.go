// Command vidxtop is the bubbletea TUI entry point: a single-pane,
// periodically-refreshing view of one index's on-disk tree shape,
// grounded on the teacher's cmd/arx/tui/main.go program wiring.
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/arx-os/vecindex/internal/config"
	"github.com/arx-os/vecindex/internal/tui"
	"github.com/arx-os/vecindex/pkg/vector"
)

func main() {
	cfgPath := flag.String("config", "", "config file path (default ~/.vecindex/config.yaml)")
	dataPath := flag.String("data", "", "path to the index file (default <data_dir>/index.vdx)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	path := *dataPath
	if path == "" {
		path = cfg.DataDir + "/index.vdx"
	}

	metric := vector.L2
	if cfg.Metric == "dot" {
		metric = vector.Dot
	}
	ix, err := vector.Open(path, vector.Options{Dims: cfg.Dims, Metric: metric, Seed: cfg.Build.Seed})
	if err != nil {
		fmt.Fprintln(os.Stderr, "open index:", err)
		os.Exit(1)
	}
	defer ix.Close()

	refresh, err := cfg.TUI.ParseRefreshInterval()
	if err != nil {
		refresh = 0
	}
	model := tui.New(ix, refresh, cfg.TUI.Theme)

	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintln(os.Stderr, "tui error:", err)
		os.Exit(1)
	}
}
