// cmd/gradebook/main.go
//
// Entry point for the gradebook terminal client. Run it from any directory;
// that directory becomes the project and holds the .gradebook folder with
// config.yaml, the activity journal and the wire log.

package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Gantu78/WebReactivaFront/internal/config"
	"github.com/Gantu78/WebReactivaFront/internal/logging"
	"github.com/Gantu78/WebReactivaFront/internal/tui"
)

func main() {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting working directory: %v\n", err)
		os.Exit(1)
	}

	if err := config.InitProjectDir(cwd); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing .gradebook directory: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.NewConfig(cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	wire, err := logging.New(cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening wire log: %v\n", err)
		os.Exit(1)
	}
	defer wire.Close()

	app, err := tui.NewApp(cfg, tui.WithWireLogger(wire))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting gradebook: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(app, tea.WithAltScreen())
	// Live notifications arrive on background goroutines and reach the model through Send.
	app.SetSender(p.Send)

	_, runErr := p.Run()
	app.Shutdown()
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", runErr)
		os.Exit(1)
	}
}
