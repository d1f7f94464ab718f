// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var monitorInterval time.Duration

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive multi-battery monitor (TUI)",
	Long: `Poll every slave continuously and show the batteries in a terminal UI.

Features:
  - Battery table (SOC, voltage, current, cells, MOSFETs, faults, data age)
  - Detail pane for the selected battery
  - Exchange statistics
  - Event log

Keys:
  up/down  select a battery
  r        poll now
  c        toggle the charge MOSFET of the selected battery
  d        toggle the discharge MOSFET of the selected battery
  i        show the slave id on the selected battery display
  x        reset statistics
  q        quit

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().DurationVarP(&monitorInterval, "interval", "i", 2*time.Second, "Time between poll cycles")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if monitorInterval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	// Log lines would tear the alt screen
	logger = logger.Level(zerolog.Disabled)

	m, b, connInfo, err := OpenMaster()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer b.Close()

	model := initialMonitorModel(m, connInfo, monitorInterval)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
