// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"

	"github.com/RoXxIV/multi-bat/pkg/bus"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Long: `List the serial ports present on the system.

USB adapters are shown with their vendor and product ids and serial number
when the platform reports them.`,
	Args: cobra.NoArgs,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	details, err := enumerator.GetDetailedPortsList()
	if err == nil {
		if len(details) == 0 {
			fmt.Fprintln(out, "No serial ports found")
		}
		for _, p := range details {
			if p.IsUSB {
				fmt.Fprintf(out, "%s  USB %s:%s serial=%s\n", p.Name, p.VID, p.PID, p.SerialNumber)
				continue
			}
			fmt.Fprintln(out, p.Name)
		}
		return nil
	}

	// Fall back to names only
	logger.Debug().Err(err).Msg("detailed port listing unavailable")
	names, err := bus.ListPorts()
	if err != nil {
		return fmt.Errorf("failed to list serial ports: %w", err)
	}
	if len(names) == 0 {
		fmt.Fprintln(out, "No serial ports found")
	}
	for _, name := range names {
		fmt.Fprintln(out, name)
	}
	return nil
}
