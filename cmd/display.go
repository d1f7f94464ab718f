// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RoXxIV/multi-bat/pkg/bmsrtu"
	"github.com/RoXxIV/multi-bat/pkg/master"
)

var (
	displaySlave  int
	displayAll    bool
	displayValue  string
	displayVerify bool
)

var displayCmd = &cobra.Command{
	Use:   "display-id",
	Short: "Show the slave identifier on the battery displays",
	Long: `Send the display identifier command to one slave or to every slave.

The command value defaults to "show" (7), which makes the pack display its id.
"confirm" (9) or any byte value may be given instead. With --all the slaves
are addressed in id order, 2 seconds apart.

--verify reads the display register back after each command. Some slaves do
not report the value they show, so a mismatch is not always a real failure.

Exit codes:
  0 - Every command acknowledged
  1 - A slave did not acknowledge, or invalid arguments
  2 - Connection error`,
	RunE: runDisplay,
}

func init() {
	rootCmd.AddCommand(displayCmd)
	displayCmd.Flags().IntVarP(&displaySlave, "slave", "s", 0, "Slave id")
	displayCmd.Flags().BoolVarP(&displayAll, "all", "a", false, "Address every slave")
	displayCmd.Flags().StringVar(&displayValue, "value", "show", "Command value: show, confirm or a byte")
	displayCmd.Flags().BoolVar(&displayVerify, "verify", false, "Read the display register back")
	displayCmd.MarkFlagsMutuallyExclusive("slave", "all")
	displayCmd.MarkFlagsOneRequired("slave", "all")
}

// parseDisplayValue resolves a display command name or byte value
func parseDisplayValue(s string) (byte, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "show":
		return bmsrtu.DisplayIDShow, nil
	case "confirm":
		return bmsrtu.DisplayIDConfirm, nil
	}
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid display value %q (use show, confirm or 0..255)", s)
	}
	return byte(v), nil
}

func runDisplay(cmd *cobra.Command, args []string) error {
	value, err := parseDisplayValue(displayValue)
	if err != nil {
		return err
	}

	cfg := opts.masterConfig()
	cfg.VerifyDisplay = displayVerify

	b, connInfo, err := OpenBus()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer b.Close()

	m, err := master.New(b, cfg, master.WithLogger(logger.With().Str("component", "master").Logger()))
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Connection: %s\n", connInfo)
	out := cmd.OutOrStdout()

	if !displayAll {
		if err := m.SendDisplayIdentifier(displaySlave, value); err != nil {
			return fmt.Errorf("%s: %w", bmsrtu.ReasonOf(err), err)
		}
		fmt.Fprintf(out, "Slave %d: display command %d acknowledged\n", displaySlave, value)
		return nil
	}

	summary := m.SendDisplayIdentifierAll(value)
	for _, r := range summary.Results {
		if r.Err != nil {
			fmt.Fprintf(out, "Slave %d: %s (%v)\n", r.ID, bmsrtu.ReasonOf(r.Err), r.Err)
			continue
		}
		fmt.Fprintf(out, "Slave %d: ok\n", r.ID)
	}
	fmt.Fprintln(out, summary)
	if !summary.OK() {
		return fmt.Errorf("%d slave(s) failed", len(summary.Failed()))
	}
	return nil
}
