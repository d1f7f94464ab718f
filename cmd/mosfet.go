// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RoXxIV/multi-bat/pkg/bmsrtu"
)

var (
	mosfetSlave     int
	mosfetCharge    string
	mosfetDischarge string
)

var mosfetCmd = &cobra.Command{
	Use:   "mosfet",
	Short: "Switch the charge or discharge MOSFET of one slave",
	Long: `Switch the charge and/or discharge MOSFET of a slave on or off.

At least one of --charge and --discharge must be given. The charge MOSFET is
switched first; a failure stops the command before the discharge MOSFET.

Exit codes:
  0 - All writes acknowledged
  1 - No acknowledgement, rejected reply or invalid arguments
  2 - Connection error`,
	Example: `  multibat -p /dev/ttyUSB0 mosfet --slave 1 --discharge off`,
	RunE:    runMosfet,
}

func init() {
	rootCmd.AddCommand(mosfetCmd)
	mosfetCmd.Flags().IntVarP(&mosfetSlave, "slave", "s", 1, "Slave id")
	mosfetCmd.Flags().StringVar(&mosfetCharge, "charge", "", "Charge MOSFET: on or off")
	mosfetCmd.Flags().StringVar(&mosfetDischarge, "discharge", "", "Discharge MOSFET: on or off")
	mosfetCmd.MarkFlagsOneRequired("charge", "discharge")
}

// parseOnOff parses a switch state
func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "1", "true":
		return true, nil
	case "off", "0", "false":
		return false, nil
	default:
		return false, fmt.Errorf("invalid switch state %q (use on or off)", s)
	}
}

func runMosfet(cmd *cobra.Command, args []string) error {
	type change struct {
		name  string
		value string
		on    bool
	}
	changes := []change{{name: "charge", value: mosfetCharge}, {name: "discharge", value: mosfetDischarge}}
	for i := range changes {
		if changes[i].value == "" {
			continue
		}
		on, err := parseOnOff(changes[i].value)
		if err != nil {
			return fmt.Errorf("--%s: %w", changes[i].name, err)
		}
		changes[i].on = on
	}

	m, b, connInfo, err := OpenMaster()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer b.Close()

	fmt.Fprintf(os.Stderr, "Connection: %s\n", connInfo)

	set := map[string]func(id int, on bool) error{
		"charge":    m.SetChargeMosfet,
		"discharge": m.SetDischargeMosfet,
	}
	for _, c := range changes {
		if c.value == "" {
			continue
		}
		if err := set[c.name](mosfetSlave, c.on); err != nil {
			return fmt.Errorf("%s MOSFET: %s: %w", c.name, bmsrtu.ReasonOf(err), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Slave %d: %s MOSFET %s\n", mosfetSlave, c.name, bmsrtu.FormatOnOff(c.on))
	}
	return nil
}
