// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/RoXxIV/multi-bat/pkg/bmsrtu"
	"github.com/RoXxIV/multi-bat/pkg/master"
)

var (
	probeSlave   int
	probeTimeout int
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test connection by waiting for a valid slave reply",
	Long: `Ask one slave for its state of charge until it answers or the timeout ends.

A reply counts only when it carries the slave's reply address and the read
function code (and a good CRC with --verify-crc).

Exit codes:
  0 - Valid reply received before timeout
  1 - Timeout reached without a valid reply
  2 - Connection error

Useful for checking wiring, bus settings and slave ids.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVarP(&probeSlave, "slave", "s", 1, "Slave id")
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds to wait for a reply")
}

// probe repeats a state of charge read of id until it succeeds or timeout
// passes. It returns the number of attempts and the last error.
func probe(m *master.Master, id int, timeout time.Duration) (int, error) {
	clock := m.Clock()
	deadline := clock.Now().Add(timeout)
	attempts := 0
	for {
		attempts++
		err := m.ReadParam(id, bmsrtu.ParamSOC)
		if err == nil || bmsrtu.ReasonOf(err) == bmsrtu.ReasonInvalidSlaveID {
			return attempts, err
		}
		if !clock.Now().Before(deadline) {
			return attempts, err
		}
		clock.Sleep(m.Config().InterPollDelay)
	}
}

func runProbe(cmd *cobra.Command, args []string) error {
	m, b, connInfo, err := OpenMaster()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer b.Close()

	fmt.Printf("Multibat - Probe\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", probeTimeout)
	fmt.Printf("Waiting for slave %d...\n\n", probeSlave)

	attempts, err := probe(m, probeSlave, time.Duration(probeTimeout)*time.Second)
	if err != nil {
		b.Close()
		fmt.Fprintf(os.Stderr, "FAILED after %d attempt(s): %s (%v)\n", attempts, bmsrtu.ReasonOf(err), err)
		os.Exit(1)
	}

	rec, _ := m.Store().Get(probeSlave)
	fmt.Printf("SUCCESS: Slave %d answered after %d attempt(s)\n", probeSlave, attempts)
	fmt.Printf("  Reply address: 0x%02X\n", bmsrtu.ResponseAddress(probeSlave))
	fmt.Printf("  SOC: %.3f\n", rec.SOC)
	return nil
}
