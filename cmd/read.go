// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/RoXxIV/multi-bat/pkg/bmsrtu"
	"github.com/RoXxIV/multi-bat/pkg/master"
)

var (
	readSlave    int
	readCategory string
	readParam    string
	readFormat   string
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read a category or a single parameter from one slave",
	Long: `Read one register category, or a single parameter of the real-time block,
from one slave and print the resulting record.

Categories: realtime, setting1, setting2, setting3
Parameters: ` + paramList() + `

Exit codes:
  0 - Valid reply received
  1 - Timeout, rejected reply or invalid arguments
  2 - Connection error`,
	RunE: runRead,
}

func init() {
	rootCmd.AddCommand(readCmd)
	readCmd.Flags().IntVarP(&readSlave, "slave", "s", 1, "Slave id")
	readCmd.Flags().StringVarP(&readCategory, "category", "c", "", "Register category to read")
	readCmd.Flags().StringVar(&readParam, "param", "", "Single parameter to read")
	readCmd.Flags().StringVarP(&readFormat, "format", "f", FormatText, "Output format: text, json, yaml, cbor")
	readCmd.MarkFlagsMutuallyExclusive("category", "param")
}

func paramList() string {
	names := make([]string, 0, len(bmsrtu.Params()))
	for _, p := range bmsrtu.Params() {
		names = append(names, p.String())
	}
	return strings.Join(names, ", ")
}

// readRequest resolves the category/param flags into the exchange to run
func readRequest(category, param string) (func(m *master.Master, id int) error, error) {
	if param != "" {
		p, err := bmsrtu.ParseParam(param)
		if err != nil {
			return nil, err
		}
		return func(m *master.Master, id int) error { return m.ReadParam(id, p) }, nil
	}

	c := bmsrtu.Realtime
	if category != "" {
		var err error
		if c, err = bmsrtu.ParseCategory(category); err != nil {
			return nil, err
		}
	}
	return func(m *master.Master, id int) error { return m.ReadTelemetry(id, c) }, nil
}

func runRead(cmd *cobra.Command, args []string) error {
	exchange, err := readRequest(readCategory, readParam)
	if err != nil {
		return err
	}
	if err := checkFormat(readFormat); err != nil {
		return err
	}

	m, b, connInfo, err := OpenMaster()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer b.Close()

	fmt.Fprintf(os.Stderr, "Connection: %s\n", connInfo)

	if err := exchange(m, readSlave); err != nil {
		return fmt.Errorf("%s: %w", bmsrtu.ReasonOf(err), err)
	}

	rec, _ := m.Store().Get(readSlave)
	return writeRecords(cmd.OutOrStdout(), readFormat, []bmsrtu.Record{rec}, time.Now())
}
