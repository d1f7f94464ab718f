// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/RoXxIV/multi-bat/pkg/bus"
	"github.com/RoXxIV/multi-bat/pkg/master"
)

// options holds every persistent flag. A config file fills the fields whose
// flag was not given on the command line.
type options struct {
	// Serial connection
	Port      string
	Baud      int
	Parity    string
	RTS       bool
	RTSInvert bool

	// WebSocket connection
	URL         string
	Username    string
	NoSSLVerify bool

	// Bus
	Slaves         int
	VerifyCRC      bool
	InterPollDelay time.Duration
	DisplayDelay   time.Duration

	LogLevel   string
	ConfigPath string
}

func defaultOptions() options {
	cfg := master.DefaultConfig()
	return options{
		Baud:           bus.DefaultBaudRate,
		Parity:         bus.DefaultParity,
		RTS:            true,
		Slaves:         cfg.Slaves,
		InterPollDelay: cfg.InterPollDelay,
		DisplayDelay:   cfg.DisplayDelay,
		LogLevel:       "warn",
	}
}

var (
	opts   = defaultOptions()
	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "multibat",
	Short: "Multi-battery BMS bus master",
	Long: `Multibat - Master for a chain of BMS slaves on a shared RS485 bus.

Polls battery telemetry (state of charge, pack voltage, current, cell voltages,
temperatures, MOSFET and fault status) from up to 9 slaves, writes single
registers, switches MOSFETs and shows slave identifiers on the pack displays.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 9600] [--parity even]
  WebSocket: --url ws://host/path [--username user]

The RS485 transceiver direction is driven from RTS by default. Use --rts=false
for adapters that switch direction on their own, and --rts-invert for adapters
with an active-low driver enable.

For WebSocket authentication, the password is read from the MULTIBAT_PASSWORD
environment variable, or prompted interactively if not set.

Settings may also be read from a YAML file given with --config. Flags given on
the command line take precedence over the file.`,
	Version:      "1.0.0",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if opts.ConfigPath != "" {
			cfg, err := LoadConfig(opts.ConfigPath)
			if err != nil {
				return err
			}
			cfg.Apply(&opts, cmd.Flags().Changed)
		}

		l, err := newLogger(opts.LogLevel, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()

	// Serial connection flags
	pf.StringVarP(&opts.Port, "port", "p", "", "Serial port device")
	pf.IntVarP(&opts.Baud, "baud", "b", opts.Baud, "Baud rate (serial only)")
	pf.StringVar(&opts.Parity, "parity", opts.Parity, "Parity: none, even, odd (serial only)")
	pf.BoolVar(&opts.RTS, "rts", opts.RTS, "Drive transceiver direction from RTS (serial only)")
	pf.BoolVar(&opts.RTSInvert, "rts-invert", false, "RTS low enables the driver (serial only)")

	// WebSocket connection flags
	pf.StringVarP(&opts.URL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	pf.StringVar(&opts.Username, "username", "", "Username for HTTP Basic auth")
	pf.BoolVar(&opts.NoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Bus flags
	pf.IntVar(&opts.Slaves, "slaves", opts.Slaves, "Number of slaves on the bus (ids 1..N)")
	pf.BoolVar(&opts.VerifyCRC, "verify-crc", false, "Reject replies with a bad CRC")
	pf.DurationVar(&opts.InterPollDelay, "poll-delay", opts.InterPollDelay, "Delay between consecutive slave exchanges (min 50ms)")
	pf.DurationVar(&opts.DisplayDelay, "display-delay", opts.DisplayDelay, "Delay between display identifier commands with --all")

	pf.StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "Log level: debug, info, warn, error")
	pf.StringVar(&opts.ConfigPath, "config", "", "YAML configuration file")
}

// masterConfig builds the engine configuration from the options
func (o options) masterConfig() master.Config {
	cfg := master.DefaultConfig()
	cfg.Slaves = o.Slaves
	cfg.VerifyCRC = o.VerifyCRC
	cfg.InterPollDelay = o.InterPollDelay
	cfg.DisplayDelay = o.DisplayDelay
	return cfg
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
