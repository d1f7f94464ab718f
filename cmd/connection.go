// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/RoXxIV/multi-bat/pkg/bus"
	"github.com/RoXxIV/multi-bat/pkg/master"
)

// PasswordEnv names the environment variable holding the websocket password
const PasswordEnv = "MULTIBAT_PASSWORD"

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv(PasswordEnv); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Not a terminal
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// serialConfig builds the serial line settings from the options
func (o options) serialConfig() bus.SerialConfig {
	c := bus.DefaultSerialConfig(o.Port)
	c.BaudRate = o.Baud
	c.Parity = o.Parity
	return c
}

// OpenBus opens either a serial or WebSocket bus based on flags
func OpenBus() (*bus.Bus, string, error) {
	busOpts := []bus.Option{bus.WithLogger(logger.With().Str("component", "bus").Logger())}

	if opts.URL != "" {
		password := ""
		if opts.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		port, err := bus.DialWebSocket(bus.WebSocketConfig{
			URL:           opts.URL,
			Username:      opts.Username,
			Password:      password,
			SkipSSLVerify: opts.NoSSLVerify,
		})
		if err != nil {
			return nil, "", err
		}
		return bus.New(port, busOpts...), fmt.Sprintf("WebSocket: %s", opts.URL), nil
	}

	if opts.Port != "" {
		sc := opts.serialConfig()
		port, err := bus.OpenSerial(sc)
		if err != nil {
			return nil, "", err
		}

		if opts.RTS {
			dir := bus.RTSDirection{Port: port, Invert: opts.RTSInvert}
			if err := dir.Receive(); err != nil {
				port.Close()
				return nil, "", fmt.Errorf("failed to set receive mode: %w", err)
			}
			busOpts = append(busOpts, bus.WithDirection(dir))
		}
		return bus.New(port, busOpts...), fmt.Sprintf("Serial: %s", sc), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}

// OpenMaster opens the bus and starts a master on it
func OpenMaster() (*master.Master, *bus.Bus, string, error) {
	b, info, err := OpenBus()
	if err != nil {
		return nil, nil, "", err
	}

	m, err := master.New(b, opts.masterConfig(), master.WithLogger(logger.With().Str("component", "master").Logger()))
	if err != nil {
		b.Close()
		return nil, nil, "", err
	}
	return m, b, info, nil
}
