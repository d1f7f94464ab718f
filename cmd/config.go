// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/RoXxIV/multi-bat/pkg/bmsrtu"
	"github.com/RoXxIV/multi-bat/pkg/bus"
	"github.com/RoXxIV/multi-bat/pkg/master"
)

// Config is the YAML configuration file. Fields left out keep the flag value.
type Config struct {
	Serial    SerialSection    `yaml:"serial"`
	WebSocket WebSocketSection `yaml:"websocket"`
	Bus       BusSection       `yaml:"bus"`
	LogLevel  string           `yaml:"log_level"`
}

type SerialSection struct {
	Port      string `yaml:"port"`
	Baud      int    `yaml:"baud"`
	Parity    string `yaml:"parity"`
	RTS       *bool  `yaml:"rts"`
	RTSInvert *bool  `yaml:"rts_invert"`
}

type WebSocketSection struct {
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	NoSSLVerify *bool  `yaml:"no_ssl_verify"`
}

type BusSection struct {
	Slaves         int           `yaml:"slaves"`
	VerifyCRC      *bool         `yaml:"verify_crc"`
	InterPollDelay time.Duration `yaml:"inter_poll_delay"`
	DisplayDelay   time.Duration `yaml:"display_delay"`
}

// LoadConfig reads and validates a configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates YAML configuration. Unknown keys are
// rejected.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the values present in the file
func (c *Config) Validate() error {
	if c.Serial.Port != "" && c.WebSocket.URL != "" {
		return fmt.Errorf("serial.port and websocket.url are mutually exclusive")
	}
	if c.Serial.Baud < 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud)
	}
	if c.Serial.Parity != "" {
		if _, err := bus.ParseParity(c.Serial.Parity); err != nil {
			return fmt.Errorf("serial.parity: %w", err)
		}
	}
	if c.Bus.Slaves < 0 || c.Bus.Slaves > bmsrtu.MaxSlaves {
		return fmt.Errorf("bus.slaves must be between 1 and %d, got %d", bmsrtu.MaxSlaves, c.Bus.Slaves)
	}
	if c.Bus.InterPollDelay < 0 || (c.Bus.InterPollDelay > 0 && c.Bus.InterPollDelay < master.MinInterPollDelay) {
		return fmt.Errorf("bus.inter_poll_delay must be at least %v", master.MinInterPollDelay)
	}
	if c.Bus.DisplayDelay < 0 {
		return fmt.Errorf("bus.display_delay must not be negative")
	}
	return nil
}

// Apply copies the values present in the file into o, skipping every option
// whose flag changed reports as set on the command line
func (c *Config) Apply(o *options, changed func(flag string) bool) {
	setString := func(flag string, dst *string, v string) {
		if v != "" && !changed(flag) {
			*dst = v
		}
	}
	setInt := func(flag string, dst *int, v int) {
		if v != 0 && !changed(flag) {
			*dst = v
		}
	}
	setBool := func(flag string, dst *bool, v *bool) {
		if v != nil && !changed(flag) {
			*dst = *v
		}
	}
	setDuration := func(flag string, dst *time.Duration, v time.Duration) {
		if v != 0 && !changed(flag) {
			*dst = v
		}
	}

	setString("port", &o.Port, c.Serial.Port)
	setInt("baud", &o.Baud, c.Serial.Baud)
	setString("parity", &o.Parity, c.Serial.Parity)
	setBool("rts", &o.RTS, c.Serial.RTS)
	setBool("rts-invert", &o.RTSInvert, c.Serial.RTSInvert)

	setString("url", &o.URL, c.WebSocket.URL)
	setString("username", &o.Username, c.WebSocket.Username)
	setBool("no-ssl-verify", &o.NoSSLVerify, c.WebSocket.NoSSLVerify)

	setInt("slaves", &o.Slaves, c.Bus.Slaves)
	setBool("verify-crc", &o.VerifyCRC, c.Bus.VerifyCRC)
	setDuration("poll-delay", &o.InterPollDelay, c.Bus.InterPollDelay)
	setDuration("display-delay", &o.DisplayDelay, c.Bus.DisplayDelay)

	setString("log-level", &o.LogLevel, c.LogLevel)
}
