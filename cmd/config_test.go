// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleConfig = `
serial:
  port: /dev/ttyUSB1
  baud: 19200
  parity: none
  rts: false
bus:
  slaves: 4
  verify_crc: true
  inter_poll_delay: 250ms
  display_delay: 3s
log_level: debug
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}

	if cfg.Serial.Port != "/dev/ttyUSB1" || cfg.Serial.Baud != 19200 || cfg.Serial.Parity != "none" {
		t.Errorf("serial section = %+v", cfg.Serial)
	}
	if cfg.Serial.RTS == nil || *cfg.Serial.RTS {
		t.Errorf("serial.rts = %v, want explicit false", cfg.Serial.RTS)
	}
	if cfg.Serial.RTSInvert != nil {
		t.Errorf("serial.rts_invert should be unset")
	}
	if cfg.Bus.Slaves != 4 {
		t.Errorf("bus.slaves = %d, want 4", cfg.Bus.Slaves)
	}
	if cfg.Bus.VerifyCRC == nil || !*cfg.Bus.VerifyCRC {
		t.Errorf("bus.verify_crc should be true")
	}
	if cfg.Bus.InterPollDelay != 250*time.Millisecond {
		t.Errorf("bus.inter_poll_delay = %v, want 250ms", cfg.Bus.InterPollDelay)
	}
	if cfg.Bus.DisplayDelay != 3*time.Second {
		t.Errorf("bus.display_delay = %v, want 3s", cfg.Bus.DisplayDelay)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q, want debug", cfg.LogLevel)
	}
}

func TestParseConfig_Empty(t *testing.T) {
	cfg, err := ParseConfig(nil)
	if err != nil {
		t.Fatalf("ParseConfig(empty): %v", err)
	}
	if cfg.Serial.Port != "" || cfg.Bus.Slaves != 0 {
		t.Errorf("empty config should leave everything unset, got %+v", cfg)
	}
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown key", "serial:\n  speed: 9600\n", "failed to parse"},
		{"both transports", "serial:\n  port: /dev/ttyUSB0\nwebsocket:\n  url: ws://bridge/\n", "mutually exclusive"},
		{"bad parity", "serial:\n  parity: sideways\n", "serial.parity"},
		{"too many slaves", "bus:\n  slaves: 12\n", "bus.slaves"},
		{"negative delay", "bus:\n  inter_poll_delay: -5ms\n", "inter_poll_delay"},
		{"delay below floor", "bus:\n  inter_poll_delay: 5ms\n", "at least 50ms"},
		{"negative display delay", "bus:\n  display_delay: -1s\n", "display_delay"},
		{"negative baud", "serial:\n  baud: -1\n", "serial.baud"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "multibat.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Serial.Port != "/dev/ttyUSB1" {
		t.Errorf("port = %q", cfg.Serial.Port)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestConfigApply_FlagsWin(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	if err != nil {
		t.Fatal(err)
	}

	o := defaultOptions()
	o.Port = "/dev/ttyS0"
	o.LogLevel = "error"

	changed := map[string]bool{"port": true, "log-level": true}
	cfg.Apply(&o, func(flag string) bool { return changed[flag] })

	// Explicit flags
	if o.Port != "/dev/ttyS0" {
		t.Errorf("port = %q, flag value should win", o.Port)
	}
	if o.LogLevel != "error" {
		t.Errorf("log level = %q, flag value should win", o.LogLevel)
	}

	// From the file
	if o.Baud != 19200 || o.Parity != "none" {
		t.Errorf("baud/parity = %d/%q, want 19200/none", o.Baud, o.Parity)
	}
	if o.RTS {
		t.Error("rts should be disabled by the file")
	}
	if o.Slaves != 4 || !o.VerifyCRC {
		t.Errorf("slaves/verify = %d/%v, want 4/true", o.Slaves, o.VerifyCRC)
	}
	if o.InterPollDelay != 250*time.Millisecond || o.DisplayDelay != 3*time.Second {
		t.Errorf("delays = %v/%v", o.InterPollDelay, o.DisplayDelay)
	}

	// Unset in the file
	if o.RTSInvert || o.URL != "" || o.NoSSLVerify {
		t.Errorf("values absent from the file must keep their defaults: %+v", o)
	}
}

func TestConfigApply_DisplayDelayFlag(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	if err != nil {
		t.Fatal(err)
	}

	o := defaultOptions()
	o.DisplayDelay = 500 * time.Millisecond
	cfg.Apply(&o, func(flag string) bool { return flag == "display-delay" })
	if o.DisplayDelay != 500*time.Millisecond {
		t.Errorf("display delay = %v, flag value should win", o.DisplayDelay)
	}

	flag := rootCmd.PersistentFlags().Lookup("display-delay")
	if flag == nil {
		t.Fatal("display-delay flag not registered")
	}
	if flag.DefValue != "2s" {
		t.Errorf("display-delay default = %s, want 2s", flag.DefValue)
	}
}

func TestOptions_MasterConfig(t *testing.T) {
	o := defaultOptions()
	o.Slaves = 3
	o.VerifyCRC = true
	o.InterPollDelay = 50 * time.Millisecond

	cfg := o.masterConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Slaves != 3 || !cfg.VerifyCRC || cfg.InterPollDelay != 50*time.Millisecond {
		t.Errorf("masterConfig = %+v", cfg)
	}
	if cfg.DisplayDelay != 2*time.Second {
		t.Errorf("display delay = %v, want 2s", cfg.DisplayDelay)
	}

	sc := o.serialConfig()
	if sc.BaudRate != 9600 || sc.Parity != "even" || sc.DataBits != 8 || sc.StopBits != 1 {
		t.Errorf("serialConfig = %+v, want 9600 8E1", sc)
	}
}

func TestNewLogger(t *testing.T) {
	var sb strings.Builder
	l, err := newLogger("INFO", &sb)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	l.Debug().Msg("hidden")
	l.Info().Int("slave", 3).Msg("shown")

	out := sb.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug line written at info level")
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "slave=3") {
		t.Errorf("info line missing: %q", out)
	}

	if _, err := newLogger("loud", &sb); err == nil {
		t.Error("unknown level should fail")
	}
}
