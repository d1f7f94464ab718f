// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/RoXxIV/multi-bat/pkg/bmsrtu"
)

// Output formats of the record dump
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCBOR = "cbor"
)

func checkFormat(format string) error {
	switch format {
	case FormatText, FormatJSON, FormatYAML, FormatCBOR:
		return nil
	default:
		return fmt.Errorf("unknown format %q (use text, json, yaml or cbor)", format)
	}
}

// writeRecords writes a snapshot of records taken at now in the given format.
// CBOR output is the versioned binary snapshot; the other formats are
// line oriented so continuous polling can be piped.
func writeRecords(w io.Writer, format string, records []bmsrtu.Record, now time.Time) error {
	snap := bmsrtu.Snapshot{Taken: now, Records: records}

	switch format {
	case FormatText:
		var s strings.Builder
		for _, r := range records {
			s.WriteString(bmsrtu.FormatRecord(r, now))
			s.WriteString("\n")
		}
		_, err := io.WriteString(w, s.String())
		return err

	case FormatJSON:
		enc := json.NewEncoder(w)
		return enc.Encode(snap)

	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return err
		}
		return enc.Close()

	case FormatCBOR:
		data, err := bmsrtu.EncodeSnapshot(snap)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	return checkFormat(format)
}
