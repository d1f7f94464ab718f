// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RoXxIV/multi-bat/pkg/bmsrtu"
	"github.com/RoXxIV/multi-bat/pkg/bus"
)

var (
	sniffGap time.Duration
	sniffRaw bool
)

var sniffCmd = &cobra.Command{
	Use:   "sniff",
	Short: "Display bus traffic in human-readable format",
	Long: `Listen on the bus without transmitting and display every frame seen.

Bytes are grouped into frames on silence: a gap longer than --gap ends the
current frame. Each frame is printed as a hex dump followed by its decoded
form (request, display command or slave response) and CRC state.

Useful to watch another master, or to check slave replies while the
transceiver is held in receive mode.`,
	RunE: runSniff,
}

func init() {
	rootCmd.AddCommand(sniffCmd)
	sniffCmd.Flags().DurationVar(&sniffGap, "gap", 20*time.Millisecond, "Silence that ends a frame")
	sniffCmd.Flags().BoolVar(&sniffRaw, "raw", false, "Print hex dumps only")
}

// sniffStats counts what the sniffer saw
type sniffStats struct {
	Frames    uint64
	BadCRC    uint64
	Fragments uint64
}

func (s sniffStats) String() string {
	return fmt.Sprintf("%d frames, %d with bad CRC, %d fragments", s.Frames, s.BadCRC, s.Fragments)
}

// printFrame writes one captured frame and updates the counters
func printFrame(w io.Writer, at time.Time, frame []byte, raw bool, stats *sniffStats) {
	stats.Frames++
	switch {
	case len(frame) < bmsrtu.ResponseHeader+bmsrtu.CRCSize:
		stats.Fragments++
	case !bmsrtu.CheckCRC(frame):
		stats.BadCRC++
	}

	fmt.Fprintf(w, "[%s] %s\n", at.Format("15:04:05.000"), bmsrtu.FormatFrame("RX", frame))
	if !raw {
		fmt.Fprintf(w, "             %s\n", bmsrtu.DescribeFrame(frame))
	}
}

// sniff collects frames from b until ctx ends or the bus fails
func sniff(ctx context.Context, b *bus.Bus, w io.Writer, gap time.Duration, raw bool) (sniffStats, error) {
	var stats sniffStats
	window := bus.Window{Initial: 250 * time.Millisecond, PerByte: gap}

	for ctx.Err() == nil {
		frame, err := b.Collect(window, bmsrtu.ReceiveBufferSize)
		if len(frame) > 0 {
			printFrame(w, b.Clock().Now(), frame, raw, &stats)
		}
		if err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func runSniff(cmd *cobra.Command, args []string) error {
	if sniffGap <= 0 {
		return fmt.Errorf("gap must be positive")
	}

	b, connInfo, err := OpenBus()
	if err != nil {
		return err
	}
	defer b.Close()

	fmt.Printf("Multibat - Bus Sniffer\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := sniff(ctx, b, cmd.OutOrStdout(), sniffGap, sniffRaw)
	fmt.Fprintf(os.Stderr, "\n%s\n", stats)
	if err != nil {
		if errors.Is(err, bus.ErrConnectionClosed) {
			fmt.Fprintln(os.Stderr, "Connection closed")
			return nil
		}
		return err
	}
	return nil
}
