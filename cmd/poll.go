// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/RoXxIV/multi-bat/pkg/bmsrtu"
	"github.com/RoXxIV/multi-bat/pkg/master"
)

var (
	pollCategory    string
	pollInterval    time.Duration
	pollFormat      string
	pollMetricsAddr string
	pollStats       bool
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Read a category from every slave",
	Long: `Read one register category from slaves 1..N in order and print the records.

Slaves that do not answer, or answer with a wrong address or function code,
are reported and skipped; their previous data is kept. With --interval the
cycle repeats until interrupted.

Categories: realtime, setting1, setting2, setting3

Output formats:
  text - human readable blocks (default)
  json - one snapshot object per cycle
  yaml - one snapshot document per cycle
  cbor - versioned binary snapshot per cycle

With --metrics-addr the battery data and exchange statistics are served for
Prometheus at /metrics while polling.

Exit codes:
  0 - At least one slave answered in the last cycle
  1 - No slave answered, or invalid arguments
  2 - Connection error`,
	RunE: runPoll,
}

func init() {
	rootCmd.AddCommand(pollCmd)
	pollCmd.Flags().StringVarP(&pollCategory, "category", "c", bmsrtu.Realtime.String(), "Register category to read")
	pollCmd.Flags().DurationVarP(&pollInterval, "interval", "i", 0, "Repeat the cycle at this interval (0 = once)")
	pollCmd.Flags().StringVarP(&pollFormat, "format", "f", FormatText, "Output format: text, json, yaml, cbor")
	pollCmd.Flags().StringVar(&pollMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9108)")
	pollCmd.Flags().BoolVar(&pollStats, "stats", false, "Print exchange statistics on exit")
}

func runPoll(cmd *cobra.Command, args []string) error {
	category, err := bmsrtu.ParseCategory(pollCategory)
	if err != nil {
		return err
	}
	if err := checkFormat(pollFormat); err != nil {
		return err
	}
	if pollInterval < 0 {
		return fmt.Errorf("interval must not be negative")
	}

	m, b, connInfo, err := OpenMaster()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer b.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if pollMetricsAddr != "" {
		srv := newMetricsServer(pollMetricsAddr, m)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Str("addr", pollMetricsAddr).Msg("metrics server failed")
			}
		}()
		defer srv.Close()
		logger.Info().Str("addr", pollMetricsAddr).Msg("serving metrics")
	}

	fmt.Fprintf(os.Stderr, "Connection: %s\n", connInfo)

	out := cmd.OutOrStdout()
	var summary master.PollSummary
	for {
		summary = m.ReadAll(category)
		fmt.Fprintln(os.Stderr, summary)
		for _, r := range summary.Failed() {
			fmt.Fprintf(os.Stderr, "  slave %d: %s (%v)\n", r.ID, bmsrtu.ReasonOf(r.Err), r.Err)
		}

		if err := writeRecords(out, pollFormat, m.Store().Snapshot(), time.Now()); err != nil {
			return err
		}

		if pollInterval == 0 || !wait(ctx, pollInterval) {
			break
		}
	}

	if pollStats {
		fmt.Fprint(os.Stderr, m.Stats())
	}
	if summary.Succeeded() == 0 {
		return fmt.Errorf("no slave answered")
	}
	return nil
}

// wait sleeps for d, returning false if ctx ends first
func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// newMetricsServer serves the collector of m on /metrics
func newMetricsServer(addr string, m *master.Master) *http.Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		master.NewCollector(m),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
