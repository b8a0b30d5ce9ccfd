package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/spindleai/spindle/pkg/chat"
	"github.com/spindleai/spindle/pkg/dal"
	"github.com/spindleai/spindle/pkg/device"
	"github.com/spindleai/spindle/pkg/sweep"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question and exit",
	Long: `Answer one question the same way the chat endpoint does. Questions about
device counts, listings or names sweep the network first.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Sweep every configured range once and store the result",
	Args:  cobra.NoArgs,
	RunE:  runScan,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show stored scans or the records matching a filter",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var historyFilter struct {
	scanID     string
	address    string
	rangeLabel string
	status     string
	since      time.Duration
	limit      int
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	reply := a.orchestrator.Handle(cmd.Context(), strings.Join(args, " "))
	fmt.Fprintln(cmd.OutOrStdout(), reply.Response)
	if reply.Error != "" {
		return fmt.Errorf("answered with error code %s", reply.Error)
	}
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.orchestrator.RunSweep(cmd.Context())
	var storeErr *chat.StorageWriteError
	if err != nil && !errors.As(err, &storeErr) {
		return err
	}
	writeSweepSummary(cmd.OutOrStdout(), cfg.Subnets, result)
	return err
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	f := dal.Filter{
		ScanID:     historyFilter.scanID,
		Address:    historyFilter.address,
		RangeLabel: historyFilter.rangeLabel,
		Status:     historyFilter.status,
		Limit:      historyFilter.limit,
	}
	if historyFilter.since > 0 {
		f.Since = time.Now().Add(-historyFilter.since)
	}

	out := cmd.OutOrStdout()
	if f == (dal.Filter{Limit: f.Limit}) {
		scans, err := store.Scans(cmd.Context(), f.Limit)
		if err != nil {
			return err
		}
		writeScans(out, scans)
		return nil
	}
	records, err := store.Query(cmd.Context(), f)
	if err != nil {
		return err
	}
	writeRecords(out, records)
	return nil
}

// writeSweepSummary prints one line per configured range.
func writeSweepSummary(w io.Writer, ranges []string, result sweep.Result) {
	failed := make(map[string]error, len(result.Failures))
	for _, f := range result.Failures {
		failed[f.Range] = f.Err
	}
	perRange := make(map[string]int, len(ranges))
	for _, r := range result.Records {
		perRange[r.RangeLabel]++
	}

	fmt.Fprintf(w, "scan %s at %s\n", result.ScanID, result.Timestamp.Format(device.TimestampLayout))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, r := range ranges {
		if err, ok := failed[r]; ok {
			fmt.Fprintf(tw, "%s\tfailed\t%v\n", r, err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d hosts\t\n", r, perRange[r])
	}
	tw.Flush()
}

func writeScans(w io.Writer, scans []device.ScanSummary) {
	if len(scans) == 0 {
		fmt.Fprintln(w, "No scans stored.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCAN\tTIME\tHOSTS\tUP")
	for _, s := range scans {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", s.ScanID, s.Timestamp.Local().Format(device.TimestampLayout), s.Records, s.Up)
	}
	tw.Flush()
}

func writeRecords(w io.Writer, records []device.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No matching records.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tIP\tHOSTNAME\tSTATUS\tRANGE")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.Timestamp.Local().Format(device.TimestampLayout), r.Address, r.Hostname, r.Status, r.RangeLabel)
	}
	tw.Flush()
}
