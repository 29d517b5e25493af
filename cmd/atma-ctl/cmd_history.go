package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"atma-secure/internal/models"
)

var historyFlags struct {
	limit  int
	stream bool
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the detection event log",
	RunE:  runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.IntVar(&historyFlags.limit, "limit", 0, "Only print the last N events (0 = all)")
	f.BoolVar(&historyFlags.stream, "stream", false, "Read the forwarded Redis stream instead of the event log")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	var records []models.EventRecord
	if historyFlags.stream {
		if a.Stream == nil {
			return fmt.Errorf("event forwarding is not enabled (REDIS_ENABLED=true)")
		}
		records, err = a.Stream.Recent(cmd.Context())
	} else {
		records, err = a.Audit.History(cmd.Context())
	}
	if err != nil {
		return err
	}
	if historyFlags.limit > 0 && len(records) > historyFlags.limit {
		records = records[len(records)-historyFlags.limit:]
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No events recorded.")
		return nil
	}
	for _, r := range records {
		fmt.Fprintf(out, "%s  %-16s %s\n", r.Timestamp, r.Event, r.Location)
	}
	return nil
}
