package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"atma-secure/internal/models"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show event counts",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.Audit.Stats(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Total Alerts:    %d\n", stats.Total)
	fmt.Fprintf(out, "Hand Detections: %d\n", stats.HandDetected)
	fmt.Fprintf(out, "Fear Detections: %d\n", stats.FearDetected)
	fmt.Fprintf(out, "SOS Alerts:      %d\n", stats.SOS)

	kinds := make([]string, 0, len(stats.ByKind))
	for k := range stats.ByKind {
		kinds = append(kinds, string(k))
	}
	if len(kinds) > 0 {
		sort.Strings(kinds)
		fmt.Fprintf(out, "By event:\n")
		for _, k := range kinds {
			fmt.Fprintf(out, "  %s: %d\n", k, stats.ByKind[models.EventKind(k)])
		}
	}
	return nil
}
