package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exportFlags struct {
	output string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the event log and stats to an Excel workbook",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFlags.output, "output", "o", "detection_history.xlsx", "Output file")
}

func runExport(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := a.Audit.ExportXLSX(cmd.Context())
	if err != nil {
		return err
	}
	if err := os.WriteFile(exportFlags.output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", exportFlags.output, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", exportFlags.output)
	return nil
}
