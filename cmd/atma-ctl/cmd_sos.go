package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"atma-secure/internal/models"
)

var sosFlags struct {
	message string
	lat     float64
	lon     float64
	photo   string
}

var sosCmd = &cobra.Command{
	Use:   "sos",
	Short: "Send a manual SOS to every configured contact",
	RunE:  runSOS,
}

func init() {
	f := sosCmd.Flags()
	f.StringVar(&sosFlags.message, "message", "", "Alert message (default from config)")
	f.Float64Var(&sosFlags.lat, "lat", 0, "Latitude")
	f.Float64Var(&sosFlags.lon, "lon", 0, "Longitude")
	f.StringVar(&sosFlags.photo, "photo", "", "JPEG frame to save with the alert")
}

func runSOS(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	var frame []byte
	if sosFlags.photo != "" {
		frame, err = os.ReadFile(sosFlags.photo)
		if err != nil {
			return fmt.Errorf("read photo: %w", err)
		}
	}

	var lat, lon *float64
	if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon") {
		lat, lon = &sosFlags.lat, &sosFlags.lon
	}
	actx := a.Controller.AlertContextFor(models.FormatLocationURL(lat, lon), sosFlags.message)

	res, err := a.Controller.SOSCycle(cmd.Context(), frame, actx)
	out := cmd.OutOrStdout()
	if res != nil {
		fmt.Fprintf(out, "Cycle:     %s\n", res.CycleID)
		fmt.Fprintf(out, "Location:  %s\n", actx.Location())
		fmt.Fprintf(out, "Sound:     %s\n", status(res.SoundPlayed, res.SoundError))
		if res.PhotoPath != "" || res.PhotoError != "" {
			fmt.Fprintf(out, "Photo:     %s\n", status(res.PhotoPath != "", res.PhotoError))
		}
		fmt.Fprintf(out, "Delivered: %d/%d\n", models.Delivered(res.Notifications), len(res.Notifications))
		for _, o := range res.Notifications {
			if o.Success {
				fmt.Fprintf(out, "  %s ok %s\n", o.Recipient, o.Reference)
			} else {
				fmt.Fprintf(out, "  %s failed: %s\n", o.Recipient, o.Error)
			}
		}
	}
	return err
}

func status(ok bool, errMsg string) string {
	if ok {
		return "ok"
	}
	if errMsg == "" {
		return "skipped"
	}
	return "failed: " + errMsg
}
