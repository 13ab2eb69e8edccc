package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smazurov/viewfinder/internal/devices"
	"github.com/smazurov/viewfinder/internal/logging"
)

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List capture devices and sensor sub-devices",
		Long: `Enumerates V4L2 capture devices with their stable identifiers and
supported formats, plus the sensor sub-device nodes that accept focus and
test pattern controls.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Keep enumeration chatter out of the listing.
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			devs, err := devices.List()
			if err != nil {
				return fmt.Errorf("enumerate devices: %w", err)
			}
			subs, err := devices.ListSubdevices()
			if err != nil {
				return fmt.Errorf("enumerate sub-devices: %w", err)
			}

			if asJSON {
				out := struct {
					Devices    []devices.Summary   `json:"devices"`
					Subdevices []devices.Subdevice `json:"subdevices"`
				}{devs, subs}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			printListing(devs, subs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the listing as JSON")
	return cmd
}

func printListing(devs []devices.Summary, subs []devices.Subdevice) {
	if len(devs) == 0 {
		fmt.Println("no capture devices found")
	}
	for _, d := range devs {
		marker := ""
		if d.MPlane {
			marker = "  mplane"
		}
		fmt.Printf("%s  %s (%s)%s\n", d.DevicePath, d.DeviceName, d.Driver, marker)
		if d.DeviceID != "" {
			fmt.Printf("    id:      %s\n", d.DeviceID)
		}
		if len(d.Formats) > 0 {
			fmt.Printf("    formats: %s\n", strings.Join(d.Formats, " "))
		}
	}
	if len(subs) > 0 {
		fmt.Println()
		fmt.Println("sub-devices:")
		for _, s := range subs {
			fmt.Printf("  %s  %s\n", s.DevicePath, s.Name)
		}
	}
}
