// Package devices implements the devices command.
package devices

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/avhost/av/internal/audiocore"
	"github.com/avhost/av/internal/audiocore/backends"
	"github.com/avhost/av/internal/conf"
)

// Command creates the devices command
func Command(settings *conf.Settings) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List audio devices",
		Long:  "List the devices reported by the audio backend with their channel capabilities.",
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := backends.New(settings.Audio.Backend)
			if err != nil {
				return err
			}
			return List(cmd.OutOrStdout(), audiocore.NewCatalog(backend, 0), asJSON)
		},
	}

	cmd.Flags().StringVar(&settings.Audio.Backend, "backend", viper.GetString("audio.backend"), "Audio backend (auto, malgo, virtual)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print devices as JSON")
	if err := viper.BindPFlag("audio.backend", cmd.Flags().Lookup("backend")); err != nil {
		fmt.Printf("error binding flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// List writes the catalog's devices to w
func List(w io.Writer, catalog *audiocore.Catalog, asJSON bool) error {
	devices, err := catalog.Devices()
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(devices)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tNAME\tIN\tOUT\tDUPLEX\tDEFAULT")
	for _, d := range devices {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%s\n",
			d.Index, d.Name, d.MaxInputChannels, d.MaxOutputChannels, d.MaxDuplexChannels, defaults(d))
	}
	return tw.Flush()
}

func defaults(d audiocore.DeviceInfo) string {
	switch {
	case d.IsDefaultInput && d.IsDefaultOutput:
		return "in,out"
	case d.IsDefaultInput:
		return "in"
	case d.IsDefaultOutput:
		return "out"
	default:
		return "-"
	}
}
