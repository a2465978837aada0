package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mittelgard/clientforge/internal/overlay"
)

var slotsCmd = &cobra.Command{
	Use:   "slots <dataset>",
	Short: "List free overlay archive slot letters for a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := cfg.Dataset(args[0])
		if err != nil {
			return err
		}
		free, err := overlay.FreeSlots(ds)
		if err != nil {
			return err
		}
		if len(free) == 0 {
			fmt.Println("no free slots")
			return nil
		}
		for _, slot := range free {
			fmt.Printf("%c  %s\n", slot, overlay.ArchivePath(ds.DataDir(), ds.Locale, ds.LocaleScoped, slot))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(slotsCmd)
}
