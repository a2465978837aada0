package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var killCmd = &cobra.Command{
	Use:   "kill <dataset>",
	Short: "Stop all tracked client processes of a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := cfg.Dataset(args[0])
		if err != nil {
			return err
		}
		orch.Registry().Adopt(cmd.Context(), ds)
		count := orch.Registry().Kill(cmd.Context(), ds.Name)
		fmt.Printf("%d client(s) stopped\n", count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(killCmd)
}
