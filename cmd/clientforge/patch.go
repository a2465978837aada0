package main

import (
	"github.com/spf13/cobra"
)

var patchCmd = &cobra.Command{
	Use:   "patch <dataset>",
	Short: "Apply the dataset's patch selection to its client executable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := cfg.Dataset(args[0])
		if err != nil {
			return err
		}
		return orch.Patch(ds)
	},
}

func init() {
	rootCmd.AddCommand(patchCmd)
}
