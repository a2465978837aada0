package main

import (
	"github.com/spf13/cobra"
)

var startupIP string

var startupCmd = &cobra.Command{
	Use:   "startup <dataset>",
	Short: "Kill, patch, install add-ons, and launch clients for a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := cfg.Dataset(args[0])
		if err != nil {
			return err
		}
		count, err := cmd.Flags().GetCount("count")
		if err != nil {
			return err
		}
		return orch.Startup(cmd.Context(), ds, count, startupIP)
	},
}

func init() {
	startupCmd.Flags().CountP("count", "c", "number of client instances to launch (repeatable)")
	startupCmd.Flags().StringVar(&startupIP, "ip", "127.0.0.1", "realm server address written to the realmlist")
	rootCmd.AddCommand(startupCmd)
}
