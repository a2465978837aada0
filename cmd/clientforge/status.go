package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mittelgard/clientforge/internal/platform"
)

var statusCmd = &cobra.Command{
	Use:   "status [dataset]",
	Short: "Show host platform and tracked client processes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := platform.NewDetector().Detect(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("host: %s/%s", info.OS, info.Arch)
		if info.Platform != "" {
			fmt.Printf(" (%s %s)", info.Platform, info.Version)
		}
		fmt.Println()
		if info.Native() {
			fmt.Println("launch: native")
		} else {
			fmt.Printf("launch: wrapped (%s, available: %v)\n", cfg.Wine, platform.LauncherAvailable(cfg.Wine))
		}

		names := make([]string, 0, len(cfg.Datasets))
		if len(args) == 1 {
			ds, err := cfg.Dataset(args[0])
			if err != nil {
				return err
			}
			names = append(names, ds.Name)
		} else {
			for name := range cfg.Datasets {
				names = append(names, name)
			}
		}

		registry := orch.Registry()
		for _, name := range names {
			fmt.Printf("%s: %d tracked, %d alive\n",
				name, registry.Count(name), registry.Alive(cmd.Context(), name))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
