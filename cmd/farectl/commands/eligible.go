package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chauffeurline/fareengine/internal/fare"
	"github.com/chauffeurline/fareengine/internal/pricing"
)

func eligibleCmd() *cobra.Command {
	var passengers, small, large int

	cmd := &cobra.Command{
		Use:   "eligible",
		Short: "List vehicles that can carry a party and its luggage",
		RunE: func(cmd *cobra.Command, args []string) error {
			if passengers < 0 || small < 0 || large < 0 {
				return fmt.Errorf("counts must not be negative")
			}
			out := cmd.OutOrStdout()
			vehicles := fare.EligibleVehicles(pricing.DefaultConfig(), passengers, small, large)
			if len(vehicles) == 0 {
				fmt.Fprintln(out, "no vehicle can carry this party")
				return nil
			}
			for _, v := range vehicles {
				fmt.Fprintln(out, v)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&passengers, "pax", 1, "passengers")
	cmd.Flags().IntVar(&small, "small", 0, "small suitcases")
	cmd.Flags().IntVar(&large, "large", 0, "large suitcases")
	return cmd
}
