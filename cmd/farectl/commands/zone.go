package commands

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/chauffeurline/fareengine/internal/geo"
)

func zoneCmd() *cobra.Command {
	var lat, lng float64

	cmd := &cobra.Command{
		Use:   "zone",
		Short: "Classify a coordinate into a pricing zone",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := geo.Coordinate{Lat: lat, Lng: lng}
			if err := c.Validate(); err != nil {
				return err
			}
			classifier := geo.DefaultClassifier()
			ring := classifier.Classify(c)
			miles := geo.HaversineMiles(classifier.Reference(), c)

			radius := "unbounded"
			if !math.IsInf(ring.RadiusMiles, 1) {
				radius = fmt.Sprintf("%.0f mi", ring.RadiusMiles)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "zone %d (%s, %s): %.2f mi from centre\n", ring.ID, ring.Name, radius, miles)
			return nil
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "longitude")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")
	return cmd
}
