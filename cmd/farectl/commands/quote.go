package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/chauffeurline/fareengine/internal/app"
	"github.com/chauffeurline/fareengine/internal/distance"
	"github.com/chauffeurline/fareengine/internal/fare"
	"github.com/chauffeurline/fareengine/internal/geo"
	"github.com/chauffeurline/fareengine/internal/pricing"
)

func quoteCmd(logger func() zerolog.Logger) *cobra.Command {
	var (
		vehicle    string
		service    string
		pickup     string
		stops      []string
		passengers int
		small      int
		large      int
		waiting    int
		at         string
		asJSON     bool
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Compute a fare for a journey",
		Long: "Compute a fare using the configured distance providers and pricing table.\n" +
			"Waypoints are an address, \"lat,lng\", or \"address@lat,lng\".",
		Example: `  farectl quote --pickup "Heathrow Terminal 5@51.4723,-0.4880" --stop "The Savoy, WC2R" --vehicle executive`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := fare.ParseServiceType(service)
			if err != nil {
				return err
			}
			pu, err := parseWaypoint(pickup)
			if err != nil {
				return fmt.Errorf("--pickup: %w", err)
			}
			req := fare.Request{
				Selection: fare.Selection{
					Vehicle:        pricing.VehicleCode(strings.ToLower(vehicle)),
					Passengers:     passengers,
					SmallSuitcases: small,
					LargeSuitcases: large,
				},
				ServiceType:    st,
				Pickup:         pu,
				WaitingMinutes: waiting,
			}
			for i, s := range stops {
				wp, err := parseWaypoint(s)
				if err != nil {
					return fmt.Errorf("--stop %d: %w", i+1, err)
				}
				req.Stops = append(req.Stops, wp)
			}
			if at != "" {
				req.Departure, err = time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			components, err := app.Build(ctx, app.ConfigFromEnv(), app.Options{Logger: logger()})
			if err != nil {
				return err
			}
			defer func() { _ = components.Close() }()

			quote, err := components.Quoter.Quote(ctx, req)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(quote)
			}
			printQuote(cmd.OutOrStdout(), quote)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&vehicle, "vehicle", string(pricing.VehicleExecutive), "vehicle class")
	f.StringVar(&service, "service", string(fare.ServiceTransfer), "service type: transfer, wait-and-return, as-directed")
	f.StringVar(&pickup, "pickup", "", "pickup waypoint")
	f.StringArrayVar(&stops, "stop", nil, "drop-off waypoint (repeatable, in order)")
	f.IntVar(&passengers, "pax", 1, "passengers")
	f.IntVar(&small, "small", 0, "small suitcases")
	f.IntVar(&large, "large", 0, "large suitcases")
	f.IntVar(&waiting, "wait", 0, "waiting minutes (wait and return)")
	f.StringVar(&at, "at", "", "departure time, RFC 3339")
	f.BoolVar(&asJSON, "json", false, "print the full quote as JSON")
	f.DurationVar(&timeout, "timeout", 30*time.Second, "overall timeout")
	_ = cmd.MarkFlagRequired("pickup")

	return cmd
}

// parseWaypoint accepts "address", "lat,lng" or "address@lat,lng".
func parseWaypoint(s string) (distance.Waypoint, error) {
	s = strings.TrimSpace(s)
	label, coords := s, ""
	if i := strings.LastIndex(s, "@"); i >= 0 {
		label, coords = strings.TrimSpace(s[:i]), s[i+1:]
	} else if c, ok := parseCoordinate(s); ok {
		return distance.Waypoint{Label: s, Coordinate: &c}, nil
	}

	wp := distance.Waypoint{Label: label}
	if coords != "" {
		c, ok := parseCoordinate(coords)
		if !ok {
			return distance.Waypoint{}, fmt.Errorf("invalid coordinate %q", coords)
		}
		wp.Coordinate = &c
	}
	if wp.Empty() {
		return distance.Waypoint{}, fmt.Errorf("empty waypoint")
	}
	return wp, nil
}

func parseCoordinate(s string) (geo.Coordinate, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geo.Coordinate{}, false
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return geo.Coordinate{}, false
	}
	c := geo.Coordinate{Lat: lat, Lng: lng}
	if c.Validate() != nil {
		return geo.Coordinate{}, false
	}
	return c, true
}

func printQuote(w io.Writer, q *fare.Quote) {
	b := q.Breakdown
	fmt.Fprintf(w, "Quote %s\n", q.ID)
	fmt.Fprintf(w, "  %s, %s, %d passenger(s)\n", b.Vehicle, b.ServiceType, q.Selection.Passengers)
	for _, c := range q.Corrections {
		fmt.Fprintf(w, "  corrected: %s\n", c.Message)
	}
	for _, l := range q.Legs {
		fmt.Fprintf(w, "  leg %-30s -> %-30s %7.2f mi  zone %s\n", l.OriginLabel, l.DestinationLabel, l.Miles, zoneLabel(l.AppliedZone))
	}
	for _, s := range q.Skipped {
		fmt.Fprintf(w, "  skipped %s -> %s: %s\n", s.OriginLabel, s.DestinationLabel, s.Reason)
	}
	fmt.Fprintf(w, "  base         %s (%s)\n", fare.FormatMoney(b.Base), b.BaseKind)
	if !b.MileageFare.IsZero() {
		fmt.Fprintf(w, "  mileage      %s (%s)\n", fare.FormatMoney(b.MileageFare), b.MileageRule)
	}
	if !b.WaitingCost.IsZero() {
		fmt.Fprintf(w, "  waiting      %s\n", fare.FormatMoney(b.WaitingCost))
	}
	for _, e := range b.Extras {
		fmt.Fprintf(w, "  %s\n", e)
	}
	fmt.Fprintf(w, "  total        %s\n", q.Display)
	if q.Degraded {
		fmt.Fprintf(w, "  degraded: %s\n", strings.Join(q.Notices, ", "))
	}
}

func zoneLabel(z geo.ZoneID) string {
	if !z.Known() {
		return "-"
	}
	return strconv.Itoa(int(z))
}
