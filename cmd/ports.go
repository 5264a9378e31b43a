package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/ports"
)

var (
	portsData  string
	portsNear  string
	portsTo    string
	portsPlant string
)

var portsCmd = &cobra.Command{
	Use:   "ports <country>",
	Short: "List candidate ports for a country",
	Long: "Lists the ports the selector considers for a country, with coordinates and, given --near, " +
		"the road distance, and the loading port the selector would pick. With --to the full POL/POD " +
		"selection for the lane is shown instead; --plant shows the port a supplier plant ships from.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var near *model.Coordinate
		if portsNear != "" {
			c, err := parseLatLon(portsNear)
			if err != nil {
				return err
			}
			near = &c
		}

		e, err := initEngine(cmd.Context(), engineOptions{DataPath: portsData, Online: "0"})
		if err != nil {
			return err
		}
		defer e.Close()

		cc := e.Locations.CountryCode(model.Location{CountryCode: args[0], CountryName: args[0]})
		printCandidates(os.Stdout, e.Selector.Candidates(cc, near))

		if portsPlant != "" {
			port, ok := e.Tables.PlantPorts.PortForPlant(portsPlant)
			printPlantPort(os.Stdout, portsPlant, port, ok)
		}

		if portsTo != "" {
			dc := e.Locations.CountryCode(model.Location{CountryCode: portsTo, CountryName: portsTo})
			sel := e.Selector.Select(ports.Request{OriginCC: cc, DestCC: dc, Origin: near})
			printSelection(os.Stdout, cc, dc, sel)
			return nil
		}
		pol, why := e.Selector.SelectPOL(cc, args[0], near)
		printPOL(os.Stdout, cc, pol, why)
		return nil
	},
}

func parseLatLon(raw string) (model.Coordinate, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return model.Coordinate{}, eris.Errorf("ports: --near wants lat,lon (got %q)", raw)
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	c := model.Coordinate{Lat: lat, Lon: lon}
	if err1 != nil || err2 != nil || !c.Valid() {
		return model.Coordinate{}, eris.Errorf("ports: invalid coordinate %q", raw)
	}
	return c, nil
}

func printCandidates(w io.Writer, cands []ports.Candidate) {
	if len(cands) == 0 {
		fmt.Fprintln(w, "No candidate ports.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PORT\tLAT\tLON\tSOURCE\tKM")
	for _, c := range cands {
		lat, lon := "-", "-"
		if c.Point.OK {
			lat, lon = fmt.Sprintf("%.4f", c.Point.Lat), fmt.Sprintf("%.4f", c.Point.Lon)
		}
		km := "-"
		if c.DistanceKM != nil {
			km = fmt.Sprintf("%.1f", *c.DistanceKM)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Code, lat, lon, c.Point.Source, km)
	}
	tw.Flush() //nolint:errcheck
}

func printSelection(w io.Writer, oc, dc string, sel ports.Selection) {
	if !sel.Found() {
		fmt.Fprintf(w, "\n%s->%s: no POL/POD candidates\n", oc, dc)
		return
	}
	fmt.Fprintf(w, "\n%s->%s: %s -> %s (%s)\n", oc, dc, sel.POL, sel.POD, sel.Reason)
}

func printPOL(w io.Writer, cc, pol, why string) {
	if pol == "" {
		fmt.Fprintf(w, "\n%s: no loading port\n", cc)
		return
	}
	fmt.Fprintf(w, "\n%s: loads at %s (%s)\n", cc, pol, why)
}

func printPlantPort(w io.Writer, plant, port string, ok bool) {
	if !ok {
		fmt.Fprintf(w, "\nPlant %q has no mapped port\n", plant)
		return
	}
	fmt.Fprintf(w, "\nPlant %q ships from %s\n", plant, port)
}

func init() {
	portsCmd.Flags().StringVar(&portsData, "data", "", "reference workbook")
	portsCmd.Flags().StringVar(&portsNear, "near", "", "origin coordinate lat,lon for distance ranking")
	portsCmd.Flags().StringVar(&portsTo, "to", "", "destination country: also run the POL/POD selection")
	portsCmd.Flags().StringVar(&portsPlant, "plant", "", "supplier plant or factory: show its mapped port")
	_ = portsCmd.MarkFlagRequired("data")
	rootCmd.AddCommand(portsCmd)
}
