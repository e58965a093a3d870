package main

import (
	"fmt"
	"math"
	"os"
	"text/tabwriter"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/spf13/cobra"

	"github.com/star/orbitscreen/internal/bodies"
	"github.com/star/orbitscreen/internal/epoch"
	"github.com/star/orbitscreen/internal/tle"
	"github.com/star/orbitscreen/internal/transform"
)

// Reference ISS element set used when no TLE is given.
const (
	diagLine1 = "1 25544U 98067A   25045.18032407  .00016717  00000+0  30099-3 0  9996"
	diagLine2 = "2 25544  51.6412 193.5765 0003457 126.2851 233.8519 15.49874301495057"
)

var (
	diagLine1Flag string
	diagLine2Flag string
	diagMinutes   int
	diagStep      int
)

var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: "Print an SGP4 sanity check for a TLE",
	Long: "diag propagates one element set through the service's engine and directly through " +
		"go-satellite at the same instants and prints both with their difference.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if diagStep < 1 {
			return fmt.Errorf("--step must be at least 1 minute")
		}
		cfg, _, err := setup(false)
		if err != nil {
			return err
		}

		entry, err := tle.ParseLines("", diagLine1Flag, diagLine2Flag)
		if err != nil {
			return err
		}
		sat, err := bodies.FromTLE(entry)
		if err != nil {
			return err
		}
		defer sat.Close()

		gravity := satellite.GravityWGS72
		if cfg.Propagation.Gravity == "wgs84" {
			gravity = satellite.GravityWGS84
		}
		ref := satellite.TLEToSat(entry.Line1, entry.Line2, gravity)

		fmt.Printf("satellite %d epoch %s gravity %s\n", entry.SatelliteID, entry.Epoch.ISO(), cfg.Propagation.Gravity)
		if apo, ok := sat.Apoapsis(); ok {
			peri, _ := sat.Periapsis()
			fmt.Printf("apoapsis %.3f km, periapsis %.3f km\n", apo, peri)
		}

		// go-satellite takes whole seconds, so sample on whole-second instants.
		t0 := entry.Epoch.Time().Truncate(time.Second).Add(time.Second)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "MINUTES\tX_KM\tY_KM\tZ_KM\tLAT\tLON\tALT_KM\tDIFF_M\t")
		for m := 0; m <= diagMinutes; m += diagStep {
			t := t0.Add(time.Duration(m) * time.Minute)
			st, err := sat.StateAt(epoch.FromTime(t))
			if err != nil {
				fmt.Fprintf(w, "%d\terror: %v\t\t\t\t\t\t\t\n", m, err)
				continue
			}
			pos, _ := satellite.Propagate(ref, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
			dx, dy, dz := st.Position.X-pos.X, st.Position.Y-pos.Y, st.Position.Z-pos.Z
			geo := transform.EFGToGeodetic(transform.TEMEToEFG(st).Position)

			fmt.Fprintf(w, "%d\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\t\n", m,
				st.Position.X, st.Position.Y, st.Position.Z,
				geo.LatDeg, geo.LonDeg, geo.AltKm,
				1000*math.Sqrt(dx*dx+dy*dy+dz*dz))
		}
		return w.Flush()
	},
}

func init() {
	diagCmd.Flags().StringVar(&diagLine1Flag, "line1", diagLine1, "TLE line 1")
	diagCmd.Flags().StringVar(&diagLine2Flag, "line2", diagLine2, "TLE line 2")
	diagCmd.Flags().IntVar(&diagMinutes, "minutes", 1440, "minutes after epoch to propagate")
	diagCmd.Flags().IntVar(&diagStep, "step", 360, "minutes between samples")
}
