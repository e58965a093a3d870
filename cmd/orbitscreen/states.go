package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/orbitscreen/internal/bodies"
	"github.com/star/orbitscreen/internal/elements"
	"github.com/star/orbitscreen/internal/epoch"
	"github.com/star/orbitscreen/internal/propagation"
	"github.com/star/orbitscreen/internal/transform"
)

var (
	statesCatalog string
	statesEpoch   string
	statesFrame   string
	statesJSON    bool
)

type stateRow struct {
	SatelliteID int        `json:"satellite_id"`
	Epoch       string     `json:"epoch"`
	Frame       string     `json:"frame"`
	Position    [3]float64 `json:"position_km"`
	Velocity    [3]float64 `json:"velocity_kms"`
}

var statesCmd = &cobra.Command{
	Use:   "states",
	Short: "Propagate every catalog member to one epoch",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(false)
		if err != nil {
			return err
		}
		catalog, err := loadCatalog(statesCatalog, cfg, logger)
		if err != nil {
			return err
		}

		at := epoch.FromTime(time.Now().UTC())
		if statesEpoch != "" {
			if at, err = epoch.FromISO(statesEpoch); err != nil {
				return err
			}
		}
		frame, err := elements.ParseReferenceFrame(statesFrame)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		c, _ := bodies.FromTLECatalog(catalog, propagation.NewWorkerPool(cfg.Propagation.Workers, logger), logger)
		defer c.Close()

		var rows []stateRow
		var failed int
		for id, st := range c.StatesAt(ctx, at) {
			if st == nil {
				failed++
				continue
			}
			out, err := transform.ConvertFrame(*st, frame)
			if err != nil {
				return err
			}
			rows = append(rows, stateRow{
				SatelliteID: id,
				Epoch:       out.Epoch.ISO(),
				Frame:       out.Frame.String(),
				Position:    [3]float64{out.Position.X, out.Position.Y, out.Position.Z},
				Velocity:    [3]float64{out.Velocity.X, out.Velocity.Y, out.Velocity.Z},
			})
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].SatelliteID < rows[j].SatelliteID })
		if failed > 0 {
			logger.Warn("some satellites failed to propagate", "failed", failed, "epoch", at.ISO())
		}

		if statesJSON {
			return json.NewEncoder(os.Stdout).Encode(rows)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "ID\tX_KM\tY_KM\tZ_KM\tVX_KMS\tVY_KMS\tVZ_KMS\t")
		for _, r := range rows {
			fmt.Fprintf(w, "%d\t%.3f\t%.3f\t%.3f\t%.6f\t%.6f\t%.6f\t\n", r.SatelliteID,
				r.Position[0], r.Position[1], r.Position[2], r.Velocity[0], r.Velocity[1], r.Velocity[2])
		}
		return w.Flush()
	},
}

func init() {
	statesCmd.Flags().StringVar(&statesCatalog, "catalog", "", "TLE file to propagate")
	statesCmd.Flags().StringVar(&statesEpoch, "epoch", "", "target epoch, ISO 8601 (default: now)")
	statesCmd.Flags().StringVar(&statesFrame, "frame", "TEME", "output frame: TEME, J2000, ECR or EFG")
	statesCmd.Flags().BoolVar(&statesJSON, "json", false, "print JSON instead of a table")
}
