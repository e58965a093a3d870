package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/star/orbitscreen/internal/bodies"
	"github.com/star/orbitscreen/internal/epoch"
	"github.com/star/orbitscreen/internal/estimation"
	"github.com/star/orbitscreen/internal/passes"
	"github.com/star/orbitscreen/internal/propagation"
)

var (
	odCatalog      string
	odID           int
	odObservatory  string
	odObsCount     int
	odStart        string
	odHours        float64
	odCadence      float64
	odAngularNoise float64
	odRangeNoise   float64
	odPerturb      float64
	odDrag         bool
)

var odCmd = &cobra.Command{
	Use:   "od",
	Short: "Fit an orbit to simulated observations",
	Long: "od simulates observations of --id from a ground site during its visible passes, " +
		"perturbs the catalog elements and recovers them with batch least squares.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(false)
		if err != nil {
			return err
		}
		catalog, err := loadCatalog(odCatalog, cfg, logger)
		if err != nil {
			return err
		}
		entry, ok := catalog.Get(odID)
		if !ok {
			return fmt.Errorf("satellite %d: %w", odID, bodies.ErrNotFound)
		}
		site, err := parseSite(odObservatory)
		if err != nil {
			return err
		}
		sensor := bodies.NewSensor("sim", odAngularNoise)
		if odRangeNoise > 0 {
			sensor = sensor.WithRangeNoise(odRangeNoise)
		}
		site.AddSensor(sensor)

		truth, err := bodies.FromTLE(entry)
		if err != nil {
			return err
		}
		defer truth.Close()

		start := entry.Epoch
		if odStart != "" {
			if start, err = epoch.FromISO(odStart); err != nil {
				return err
			}
		}

		results := passes.Predict(cmd.Context(), propagation.NewWorkerPool(cfg.Propagation.Workers, logger), passes.Request{
			Site:         site,
			Satellites:   []*bodies.Satellite{truth},
			Start:        start,
			Horizon:      epoch.FromHours(odHours),
			MinElevation: 10,
		})
		if results[0].Error != "" {
			return fmt.Errorf("predicting passes: %s", results[0].Error)
		}
		obs, err := passes.Simulate(site, sensor, truth, results[0].Windows, epoch.FromSeconds(odCadence))
		if err != nil {
			return err
		}
		if len(obs) > odObsCount {
			obs = obs[:odObsCount]
		}
		if len(obs) == 0 {
			return fmt.Errorf("satellite %d is not visible from %s in %.0f hours", odID, odObservatory, odHours)
		}
		fmt.Printf("simulated %d observations over %d passes\n", len(obs), len(results[0].Windows))

		// Start the fit from the catalog elements shifted along track.
		eq, err := truth.Equinoctial()
		if err != nil {
			return err
		}
		eq.MeanLongitude += odPerturb
		apriori, err := truth.WithElements(eq, truth.Forces())
		if err != nil {
			return err
		}
		defer apriori.Close()

		bls, err := estimation.NewBatchLeastSquares(obs, apriori, logger)
		if err != nil {
			return err
		}
		defer bls.Close()
		if err := bls.SetEstimateDrag(odDrag); err != nil {
			return err
		}
		if err := bls.Solve(cmd.Context()); err != nil {
			return err
		}

		rms, err := bls.RMS()
		if err != nil {
			return err
		}
		est, err := bls.Estimate()
		if err != nil {
			return err
		}
		defer est.Close()

		last := obs[len(obs)-1].Epoch
		want, err := truth.StateAt(last)
		if err != nil {
			return err
		}
		got, err := est.StateAt(last)
		if err != nil {
			return err
		}

		fmt.Printf("run %s: %d iterations, converged %v, rms %.6f\n", bls.RunID(), bls.Iterations(), bls.Converged(), rms)
		if wrms, ok := bls.WeightedRMS(); ok {
			fmt.Printf("weighted rms %.4f\n", wrms)
		}
		fmt.Printf("position error at %s: %.4f km\n", last.ISO(), got.Position.Sub(want.Position).Magnitude())
		if cov, err := bls.Covariance(); err == nil {
			fmt.Printf("%s sigmas: %v\n", cov.Type, cov.Sigmas())
		}
		return nil
	},
}

func init() {
	odCmd.Flags().StringVar(&odCatalog, "catalog", "", "TLE file holding the satellite")
	odCmd.Flags().IntVar(&odID, "id", 0, "satellite to observe")
	odCmd.Flags().StringVar(&odObservatory, "observatory", "", "site as lat,lon,alt (degrees, degrees, km)")
	odCmd.Flags().IntVar(&odObsCount, "obs-count", 60, "maximum number of observations")
	odCmd.Flags().StringVar(&odStart, "start", "", "simulation start, ISO 8601 (default: element epoch)")
	odCmd.Flags().Float64Var(&odHours, "hours", 24, "hours to search for passes")
	odCmd.Flags().Float64Var(&odCadence, "cadence", 30, "seconds between observations in a pass")
	odCmd.Flags().Float64Var(&odAngularNoise, "angular-noise", 0.001, "sensor angular noise in degrees")
	odCmd.Flags().Float64Var(&odRangeNoise, "range-noise", 0.01, "sensor range noise in km, 0 for angles only")
	odCmd.Flags().Float64Var(&odPerturb, "perturb", 0.01, "a priori mean longitude offset in degrees")
	odCmd.Flags().BoolVar(&odDrag, "drag", false, "estimate the drag term")
	odCmd.MarkFlagRequired("id")
	odCmd.MarkFlagRequired("observatory")
}

// parseSite reads "lat,lon,alt".
func parseSite(s string) (*bodies.Observatory, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("observatory %q: want lat,lon,alt", s)
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("observatory %q: %w", s, err)
		}
		v[i] = f
	}
	if v[0] < -90 || v[0] > 90 || v[1] < -180 || v[1] > 180 {
		return nil, fmt.Errorf("observatory %q: latitude or longitude out of range", s)
	}
	return bodies.NewObservatory("site", v[0], v[1], v[2]), nil
}
