package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/orbitscreen/internal/bodies"
	"github.com/star/orbitscreen/internal/epoch"
	"github.com/star/orbitscreen/internal/events"
	"github.com/star/orbitscreen/internal/propagation"
)

var (
	screenCatalog   string
	screenStart     string
	screenEnd       string
	screenThreshold float64
	screenID        int
	screenJSON      bool
)

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Screen a TLE catalog for close approaches",
	Long:  "screen finds every pair in the catalog (or every partner of --id) that comes within --threshold km.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(false)
		if err != nil {
			return err
		}
		catalog, err := loadCatalog(screenCatalog, cfg, logger)
		if err != nil {
			return err
		}

		start, end, err := window(screenStart, screenEnd, cfg.Screening.Horizon())
		if err != nil {
			return err
		}
		threshold := screenThreshold
		if threshold <= 0 {
			threshold = cfg.Screening.ThresholdKm
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		pool := propagation.NewWorkerPool(cfg.Propagation.Workers, logger)
		c, _ := bodies.FromTLECatalog(catalog, pool, logger)
		defer c.Close()

		var report *events.Report
		if screenID == 0 {
			report, err = c.CAReportVsMany(ctx, start, end, threshold)
		} else {
			primary, gerr := c.Get(screenID)
			if gerr != nil {
				return fmt.Errorf("satellite %d: %w", screenID, gerr)
			}
			defer primary.Close()
			report, err = c.CAReportVsOne(ctx, primary, start, end, threshold)
		}
		if err != nil {
			return err
		}

		if screenJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		fmt.Printf("report %s: %d close approaches within %.3f km, %s to %s (%d pairs pruned, %d searched)\n",
			report.ID, len(report.CloseApproaches), threshold, start.ISO(), end.ISO(), report.PairsPruned, report.PairsSearched)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PRIMARY\tSECONDARY\tEPOCH\tDISTANCE_KM")
		for _, ca := range report.CloseApproaches {
			fmt.Fprintf(w, "%d\t%d\t%s\t%.3f\n", ca.PrimaryID, ca.SecondaryID, ca.Epoch.ISO(), ca.Distance)
		}
		return w.Flush()
	},
}

func init() {
	screenCmd.Flags().StringVar(&screenCatalog, "catalog", "", "TLE file to screen")
	screenCmd.Flags().StringVar(&screenStart, "start", "", "window start, ISO 8601 (default: now)")
	screenCmd.Flags().StringVar(&screenEnd, "end", "", "window end, ISO 8601 (default: start + screening horizon)")
	screenCmd.Flags().Float64Var(&screenThreshold, "threshold", 0, "distance threshold in km (default: screening.threshold_km)")
	screenCmd.Flags().IntVar(&screenID, "id", 0, "screen only this satellite against the rest")
	screenCmd.Flags().BoolVar(&screenJSON, "json", false, "print the report as JSON")
}

// window parses ISO start and end flags. An empty start is now and an empty end
// is start plus horizon.
func window(startFlag, endFlag string, horizon time.Duration) (epoch.Epoch, epoch.Epoch, error) {
	start := epoch.FromTime(time.Now().UTC().Truncate(time.Minute))
	if startFlag != "" {
		e, err := epoch.FromISO(startFlag)
		if err != nil {
			return start, start, err
		}
		start = e
	}
	end := start.Add(epoch.FromDuration(horizon))
	if endFlag != "" {
		e, err := epoch.FromISO(endFlag)
		if err != nil {
			return start, end, err
		}
		end = e
	}
	if !end.After(start) {
		return start, end, fmt.Errorf("end %s is not after start %s", end.ISO(), start.ISO())
	}
	return start, end, nil
}
