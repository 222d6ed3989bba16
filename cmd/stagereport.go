package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/dealdesk/crm-report-cli/internal/pipeline"
)

var (
	stageOut      string
	stageWeek     string
	stageDryRun   bool
	stageMaxPages int
)

var stageReportCmd = &cobra.Command{
	Use:   "stage-report",
	Short: "Write the weekly owner-by-stage funnel snapshot",
	Long:  "Searches deals closing before the configured horizon, sums amounts per owner and pipeline stage, and merges the previous week's column into the stage workbook.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if stageOut != "" {
			cfg.Stage.OutputPath = stageOut
		}
		if stageWeek != "" {
			cfg.Stage.WeekOverride = stageWeek
		}
		if cmd.Flags().Changed("max-pages") {
			cfg.HubSpot.MaxPages = stageMaxPages
		}
		if err := cfg.Validate("stage-report"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate store")
			}
		}

		p := pipeline.NewStageReport(cfg.Stage, newHubSpotClient(), st)
		res, err := p.Run(ctx, stageDryRun)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	stageReportCmd.Flags().StringVar(&stageOut, "out", "", "output workbook path (defaults to stage.output_path)")
	stageReportCmd.Flags().StringVar(&stageWeek, "week", "", "week column label to write under instead of the computed one")
	stageReportCmd.Flags().BoolVar(&stageDryRun, "dry-run", false, "fetch and aggregate but skip the workbook write")
	stageReportCmd.Flags().IntVar(&stageMaxPages, "max-pages", 0, "cap pagination per fetch (0 = no cap)")
	rootCmd.AddCommand(stageReportCmd)
}
