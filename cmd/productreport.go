package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/dealdesk/crm-report-cli/internal/pipeline"
)

var (
	productOut      string
	productWeek     string
	productDryRun   bool
	productMaxPages int
	productNames    []string
	productPropName string
	productPropLbl  string
)

var productReportCmd = &cobra.Command{
	Use:   "product-report",
	Short: "Write the weekly per-product deal snapshot",
	Long:  "Exports all deals with their product assignments, explodes them into per-product rows, and replaces the current week's rows in the product workbook along with its Summary sheet.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if productOut != "" {
			cfg.Product.OutputPath = productOut
		}
		if productWeek != "" {
			cfg.Product.WeekOverride = productWeek
		}
		if cmd.Flags().Changed("products") {
			cfg.Product.Products = productNames
		}
		if productPropName != "" {
			cfg.Product.PropertyName = productPropName
		}
		if productPropLbl != "" {
			cfg.Product.PropertyLabel = productPropLbl
		}
		if cmd.Flags().Changed("max-pages") {
			cfg.HubSpot.MaxPages = productMaxPages
		}
		if err := cfg.Validate("product-report"); err != nil {
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

		p := pipeline.NewProductReport(cfg.Product, newHubSpotClient(), st)
		res, err := p.Run(ctx, productDryRun)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	productReportCmd.Flags().StringVar(&productOut, "out", "", "output workbook path (defaults to product.output_path)")
	productReportCmd.Flags().StringVar(&productWeek, "week", "", "snapshot Monday (YYYY-MM-DD) to write under instead of the computed one")
	productReportCmd.Flags().BoolVar(&productDryRun, "dry-run", false, "fetch and build rows but skip the workbook write")
	productReportCmd.Flags().IntVar(&productMaxPages, "max-pages", 0, "cap pagination per fetch (0 = no cap)")
	productReportCmd.Flags().StringSliceVar(&productNames, "products", nil, "product names to report on (defaults to product.products)")
	productReportCmd.Flags().StringVar(&productPropName, "property-name", "", "internal name of the product deal property")
	productReportCmd.Flags().StringVar(&productPropLbl, "property-label", "", "label of the product deal property to discover")
	rootCmd.AddCommand(productReportCmd)
}
