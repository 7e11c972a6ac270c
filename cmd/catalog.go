package cmd

import (
	"fmt"
	"log/slog"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/threadline-rugs/roomview/internal/catalog"
	"github.com/threadline-rugs/roomview/internal/models"
)

var (
	styleRugID   = lipgloss.NewStyle().Foreground(lipgloss.Color("36")).Width(18)
	styleRugName = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Width(22)
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	styleSale    = lipgloss.NewStyle().Foreground(lipgloss.Color("35"))
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect, validate and convert rug catalogs",
		Long: `Catalog tools. Catalogs are YAML, JSON or Parquet files with one record per
rug; without CATALOG_PATH the built-in sample catalog is used.`,
	}

	cmd.AddCommand(newCatalogListCmd())
	cmd.AddCommand(newCatalogValidateCmd())
	cmd.AddCommand(newCatalogExportCmd())

	return cmd
}

func newCatalogListCmd() *cobra.Command {
	var style string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rugs in the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configuration()
			cat, err := catalog.Load(cfg.Catalog.Path, cfg.Catalog.AssetsDir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, r := range cat.Filter(style) {
				fmt.Fprintln(out, styleRugID.Render(r.ID)+styleRugName.Render(r.Name)+formatPrice(r)+" "+
					styleDim.Render(fmt.Sprintf("%s · %s · %s", formatSize(r.Dimensions), r.Style, r.Material)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&style, "style", "", "Only list rugs of this style")
	return cmd
}

func newCatalogValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a catalog file for invalid or duplicate records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rugs, err := catalog.ReadRugs(args[0])
			if err != nil {
				return err
			}
			if err := catalog.ValidateAll(rugs); err != nil {
				return fmt.Errorf("catalog %s is invalid:\n%w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d rugs OK\n", styleSale.Render("✓"), len(rugs))
			return nil
		},
	}
}

func newCatalogExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write the current catalog as .yaml, .json or .parquet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configuration()
			cat, err := catalog.Load(cfg.Catalog.Path, cfg.Catalog.AssetsDir)
			if err != nil {
				return err
			}
			rugs := cat.All()
			if err := catalog.Write(args[0], rugs); err != nil {
				return err
			}
			slog.Info("Catalog exported", "path", args[0], "rugs", len(rugs))
			return nil
		},
	}
}

func formatPrice(r models.Rug) string {
	price := fmt.Sprintf("$%-8.2f", r.Price)
	if r.OnSale() {
		return styleSale.Render(price) + styleDim.Render(fmt.Sprintf(" (-%d%%)", r.DiscountPercent()))
	}
	return price
}

func formatSize(d models.Dimensions) string {
	return fmt.Sprintf("%gx%g %s", d.Width, d.Height, d.Unit)
}
