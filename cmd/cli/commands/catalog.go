package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/munconf/portfolio-allotment/pkg/core/allocator"
	"github.com/munconf/portfolio-allotment/pkg/core/services"
)

// CatalogCmd creates the catalog command
func CatalogCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List committees and portfolios with their tier and claim status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			committee, _ := cmd.Flags().GetString("committee")

			views, err := services.GetCatalogView(app.Ctx, app.Database, app.Engine, app.Logger)
			if err != nil {
				return err
			}

			found := false
			for _, v := range views {
				if committee != "" && v.Committee.Code != committee {
					continue
				}
				found = true

				fmt.Printf("\n%s - %s (x%.1f)\n", v.Committee.Code, v.Committee.Name, v.Committee.Multiplier)
				subgroup := ""
				for _, p := range v.Portfolios {
					if p.Entry.Key.Subgroup != subgroup {
						subgroup = p.Entry.Key.Subgroup
						fmt.Printf("  %s\n", subgroup)
					}

					status := string(p.Status)
					if p.Status != allocator.ClaimOpen {
						status = fmt.Sprintf("%s (%s)", p.Status, p.Holder)
					}
					fmt.Printf("    %-6s %-40s %s%s%s\n", p.Entry.Tier, p.Entry.Key.Name, statusColor(string(p.Status)), status, colorReset)
				}
			}
			fmt.Println()

			if !found {
				return fmt.Errorf("committee %s not found in catalog", committee)
			}

			return nil
		},
	}

	cmd.Flags().String("committee", "", "Only show this committee code")

	return cmd
}
