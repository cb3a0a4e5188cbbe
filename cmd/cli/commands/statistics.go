package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/munconf/portfolio-allotment/pkg/core/services"
)

// StatisticsCmd creates the statistics command
func StatisticsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "statistics",
		Short: "Show admission limits, tier distribution and committee fill",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := services.GetStatistics(app.Ctx, app.Database, app.Engine, app.Cfg, app.Logger)
			if err != nil {
				return err
			}

			total := stats.Pending + stats.Allotted + stats.Confirmed
			fmt.Printf("\nRegistrations: %d (%d pending, %d allotted, %d confirmed)\n", total, stats.Pending, stats.Allotted, stats.Confirmed)
			printLimits(stats.Limits)

			p := stats.Portfolios
			fmt.Printf("\nPortfolios: %d open, %d allotted, %d confirmed\n", p.Open, p.Allotted, p.Confirmed)

			if len(stats.TierDistribution) > 0 {
				fmt.Println("\nClaimed portfolios by tier:")
				for _, ts := range stats.TierDistribution {
					fmt.Printf("  %-6s %-20s %3d  (avg score %.1f)\n", ts.Tier, ts.Tier.Info().Label, ts.Count, ts.AverageScore)
				}
			}

			fmt.Println("\nCommittees:")
			for _, c := range stats.Committees {
				color := fillColor(c.Open(), c.Total, colorGreen, colorYellow, colorRed)
				fmt.Printf("  %-8s %s%s%s %2d/%-2d open  (%d allotted, %d confirmed)\n",
					c.Code, color, bar(c.Allotted+c.Confirmed, c.Total, 20), colorReset,
					c.Open(), c.Total, c.Allotted, c.Confirmed)
			}
			fmt.Println()

			return nil
		},
	}
}
