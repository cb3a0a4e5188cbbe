package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/munconf/portfolio-allotment/pkg/core/services"
)

// LeaderboardCmd creates the leaderboard command
func LeaderboardCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Rank allotted and confirmed delegates by experience points",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			entries, err := services.GetLeaderboard(app.Ctx, app.Database, app.Logger, limit)
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Println("\nNo allotted delegates yet.")
				return nil
			}

			fmt.Printf("\n%-4s %-28s %-24s %6s  %s\n", "#", "Delegate", "Institution", "Points", "Portfolio")
			for _, e := range entries {
				fmt.Printf("%-4d %-28s %-24s %6d  %s %s(%s)%s\n",
					e.Position, e.Name, e.Institution, e.Points, e.Portfolio,
					statusColor(e.Status), e.Status, colorReset)
			}
			fmt.Println()

			return nil
		},
	}

	cmd.Flags().Int("limit", services.DefaultLeaderboardLimit, "Number of delegates to show")

	return cmd
}
