package commands

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/munconf/portfolio-allotment/pkg/core/services"
)

// SweepExpiredCmd creates the sweepExpired command
func SweepExpiredCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweepExpired",
		Short: "Release allotments whose payment window has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := runSweep(app.Ctx, app)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Sweep completed (allotments made before %s)\n\n", result.Cutoff.Format("2006-01-02 15:04 MST"))

			if len(result.Released) > 0 {
				fmt.Printf("Released %d portfolios:\n", len(result.Released))
				for _, r := range result.Released {
					fmt.Printf("  ✗ %s (%s): %s, allotted %s\n",
						r.Registration.Name, r.Registration.ID, r.Claim.Key, humanize.Time(r.Claim.AllottedAt))
				}
				fmt.Println()
			} else {
				fmt.Println("No expired allotments.")
			}

			if len(result.Skipped) > 0 {
				fmt.Printf("Skipped %d allotments changed during the sweep\n\n", len(result.Skipped))
			}

			printFailedEmails(result.FailedEmails)

			return nil
		},
	}
}

func runSweep(ctx context.Context, app *AppContext) (*services.SweepResult, error) {
	return services.SweepExpired(
		ctx,
		app.Database,
		app.Engine,
		app.Mailer,
		app.Cfg,
		app.Logger,
	)
}
