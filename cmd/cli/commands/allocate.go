package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/munconf/portfolio-allotment/pkg/core/services"
)

// AllocateCmd creates the allocate command
func AllocateCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "allocate <registration_id>",
		Short: "Allot a portfolio to a pending registration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := services.AllocateRegistration(
				app.Ctx,
				app.Database,
				app.Engine,
				app.Mailer,
				app.Cfg,
				app.Logger,
				args[0],
			)
			if err != nil {
				return err
			}

			if !result.Outcome.Allocated() {
				fmt.Printf("\nNo eligible portfolio available for %s\n\n", result.Registration.ID)
				printWarnings(result.Outcome.Warnings())
				return nil
			}

			alloc := result.Outcome.Allocation
			fmt.Printf("\n✓ Portfolio allotted!\n\n")
			fmt.Printf("Registration ID: %s\n", result.Registration.ID)
			fmt.Printf("Portfolio:       %s\n", alloc.Key)
			fmt.Printf("Tier:            %s\n", alloc.Tier)
			fmt.Printf("Score:           %d (preference %d)\n\n", alloc.Score, alloc.PreferenceRank)

			printWarnings(result.Outcome.Warnings())
			printFailedEmail(result.FailedEmail)

			return nil
		},
	}
}

// AllocatePendingCmd creates the allocatePending command
func AllocatePendingCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "allocatePending",
		Short: "Allot portfolios to pending registrations in arrival order until the cap is reached",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := services.AllocatePending(
				app.Ctx,
				app.Database,
				app.Engine,
				app.Mailer,
				app.Cfg,
				app.Logger,
			)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Allocation of pending registrations completed!\n\n")

			if len(result.Allotted) > 0 {
				fmt.Printf("Allotted %d portfolios:\n", len(result.Allotted))
				for _, a := range result.Allotted {
					fmt.Printf("  ✓ %s (%s): %s\n", a.Registration.Name, a.Registration.ID, a.Outcome.Allocation.Key)
				}
				fmt.Println()
			}

			if len(result.Unallocated) > 0 {
				fmt.Printf("No eligible portfolio for %d registrations:\n", len(result.Unallocated))
				for _, u := range result.Unallocated {
					fmt.Printf("  - %s (%s)\n", u.Registration.Name, u.Registration.ID)
				}
				fmt.Println()
			}

			if result.SkippedByCap > 0 {
				fmt.Printf("%s%d registrations left pending: allotment cap reached%s\n\n", colorYellow, result.SkippedByCap, colorReset)
			}

			if len(result.Allotted) == 0 && len(result.Unallocated) == 0 && result.SkippedByCap == 0 {
				fmt.Println("No pending registrations.")
			}

			printLimits(result.Limits)
			fmt.Println()
			printFailedEmails(result.FailedEmails)

			return nil
		},
	}
}
