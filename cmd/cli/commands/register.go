package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/munconf/portfolio-allotment/pkg/core/services"
)

// RegisterCmd creates the register command
func RegisterCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "register <registration.yaml>",
		Short: "Register a delegate from a YAML form and allot a portfolio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := services.LoadRegistrationRequest(args[0])
			if err != nil {
				return err
			}

			result, err := services.RegisterDelegate(
				app.Ctx,
				app.Database,
				app.Engine,
				app.Mailer,
				app.Cfg,
				app.Logger,
				req,
			)
			if err != nil {
				return err
			}

			reg := result.Registration

			// Display results
			fmt.Printf("\n✓ Registration stored!\n\n")
			fmt.Printf("Registration ID: %s\n", reg.ID)
			fmt.Printf("Name:            %s (%s)\n", reg.Name, reg.Email)
			fmt.Printf("Payment Code:    %s\n", reg.PaymentCode)

			switch {
			case result.Waitlisted:
				fmt.Printf("Status:          %swaitlisted%s\n\n", colorYellow, colorReset)
			case reg.Claim != nil:
				alloc := result.Outcome.Allocation
				fmt.Printf("Status:          %s%s%s\n", statusColor(reg.Status()), reg.Status(), colorReset)
				fmt.Printf("Portfolio:       %s\n", alloc.Key)
				fmt.Printf("Tier:            %s (%s)\n", alloc.Tier, alloc.Tier.Info().Label)
				fmt.Printf("Score:           %d (preference %d)\n\n", alloc.Score, alloc.PreferenceRank)
			default:
				fmt.Printf("Status:          %s (no eligible portfolio available)\n\n", reg.Status())
			}

			printWarnings(result.Warnings)
			printLimits(result.Limits)
			fmt.Println()
			printFailedEmail(result.FailedEmail)

			return nil
		},
	}
}
