package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/munconf/portfolio-allotment/pkg/core/allocator"
	"github.com/munconf/portfolio-allotment/pkg/core/services"
)

// ConfirmCmd creates the confirm command
func ConfirmCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <email> <payment_code>",
		Short: "Confirm payment for an allotted portfolio",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := services.ConfirmPayment(
				app.Ctx,
				app.Database,
				app.Engine,
				app.Mailer,
				app.Cfg,
				app.Logger,
				args[0],
				args[1],
			)
			if err != nil {
				return err
			}

			reg := result.Registration
			if result.Result == allocator.ConfirmAlreadyConfirmed {
				fmt.Printf("\n%s (%s) was already confirmed - nothing to do.\n\n", reg.Name, reg.ID)
				return nil
			}

			fmt.Printf("\n✓ Payment confirmed!\n\n")
			fmt.Printf("Registration ID: %s\n", reg.ID)
			fmt.Printf("Name:            %s\n", reg.Name)
			fmt.Printf("Portfolio:       %s / %s\n\n", reg.Claim.Committee, reg.Claim.Portfolio)

			printFailedEmail(result.FailedEmail)

			return nil
		},
	}
}
