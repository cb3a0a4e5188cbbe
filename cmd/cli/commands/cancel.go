package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/munconf/portfolio-allotment/pkg/core/services"
)

// CancelCmd creates the cancel command
func CancelCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <registration_id>",
		Short: "Cancel an allocation and reopen its portfolio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")

			result, err := services.CancelAllocation(
				app.Ctx,
				app.Database,
				app.Engine,
				app.Mailer,
				app.Cfg,
				app.Logger,
				args[0],
				force,
			)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Allocation cancelled!\n\n")
			fmt.Printf("Registration ID: %s\n", result.Registration.ID)
			fmt.Printf("Released:        %s (was %s)\n\n", result.Released.Key, result.Released.Status)

			printFailedEmail(result.FailedEmail)

			return nil
		},
	}

	cmd.Flags().Bool("force", false, "Also cancel confirmed (paid) allocations")

	return cmd
}
