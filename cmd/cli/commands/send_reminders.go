package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/munconf/portfolio-allotment/pkg/core/services"
)

// SendRemindersCmd creates the sendReminders command
func SendRemindersCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sendReminders",
		Short: "Send payment reminders to delegates with unpaid allotments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			concurrency, _ := cmd.Flags().GetInt("concurrency")

			// Call the service
			remindersSent, failedEmails, err := services.SendPaymentReminders(
				app.Ctx,
				app.Database,
				app.Mailer,
				app.Cfg,
				app.Logger,
				concurrency,
			)
			if err != nil {
				printFailedEmails(failedEmails)
				return err
			}

			// Display results
			fmt.Printf("\n✓ Payment reminders completed!\n\n")

			if len(remindersSent) > 0 {
				fmt.Printf("Reminders sent to %d delegates:\n", len(remindersSent))
				for _, rs := range remindersSent {
					fmt.Printf("  ✓ %s (%s) - %s\n", rs.Name, rs.Email, rs.Portfolio)
				}
				fmt.Println()
			}

			printFailedEmails(failedEmails)

			if len(remindersSent) == 0 && len(failedEmails) == 0 {
				fmt.Println("No reminders needed - no allotments are awaiting payment.")
			}

			return nil
		},
	}

	cmd.Flags().Int("concurrency", services.DefaultReminderConcurrency, "Number of reminder emails sent in parallel")

	return cmd
}
