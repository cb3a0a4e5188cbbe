package commands

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/munconf/portfolio-allotment/pkg/db"
)

// ListRegistrationsCmd creates the listRegistrations command
func ListRegistrationsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listRegistrations",
		Short: "List registrations in arrival order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			switch status {
			case "", db.StatusPending, db.StatusAllotted, db.StatusConfirmed:
			default:
				return fmt.Errorf("status must be one of pending, allotted, confirmed, got: %s", status)
			}

			app.Logger.Debug("listRegistrations command", zap.String("status", status))

			registrations, err := app.Database.GetRegistrations(app.Ctx)
			if err != nil {
				return fmt.Errorf("failed to list registrations: %w", err)
			}

			var shown []db.Registration
			for _, reg := range registrations {
				if status == "" || reg.Status() == status {
					shown = append(shown, reg)
				}
			}

			fmt.Printf("\nFound %d registrations:\n\n", len(shown))
			for _, reg := range shown {
				portfolio := "-"
				if reg.Claim != nil {
					portfolio = fmt.Sprintf("%s / %s", reg.Claim.Committee, reg.Claim.Portfolio)
				}
				fmt.Printf("- %s %s (%s) - %s%s%s - %s - registered %s\n",
					reg.ID,
					reg.Name,
					reg.Email,
					statusColor(reg.Status()),
					reg.Status(),
					colorReset,
					portfolio,
					humanize.Time(reg.RegisteredAt),
				)
			}
			fmt.Println()

			return nil
		},
	}

	cmd.Flags().String("status", "", "Only show registrations with this status (pending, allotted, confirmed)")

	return cmd
}
