package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/munconf/portfolio-allotment/pkg/core/services"
)

// CheckEligibilityCmd creates the checkEligibility command
func CheckEligibilityCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkEligibility <registration_id> <committee> <portfolio>",
		Short: "Check whether a registration qualifies for a portfolio",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			subgroup, _ := cmd.Flags().GetString("subgroup")

			check, err := services.CheckEligibility(
				app.Ctx,
				app.Database,
				app.Engine,
				app.Logger,
				args[0],
				args[1],
				subgroup,
				args[2],
			)
			if err != nil {
				return err
			}

			el := check.Eligibility
			fmt.Printf("\n%s for %s\n\n", check.Key, check.Registration.Name)
			if !check.InCatalog {
				fmt.Printf("%sNot in the catalog - classified as %s and cannot be allotted%s\n", colorYellow, el.Tier, colorReset)
			}
			fmt.Printf("Tier:         %s (%s, %d points)\n", el.Tier, el.Tier.Info().Label, el.Points)
			fmt.Printf("Multiplier:   %.1f\n", el.Multiplier)
			fmt.Printf("Experience:   %d MUNs (requires %d)\n", el.UserExperience, el.RequiredExperience)
			fmt.Printf("Best Del.:    %d (requires %d)\n", el.UserBestDelegates, el.RequiredBestDelegates)
			fmt.Printf("Points:       %d\n", el.UserPoints)

			if el.IsEligible {
				fmt.Printf("Eligible:     %syes%s (score %d as first preference)\n", colorGreen, colorReset, check.Score.Score)
			} else {
				fmt.Printf("Eligible:     %sno%s - %s\n", colorRed, colorReset, check.Score.Reason)
			}

			if check.InCatalog {
				status := string(check.Status)
				if check.Holder != "" {
					status = fmt.Sprintf("%s by %s", status, check.Holder)
				}
				fmt.Printf("Status:       %s%s%s\n", statusColor(string(check.Status)), status, colorReset)
			}
			fmt.Println()

			return nil
		},
	}

	cmd.Flags().String("subgroup", "", "Subgroup (department or party) for committees divided into subgroups")

	return cmd
}
