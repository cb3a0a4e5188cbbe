package commands

import (
	"fmt"
	"strings"

	"github.com/munconf/portfolio-allotment/pkg/core/allocator"
	"github.com/munconf/portfolio-allotment/pkg/core/services"
	"github.com/munconf/portfolio-allotment/pkg/db"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorDim    = "\033[2m"
)

// fillColor picks a color for a committee by how many portfolios remain open.
// More than half open is green, none open is red, otherwise yellow.
func fillColor(open, total int, green, yellow, red string) string {
	switch {
	case total == 0 || open == 0:
		return red
	case open > total/2:
		return green
	default:
		return yellow
	}
}

// statusColor colors a claim or registration status
func statusColor(status string) string {
	switch status {
	case db.StatusConfirmed:
		return colorGreen
	case db.StatusAllotted:
		return colorYellow
	case string(allocator.ClaimOpen):
		return colorDim
	}
	return ""
}

func printFailedEmails(failed []services.FailedEmail) {
	if len(failed) == 0 {
		return
	}
	fmt.Printf("⚠️  Failed to send %d emails:\n", len(failed))
	for _, fe := range failed {
		fmt.Printf("  ✗ %s (%s): %s\n", fe.Name, fe.Email, fe.Error)
	}
	fmt.Println()
}

func printFailedEmail(failed *services.FailedEmail) {
	if failed == nil {
		return
	}
	printFailedEmails([]services.FailedEmail{*failed})
}

func printWarnings(warnings []string) {
	if len(warnings) == 0 {
		return
	}
	fmt.Println("Preference warnings:")
	for _, w := range warnings {
		fmt.Printf("  - %s\n", w)
	}
	fmt.Println()
}

func printLimits(l allocator.Limits) {
	fmt.Printf("Admission: %d/%d allotted (%.1f%%, limit %d), %d confirmed (%.1f%%, limit %d)\n",
		l.Allotted, l.TotalRegistrations, l.AllottedPercentage, l.AllottedLimit,
		l.Confirmed, l.ConfirmedPercentage, l.ConfirmedLimit)
	if !l.CanAllot {
		fmt.Printf("%sAllotment cap reached%s\n", colorRed, colorReset)
	}
}

// bar renders a proportional bar of the given width
func bar(count, total, width int) string {
	if total <= 0 || width <= 0 {
		return ""
	}
	filled := count * width / total
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
