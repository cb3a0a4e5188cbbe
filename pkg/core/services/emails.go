package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/munconf/portfolio-allotment/internal/config"
	"github.com/munconf/portfolio-allotment/pkg/core/allocator"
	"github.com/munconf/portfolio-allotment/pkg/core/catalog"
	"github.com/munconf/portfolio-allotment/pkg/db"
)

// Emailer defines the operations needed to notify delegates
type Emailer interface {
	SendEmail(to, subject, body string) error
}

// LogEmailer logs emails instead of sending them (used when noEmail is set)
type LogEmailer struct {
	Logger *zap.Logger
}

// SendEmail logs the email at info level
func (l LogEmailer) SendEmail(to, subject, body string) error {
	l.Logger.Info("Email not sent (noEmail)", zap.String("to", to), zap.String("subject", subject))
	l.Logger.Debug("Email body", zap.String("to", to), zap.String("body", body))
	return nil
}

// FailedEmail represents an email that could not be sent
type FailedEmail struct {
	RegistrationID string
	Name           string
	Email          string
	Error          string
}

// notify sends an email and converts a failure into a FailedEmail
func notify(mailer Emailer, reg *db.Registration, subject, body string, logger *zap.Logger) *FailedEmail {
	logger.Debug("Sending email",
		zap.String("registration_id", reg.ID),
		zap.String("email", reg.Email),
		zap.String("subject", subject))

	if err := mailer.SendEmail(reg.Email, subject, body); err != nil {
		logger.Warn("Failed to send email",
			zap.String("registration_id", reg.ID),
			zap.String("email", reg.Email),
			zap.Error(err))
		return &FailedEmail{
			RegistrationID: reg.ID,
			Name:           reg.Name,
			Email:          reg.Email,
			Error:          err.Error(),
		}
	}
	return nil
}

const dayLayout = "Mon 2 Jan 2006"

func conferenceName(cfg *config.Config) string {
	if cfg == nil || cfg.ConferenceName == "" {
		return "MUN Conference"
	}
	return cfg.ConferenceName
}

func signOff(cfg *config.Config) string {
	return fmt.Sprintf("\nThanks\nThe %s team\n", conferenceName(cfg))
}

// conferenceDatesLine lists the conference days, or is empty when none are configured
func conferenceDatesLine(cfg *config.Config) string {
	if cfg == nil {
		return ""
	}
	days, err := cfg.ConferenceDays()
	if err != nil || len(days) == 0 {
		return ""
	}

	formatted := make([]string, len(days))
	for i, d := range days {
		formatted[i] = d.Format(dayLayout)
	}
	return "Conference dates: " + strings.Join(formatted, ", ") + "\n"
}

func feeLine(cfg *config.Config) string {
	if cfg == nil || cfg.RegistrationFee <= 0 {
		return ""
	}
	return fmt.Sprintf("Registration fee: %s\n", humanize.Comma(int64(cfg.RegistrationFee)))
}

func portfolioLine(c *db.PortfolioClaim) string {
	key := catalog.PortfolioKey{Committee: c.Committee, Subgroup: c.Subgroup, Name: c.Portfolio}
	return fmt.Sprintf("Portfolio: %s\n", key)
}

func warningsBlock(warnings []string) string {
	if len(warnings) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nSome of your preferences could not be considered:\n")
	for _, w := range warnings {
		fmt.Fprintf(&b, "  - %s\n", w)
	}
	return b.String()
}

// allottedEmail is sent when a portfolio has been allotted and awaits payment
func allottedEmail(cfg *config.Config, reg *db.Registration, warnings []string, deadline time.Time) (string, string) {
	subject := fmt.Sprintf("Portfolio allotted - %s", conferenceName(cfg))

	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s\n\n", reg.Name)
	fmt.Fprintf(&b, "Thank you for registering for %s. You have been allotted a portfolio.\n\n", conferenceName(cfg))
	fmt.Fprintf(&b, "Registration ID: %s\n", reg.ID)
	b.WriteString(portfolioLine(reg.Claim))
	fmt.Fprintf(&b, "Tier: %s (%s)\n", catalog.Tier(reg.Claim.Tier), catalog.Tier(reg.Claim.Tier).Info().Label)
	fmt.Fprintf(&b, "Payment code: %s\n", reg.PaymentCode)
	b.WriteString(feeLine(cfg))
	b.WriteString(conferenceDatesLine(cfg))
	fmt.Fprintf(&b, "\nPlease complete your payment by %s, quoting your payment code, to confirm your place.\n", deadline.Format(dayLayout+" 15:04 MST"))
	b.WriteString("Unpaid portfolios are released after the deadline.\n")
	b.WriteString(warningsBlock(warnings))
	b.WriteString(signOff(cfg))

	return subject, b.String()
}

// pendingEmail is sent when the registration was stored but no portfolio could be allotted
func pendingEmail(cfg *config.Config, reg *db.Registration, warnings []string, waitlisted bool) (string, string) {
	subject := fmt.Sprintf("Registration received - %s", conferenceName(cfg))

	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s\n\n", reg.Name)
	fmt.Fprintf(&b, "Thank you for registering for %s.\n\n", conferenceName(cfg))
	fmt.Fprintf(&b, "Registration ID: %s\n\n", reg.ID)
	if waitlisted {
		b.WriteString("Allotments are currently full and you have been added to the waitlist.\n")
		b.WriteString("We will email you as soon as a portfolio can be allotted.\n")
	} else {
		b.WriteString("We could not allot any of your preferred portfolios yet.\n")
		b.WriteString("Our team will review your registration and be in touch.\n")
	}
	b.WriteString(warningsBlock(warnings))
	b.WriteString(signOff(cfg))

	return subject, b.String()
}

// confirmedEmail is sent once payment has been confirmed
func confirmedEmail(cfg *config.Config, reg *db.Registration) (string, string) {
	subject := fmt.Sprintf("Payment confirmed - %s", conferenceName(cfg))

	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s\n\n", reg.Name)
	b.WriteString("Your payment has been received and your registration is now confirmed.\n\n")
	fmt.Fprintf(&b, "Registration ID: %s\n", reg.ID)
	b.WriteString(portfolioLine(reg.Claim))
	b.WriteString(conferenceDatesLine(cfg))
	b.WriteString("\nWe look forward to seeing you in committee.\n")
	b.WriteString(signOff(cfg))

	return subject, b.String()
}

// reminderEmail asks an allotted delegate to complete payment
func reminderEmail(cfg *config.Config, reg *db.Registration, deadline time.Time) (string, string) {
	subject := fmt.Sprintf("Reminder: payment pending - %s", conferenceName(cfg))

	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s\n\n", reg.Name)
	b.WriteString("This is a reminder that your payment is still pending.\n\n")
	fmt.Fprintf(&b, "Registration ID: %s\n", reg.ID)
	b.WriteString(portfolioLine(reg.Claim))
	fmt.Fprintf(&b, "Payment code: %s\n", reg.PaymentCode)
	b.WriteString(feeLine(cfg))
	fmt.Fprintf(&b, "\nYour portfolio is held until %s.\n", deadline.Format(dayLayout+" 15:04 MST"))
	b.WriteString(signOff(cfg))

	return subject, b.String()
}

// releasedEmail tells a delegate their portfolio was released (expiry or cancellation)
func releasedEmail(cfg *config.Config, reg *db.Registration, claim allocator.Claim, reason string) (string, string) {
	subject := fmt.Sprintf("Portfolio released - %s", conferenceName(cfg))

	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s\n\n", reg.Name)
	fmt.Fprintf(&b, "Your allotment of %s has been released: %s.\n\n", claim.Key, reason)
	fmt.Fprintf(&b, "Registration ID: %s\n", reg.ID)
	b.WriteString("Your registration remains on file and may be allotted again if portfolios become available.\n")
	b.WriteString(signOff(cfg))

	return subject, b.String()
}
