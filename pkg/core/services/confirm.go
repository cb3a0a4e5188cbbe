package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/munconf/portfolio-allotment/internal/config"
	"github.com/munconf/portfolio-allotment/pkg/core/allocator"
	"github.com/munconf/portfolio-allotment/pkg/db"
)

// ConfirmStore defines the database operations needed to confirm a payment
type ConfirmStore interface {
	GetRegistrationByEmail(ctx context.Context, email string) (*db.Registration, error)
	GetClaims(ctx context.Context) ([]db.PortfolioClaim, error)
	ConfirmClaim(ctx context.Context, registrationID string, at time.Time) error
}

// ConfirmationResult represents the result of confirming a payment
type ConfirmationResult struct {
	Registration *db.Registration
	Result       allocator.ConfirmResult
	FailedEmail  *FailedEmail
}

// ConfirmPayment confirms the allotted portfolio of the registration with this email.
// The payment code must match. Confirming twice is a no-op that reports ConfirmAlreadyConfirmed.
func ConfirmPayment(
	ctx context.Context,
	store ConfirmStore,
	engine *allocator.Engine,
	mailer Emailer,
	cfg *config.Config,
	logger *zap.Logger,
	email string,
	paymentCode string,
) (*ConfirmationResult, error) {
	email = normaliseEmail(email)
	logger.Debug("Starting confirmPayment", zap.String("email", email))

	reg, err := store.GetRegistrationByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch registration: %w", err)
	}

	if !strings.EqualFold(strings.TrimSpace(paymentCode), reg.PaymentCode) {
		return nil, fmt.Errorf("%w for %s", ErrInvalidPaymentCode, email)
	}

	tracker, err := loadTracker(ctx, store, engine, logger)
	if err != nil {
		return nil, err
	}

	now := engine.Now()
	result, err := tracker.Confirm(reg.ID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm %s: %w", reg.ID, err)
	}
	if result == allocator.ConfirmAlreadyConfirmed {
		logger.Info("Payment already confirmed", zap.String("registration_id", reg.ID))
		return &ConfirmationResult{Registration: reg, Result: result}, nil
	}

	if err := store.ConfirmClaim(ctx, reg.ID, now); err != nil {
		return nil, fmt.Errorf("failed to confirm claim: %w", err)
	}
	if reg, err = store.GetRegistrationByEmail(ctx, email); err != nil {
		return nil, fmt.Errorf("failed to reload registration: %w", err)
	}
	if reg.Claim == nil {
		return nil, fmt.Errorf("claim for %s vanished after confirmation: %w", reg.ID, db.ErrNotFound)
	}

	logger.Info("Payment confirmed",
		zap.String("registration_id", reg.ID),
		zap.String("committee", reg.Claim.Committee),
		zap.String("portfolio", reg.Claim.Portfolio))

	subject, body := confirmedEmail(cfg, reg)
	return &ConfirmationResult{
		Registration: reg,
		Result:       result,
		FailedEmail:  notify(mailer, reg, subject, body, logger),
	}, nil
}
