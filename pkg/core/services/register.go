package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/munconf/portfolio-allotment/internal/config"
	"github.com/munconf/portfolio-allotment/pkg/core/allocator"
	"github.com/munconf/portfolio-allotment/pkg/db"
)

// PreferenceRequest is one ranked nomination in a registration form
type PreferenceRequest struct {
	Rank      int    `yaml:"rank" validate:"required,min=1,max=3"`
	Committee string `yaml:"committee" validate:"required"`
	Subgroup  string `yaml:"subgroup,omitempty"`
	Portfolio string `yaml:"portfolio" validate:"required"`
}

// RegistrationRequest is a delegate's submitted registration form
type RegistrationRequest struct {
	Name                 string              `yaml:"name" validate:"required"`
	Email                string              `yaml:"email" validate:"required,email"`
	Phone                string              `yaml:"phone,omitempty" validate:"omitempty,min=7,max=20"`
	Institution          string              `yaml:"institution" validate:"required"`
	Class                string              `yaml:"class,omitempty"`
	Experience           string              `yaml:"experience" validate:"required,experienceband"`
	BestDelegateAwards   int                 `yaml:"bestDelegateAwards,omitempty" validate:"gte=0"`
	SpecialMentionAwards int                 `yaml:"specialMentionAwards,omitempty" validate:"gte=0"`
	VerbalMentionAwards  int                 `yaml:"verbalMentionAwards,omitempty" validate:"gte=0"`
	Participations       int                 `yaml:"participations,omitempty" validate:"gte=0"`
	Preferences          []PreferenceRequest `yaml:"preferences" validate:"required,min=1,max=3,dive"`
}

// RegistrationResult represents the result of registering a delegate
type RegistrationResult struct {
	Registration *db.Registration

	// Outcome is nil when the delegate was waitlisted
	Outcome *allocator.Outcome

	Limits     allocator.Limits
	Waitlisted bool
	Warnings   []string

	FailedEmail *FailedEmail
}

// RegisterStore defines the database operations needed to register a delegate
type RegisterStore interface {
	ClaimWriter
	InsertRegistration(ctx context.Context, reg *db.Registration) error
	GetRegistrations(ctx context.Context) ([]db.Registration, error)
	GetRegistrationByEmail(ctx context.Context, email string) (*db.Registration, error)
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("experienceband", func(fl validator.FieldLevel) bool {
		_, err := allocator.ParseExperienceBand(fl.Field().String())
		return err == nil
	})
}

// LoadRegistrationRequest reads a registration form from a YAML file
func LoadRegistrationRequest(path string) (*RegistrationRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registration file: %w", err)
	}

	var req RegistrationRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse registration file: %w", err)
	}

	return &req, nil
}

// Validate normalises the email, then checks the form fields and that preference
// ranks are unique and include rank 1
func (r *RegistrationRequest) Validate() error {
	r.Email = normaliseEmail(r.Email)
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("registration validation failed: %w", err)
	}

	seen := make(map[int]bool)
	for _, p := range r.Preferences {
		if seen[p.Rank] {
			return fmt.Errorf("registration validation failed: preference rank %d given more than once", p.Rank)
		}
		seen[p.Rank] = true
	}
	if !seen[1] {
		return fmt.Errorf("registration validation failed: a first preference is required")
	}

	return nil
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegisterDelegate stores a registration and tries to allot a portfolio.
// The registration is always stored; when the admission cap has been reached the
// delegate stays pending and is reported as waitlisted.
func RegisterDelegate(
	ctx context.Context,
	store RegisterStore,
	engine *allocator.Engine,
	mailer Emailer,
	cfg *config.Config,
	logger *zap.Logger,
	req *RegistrationRequest,
) (*RegistrationResult, error) {
	logger.Debug("Starting registerDelegate", zap.String("email", req.Email))

	// Step 1: Validate the form
	if err := req.Validate(); err != nil {
		return nil, err
	}
	email := req.Email

	// Step 2: Reject duplicate emails
	existing, err := store.GetRegistrationByEmail(ctx, email)
	if err == nil {
		return nil, fmt.Errorf("%w: %s (registration %s)", db.ErrDuplicateEmail, email, existing.ID)
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing registration: %w", err)
	}

	// Step 3: Store the registration as pending
	reg := &db.Registration{
		ID:                   newCode(cfg.RegistrationPrefix),
		Name:                 strings.TrimSpace(req.Name),
		Email:                email,
		Phone:                strings.TrimSpace(req.Phone),
		Institution:          strings.TrimSpace(req.Institution),
		Class:                strings.TrimSpace(req.Class),
		ExperienceBand:       req.Experience,
		BestDelegateAwards:   req.BestDelegateAwards,
		SpecialMentionAwards: req.SpecialMentionAwards,
		VerbalMentionAwards:  req.VerbalMentionAwards,
		Participations:       req.Participations,
		PaymentCode:          newCode(PaymentCodePrefix),
		RegisteredAt:         engine.Now(),
	}
	for _, p := range req.Preferences {
		reg.Preferences = append(reg.Preferences, db.Preference{
			Rank:      p.Rank,
			Committee: strings.TrimSpace(p.Committee),
			Subgroup:  strings.TrimSpace(p.Subgroup),
			Portfolio: strings.TrimSpace(p.Portfolio),
		})
	}

	if err := store.InsertRegistration(ctx, reg); err != nil {
		return nil, fmt.Errorf("failed to insert registration: %w", err)
	}
	logger.Info("Registration stored", zap.String("registration_id", reg.ID), zap.String("email", reg.Email))

	// Step 4: Check admission caps
	registrations, err := store.GetRegistrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch registrations: %w", err)
	}
	result := &RegistrationResult{
		Registration: reg,
		Limits:       admissionLimits(registrations, cfg),
	}

	if !result.Limits.CanAllot {
		logger.Info("Admission cap reached, registration waitlisted",
			zap.String("registration_id", reg.ID),
			zap.Float64("allotted_percentage", result.Limits.AllottedPercentage))
		result.Waitlisted = true
		subject, body := pendingEmail(cfg, reg, nil, true)
		result.FailedEmail = notify(mailer, reg, subject, body, logger)
		return result, nil
	}

	// Step 5: Allocate
	outcome, err := allocate(ctx, store, engine, reg, logger)
	if err != nil {
		return nil, err
	}
	result.Outcome = outcome
	result.Warnings = outcome.Warnings()

	// Step 6: Notify the delegate
	var subject, body string
	if outcome.Allocated() {
		deadline := reg.Claim.AllottedAt.Add(cfg.ConfirmationWindowDuration())
		subject, body = allottedEmail(cfg, reg, result.Warnings, deadline)
	} else {
		subject, body = pendingEmail(cfg, reg, result.Warnings, false)
	}
	result.FailedEmail = notify(mailer, reg, subject, body, logger)

	logger.Debug("Register delegate completed",
		zap.String("registration_id", reg.ID),
		zap.String("status", reg.Status()),
		zap.Int("warnings", len(result.Warnings)))

	return result, nil
}
