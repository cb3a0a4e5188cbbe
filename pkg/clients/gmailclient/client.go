package gmailclient

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/munconf/portfolio-allotment/internal/config"
	"github.com/munconf/portfolio-allotment/pkg/utils"
)

// DefaultSendInterval keeps bulk sends (reminders, sweeps) under Gmail's per-user quota
const DefaultSendInterval = 3 * time.Second

// Client wraps the Gmail API client
type Client struct {
	service *gmail.Service
	ctx     context.Context
	userID  string
	sender  string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// Options configures the sending identity and throttle
type Options struct {
	// UserID is the Gmail user to send as, usually "me"
	UserID string
	// Sender is the optional From header, e.g. "Springfield MUN <mun@example.com>"
	Sender string
	// Interval is the minimum gap between sends; zero means DefaultSendInterval
	Interval time.Duration
}

// NewClient creates a Gmail client from an OAuth token that carries the gmail.send scope
func NewClient(ctx context.Context, oauthCfg *config.OAuthClientConfig, token *oauth2.Token, opts Options, logger *zap.Logger) (*Client, error) {
	oauthConfig, err := utils.GetOAuthConfig(oauthCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth config: %w", err)
	}

	return NewClientWithOptions(ctx, opts, logger, option.WithHTTPClient(oauthConfig.Client(ctx, token)))
}

// NewClientWithOptions builds a client from raw API client options
func NewClientWithOptions(ctx context.Context, opts Options, logger *zap.Logger, clientOpts ...option.ClientOption) (*Client, error) {
	service, err := gmail.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	userID := opts.UserID
	if userID == "" {
		userID = "me"
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultSendInterval
	}

	return &Client{
		service: service,
		ctx:     ctx,
		userID:  userID,
		sender:  opts.Sender,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		logger:  logger,
	}, nil
}
