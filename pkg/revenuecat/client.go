package revenuecat

import (
	"context"
	"crypto/hmac"
	"errors"
	"fmt"
	"strings"

	"github.com/simmerworks/simmer-backend/pkg/config"
	"github.com/simmerworks/simmer-backend/pkg/logger"
)

var errSecretRequired = errors.New("revenuecat webhook secret is required")

// Client holds the RevenueCat webhook credentials and scoping. RevenueCat has
// no server SDK; deliveries are authenticated with a shared secret the
// dashboard is configured to send on every request.
type Client struct {
	webhookSecret string
	entitlementID string
}

// NewClient validates the configured secret once at process start.
func NewClient(ctx context.Context, cfg config.RevenueCatConfig, logg *logger.Logger) (*Client, error) {
	secret := strings.TrimSpace(cfg.WebhookSecret)
	if secret == "" {
		return nil, errSecretRequired
	}

	entitlementID := strings.TrimSpace(cfg.EntitlementID)

	if logg != nil {
		scope := entitlementID
		if scope == "" {
			scope = "all entitlements"
		}
		logg.Info(ctx, fmt.Sprintf("revenuecat client initialized (tracking %s)", scope))
	}

	return &Client{
		webhookSecret: secret,
		entitlementID: entitlementID,
	}, nil
}

// WebhookSecret returns the configured shared secret.
func (c *Client) WebhookSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// EntitlementID returns the single entitlement this service tracks; empty
// means no scoping is applied.
func (c *Client) EntitlementID() string {
	if c == nil {
		return ""
	}
	return c.entitlementID
}

// VerifySecret compares the presented secret in constant time.
func (c *Client) VerifySecret(presented string) bool {
	if c == nil || c.webhookSecret == "" {
		return false
	}
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return false
	}
	return hmac.Equal([]byte(presented), []byte(c.webhookSecret))
}
