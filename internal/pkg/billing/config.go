package billing

import (
	"strings"
	"time"

	"github.com/ManuelReschke/PrepVault/internal/pkg/env"
)

const (
	defaultRazorpayAPIBaseURL = "https://api.razorpay.com/v1"
	defaultCurrency           = "INR"
)

// Config holds gateway credentials. KeySecret signs client-side payment proofs
// and authenticates API calls; WebhookSecret signs webhook bodies. They are
// distinct secrets and are never interchanged.
type Config struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	APIBaseURL    string
	Currency      string
	HTTPTimeout   time.Duration
}

// ConfigFromEnv reads the gateway configuration from the environment.
func ConfigFromEnv() Config {
	return Config{
		KeyID:         strings.TrimSpace(env.GetEnv("RAZORPAY_KEY_ID", "")),
		KeySecret:     strings.TrimSpace(env.GetEnv("RAZORPAY_KEY_SECRET", "")),
		WebhookSecret: strings.TrimSpace(env.GetEnv("RAZORPAY_WEBHOOK_SECRET", "")),
		APIBaseURL:    strings.TrimSpace(env.GetEnv("RAZORPAY_API_BASE_URL", defaultRazorpayAPIBaseURL)),
		Currency:      strings.ToUpper(strings.TrimSpace(env.GetEnv("PAYMENT_CURRENCY", defaultCurrency))),
		HTTPTimeout:   15 * time.Second,
	}
}

// GatewayConfigured reports whether paid orders can be created.
func (c Config) GatewayConfigured() bool {
	return c.KeyID != "" && c.KeySecret != ""
}

func (c Config) currency() string {
	if c.Currency == "" {
		return defaultCurrency
	}
	return c.Currency
}
