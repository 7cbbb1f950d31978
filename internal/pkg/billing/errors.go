package billing

import "errors"

var (
	// validation
	ErrInvalidRequest = errors.New("invalid request")
	ErrPlanNotFound   = errors.New("plan not found")
	ErrPlanInactive   = errors.New("plan is not active")

	// configuration
	ErrGatewayNotConfigured = errors.New("payment gateway credentials are not configured")

	// upstream; safe to retry
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// authentication
	ErrInvalidSignature = errors.New("invalid signature")

	// state; also returned on ownership mismatch so other users' orders stay invisible
	ErrOrderNotFound  = errors.New("order not found")
	ErrPaymentClosed  = errors.New("payment can no longer be completed")
	ErrInvalidPayload = errors.New("invalid webhook payload")
)
