package models

// All returns every model managed by this service, in migration order.
func All() []interface{} {
	return []interface{}{
		&Plan{},
		&Payment{},
		&AccessGrant{},
		&Notification{},
		&PaymentWebhookEvent{},
	}
}
