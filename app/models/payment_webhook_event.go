package models

import "time"

const PaymentProviderRazorpay = "razorpay"

// PaymentWebhookEvent journals gateway webhook deliveries for audit. It is not
// a deduplication gate; the conditional status update on Payment is.
type PaymentWebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index:ux_payment_webhook_events_provider_event,unique,priority:1" json:"provider"`
	ProviderEventID string     `gorm:"type:varchar(191);not null;default:'';index:ux_payment_webhook_events_provider_event,unique,priority:2" json:"provider_event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	GatewayOrderID  string     `gorm:"type:varchar(64);not null;default:'';index" json:"gateway_order_id"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	Deliveries      int        `gorm:"not null;default:1" json:"deliveries"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
