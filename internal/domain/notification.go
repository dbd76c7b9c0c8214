package domain

import "time"

// Notification type tags.
const (
	NotificationInfo     = "INFO"
	NotificationOffer    = "OFFER"
	NotificationApproved = "APPROVED"
	NotificationDeclined = "DECLINED"
	NotificationSold     = "SOLD"
)

// Notification is an append-only per-user message written as a side effect
// of an item transition. Only the is_read flag ever changes after insert.
// ItemID is nil when the referenced item was deleted as part of the same
// transition (declines).
type Notification struct {
	NotificationID string    `json:"id" dynamodbav:"notification_id"`
	UserID         string    `json:"user_id" dynamodbav:"user_id"`
	ItemID         *string   `json:"item_id,omitempty" dynamodbav:"item_id"`
	Type           string    `json:"type" dynamodbav:"type"`
	Message        string    `json:"message" dynamodbav:"message"`
	OfferPrice     *string   `json:"offer_price,omitempty" dynamodbav:"offer_price"`
	IsRead         bool      `json:"is_read" dynamodbav:"is_read"`
	CreatedAt      time.Time `json:"created" dynamodbav:"created_at"`
}
