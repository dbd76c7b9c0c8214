package domain

import "time"

// Item is a secondhand listing moving through the resale lifecycle:
// submitted (no offer yet) -> offered (admin set offer_price) ->
// approved (owner accepted, listing live), with an independent sold flag
// once approved. Declining at any point removes the row entirely.
//
// Prices are decimal strings with two places ("42.50"); all arithmetic on
// them happens in pkg/pricing on exact decimals.
type Item struct {
	ItemID       string     `json:"id" dynamodbav:"item_id"`
	Name         string     `json:"name" dynamodbav:"name"`
	Description  *string    `json:"description,omitempty" dynamodbav:"description"`
	ListPrice    string     `json:"list_price" dynamodbav:"list_price"`
	OfferPrice   *string    `json:"offer_price,omitempty" dynamodbav:"offer_price,omitempty"`
	PurchaseDate *time.Time `json:"purchase_date,omitempty" dynamodbav:"purchase_date"`
	CategoryIDs  []string   `json:"category_ids" dynamodbav:"category_ids"`
	ImageFileID  *string    `json:"image_file_id,omitempty" dynamodbav:"image_file_id"`
	VideoFileID  *string    `json:"video_file_id,omitempty" dynamodbav:"video_file_id"`
	UserID       string     `json:"user_id" dynamodbav:"user_id"`
	Approved     bool       `json:"approved" dynamodbav:"approved"`
	Sold         bool       `json:"sold" dynamodbav:"sold"`
	CreatedAt    time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time  `json:"updated" dynamodbav:"updated_at"`
}

type CreateItemRequest struct {
	Name         string   `json:"name" validate:"required,max=100"`
	Description  *string  `json:"description"`
	ListPrice    string   `json:"list_price" validate:"required"`
	PurchaseDate *string  `json:"purchase_date"` // expected format: YYYY-MM-DD
	CategoryIDs  []string `json:"category_ids"`
	ImageFileID  *string  `json:"image_file_id"`
	VideoFileID  *string  `json:"video_file_id"`
}

// UpdateItemRequest is the allow-list of fields the owner may edit while the
// item is still awaiting an offer. Price, offer, approval and sold state are
// never client-writable.
type UpdateItemRequest struct {
	Name         *string   `json:"name" validate:"omitempty,max=100"`
	Description  *string   `json:"description"`
	PurchaseDate *string   `json:"purchase_date"` // expected format: YYYY-MM-DD
	CategoryIDs  *[]string `json:"category_ids"`
	ImageFileID  *string   `json:"image_file_id"`
	VideoFileID  *string   `json:"video_file_id"`
}
