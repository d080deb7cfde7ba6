package model

import "time"

// TransactionStatus tracks a claim from pickup to delivery.
type TransactionStatus string

const (
	TransactionClaimed   TransactionStatus = "claimed"
	TransactionPickedUp  TransactionStatus = "picked_up"
	TransactionDelivered TransactionStatus = "delivered"
	TransactionCancelled TransactionStatus = "cancelled"
)

// Transaction records an organization claiming a listing.
type Transaction struct {
	ID              string            `json:"id"`
	ListingID       string            `json:"food_listing_id"`
	OrganizationID  string            `json:"receiver_id,omitempty"`
	Status          TransactionStatus `json:"status"`
	ClaimedAt       time.Time         `json:"claimed_at"`
	ScheduledPickup *time.Time        `json:"scheduled_pickup,omitempty"`
	Notes           string            `json:"notes,omitempty"`
}

// Stats summarises the marketplace for the dashboard.
type Stats struct {
	TotalDonations      int `json:"total_donations"`
	Available           int `json:"available_donations"`
	Claimed             int `json:"claimed_donations"`
	Delivered           int `json:"delivered_donations"`
	Expired             int `json:"expired_donations"`
	Organizations       int `json:"organizations_count"`
	DonationsWithImages int `json:"donations_with_images"`
	AISafe              int `json:"ai_safe"`
	AIConsumeSoon       int `json:"ai_consume_soon"`
	AIReject            int `json:"ai_reject"`
}
