package model

import (
	"time"
)

// Order is one completed purchase. Rows are append-only: an order is written
// exactly once, when its invoice settles, and never updated afterwards.
// ProductName is denormalized so historic orders stay readable if the
// catalog changes.
type Order struct {
	ID              int64     `db:"id"`
	Timestamp       time.Time `db:"ts"`
	UserID          int64     `db:"user_id"`
	ProductID       int       `db:"product_id"`
	ProductName     string    `db:"product_name"`
	Quantity        int       `db:"quantity"`
	Price           float64   `db:"price"`
	InvoiceID       string    `db:"invoice_id"`
	DiscountCode    *string   `db:"discount_code"`
	DiscountPercent int       `db:"discount_percent"`
	ReferredBy      *int64    `db:"referred_by"`
	Address         string    `db:"address"`
}

// DiscountCode is an admin-issued percentage discount. Codes are stored
// upper-cased; a nil Expires never expires. Expired codes are treated as
// absent by lookups but are not deleted.
type DiscountCode struct {
	Code    string     `db:"code"`
	Percent int        `db:"percent"`
	Expires *time.Time `db:"expires"`
}

// Giveaway is one promotional campaign
type Giveaway struct {
	ID          int64     `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Prize       string    `db:"prize"`
	StartDate   time.Time `db:"start_date"`
	EndDate     time.Time `db:"end_date"`
	MaxEntries  int       `db:"max_entries"`
	IsActive    bool      `db:"is_active"`
}

// GiveawayEntry is one user's entry into a giveaway. At most one entry may
// exist per (giveaway, user) pair.
type GiveawayEntry struct {
	ID         int64     `db:"id"`
	GiveawayID int64     `db:"giveaway_id"`
	UserID     int64     `db:"user_id"`
	Username   string    `db:"username"`
	EnteredAt  time.Time `db:"entered_at"`
}

// BroadcastMessage records one admin broadcast
type BroadcastMessage struct {
	ID         int64     `db:"id"`
	Text       string    `db:"message_text"`
	SentBy     int64     `db:"sent_by"`
	SentAt     time.Time `db:"sent_at"`
	Recipients int       `db:"recipients"`
}
