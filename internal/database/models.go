package database

import "time"

// Delivery is one journaled dispatch attempt.
type Delivery struct {
	ID               int64     `db:"id"`
	ItemID           int64     `db:"item_id"`
	Kind             string    `db:"kind"`
	Platform         string    `db:"platform"`
	RecipientName    string    `db:"recipient_name"`
	RecipientAddress string    `db:"recipient_address"`
	Body             string    `db:"body"`
	Success          bool      `db:"success"`
	Detail           string    `db:"detail"`
	AttemptedAt      time.Time `db:"attempted_at"`
}
