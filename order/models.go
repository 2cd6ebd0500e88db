package order

import "time"

// Summary captures the subset of marketplace order data the admin console
// surfaces next to a claim.
type Summary struct {
	ID        string
	Title     string
	Amount    int64
	Status    string
	Deadline  *time.Time
	CreatedAt time.Time
}
