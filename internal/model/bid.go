package model

import "time"

// Bid sources.
const (
	SourceNaraMarket = "naramarket"
	SourceKorail     = "korail"
)

// Bid statuses.
const (
	BidActive   = "active"
	BidClosed   = "closed"
	BidUpcoming = "upcoming"
)

// BidItem is a public tender notice found by the monitor.
type BidItem struct {
	ID          string    `db:"id" json:"id"`
	Source      string    `db:"source" json:"source"`
	ExternalID  string    `db:"external_id" json:"external_id"`
	Title       string    `db:"title" json:"title"`
	Company     string    `db:"company" json:"company"`
	Price       string    `db:"price" json:"price"`
	Deadline    string    `db:"deadline" json:"deadline"`
	Status      string    `db:"status" json:"status"`
	URL         string    `db:"url" json:"url"`
	Description string    `db:"description" json:"description,omitempty"`
	Location    string    `db:"location" json:"location,omitempty"`
	Category    string    `db:"category" json:"category,omitempty"`
	Keyword     string    `db:"keyword" json:"keyword,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// BidFilter narrows bid queries. Keywords match title, description or
// category, case-insensitively.
type BidFilter struct {
	Keywords []string
	Status   string
	Source   string
	Limit    int
}
