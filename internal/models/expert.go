package models

import "time"

// Expert is a read-only record from the expert catalog. The catalog is
// consumed by candidate sourcing and by the matching scorer; this service
// never writes to it.
type Expert struct {
	ID          string     `db:"id" json:"id"`
	Slug        string     `db:"slug" json:"slug"`
	Name        string     `db:"name" json:"name"`
	Headline    string     `db:"headline" json:"headline"`
	Bio         string     `db:"bio" json:"bio"`
	Expertise   StringList `db:"expertise" json:"expertise"`
	Categories  StringList `db:"categories" json:"categories"`
	Rating      float64    `db:"rating" json:"rating"`
	ReviewCount int        `db:"review_count" json:"review_count"`
	Verified    bool       `db:"verified" json:"verified"`
	HourlyRate  *float64   `db:"hourly_rate" json:"hourly_rate,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// ExpertFilter narrows catalog searches.
type ExpertFilter struct {
	Search   string
	Category string
	Verified *bool
	Limit    int
}
