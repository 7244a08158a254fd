package models

import "time"

// Location is a venue where classes run.
type Location struct {
	ID         string `db:"id" json:"id"`
	Address1   string `db:"address1" json:"address1"`
	Address2   string `db:"address2" json:"address2,omitempty"`
	City       string `db:"city" json:"city"`
	PostalCode string `db:"postal_code" json:"postal_code,omitempty"`
	Country    string `db:"country" json:"country,omitempty"`
	Slug       string `db:"slug" json:"slug"`
}

// Tag labels classes for discovery.
type Tag struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Slug string `db:"slug" json:"slug"`
}

// ActivityClass is a bookable class in the catalog.
type ActivityClass struct {
	ID          string    `db:"id" json:"id"`
	OwnerID     string    `db:"owner_id" json:"owner_id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description,omitempty"`
	LocationID  string    `db:"location_id" json:"location_id"`
	CoachName   string    `db:"coach_name" json:"coach_name,omitempty"`
	Price       float64   `db:"price" json:"price"`
	Slug        string    `db:"slug" json:"slug"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ClassDetail enriches ActivityClass with location and tag info.
type ClassDetail struct {
	ActivityClass
	LocationCity string `db:"location_city" json:"location_city"`
	LocationSlug string `db:"location_slug" json:"location_slug"`
	Tags         []Tag  `db:"-" json:"tags,omitempty"`
}

// ClassFilter captures catalog listing criteria.
type ClassFilter struct {
	Query     string
	Tag       string
	City      string
	Weekday   *int
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
