package models

import "time"

// Weekday indexes days with Monday = 0, matching rule storage.
const (
	Monday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// ScheduleRule is a weekly recurrence rule owned by a class: e.g. Mon @ 17:30,
// every 2 weeks, from start_date until end_date. The booking core only reads
// rules; they are authored through the catalog endpoints.
type ScheduleRule struct {
	ID        string     `db:"id" json:"id"`
	ClassID   string     `db:"class_id" json:"class_id"`
	Weekday   int        `db:"weekday" json:"weekday"`
	TimeOfDay *string    `db:"time_of_day" json:"time_of_day,omitempty"`
	StartDate time.Time  `db:"start_date" json:"start_date"`
	EndDate   *time.Time `db:"end_date" json:"end_date,omitempty"`
	Interval  int        `db:"interval_weeks" json:"interval"`
	Active    bool       `db:"active" json:"active"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Occurrence is one concrete, dated instantiation of a schedule rule. Derived,
// never persisted; recomputed on each render.
type Occurrence struct {
	ClassID string    `json:"class_id"`
	RuleID  string    `json:"rule_id"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// OccurrenceView is an occurrence plus its signed booking token, as rendered
// to clients.
type OccurrenceView struct {
	ClassID string    `json:"class_id"`
	RuleID  string    `json:"rule_id"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Token   string    `json:"token"`
}
