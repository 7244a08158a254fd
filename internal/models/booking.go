package models

import "time"

// AdmissionOutcome is the terminal state of one booking attempt.
type AdmissionOutcome string

const (
	OutcomeCommitted      AdmissionOutcome = "COMMITTED"
	OutcomeAlreadyBooked  AdmissionOutcome = "ALREADY_BOOKED"
	OutcomeInvalidToken   AdmissionOutcome = "INVALID_TOKEN"
	OutcomeExpired        AdmissionOutcome = "EXPIRED"
	OutcomeOutOfWindow    AdmissionOutcome = "OUT_OF_WINDOW"
	OutcomeClassMismatch  AdmissionOutcome = "CLASS_MISMATCH"
	OutcomeAlreadyStarted AdmissionOutcome = "ALREADY_STARTED"
)

// Booking is a committed reservation of one occurrence. Rows are created only
// by admission and never updated; (user_id, class_id, start_at) is unique.
type Booking struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	StartAt   time.Time `db:"start_at" json:"start_at"`
	EndAt     time.Time `db:"end_at" json:"end_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// BookingDetail enriches Booking with class info for listings.
type BookingDetail struct {
	Booking
	ClassTitle   string `db:"class_title" json:"class_title"`
	ClassSlug    string `db:"class_slug" json:"class_slug"`
	LocationCity string `db:"location_city" json:"location_city"`
}

// AdmissionResult reports how a booking attempt terminated. Booking is set
// only when the outcome is OutcomeCommitted.
type AdmissionResult struct {
	Outcome AdmissionOutcome `json:"outcome"`
	Booking *Booking         `json:"booking,omitempty"`
}

// BookingFilter captures listing criteria for a user's bookings.
type BookingFilter struct {
	UserID       string
	ClassID      string
	UpcomingOnly bool
	Page         int
	PageSize     int
}
