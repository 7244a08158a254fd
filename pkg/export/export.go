package export

import "time"

// Session is one booked class occurrence prepared for export.
type Session struct {
	BookingID  string
	ClassTitle string
	City       string
	Start      time.Time
	End        time.Time
}

var csvHeaders = []string{"class", "city", "start", "end"}
