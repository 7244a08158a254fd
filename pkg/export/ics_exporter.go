package export

import (
	"fmt"

	ical "github.com/arran4/golang-ical"
)

// ICSExporter renders booked sessions into an iCalendar feed.
type ICSExporter struct{}

// NewICSExporter constructs an ICS exporter.
func NewICSExporter() *ICSExporter {
	return &ICSExporter{}
}

// Render produces an iCalendar document with one VEVENT per session. Booking
// IDs seed the event UIDs so re-exports stay stable for calendar clients.
func (e *ICSExporter) Render(sessions []Session, calendarName string) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//classbook//bookings//EN")
	if calendarName != "" {
		cal.SetName(calendarName)
		cal.SetXWRCalName(calendarName)
	}

	for _, s := range sessions {
		event := cal.AddEvent(fmt.Sprintf("%s@classbook", s.BookingID))
		event.SetSummary(s.ClassTitle)
		event.SetStartAt(s.Start.UTC())
		event.SetEndAt(s.End.UTC())
		if s.City != "" {
			event.SetLocation(s.City)
		}
	}

	return []byte(cal.Serialize()), nil
}
