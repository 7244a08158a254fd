package export

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSessions() []Session {
	start := time.Date(2024, 3, 11, 17, 30, 0, 0, time.UTC)
	return []Session{
		{
			BookingID:  "b1",
			ClassTitle: "Evening Yoga",
			City:       "Berlin",
			Start:      start,
			End:        start.Add(time.Hour),
		},
		{
			BookingID:  "b2",
			ClassTitle: "Morning HIIT",
			City:       "Hamburg",
			Start:      start.AddDate(0, 0, 3),
			End:        start.AddDate(0, 0, 3).Add(time.Hour),
		},
	}
}

func TestCSVRender(t *testing.T) {
	payload, err := NewCSVExporter().Render(sampleSessions())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "class,city,start,end", lines[0])
	assert.Contains(t, lines[1], "Evening Yoga,Berlin,2024-03-11T17:30:00Z")
}

func TestCSVRenderEmpty(t *testing.T) {
	payload, err := NewCSVExporter().Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "class,city,start,end\n", string(payload))
}

func TestICSRender(t *testing.T) {
	payload, err := NewICSExporter().Render(sampleSessions(), "My classes")
	require.NoError(t, err)

	body := string(payload)
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "METHOD:PUBLISH")
	assert.Equal(t, 2, strings.Count(body, "BEGIN:VEVENT"))
	assert.Contains(t, body, "UID:b1@classbook")
	assert.Contains(t, body, "SUMMARY:Evening Yoga")
	assert.Contains(t, body, "LOCATION:Berlin")
	assert.Contains(t, body, "DTSTART:20240311T173000Z")
}

func TestICSRenderStableAcrossRuns(t *testing.T) {
	// Calendar clients dedupe on UID, so two exports of the same bookings
	// must carry the same UIDs.
	first, err := NewICSExporter().Render(sampleSessions(), "My classes")
	require.NoError(t, err)
	second, err := NewICSExporter().Render(sampleSessions(), "My classes")
	require.NoError(t, err)

	assert.Equal(t, extractUIDs(string(first)), extractUIDs(string(second)))
}

func extractUIDs(body string) []string {
	var uids []string
	for _, line := range strings.Split(body, "\r\n") {
		if strings.HasPrefix(line, "UID:") {
			uids = append(uids, line)
		}
	}
	return uids
}

func TestPDFRender(t *testing.T) {
	payload, err := NewPDFExporter().Render(sampleSessions(), "My classes")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(payload), "%PDF"))
	assert.NotEmpty(t, payload)
}
