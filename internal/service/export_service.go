package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/classbook/classbook-api/internal/models"
	appErrors "github.com/classbook/classbook-api/pkg/errors"
	"github.com/classbook/classbook-api/pkg/export"
)

// ExportFormat names a supported booking export encoding.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
	FormatICS ExportFormat = "ics"
)

// ContentType returns the MIME type for the format.
func (f ExportFormat) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatICS:
		return "text/calendar"
	default:
		return "text/csv"
	}
}

// ExportService renders a user's upcoming bookings as CSV, PDF or an
// iCalendar feed.
type ExportService struct {
	bookings     bookingRepository
	csv          *export.CSVExporter
	pdf          *export.PDFExporter
	ics          *export.ICSExporter
	calendarName string
	logger       *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(bookings bookingRepository, calendarName string, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		bookings:     bookings,
		csv:          export.NewCSVExporter(),
		pdf:          export.NewPDFExporter(),
		ics:          export.NewICSExporter(),
		calendarName: calendarName,
		logger:       logger,
	}
}

// Render produces the export payload for a user's upcoming bookings.
func (s *ExportService) Render(ctx context.Context, userID string, format ExportFormat) ([]byte, error) {
	details, _, err := s.bookings.List(ctx, models.BookingFilter{
		UserID:       userID,
		UpcomingOnly: true,
		PageSize:     100,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bookings")
	}

	sessions := make([]export.Session, 0, len(details))
	for _, d := range details {
		sessions = append(sessions, export.Session{
			BookingID:  d.ID,
			ClassTitle: d.ClassTitle,
			City:       d.LocationCity,
			Start:      d.StartAt,
			End:        d.EndAt,
		})
	}

	var payload []byte
	switch format {
	case FormatPDF:
		payload, err = s.pdf.Render(sessions, s.calendarName)
	case FormatICS:
		payload, err = s.ics.Render(sessions, s.calendarName)
	case FormatCSV:
		payload, err = s.csv.Render(sessions)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return payload, nil
}
