package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/classbook/classbook-api/internal/models"
	appErrors "github.com/classbook/classbook-api/pkg/errors"
	"github.com/classbook/classbook-api/pkg/occtoken"
)

type bookingRepository interface {
	Insert(ctx context.Context, booking *models.Booking) (bool, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, int, error)
}

// BookingService is the admission controller: it validates occurrence tokens
// and commits at-most-one booking per (user, class, start).
type BookingService struct {
	repo           bookingRepository
	codec          *occtoken.Codec
	admissionGrace time.Duration
	metrics        *MetricsService
	logger         *zap.Logger
	now            func() time.Time
}

// NewBookingService constructs BookingService. A non-positive grace defaults
// to five minutes.
func NewBookingService(repo bookingRepository, codec *occtoken.Codec, admissionGrace time.Duration, metrics *MetricsService, logger *zap.Logger) *BookingService {
	if admissionGrace <= 0 {
		admissionGrace = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{repo: repo, codec: codec, admissionGrace: admissionGrace, metrics: metrics, logger: logger, now: time.Now}
}

// WithClock injects a deterministic time source for tests.
func (s *BookingService) WithClock(now func() time.Time) *BookingService {
	if now != nil {
		s.now = now
	}
	return s
}

// Admit runs one booking attempt:
// decode token -> match class -> check start time -> idempotent insert.
// Every rejection maps to exactly one outcome; an error return is reserved for
// storage failures, which are propagated untouched.
func (s *BookingService) Admit(ctx context.Context, userID, classID, token string) (*models.AdmissionResult, error) {
	occ, err := s.codec.Decode(token, time.UTC)
	if err != nil {
		outcome, err := rejectedOutcome(err)
		if err != nil {
			return nil, err
		}
		return s.reject(outcome)
	}

	if occ.ClassID != classID {
		return s.reject(models.OutcomeClassMismatch)
	}

	// The codec's own grace is deliberately looser; this is the business
	// cutoff for a session that is already underway.
	if occ.Start.Before(s.now().Add(-s.admissionGrace)) {
		return s.reject(models.OutcomeAlreadyStarted)
	}

	booking := &models.Booking{
		UserID:  userID,
		ClassID: classID,
		StartAt: occ.Start,
		EndAt:   occ.End,
	}
	inserted, err := s.repo.Insert(ctx, booking)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store booking")
	}
	if !inserted {
		s.observe(models.OutcomeAlreadyBooked)
		return &models.AdmissionResult{Outcome: models.OutcomeAlreadyBooked}, nil
	}

	s.observe(models.OutcomeCommitted)
	s.logger.Info("booking committed",
		zap.String("user_id", userID),
		zap.String("class_id", classID),
		zap.Time("start_at", occ.Start),
	)
	return &models.AdmissionResult{Outcome: models.OutcomeCommitted, Booking: booking}, nil
}

// List returns a user's bookings with pagination metadata.
func (s *BookingService) List(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, *models.Pagination, error) {
	bookings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return bookings, pagination, nil
}

func (s *BookingService) observe(outcome models.AdmissionOutcome) {
	if s.metrics != nil {
		s.metrics.ObserveAdmission(outcome)
	}
}

// reject records the outcome in the admission counter before returning it, so
// every terminal path shows up in metrics, not just the committed ones.
func (s *BookingService) reject(outcome models.AdmissionOutcome) (*models.AdmissionResult, error) {
	s.observe(outcome)
	return &models.AdmissionResult{Outcome: outcome}, nil
}

func rejectedOutcome(err error) (models.AdmissionOutcome, error) {
	switch {
	case errors.Is(err, occtoken.ErrExpired):
		return models.OutcomeExpired, nil
	case errors.Is(err, occtoken.ErrOutOfWindow):
		return models.OutcomeOutOfWindow, nil
	case errors.Is(err, occtoken.ErrBadSignature),
		errors.Is(err, occtoken.ErrMalformedPayload),
		errors.Is(err, occtoken.ErrInvalidRange):
		return models.OutcomeInvalidToken, nil
	default:
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode booking token")
	}
}
