package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/classbook/classbook-api/internal/models"
	"github.com/classbook/classbook-api/internal/service"
	appErrors "github.com/classbook/classbook-api/pkg/errors"
	"github.com/classbook/classbook-api/pkg/response"
)

type bookingAdmitter interface {
	Admit(ctx context.Context, userID, classID, token string) (*models.AdmissionResult, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, *models.Pagination, error)
}

type classResolver interface {
	ResolveSlug(ctx context.Context, slug string) (*models.ClassDetail, error)
}

type bookingExporter interface {
	Render(ctx context.Context, userID string, format service.ExportFormat) ([]byte, error)
}

// BookRequest carries the occurrence token returned verbatim by the client.
type BookRequest struct {
	Token string `json:"token" binding:"required"`
}

// BookingHandler exposes booking endpoints.
type BookingHandler struct {
	bookings bookingAdmitter
	classes  classResolver
	exports  bookingExporter
}

// NewBookingHandler constructs BookingHandler.
func NewBookingHandler(bookings bookingAdmitter, classes classResolver, exports bookingExporter) *BookingHandler {
	return &BookingHandler{bookings: bookings, classes: classes, exports: exports}
}

// Create godoc
// @Summary Book one occurrence of a class
// @Description Validates the signed occurrence token and commits at most one
// @Description booking per (user, class, start). A duplicate submission is a
// @Description benign ALREADY_BOOKED outcome, not an error.
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Class slug"
// @Param payload body BookRequest true "Occurrence token"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Router /classes/{slug}/bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	detail, err := h.classes.ResolveSlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.bookings.Admit(c.Request.Context(), claims.UserID, detail.ID, req.Token)
	if err != nil {
		response.Error(c, err)
		return
	}

	switch result.Outcome {
	case models.OutcomeCommitted:
		response.Created(c, result)
	case models.OutcomeAlreadyBooked:
		response.JSON(c, http.StatusOK, result, nil)
	default:
		response.Error(c, admissionError(result.Outcome))
	}
}

// List godoc
// @Summary List my bookings
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param upcoming query bool false "Only sessions that have not started"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var filter models.BookingFilter
	filter.UserID = claims.UserID
	filter.UpcomingOnly = c.Query("upcoming") == "true"
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	bookings, pagination, err := h.bookings.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, pagination)
}

// Export godoc
// @Summary Export my upcoming bookings
// @Tags Bookings
// @Produce text/csv
// @Produce application/pdf
// @Produce text/calendar
// @Security BearerAuth
// @Param format query string false "csv, pdf or ics (default csv)"
// @Success 200 {string} string "export payload"
// @Router /bookings/export [get]
func (h *BookingHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	payload, err := h.exports.Render(c.Request.Context(), claims.UserID, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="bookings.`+string(format)+`"`)
	c.Data(http.StatusOK, format.ContentType(), payload)
}

func admissionError(outcome models.AdmissionOutcome) *appErrors.Error {
	switch outcome {
	case models.OutcomeExpired:
		return appErrors.ErrTokenExpired
	case models.OutcomeOutOfWindow:
		return appErrors.ErrOutOfWindow
	case models.OutcomeClassMismatch:
		return appErrors.ErrClassMismatch
	case models.OutcomeAlreadyStarted:
		return appErrors.ErrAlreadyStarted
	default:
		return appErrors.ErrInvalidToken
	}
}
