package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/classbook/classbook-api/internal/models"
	"github.com/classbook/classbook-api/internal/service"
	appErrors "github.com/classbook/classbook-api/pkg/errors"
	"github.com/classbook/classbook-api/pkg/response"
)

type classCatalog interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, *models.Pagination, error)
	Detail(ctx context.Context, slug string, from time.Time, window time.Duration, limit int) (*models.ClassDetail, []models.OccurrenceView, error)
	ResolveSlug(ctx context.Context, slug string) (*models.ClassDetail, error)
	Create(ctx context.Context, ownerID string, req service.CreateClassRequest) (*models.ActivityClass, error)
	CreateRule(ctx context.Context, callerID string, callerRole models.UserRole, classID string, req service.ScheduleRuleRequest) (*models.ScheduleRule, error)
	UpdateRule(ctx context.Context, callerID string, callerRole models.UserRole, ruleID string, req service.ScheduleRuleRequest) (*models.ScheduleRule, error)
	DeleteRule(ctx context.Context, callerID string, callerRole models.UserRole, ruleID string) error
}

type occurrenceLister interface {
	Occurrences(ctx context.Context, classID string, windowStart, windowEnd time.Time) ([]models.OccurrenceView, bool, error)
}

// ClassHandler exposes catalog endpoints.
type ClassHandler struct {
	classes       classCatalog
	schedule      occurrenceLister
	defaultWindow time.Duration
}

// NewClassHandler constructs ClassHandler.
func NewClassHandler(classes classCatalog, schedule occurrenceLister, defaultWindow time.Duration) *ClassHandler {
	if defaultWindow <= 0 {
		defaultWindow = 14 * 24 * time.Hour
	}
	return &ClassHandler{classes: classes, schedule: schedule, defaultWindow: defaultWindow}
}

// List godoc
// @Summary List classes
// @Tags Classes
// @Produce json
// @Param q query string false "Search in title/description"
// @Param tag query string false "Filter by tag slug"
// @Param city query string false "Filter by city"
// @Param date query string false "Only classes running on this date's weekday (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	var filter models.ClassFilter
	filter.Query = c.Query("q")
	filter.Tag = c.Query("tag")
	filter.City = c.Query("city")
	if raw := c.Query("date"); raw != "" {
		// Invalid dates are ignored rather than rejected, matching the
		// forgiving catalog search behaviour.
		if d, err := time.Parse("2006-01-02", raw); err == nil {
			weekday := (int(d.Weekday()) + 6) % 7
			filter.Weekday = &weekday
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "12")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	classes, pagination, err := h.classes.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, pagination)
}

// Detail godoc
// @Summary Class detail with upcoming sessions
// @Tags Classes
// @Produce json
// @Param slug path string true "Class slug"
// @Success 200 {object} response.Envelope
// @Router /classes/{slug} [get]
func (h *ClassHandler) Detail(c *gin.Context) {
	detail, upcoming, err := h.classes.Detail(c.Request.Context(), c.Param("slug"), time.Now(), h.defaultWindow, 10)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"class": detail, "upcoming": upcoming}, nil)
}

// Occurrences godoc
// @Summary Bookable occurrences for a class
// @Description Expands the class's weekly rules over [from, to) and returns
// @Description each occurrence with its signed booking token.
// @Tags Classes
// @Produce json
// @Param slug path string true "Class slug"
// @Param from query string false "Window start (RFC3339), defaults to now"
// @Param to query string false "Window end (RFC3339), defaults to from + default window"
// @Success 200 {object} response.Envelope
// @Router /classes/{slug}/occurrences [get]
func (h *ClassHandler) Occurrences(c *gin.Context) {
	detail, err := h.classes.ResolveSlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		response.Error(c, err)
		return
	}

	from := time.Now()
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid from timestamp"))
			return
		}
		from = parsed
	}
	to := from.Add(h.defaultWindow)
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid to timestamp"))
			return
		}
		to = parsed
	}

	occurrences, cached, err := h.schedule.Occurrences(c.Request.Context(), detail.ID, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, occurrences, nil, map[string]interface{}{"cache_hit": cached})
}

// Create godoc
// @Summary Create a class
// @Tags Classes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	class, err := h.classes.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// CreateRule godoc
// @Summary Add a weekly schedule rule to a class
// @Tags Classes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Class slug"
// @Param payload body service.ScheduleRuleRequest true "Rule payload"
// @Success 201 {object} response.Envelope
// @Router /classes/{slug}/rules [post]
func (h *ClassHandler) CreateRule(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	detail, err := h.classes.ResolveSlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.ScheduleRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	rule, err := h.classes.CreateRule(c.Request.Context(), claims.UserID, claims.Role, detail.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rule)
}

// UpdateRule godoc
// @Summary Update a schedule rule
// @Tags Classes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Rule ID"
// @Param payload body service.ScheduleRuleRequest true "Rule payload"
// @Success 200 {object} response.Envelope
// @Router /rules/{id} [put]
func (h *ClassHandler) UpdateRule(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.ScheduleRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	rule, err := h.classes.UpdateRule(c.Request.Context(), claims.UserID, claims.Role, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rule, nil)
}

// DeleteRule godoc
// @Summary Delete a schedule rule
// @Tags Classes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Rule ID"
// @Success 204 "No Content"
// @Router /rules/{id} [delete]
func (h *ClassHandler) DeleteRule(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.classes.DeleteRule(c.Request.Context(), claims.UserID, claims.Role, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
