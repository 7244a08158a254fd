package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classbook/classbook-api/internal/models"
	appErrors "github.com/classbook/classbook-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.ActivityClass, error)
	FindDetailBySlug(ctx context.Context, slug string) (*models.ClassDetail, error)
	ListTags(ctx context.Context, classID string) ([]models.Tag, error)
	Create(ctx context.Context, class *models.ActivityClass) error
}

type scheduleRuleRepository interface {
	FindByID(ctx context.Context, id string) (*models.ScheduleRule, error)
	Create(ctx context.Context, rule *models.ScheduleRule) error
	Update(ctx context.Context, rule *models.ScheduleRule) error
	Delete(ctx context.Context, id string) error
}

type occurrenceInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// CreateClassRequest describes class creation payload.
type CreateClassRequest struct {
	Title       string  `json:"title" validate:"required,max=140"`
	Description string  `json:"description"`
	LocationID  string  `json:"location_id" validate:"required"`
	CoachName   string  `json:"coach_name"`
	Price       float64 `json:"price" validate:"gte=0"`
}

// ScheduleRuleRequest describes rule creation/update payload. This is the
// data-entry boundary for rules: malformed intervals and inverted date bounds
// are rejected here so the expander can assume valid input.
type ScheduleRuleRequest struct {
	Weekday   int     `json:"weekday" validate:"gte=0,lte=6"`
	TimeOfDay *string `json:"time_of_day" validate:"omitempty,datetime=15:04"`
	StartDate string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   *string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Interval  int     `json:"interval" validate:"required,min=1"`
	Active    bool    `json:"active"`
}

// ClassService serves the catalog: class listings, detail pages with upcoming
// occurrences, and schedule-rule management for class owners.
type ClassService struct {
	classes   classRepository
	rules     scheduleRuleRepository
	schedule  *ScheduleService
	cache     occurrenceInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs ClassService.
func NewClassService(classes classRepository, rules scheduleRuleRepository, schedule *ScheduleService, cache occurrenceInvalidator, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{classes: classes, rules: rules, schedule: schedule, cache: cache, validator: validate, logger: logger}
}

// List returns catalog entries with pagination metadata.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, *models.Pagination, error) {
	classes, total, err := s.classes.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 12
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return classes, pagination, nil
}

// Detail returns a class by slug with its tags and next upcoming occurrences.
func (s *ClassService) Detail(ctx context.Context, slug string, from time.Time, window time.Duration, limit int) (*models.ClassDetail, []models.OccurrenceView, error) {
	detail, err := s.classes.FindDetailBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	tags, err := s.classes.ListTags(ctx, detail.ID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class tags")
	}
	detail.Tags = tags

	upcoming, err := s.schedule.Upcoming(ctx, detail.ID, from, window, limit)
	if err != nil {
		return nil, nil, err
	}
	return detail, upcoming, nil
}

// ResolveSlug returns the class behind a slug.
func (s *ClassService) ResolveSlug(ctx context.Context, slug string) (*models.ClassDetail, error) {
	detail, err := s.classes.FindDetailBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return detail, nil
}

// Create registers a new class owned by the caller.
func (s *ClassService) Create(ctx context.Context, ownerID string, req CreateClassRequest) (*models.ActivityClass, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	class := &models.ActivityClass{
		OwnerID:     ownerID,
		Title:       req.Title,
		Description: req.Description,
		LocationID:  req.LocationID,
		CoachName:   req.CoachName,
		Price:       req.Price,
		Slug:        slugify(req.Title),
	}
	if err := s.classes.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	return class, nil
}

// CreateRule adds a weekly rule to a class the caller owns.
func (s *ClassService) CreateRule(ctx context.Context, callerID string, callerRole models.UserRole, classID string, req ScheduleRuleRequest) (*models.ScheduleRule, error) {
	rule, err := s.buildRule(req)
	if err != nil {
		return nil, err
	}
	if err := s.authoriseRuleChange(ctx, callerID, callerRole, classID); err != nil {
		return nil, err
	}
	rule.ClassID = classID
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule rule")
	}
	s.invalidateOccurrences(ctx, classID)
	return rule, nil
}

// UpdateRule rewrites an existing rule.
func (s *ClassService) UpdateRule(ctx context.Context, callerID string, callerRole models.UserRole, ruleID string, req ScheduleRuleRequest) (*models.ScheduleRule, error) {
	updated, err := s.buildRule(req)
	if err != nil {
		return nil, err
	}
	existing, err := s.rules.FindByID(ctx, ruleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule rule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule rule")
	}
	if err := s.authoriseRuleChange(ctx, callerID, callerRole, existing.ClassID); err != nil {
		return nil, err
	}
	updated.ID = existing.ID
	updated.ClassID = existing.ClassID
	updated.CreatedAt = existing.CreatedAt
	if err := s.rules.Update(ctx, updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule rule")
	}
	s.invalidateOccurrences(ctx, existing.ClassID)
	return updated, nil
}

// DeleteRule removes a rule.
func (s *ClassService) DeleteRule(ctx context.Context, callerID string, callerRole models.UserRole, ruleID string) error {
	existing, err := s.rules.FindByID(ctx, ruleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule rule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule rule")
	}
	if err := s.authoriseRuleChange(ctx, callerID, callerRole, existing.ClassID); err != nil {
		return err
	}
	if err := s.rules.Delete(ctx, ruleID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule rule")
	}
	s.invalidateOccurrences(ctx, existing.ClassID)
	return nil
}

func (s *ClassService) buildRule(req ScheduleRuleRequest) (*models.ScheduleRule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule rule payload")
	}
	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start_date")
	}
	var endDate *time.Time
	if req.EndDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.EndDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid end_date")
		}
		if parsed.Before(startDate) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must not precede start_date")
		}
		endDate = &parsed
	}
	return &models.ScheduleRule{
		Weekday:   req.Weekday,
		TimeOfDay: req.TimeOfDay,
		StartDate: startDate,
		EndDate:   endDate,
		Interval:  req.Interval,
		Active:    req.Active,
	}, nil
}

func (s *ClassService) authoriseRuleChange(ctx context.Context, callerID string, callerRole models.UserRole, classID string) error {
	if callerRole == models.RoleAdmin {
		return nil
	}
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.OwnerID != callerID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the class owner may manage its schedule")
	}
	return nil
}

func (s *ClassService) invalidateOccurrences(ctx context.Context, classID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("occurrences:%s:*", classID)); err != nil {
		s.logger.Warn("occurrence cache invalidation failed", zap.String("class_id", classID), zap.Error(err))
	}
}

func slugify(raw string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
