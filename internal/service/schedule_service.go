package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/classbook/classbook-api/internal/models"
	appErrors "github.com/classbook/classbook-api/pkg/errors"
	"github.com/classbook/classbook-api/pkg/occtoken"
)

type scheduleRuleReader interface {
	ListByClass(ctx context.Context, classID string) ([]models.ScheduleRule, error)
}

type occurrenceCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
}

// ScheduleService expands a class's weekly rules into bookable occurrences
// and signs each one into a token.
type ScheduleService struct {
	rules           scheduleRuleReader
	codec           *occtoken.Codec
	cache           occurrenceCache
	location        *time.Location
	sessionDuration time.Duration
	logger          *zap.Logger
}

// NewScheduleService constructs ScheduleService. A nil location defaults to
// UTC; a non-positive session duration defaults to one hour.
func NewScheduleService(rules scheduleRuleReader, codec *occtoken.Codec, cache occurrenceCache, location *time.Location, sessionDuration time.Duration, logger *zap.Logger) *ScheduleService {
	if location == nil {
		location = time.UTC
	}
	if sessionDuration <= 0 {
		sessionDuration = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{rules: rules, codec: codec, cache: cache, location: location, sessionDuration: sessionDuration, logger: logger}
}

// ExpandRules turns weekly rules into the ascending-sorted occurrences whose
// start falls inside the half-open window [windowStart, windowEnd). Starts are
// built by combining each matching calendar date with the rule's time-of-day
// in loc, so occurrences stay correct across DST transitions.
//
// Per rule, candidate dates ascend, so generation stops once a start reaches
// windowEnd. Dates before the rule's start_date are rejected without stopping:
// interval stepping can land on start_date later.
func ExpandRules(rules []models.ScheduleRule, windowStart, windowEnd time.Time, loc *time.Location, sessionDuration time.Duration) []models.Occurrence {
	if loc == nil {
		loc = time.UTC
	}
	if sessionDuration <= 0 {
		sessionDuration = time.Hour
	}

	var occurrences []models.Occurrence
	localStart := windowStart.In(loc)

	for _, rule := range rules {
		if !rule.Active || rule.TimeOfDay == nil {
			continue
		}
		hour, minute, ok := parseTimeOfDay(*rule.TimeOfDay)
		if !ok {
			continue
		}

		// First calendar date on/after the window start whose weekday
		// matches the rule (Monday = 0).
		year, month, day := localStart.Date()
		date := time.Date(year, month, day, 0, 0, 0, 0, loc)
		offset := (rule.Weekday - mondayIndex(date.Weekday()) + 7) % 7
		date = date.AddDate(0, 0, offset)

		interval := rule.Interval
		if interval < 1 {
			interval = 1
		}

		for {
			start := time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, loc)
			if !start.Before(windowEnd) {
				break
			}
			if !start.Before(windowStart) && onOrAfterDate(date, rule.StartDate) && withinEndDate(date, rule.EndDate) {
				occurrences = append(occurrences, models.Occurrence{
					ClassID: rule.ClassID,
					RuleID:  rule.ID,
					Start:   start,
					End:     start.Add(sessionDuration),
				})
			}
			date = date.AddDate(0, 0, 7*interval)
		}
	}

	// Stable keeps per-rule relative order for equal starts.
	sort.SliceStable(occurrences, func(i, j int) bool {
		return occurrences[i].Start.Before(occurrences[j].Start)
	})
	return occurrences
}

// Occurrences expands a class's rules over the window and attaches a signed
// token to each occurrence. Results are cached briefly; rules are edited
// out-of-band so staleness is bounded by the TTL.
func (s *ScheduleService) Occurrences(ctx context.Context, classID string, windowStart, windowEnd time.Time) ([]models.OccurrenceView, bool, error) {
	if !windowStart.Before(windowEnd) {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "window start must be before window end")
	}

	cacheKey := occurrenceCacheKey(classID, windowStart, windowEnd)
	if s.cache != nil {
		var cached []models.OccurrenceView
		hit, err := s.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			s.logger.Warn("occurrence cache lookup failed", zap.String("class_id", classID), zap.Error(err))
		}
		if hit {
			return cached, true, nil
		}
	}

	rules, err := s.rules.ListByClass(ctx, classID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule rules")
	}

	occurrences := ExpandRules(rules, windowStart, windowEnd, s.location, s.sessionDuration)
	views := make([]models.OccurrenceView, 0, len(occurrences))
	for _, occ := range occurrences {
		token, err := s.codec.Encode(occ.ClassID, occ.Start, occ.End)
		if err != nil {
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign occurrence")
		}
		views = append(views, models.OccurrenceView{
			ClassID: occ.ClassID,
			RuleID:  occ.RuleID,
			Start:   occ.Start,
			End:     occ.End,
			Token:   token,
		})
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, views); err != nil {
			s.logger.Warn("occurrence cache store failed", zap.String("class_id", classID), zap.Error(err))
		}
	}
	return views, false, nil
}

// Upcoming returns the next occurrences for a class starting from now.
func (s *ScheduleService) Upcoming(ctx context.Context, classID string, from time.Time, window time.Duration, limit int) ([]models.OccurrenceView, error) {
	views, _, err := s.Occurrences(ctx, classID, from, from.Add(window))
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(views) > limit {
		views = views[:limit]
	}
	return views, nil
}

func occurrenceCacheKey(classID string, windowStart, windowEnd time.Time) string {
	return fmt.Sprintf("occurrences:%s:%d:%d", classID, windowStart.Unix(), windowEnd.Unix())
}

func mondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

func parseTimeOfDay(raw string) (hour, minute int, ok bool) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) < 2 {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, false
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

func onOrAfterDate(date, bound time.Time) bool {
	y1, m1, d1 := date.Date()
	y2, m2, d2 := bound.Date()
	if y1 != y2 {
		return y1 > y2
	}
	if m1 != m2 {
		return m1 > m2
	}
	return d1 >= d2
}

func withinEndDate(date time.Time, end *time.Time) bool {
	if end == nil {
		return true
	}
	return !onOrAfterDate(date, *end) || sameDate(date, *end)
}

func sameDate(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
