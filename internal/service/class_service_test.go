package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classbook/classbook-api/internal/models"
	appErrors "github.com/classbook/classbook-api/pkg/errors"
	"github.com/classbook/classbook-api/pkg/occtoken"
)

type mockClassRepo struct {
	classes map[string]models.ActivityClass
	details map[string]models.ClassDetail
	tags    map[string][]models.Tag
	created []models.ActivityClass
}

func (m *mockClassRepo) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	var details []models.ClassDetail
	for _, d := range m.details {
		details = append(details, d)
	}
	return details, len(details), nil
}

func (m *mockClassRepo) FindByID(ctx context.Context, id string) (*models.ActivityClass, error) {
	if c, ok := m.classes[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassRepo) FindDetailBySlug(ctx context.Context, slug string) (*models.ClassDetail, error) {
	if d, ok := m.details[slug]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassRepo) ListTags(ctx context.Context, classID string) ([]models.Tag, error) {
	return m.tags[classID], nil
}

func (m *mockClassRepo) Create(ctx context.Context, class *models.ActivityClass) error {
	if class.ID == "" {
		class.ID = "generated"
	}
	m.created = append(m.created, *class)
	return nil
}

type mockRuleRepo struct {
	rules   map[string]models.ScheduleRule
	created []models.ScheduleRule
	updated []models.ScheduleRule
	deleted []string
}

func (m *mockRuleRepo) FindByID(ctx context.Context, id string) (*models.ScheduleRule, error) {
	if r, ok := m.rules[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRuleRepo) Create(ctx context.Context, rule *models.ScheduleRule) error {
	if rule.ID == "" {
		rule.ID = "generated"
	}
	m.created = append(m.created, *rule)
	return nil
}

func (m *mockRuleRepo) Update(ctx context.Context, rule *models.ScheduleRule) error {
	m.updated = append(m.updated, *rule)
	return nil
}

func (m *mockRuleRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type mockInvalidator struct {
	patterns []string
}

func (m *mockInvalidator) Invalidate(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	return nil
}

func classFixture() (*ClassService, *mockClassRepo, *mockRuleRepo, *mockInvalidator) {
	classRepo := &mockClassRepo{
		classes: map[string]models.ActivityClass{
			"class-1": {ID: "class-1", OwnerID: "owner-1", Title: "Evening Yoga", Slug: "evening-yoga"},
		},
		details: map[string]models.ClassDetail{
			"evening-yoga": {
				ActivityClass: models.ActivityClass{ID: "class-1", OwnerID: "owner-1", Title: "Evening Yoga", Slug: "evening-yoga"},
				LocationCity:  "Berlin",
			},
		},
		tags: map[string][]models.Tag{"class-1": {{ID: "t1", Name: "Yoga", Slug: "yoga"}}},
	}
	ruleRepo := &mockRuleRepo{rules: map[string]models.ScheduleRule{
		"r1": {ID: "r1", ClassID: "class-1", Weekday: models.Monday, Interval: 1, Active: true},
	}}
	invalidator := &mockInvalidator{}
	codec := occtoken.NewCodec("secret", occtoken.WithClock(func() time.Time {
		return time.Date(2024, 1, 7, 12, 0, 0, 0, time.UTC)
	}))
	schedule := NewScheduleService(&mockRuleReader{}, codec, nil, time.UTC, time.Hour, nil)
	svc := NewClassService(classRepo, ruleRepo, schedule, invalidator, nil, nil)
	return svc, classRepo, ruleRepo, invalidator
}

func TestClassDetailAttachesTags(t *testing.T) {
	svc, _, _, _ := classFixture()

	from := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)
	detail, upcoming, err := svc.Detail(context.Background(), "evening-yoga", from, 14*24*time.Hour, 10)
	require.NoError(t, err)
	assert.Equal(t, "Evening Yoga", detail.Title)
	require.Len(t, detail.Tags, 1)
	assert.Equal(t, "yoga", detail.Tags[0].Slug)
	assert.Empty(t, upcoming)
}

func TestClassDetailNotFound(t *testing.T) {
	svc, _, _, _ := classFixture()

	_, _, err := svc.Detail(context.Background(), "missing", time.Now(), time.Hour, 10)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestClassCreateSlugifiesTitle(t *testing.T) {
	svc, classRepo, _, _ := classFixture()

	class, err := svc.Create(context.Background(), "owner-1", CreateClassRequest{
		Title:      "  Morning HIIT & Core!  ",
		LocationID: "loc-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "morning-hiit-core", class.Slug)
	assert.Equal(t, "owner-1", class.OwnerID)
	assert.Len(t, classRepo.created, 1)
}

func TestCreateRuleByOwnerInvalidatesCache(t *testing.T) {
	svc, _, ruleRepo, invalidator := classFixture()

	timeOfDay := "17:30"
	rule, err := svc.CreateRule(context.Background(), "owner-1", models.RoleOwner, "class-1", ScheduleRuleRequest{
		Weekday:   models.Monday,
		TimeOfDay: &timeOfDay,
		StartDate: "2024-01-01",
		Interval:  1,
		Active:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, "class-1", rule.ClassID)
	assert.Len(t, ruleRepo.created, 1)
	require.Len(t, invalidator.patterns, 1)
	assert.Equal(t, "occurrences:class-1:*", invalidator.patterns[0])
}

func TestCreateRuleRejectsNonOwner(t *testing.T) {
	svc, _, ruleRepo, _ := classFixture()

	_, err := svc.CreateRule(context.Background(), "stranger", models.RoleMember, "class-1", ScheduleRuleRequest{
		Weekday:   models.Monday,
		StartDate: "2024-01-01",
		Interval:  1,
		Active:    true,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, ruleRepo.created)
}

func TestCreateRuleAdminBypassesOwnership(t *testing.T) {
	svc, _, ruleRepo, _ := classFixture()

	_, err := svc.CreateRule(context.Background(), "admin-1", models.RoleAdmin, "class-1", ScheduleRuleRequest{
		Weekday:   models.Friday,
		StartDate: "2024-01-01",
		Interval:  1,
		Active:    true,
	})
	require.NoError(t, err)
	assert.Len(t, ruleRepo.created, 1)
}

func TestCreateRuleRejectsInvertedDates(t *testing.T) {
	svc, _, _, _ := classFixture()

	endDate := "2023-12-01"
	_, err := svc.CreateRule(context.Background(), "owner-1", models.RoleOwner, "class-1", ScheduleRuleRequest{
		Weekday:   models.Monday,
		StartDate: "2024-01-01",
		EndDate:   &endDate,
		Interval:  1,
		Active:    true,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateRuleRejectsBadWeekday(t *testing.T) {
	svc, _, _, _ := classFixture()

	_, err := svc.CreateRule(context.Background(), "owner-1", models.RoleOwner, "class-1", ScheduleRuleRequest{
		Weekday:   7,
		StartDate: "2024-01-01",
		Interval:  1,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUpdateRulePreservesIdentity(t *testing.T) {
	svc, _, ruleRepo, invalidator := classFixture()

	timeOfDay := "09:00"
	updated, err := svc.UpdateRule(context.Background(), "owner-1", models.RoleOwner, "r1", ScheduleRuleRequest{
		Weekday:   models.Tuesday,
		TimeOfDay: &timeOfDay,
		StartDate: "2024-02-01",
		Interval:  2,
		Active:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, "r1", updated.ID)
	assert.Equal(t, "class-1", updated.ClassID)
	assert.Equal(t, models.Tuesday, updated.Weekday)
	assert.Len(t, ruleRepo.updated, 1)
	assert.Len(t, invalidator.patterns, 1)
}

func TestDeleteRule(t *testing.T) {
	svc, _, ruleRepo, invalidator := classFixture()

	err := svc.DeleteRule(context.Background(), "owner-1", models.RoleOwner, "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ruleRepo.deleted)
	assert.Len(t, invalidator.patterns, 1)

	err = svc.DeleteRule(context.Background(), "owner-1", models.RoleOwner, "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "evening-yoga", slugify("Evening Yoga"))
	assert.Equal(t, "hiit-45", slugify("HIIT 45!"))
	assert.Equal(t, "a-b-c", slugify("  A  b---C "))
	assert.Equal(t, "", slugify("!!!"))
}
