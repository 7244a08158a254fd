package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/classbook/classbook-api/internal/models"
)

// ScheduleRuleRepository handles persistence of weekly schedule rules.
type ScheduleRuleRepository struct {
	db *sqlx.DB
}

// NewScheduleRuleRepository constructs the repository.
func NewScheduleRuleRepository(db *sqlx.DB) *ScheduleRuleRepository {
	return &ScheduleRuleRepository{db: db}
}

// ListByClass returns all rules for a class ordered by weekday then time.
func (r *ScheduleRuleRepository) ListByClass(ctx context.Context, classID string) ([]models.ScheduleRule, error) {
	const query = `SELECT id, class_id, weekday, time_of_day, start_date, end_date, interval_weeks, active, created_at, updated_at
        FROM schedule_rules WHERE class_id = $1 ORDER BY weekday, time_of_day`
	var rules []models.ScheduleRule
	if err := r.db.SelectContext(ctx, &rules, query, classID); err != nil {
		return nil, fmt.Errorf("list schedule rules: %w", err)
	}
	return rules, nil
}

// FindByID returns a rule by its ID.
func (r *ScheduleRuleRepository) FindByID(ctx context.Context, id string) (*models.ScheduleRule, error) {
	const query = `SELECT id, class_id, weekday, time_of_day, start_date, end_date, interval_weeks, active, created_at, updated_at
        FROM schedule_rules WHERE id = $1`
	var rule models.ScheduleRule
	if err := r.db.GetContext(ctx, &rule, query, id); err != nil {
		return nil, err
	}
	return &rule, nil
}

// Create persists a new rule.
func (r *ScheduleRuleRepository) Create(ctx context.Context, rule *models.ScheduleRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now
	const query = `INSERT INTO schedule_rules (id, class_id, weekday, time_of_day, start_date, end_date, interval_weeks, active, created_at, updated_at)
        VALUES (:id, :class_id, :weekday, :time_of_day, :start_date, :end_date, :interval_weeks, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rule); err != nil {
		return fmt.Errorf("create schedule rule: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a rule.
func (r *ScheduleRuleRepository) Update(ctx context.Context, rule *models.ScheduleRule) error {
	rule.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedule_rules SET weekday = :weekday, time_of_day = :time_of_day, start_date = :start_date,
        end_date = :end_date, interval_weeks = :interval_weeks, active = :active, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, rule); err != nil {
		return fmt.Errorf("update schedule rule: %w", err)
	}
	return nil
}

// Delete removes a rule.
func (r *ScheduleRuleRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM schedule_rules WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete schedule rule: %w", err)
	}
	return nil
}
