package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classbook/classbook-api/internal/models"
)

func TestScheduleRuleListByClass(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScheduleRuleRepository(db)

	now := time.Now()
	timeOfDay := "17:30:00"
	rows := sqlmock.NewRows([]string{"id", "class_id", "weekday", "time_of_day", "start_date", "end_date", "interval_weeks", "active", "created_at", "updated_at"}).
		AddRow("r1", "class-1", 0, timeOfDay, now, nil, 1, true, now, now).
		AddRow("r2", "class-1", 3, "06:15:00", now, nil, 2, true, now, now)
	mock.ExpectQuery("SELECT id, class_id, weekday").
		WithArgs("class-1").
		WillReturnRows(rows)

	rules, err := repo.ListByClass(context.Background(), "class-1")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, models.Monday, rules[0].Weekday)
	require.NotNil(t, rules[0].TimeOfDay)
	assert.Equal(t, "17:30:00", *rules[0].TimeOfDay)
	assert.Equal(t, 2, rules[1].Interval)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRuleCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScheduleRuleRepository(db)

	mock.ExpectExec("INSERT INTO schedule_rules").WillReturnResult(sqlmock.NewResult(0, 1))

	timeOfDay := "17:30"
	rule := &models.ScheduleRule{
		ClassID:   "class-1",
		Weekday:   models.Monday,
		TimeOfDay: &timeOfDay,
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Interval:  1,
		Active:    true,
	}
	err := repo.Create(context.Background(), rule)
	require.NoError(t, err)
	assert.NotEmpty(t, rule.ID)
	assert.False(t, rule.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRuleUpdate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScheduleRuleRepository(db)

	mock.ExpectExec("UPDATE schedule_rules").WillReturnResult(sqlmock.NewResult(0, 1))

	rule := &models.ScheduleRule{ID: "r1", ClassID: "class-1", Weekday: models.Friday, Interval: 1, Active: false}
	err := repo.Update(context.Background(), rule)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRuleDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScheduleRuleRepository(db)

	mock.ExpectExec("DELETE FROM schedule_rules").
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Delete(context.Background(), "r1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
