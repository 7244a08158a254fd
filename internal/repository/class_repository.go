package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/classbook/classbook-api/internal/models"
)

// ClassRepository handles persistence of the class catalog.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs the repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns classes filtered by the provided criteria.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	base := `FROM classes c
JOIN locations l ON l.id = c.location_id`
	var conditions []string
	var args []interface{}

	if filter.Query != "" {
		conditions = append(conditions, fmt.Sprintf("(c.title ILIKE $%d OR c.description ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Query+"%")
	}
	if filter.City != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(l.city) = LOWER($%d)", len(args)+1))
		args = append(args, filter.City)
	}
	if filter.Tag != "" {
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM class_tags ct JOIN tags t ON t.id = ct.tag_id WHERE ct.class_id = c.id AND t.slug = $%d)", len(args)+1))
		args = append(args, filter.Tag)
	}
	if filter.Weekday != nil {
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM schedule_rules sr WHERE sr.class_id = c.id AND sr.weekday = $%d AND sr.active)", len(args)+1))
		args = append(args, *filter.Weekday)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"title":      "c.title",
		"price":      "c.price",
		"created_at": "c.created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "c.title"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 12
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT c.id, c.owner_id, c.title, c.description, c.location_id, c.coach_name, c.price, c.slug,
        c.created_at, c.updated_at, l.city AS location_city, l.slug AS location_slug
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var classes []models.ClassDetail
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}

// FindByID returns a class by its ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.ActivityClass, error) {
	const query = `SELECT id, owner_id, title, description, location_id, coach_name, price, slug, created_at, updated_at
        FROM classes WHERE id = $1`
	var class models.ActivityClass
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// FindDetailBySlug returns a class with location context by its slug.
func (r *ClassRepository) FindDetailBySlug(ctx context.Context, slug string) (*models.ClassDetail, error) {
	const query = `SELECT c.id, c.owner_id, c.title, c.description, c.location_id, c.coach_name, c.price, c.slug,
        c.created_at, c.updated_at, l.city AS location_city, l.slug AS location_slug
        FROM classes c JOIN locations l ON l.id = c.location_id WHERE c.slug = $1`
	var detail models.ClassDetail
	if err := r.db.GetContext(ctx, &detail, query, slug); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListTags returns tags attached to a class.
func (r *ClassRepository) ListTags(ctx context.Context, classID string) ([]models.Tag, error) {
	const query = `SELECT t.id, t.name, t.slug FROM tags t
        JOIN class_tags ct ON ct.tag_id = t.id WHERE ct.class_id = $1 ORDER BY t.name`
	var tags []models.Tag
	if err := r.db.SelectContext(ctx, &tags, query, classID); err != nil {
		return nil, fmt.Errorf("list class tags: %w", err)
	}
	return tags, nil
}

// Create persists a new class.
func (r *ClassRepository) Create(ctx context.Context, class *models.ActivityClass) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now
	const query = `INSERT INTO classes (id, owner_id, title, description, location_id, coach_name, price, slug, created_at, updated_at)
        VALUES (:id, :owner_id, :title, :description, :location_id, :coach_name, :price, :slug, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}
