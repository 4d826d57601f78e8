package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/classcard/internal/model"
)

// ClassRepository handles class data access.
type ClassRepository struct {
	pool *pgxpool.Pool
}

// NewClassRepository creates a new ClassRepository.
func NewClassRepository(pool *pgxpool.Pool) *ClassRepository {
	return &ClassRepository{pool: pool}
}

// GetByID retrieves a class by its ID.
func (r *ClassRepository) GetByID(ctx context.Context, id int) (*model.Class, error) {
	c := &model.Class{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, grade_level, major_code, group_number, created_at, updated_at
		 FROM classes WHERE id = $1`, id,
	).Scan(&c.ID, &c.GradeLevel, &c.MajorCode, &c.GroupNumber, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List retrieves all classes.
func (r *ClassRepository) List(ctx context.Context) ([]model.Class, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, grade_level, major_code, group_number, created_at, updated_at
		 FROM classes ORDER BY grade_level, major_code, group_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var classes []model.Class
	for rows.Next() {
		var c model.Class
		if err := rows.Scan(&c.ID, &c.GradeLevel, &c.MajorCode, &c.GroupNumber, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		classes = append(classes, c)
	}
	return classes, rows.Err()
}

// summarySelect joins each class with its enrolled-student count.
const summarySelect = `SELECT c.id, c.grade_level, c.major_code, c.group_number, COUNT(s.id)
	FROM classes c
	LEFT JOIN students s ON s.class_id = c.id`

// GetSummary retrieves one class with its student count.
func (r *ClassRepository) GetSummary(ctx context.Context, id int) (*model.ClassSummary, error) {
	var c model.Class
	var count int
	err := r.pool.QueryRow(ctx,
		summarySelect+` WHERE c.id = $1 GROUP BY c.id`, id,
	).Scan(&c.ID, &c.GradeLevel, &c.MajorCode, &c.GroupNumber, &count)
	if err != nil {
		return nil, err
	}
	return &model.ClassSummary{ClassID: c.ID, Name: c.DisplayName(), StudentCount: count}, nil
}

// ListSummaries retrieves every class with its student count, in display order.
func (r *ClassRepository) ListSummaries(ctx context.Context) ([]model.ClassSummary, error) {
	rows, err := r.pool.Query(ctx,
		summarySelect+` GROUP BY c.id ORDER BY c.grade_level, c.major_code, c.group_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []model.ClassSummary{}
	for rows.Next() {
		var c model.Class
		var count int
		if err := rows.Scan(&c.ID, &c.GradeLevel, &c.MajorCode, &c.GroupNumber, &count); err != nil {
			return nil, err
		}
		summaries = append(summaries, model.ClassSummary{ClassID: c.ID, Name: c.DisplayName(), StudentCount: count})
	}
	return summaries, rows.Err()
}

// Create inserts a new class.
func (r *ClassRepository) Create(ctx context.Context, c *model.Class) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO classes (grade_level, major_code, group_number)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		c.GradeLevel, c.MajorCode, c.GroupNumber,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

// Update modifies an existing class. Returns pgx.ErrNoRows if the class does not exist.
func (r *ClassRepository) Update(ctx context.Context, c *model.Class) error {
	return r.pool.QueryRow(ctx,
		`UPDATE classes SET grade_level = $1, major_code = $2, group_number = $3, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $4
		 RETURNING created_at, updated_at`,
		c.GradeLevel, c.MajorCode, c.GroupNumber, c.ID,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

// Delete removes a class by its ID. Returns pgx.ErrNoRows if the class does not exist.
func (r *ClassRepository) Delete(ctx context.Context, id int) error {
	var deleted int
	return r.pool.QueryRow(ctx, `DELETE FROM classes WHERE id = $1 RETURNING id`, id).Scan(&deleted)
}
