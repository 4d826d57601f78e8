package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/classcard/internal/model"
)

var ErrDuplicateNIS = errors.New("student with this NIS already exists")

// StudentRepository handles student data access.
type StudentRepository struct {
	pool *pgxpool.Pool
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(pool *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// Create enrolls a student into their class.
func (r *StudentRepository) Create(ctx context.Context, s *model.Student) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO students (nis, name, class_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		s.NIS, s.Name, s.ClassID,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateNIS
		}
		return err
	}
	return nil
}

// Delete removes a student and returns the class they belonged to.
// Returns pgx.ErrNoRows if the student does not exist.
func (r *StudentRepository) Delete(ctx context.Context, id int) (classID int, err error) {
	err = r.pool.QueryRow(ctx,
		`DELETE FROM students WHERE id = $1 RETURNING class_id`, id,
	).Scan(&classID)
	return classID, err
}

// ListByClass retrieves the students of a class ordered by name.
func (r *StudentRepository) ListByClass(ctx context.Context, classID int) ([]model.Student, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, nis, name, class_id, created_at, updated_at
		 FROM students WHERE class_id = $1 ORDER BY name`, classID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Student, error) {
		var s model.Student
		err := row.Scan(&s.ID, &s.NIS, &s.Name, &s.ClassID, &s.CreatedAt, &s.UpdatedAt)
		return s, err
	})
}
