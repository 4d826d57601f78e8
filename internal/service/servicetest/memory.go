// Package servicetest provides in-memory stores for exercising services and
// handlers without PostgreSQL.
package servicetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stemsi/classcard/internal/model"
	"github.com/stemsi/classcard/internal/repository"
)

// Store holds classes and students and mimics the constraint errors of the
// real schema: 23505 on duplicate classes, 23503 on dangling references and
// repository.ErrDuplicateNIS on duplicate students.
type Store struct {
	mu       sync.Mutex
	classes  map[int]model.Class
	students map[int]model.Student
	nextID   int

	// ListErr, when set, is returned by List and ListSummaries.
	ListErr error
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		classes:  map[int]model.Class{},
		students: map[int]model.Student{},
	}
}

// Classes returns the class side of the store.
func (s *Store) Classes() *ClassStore { return &ClassStore{s} }

// Students returns the student side of the store.
func (s *Store) Students() *StudentStore { return &StudentStore{s} }

func (s *Store) id() int {
	s.nextID++
	return s.nextID
}

func (s *Store) count(classID int) int {
	n := 0
	for _, st := range s.students {
		if st.ClassID == classID {
			n++
		}
	}
	return n
}

func (s *Store) sortedClasses() []model.Class {
	out := make([]model.Class, 0, len(s.classes))
	for _, c := range s.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.GradeLevel != b.GradeLevel {
			return a.GradeLevel < b.GradeLevel
		}
		if a.MajorCode != b.MajorCode {
			return a.MajorCode < b.MajorCode
		}
		return a.GroupNumber < b.GroupNumber
	})
	return out
}

func (s *Store) duplicate(c *model.Class) bool {
	for _, other := range s.classes {
		if other.ID != c.ID && other.GradeLevel == c.GradeLevel &&
			other.MajorCode == c.MajorCode && other.GroupNumber == c.GroupNumber {
			return true
		}
	}
	return false
}

// ClassStore implements service.ClassStore.
type ClassStore struct{ s *Store }

func (r *ClassStore) GetByID(_ context.Context, id int) (*model.Class, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.classes[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &c, nil
}

func (r *ClassStore) List(_ context.Context) ([]model.Class, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.ListErr != nil {
		return nil, r.s.ListErr
	}
	return r.s.sortedClasses(), nil
}

func (r *ClassStore) GetSummary(_ context.Context, id int) (*model.ClassSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.classes[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &model.ClassSummary{ClassID: id, Name: c.DisplayName(), StudentCount: r.s.count(id)}, nil
}

func (r *ClassStore) ListSummaries(_ context.Context) ([]model.ClassSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.ListErr != nil {
		return nil, r.s.ListErr
	}
	out := []model.ClassSummary{}
	for _, c := range r.s.sortedClasses() {
		out = append(out, model.ClassSummary{ClassID: c.ID, Name: c.DisplayName(), StudentCount: r.s.count(c.ID)})
	}
	return out, nil
}

func (r *ClassStore) Create(_ context.Context, c *model.Class) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.duplicate(c) {
		return &pgconn.PgError{Code: "23505"}
	}
	now := time.Now()
	c.ID, c.CreatedAt, c.UpdatedAt = r.s.id(), now, now
	r.s.classes[c.ID] = *c
	return nil
}

func (r *ClassStore) Update(_ context.Context, c *model.Class) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	old, ok := r.s.classes[c.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if r.s.duplicate(c) {
		return &pgconn.PgError{Code: "23505"}
	}
	c.CreatedAt, c.UpdatedAt = old.CreatedAt, time.Now()
	r.s.classes[c.ID] = *c
	return nil
}

func (r *ClassStore) Delete(_ context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.classes[id]; !ok {
		return pgx.ErrNoRows
	}
	if r.s.count(id) > 0 {
		return &pgconn.PgError{Code: "23503"}
	}
	delete(r.s.classes, id)
	return nil
}

// StudentStore implements service.StudentStore.
type StudentStore struct{ s *Store }

func (r *StudentStore) Create(_ context.Context, st *model.Student) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.classes[st.ClassID]; !ok {
		return &pgconn.PgError{Code: "23503"}
	}
	for _, other := range r.s.students {
		if other.NIS == st.NIS {
			return repository.ErrDuplicateNIS
		}
	}
	now := time.Now()
	st.ID, st.CreatedAt, st.UpdatedAt = r.s.id(), now, now
	r.s.students[st.ID] = *st
	return nil
}

func (r *StudentStore) Delete(_ context.Context, id int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.students[id]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	delete(r.s.students, id)
	return st.ClassID, nil
}

func (r *StudentStore) ListByClass(_ context.Context, classID int) ([]model.Student, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Student
	for _, st := range r.s.students {
		if st.ClassID == classID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
