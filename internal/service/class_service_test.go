package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stemsi/classcard/internal/model"
	"github.com/stemsi/classcard/internal/service/servicetest"
)

func newTestService() (*ClassService, *servicetest.Store) {
	store := servicetest.NewStore()
	svc := NewClassService(store.Classes(), store.Students(), nil, time.Minute, zerolog.New(io.Discard))
	return svc, store
}

func TestClassServiceSummaryCounts(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	class := &model.Class{GradeLevel: "X", MajorCode: "RPL", GroupNumber: 1}
	if err := svc.Create(ctx, class); err != nil {
		t.Fatalf("create: %v", err)
	}

	summary, err := svc.Summary(ctx, class.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Name != "X RPL 1" || summary.StudentCount != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	if _, err := svc.EnrollStudent(ctx, class.ID, &model.EnrollStudentRequest{NIS: "0001", Name: "Budi"}); err != nil {
		t.Fatalf("enroll: %v", err)
	}
	summary, _ = svc.Summary(ctx, class.ID)
	if summary.StudentCount != 1 {
		t.Fatalf("StudentCount = %d, want 1", summary.StudentCount)
	}
}

func TestClassServiceNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	if _, err := svc.Summary(ctx, 42); !errors.Is(err, ErrClassNotFound) {
		t.Errorf("Summary err = %v", err)
	}
	if _, err := svc.GetByID(ctx, 42); !errors.Is(err, ErrClassNotFound) {
		t.Errorf("GetByID err = %v", err)
	}
	if err := svc.Update(ctx, &model.Class{ID: 42}); !errors.Is(err, ErrClassNotFound) {
		t.Errorf("Update err = %v", err)
	}
	if _, err := svc.EnrollStudent(ctx, 42, &model.EnrollStudentRequest{NIS: "0001", Name: "Budi"}); !errors.Is(err, ErrClassNotFound) {
		t.Errorf("EnrollStudent err = %v", err)
	}
	if err := svc.RemoveStudent(ctx, 7); !errors.Is(err, ErrStudentNotFound) {
		t.Errorf("RemoveStudent err = %v", err)
	}
	if err := svc.Delete(ctx, 42); !errors.Is(err, ErrClassNotFound) {
		t.Errorf("Delete err = %v", err)
	}
	if _, err := svc.ListStudents(ctx, 42); !errors.Is(err, ErrClassNotFound) {
		t.Errorf("ListStudents err = %v", err)
	}
}

func TestListStudentsEmptyClass(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	class := &model.Class{GradeLevel: "X", MajorCode: "AKL", GroupNumber: 1}
	if err := svc.Create(ctx, class); err != nil {
		t.Fatalf("create: %v", err)
	}
	students, err := svc.ListStudents(ctx, class.ID)
	if err != nil || len(students) != 0 {
		t.Fatalf("ListStudents = %v, %v", students, err)
	}
}

func TestClassServiceSummariesOrderAndErrors(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()

	for _, g := range []int{2, 1} {
		if err := svc.Create(ctx, &model.Class{GradeLevel: "XI", MajorCode: "TKJ", GroupNumber: g}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	summaries, err := svc.Summaries(ctx)
	if err != nil {
		t.Fatalf("summaries: %v", err)
	}
	if len(summaries) != 2 || summaries[0].Name != "XI TKJ 1" || summaries[1].Name != "XI TKJ 2" {
		t.Fatalf("unexpected summaries: %+v", summaries)
	}

	store.ListErr = errors.New("db down")
	if _, err := svc.Summaries(ctx); !errors.Is(err, store.ListErr) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestClassServiceRemoveStudent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	class := &model.Class{GradeLevel: "XII", MajorCode: "TKJ", GroupNumber: 2}
	if err := svc.Create(ctx, class); err != nil {
		t.Fatalf("create: %v", err)
	}
	student, err := svc.EnrollStudent(ctx, class.ID, &model.EnrollStudentRequest{NIS: "0002", Name: "Siti"})
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}

	var pgErr *pgconn.PgError
	if err := svc.Delete(ctx, class.ID); !errors.As(err, &pgErr) || pgErr.Code != "23503" {
		t.Fatalf("delete with students should fail with fk error, got %v", err)
	}

	if err := svc.RemoveStudent(ctx, student.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	summary, err := svc.Summary(ctx, class.ID)
	if err != nil || summary.StudentCount != 0 {
		t.Fatalf("summary = %+v, %v", summary, err)
	}
	if err := svc.Delete(ctx, class.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestSubscribeChangesDisabledWithoutRedis(t *testing.T) {
	svc, _ := newTestService()
	if ps := svc.SubscribeChanges(context.Background(), 1); ps != nil {
		t.Fatal("expected nil subscription without redis")
	}
}

func TestPrewarmCacheWithoutRedis(t *testing.T) {
	svc, _ := newTestService()
	n, err := svc.PrewarmCache(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("PrewarmCache = %d, %v", n, err)
	}
}
