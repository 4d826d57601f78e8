package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/classcard/internal/config"
	"github.com/stemsi/classcard/internal/model"
)

// Class service errors.
var (
	ErrClassNotFound   = errors.New("class not found")
	ErrStudentNotFound = errors.New("student not found")
)

// ClassStore is the class persistence used by ClassService.
type ClassStore interface {
	GetByID(ctx context.Context, id int) (*model.Class, error)
	List(ctx context.Context) ([]model.Class, error)
	GetSummary(ctx context.Context, id int) (*model.ClassSummary, error)
	ListSummaries(ctx context.Context) ([]model.ClassSummary, error)
	Create(ctx context.Context, c *model.Class) error
	Update(ctx context.Context, c *model.Class) error
	Delete(ctx context.Context, id int) error
}

// StudentStore is the student persistence used by ClassService.
type StudentStore interface {
	Create(ctx context.Context, s *model.Student) error
	Delete(ctx context.Context, id int) (int, error)
	ListByClass(ctx context.Context, classID int) ([]model.Student, error)
}

// ClassService handles class business logic and the card summary cache.
type ClassService struct {
	classRepo   ClassStore
	studentRepo StudentStore
	rdb         *redis.Client
	cacheTTL    time.Duration
	log         zerolog.Logger
}

// NewClassService creates a new ClassService. A nil rdb disables caching
// and change notifications.
func NewClassService(classRepo ClassStore, studentRepo StudentStore, rdb *redis.Client, cacheTTL time.Duration, log zerolog.Logger) *ClassService {
	return &ClassService{
		classRepo:   classRepo,
		studentRepo: studentRepo,
		rdb:         rdb,
		cacheTTL:    cacheTTL,
		log:         log.With().Str("component", "class_service").Logger(),
	}
}

// GetByID retrieves a class by its ID.
func (s *ClassService) GetByID(ctx context.Context, id int) (*model.Class, error) {
	c, err := s.classRepo.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrClassNotFound
	}
	return c, err
}

// List retrieves all classes.
func (s *ClassService) List(ctx context.Context) ([]model.Class, error) {
	return s.classRepo.List(ctx)
}

// Create creates a new class.
func (s *ClassService) Create(ctx context.Context, class *model.Class) error {
	if err := s.classRepo.Create(ctx, class); err != nil {
		return err
	}
	s.invalidate(ctx, class.ID)
	return nil
}

// Update modifies an existing class.
func (s *ClassService) Update(ctx context.Context, class *model.Class) error {
	if err := s.classRepo.Update(ctx, class); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrClassNotFound
		}
		return err
	}
	s.invalidate(ctx, class.ID)
	return nil
}

// Delete removes a class. Foreign key constraints on the students table
// reject deletion while students are still enrolled.
func (s *ClassService) Delete(ctx context.Context, id int) error {
	if err := s.classRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrClassNotFound
		}
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// Summary returns the card summary of one class, served from Redis when cached.
//
// Cached entries are keyed by the class's cache generation, read before the
// database is queried. A change that commits while the query is in flight
// bumps the generation, so a stale result lands under a key no later reader
// looks at.
func (s *ClassService) Summary(ctx context.Context, id int) (*model.ClassSummary, error) {
	gen, cacheable := s.generation(ctx, config.CacheKey.ClassGenerationKey(id))
	key := config.CacheKey.ClassSummaryKey(id, gen)

	var cached model.ClassSummary
	if cacheable && s.readCache(ctx, key, &cached) {
		return &cached, nil
	}

	summary, err := s.classRepo.GetSummary(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("load class summary: %w", err)
	}

	if cacheable {
		s.writeCache(ctx, key, summary)
	}
	return summary, nil
}

// Summaries returns the card summaries of all classes in display order.
func (s *ClassService) Summaries(ctx context.Context) ([]model.ClassSummary, error) {
	gen, cacheable := s.generation(ctx, config.CacheKey.ClassListGenerationKey())
	key := config.CacheKey.ClassSummaryListKey(gen)

	var cached []model.ClassSummary
	if cacheable && s.readCache(ctx, key, &cached) {
		return cached, nil
	}

	summaries, err := s.classRepo.ListSummaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("load class summaries: %w", err)
	}

	if cacheable {
		s.writeCache(ctx, key, summaries)
	}
	return summaries, nil
}

// PrewarmCache loads every class summary into Redis so the first card
// requests after a deploy skip PostgreSQL. Returns the number of classes cached.
func (s *ClassService) PrewarmCache(ctx context.Context) (int, error) {
	if s.rdb == nil {
		return 0, nil
	}

	listGen, ok := s.generation(ctx, config.CacheKey.ClassListGenerationKey())
	if !ok {
		return 0, nil
	}

	summaries, err := s.classRepo.ListSummaries(ctx)
	if err != nil {
		return 0, fmt.Errorf("load class summaries: %w", err)
	}

	genKeys := make([]string, len(summaries))
	for i := range summaries {
		genKeys[i] = config.CacheKey.ClassGenerationKey(summaries[i].ClassID)
	}
	gens := make([]int64, len(summaries))
	if len(genKeys) > 0 {
		vals, err := s.rdb.MGet(ctx, genKeys...).Result()
		if err != nil {
			return 0, fmt.Errorf("read cache generations: %w", err)
		}
		for i, v := range vals {
			if str, ok := v.(string); ok {
				gens[i], _ = strconv.ParseInt(str, 10, 64)
			}
		}
	}

	// Every change bumps the list generation. If it moved, some class
	// changed after the load and the per-class generations above may be
	// newer than the data, so nothing is written.
	if now, ok := s.generation(ctx, config.CacheKey.ClassListGenerationKey()); !ok || now != listGen {
		s.log.Info().Msg("Classes changed during prewarm; skipping")
		return 0, nil
	}

	s.writeCache(ctx, config.CacheKey.ClassSummaryListKey(listGen), summaries)
	for i := range summaries {
		s.writeCache(ctx, config.CacheKey.ClassSummaryKey(summaries[i].ClassID, gens[i]), &summaries[i])
	}
	return len(summaries), nil
}

// EnrollStudent adds a student to a class.
func (s *ClassService) EnrollStudent(ctx context.Context, classID int, req *model.EnrollStudentRequest) (*model.Student, error) {
	student := &model.Student{
		NIS:     req.NIS,
		Name:    req.Name,
		ClassID: classID,
	}

	if err := s.studentRepo.Create(ctx, student); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, ErrClassNotFound
		}
		return nil, err
	}

	s.invalidate(ctx, classID)
	return student, nil
}

// RemoveStudent deletes a student and refreshes their class's card.
func (s *ClassService) RemoveStudent(ctx context.Context, studentID int) error {
	classID, err := s.studentRepo.Delete(ctx, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrStudentNotFound
		}
		return err
	}

	s.invalidate(ctx, classID)
	return nil
}

// ListStudents retrieves the students enrolled in a class.
func (s *ClassService) ListStudents(ctx context.Context, classID int) ([]model.Student, error) {
	students, err := s.studentRepo.ListByClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if len(students) == 0 {
		if _, err := s.GetByID(ctx, classID); err != nil {
			return nil, err
		}
	}
	return students, nil
}

// SubscribeChanges subscribes to change notices for one class.
// Returns nil when change notifications are disabled.
func (s *ClassService) SubscribeChanges(ctx context.Context, classID int) *redis.PubSub {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Subscribe(ctx, config.CacheKey.ClassChangedChannel(classID))
}

// invalidate moves the class and the class list to a new cache generation,
// drops the entries of the previous one and notifies subscribers.
// Cache failures are logged; the write that triggered them already succeeded.
func (s *ClassService) invalidate(ctx context.Context, classID int) {
	if s.rdb == nil {
		return
	}

	var classGen, listGen *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		classGen = pipe.Incr(ctx, config.CacheKey.ClassGenerationKey(classID))
		listGen = pipe.Incr(ctx, config.CacheKey.ClassListGenerationKey())
		return nil
	})
	if err != nil {
		s.log.Warn().Err(err).Int("class_id", classID).Msg("Failed to invalidate summary cache")
	} else {
		stale := []string{
			config.CacheKey.ClassSummaryKey(classID, classGen.Val()-1),
			config.CacheKey.ClassSummaryListKey(listGen.Val() - 1),
		}
		if err := s.rdb.Del(ctx, stale...).Err(); err != nil {
			s.log.Debug().Err(err).Int("class_id", classID).Msg("Failed to drop stale summaries")
		}
	}

	if err := s.rdb.Publish(ctx, config.CacheKey.ClassChangedChannel(classID), classID).Err(); err != nil {
		s.log.Warn().Err(err).Int("class_id", classID).Msg("Failed to publish class change")
	}
}

// generation reads a cache generation counter. A missing counter is
// generation 0. ok is false when Redis is disabled or unreachable, in which
// case the cache is bypassed.
func (s *ClassService) generation(ctx context.Context, key string) (int64, bool) {
	if s.rdb == nil {
		return 0, false
	}

	gen, err := s.rdb.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, true
		}
		s.log.Warn().Err(err).Str("key", key).Msg("Cache generation read failed")
		return 0, false
	}
	return gen, true
}

func (s *ClassService) readCache(ctx context.Context, key string, dst interface{}) bool {
	if s.rdb == nil {
		return false
	}

	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Str("key", key).Msg("Summary cache read failed")
		}
		return false
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Discarding corrupt summary cache entry")
		return false
	}
	return true
}

func (s *ClassService) writeCache(ctx context.Context, key string, v interface{}) {
	if s.rdb == nil {
		return
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Summary cache write failed")
	}
}
