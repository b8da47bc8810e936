package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/learnhub-backend/pkg/db"
	"github.com/angelmondragon/learnhub-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/learnhub-backend/pkg/errors"
	"github.com/angelmondragon/learnhub-backend/pkg/logger"
	"github.com/angelmondragon/learnhub-backend/pkg/redis"
)

// Catalog resolves courses for the pipeline.
type Catalog interface {
	GetCourse(ctx context.Context, courseID uuid.UUID) (*models.Course, error)
}

// Cache is the slice of the redis client the catalog uses.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CourseCacheKey(courseID string) string
}

// ServiceParams wires the catalog service.
type ServiceParams struct {
	Repository Repository
	Cache      Cache
	TTL        time.Duration
	Logger     *logger.Logger
}

// Service is a read-through cache in front of the courses table. Cache failures are logged and
// the database answers instead.
type Service struct {
	repo  Repository
	cache Cache
	ttl   time.Duration
	logg  *logger.Logger
}

// NewService builds a catalog service. Cache may be nil.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &Service{
		repo:  params.Repository,
		cache: params.Cache,
		ttl:   params.TTL,
		logg:  params.Logger,
	}, nil
}

func (s *Service) GetCourse(ctx context.Context, courseID uuid.UUID) (*models.Course, error) {
	if course, ok := s.fromCache(ctx, courseID); ok {
		return course, nil
	}

	course, err := s.repo.FindByID(ctx, courseID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
		}
		return nil, db.StoreError(err, "load course")
	}

	s.toCache(ctx, course)
	return course, nil
}

// Invalidate drops a cached course snapshot.
func (s *Service) Invalidate(ctx context.Context, courseID uuid.UUID) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Del(ctx, s.cache.CourseCacheKey(courseID.String()))
}

func (s *Service) fromCache(ctx context.Context, courseID uuid.UUID) (*models.Course, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, s.cache.CourseCacheKey(courseID.String()))
	if err != nil {
		if !redis.IsMiss(err) {
			s.warn(ctx, courseID, "catalog cache read failed", err)
		}
		return nil, false
	}
	var course models.Course
	if err := json.Unmarshal([]byte(raw), &course); err != nil {
		s.warn(ctx, courseID, "catalog cache entry unreadable", err)
		return nil, false
	}
	return &course, true
}

func (s *Service) toCache(ctx context.Context, course *models.Course) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	payload, err := json.Marshal(course)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cache.CourseCacheKey(course.ID.String()), string(payload), s.ttl); err != nil {
		s.warn(ctx, course.ID, "catalog cache write failed", err)
	}
}

func (s *Service) warn(ctx context.Context, courseID uuid.UUID, msg string, err error) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithCourseID(ctx, courseID.String())
	ctx = s.logg.WithField(ctx, "error", err.Error())
	s.logg.Warn(ctx, msg)
}
