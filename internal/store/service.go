package store

import (
	"context"
	"errors"

	"github.com/JonMunkholm/coursehub/internal/core"
)

// Messages returned by the course create endpoint.
const (
	MsgCourseCreated = "Course created successfully"
	MsgCourseExists  = "Course already exists"
)

// courseRepository is the part of Store used by CourseService.
type courseRepository interface {
	List(ctx context.Context) ([]Course, error)
	Create(ctx context.Context, code, name string) (Course, error)
	Rename(ctx context.Context, code, name, newCode string) (Course, error)
}

// CourseService adapts a Store to core.CourseService so the server can run
// reconciliation in-process.
type CourseService struct {
	repo courseRepository
}

var _ core.CourseService = (*CourseService)(nil)

// NewCourseService wraps repo, usually a *Store.
func NewCourseService(repo courseRepository) *CourseService {
	return &CourseService{repo: repo}
}

// FetchAll returns the current courses as a snapshot.
func (s *CourseService) FetchAll(ctx context.Context) (core.Snapshot, error) {
	courses, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return Snapshot(courses), nil
}

// Create maps ErrCourseExists to core.AlreadyExists. Other store errors are
// returned unchanged.
func (s *CourseService) Create(ctx context.Context, code, name string) (core.CreateResult, error) {
	c, err := s.repo.Create(ctx, code, name)
	switch {
	case errors.Is(err, ErrCourseExists):
		return core.CreateResult{Status: core.AlreadyExists, Message: MsgCourseExists}, nil
	case err != nil:
		return core.CreateResult{}, err
	}
	return core.CreateResult{Status: core.Created, Message: MsgCourseCreated, Code: c.Code}, nil
}

// Update renames the course matching code. A missing course is reported as
// not updated rather than as an error.
func (s *CourseService) Update(ctx context.Context, code, name string) (core.UpdateResult, error) {
	c, err := s.repo.Rename(ctx, code, name, "")
	switch {
	case errors.Is(err, ErrCourseNotFound):
		return core.UpdateResult{}, nil
	case err != nil:
		return core.UpdateResult{}, err
	}
	return core.UpdateResult{Updated: true, Code: c.Code, Name: c.Name}, nil
}
