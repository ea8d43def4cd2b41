package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/coursehub/internal/core"
)

type fakeRepo struct {
	courses   []Course
	createErr error
	renameErr error

	renamed []string
}

func (f *fakeRepo) List(context.Context) ([]Course, error) {
	return f.courses, nil
}

func (f *fakeRepo) Create(_ context.Context, code, name string) (Course, error) {
	if f.createErr != nil {
		return Course{}, f.createErr
	}
	return Course{Code: canonicalCode(code), Name: name}, nil
}

func (f *fakeRepo) Rename(_ context.Context, code, name, newCode string) (Course, error) {
	f.renamed = append(f.renamed, code+"|"+name+"|"+newCode)
	if f.renameErr != nil {
		return Course{}, f.renameErr
	}
	return Course{Code: canonicalCode(code), Name: name}, nil
}

func TestCourseService_FetchAll(t *testing.T) {
	t.Parallel()

	svc := NewCourseService(&fakeRepo{courses: []Course{
		{Code: "CS101", Name: "Intro"},
		{Code: "MA 201", Name: "Algebra"},
	}})

	snap, err := svc.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.Snapshot{
		{Code: "CS101", Name: "Intro"},
		{Code: "MA 201", Name: "Algebra"},
	}, snap)
}

func TestCourseService_Create(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		repoErr    error
		wantStatus core.CreateStatus
		wantMsg    string
		wantErr    bool
	}{
		{
			name:       "created",
			wantStatus: core.Created,
			wantMsg:    MsgCourseCreated,
		},
		{
			name:       "already exists",
			repoErr:    fmt.Errorf("%w: CS101", ErrCourseExists),
			wantStatus: core.AlreadyExists,
			wantMsg:    MsgCourseExists,
		},
		{
			name:    "database failure",
			repoErr: errors.New("connection refused"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := NewCourseService(&fakeRepo{createErr: tt.repoErr})
			res, err := svc.Create(context.Background(), "cs101", "Intro")

			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, tt.wantMsg, res.Message)
		})
	}
}

func TestCourseService_Update(t *testing.T) {
	t.Parallel()

	t.Run("renames without changing code", func(t *testing.T) {
		t.Parallel()

		repo := &fakeRepo{}
		res, err := NewCourseService(repo).Update(context.Background(), "CS101", "New name")

		require.NoError(t, err)
		assert.True(t, res.Updated)
		assert.Equal(t, "CS101", res.Code)
		assert.Equal(t, []string{"CS101|New name|"}, repo.renamed)
	})

	t.Run("missing course is not updated", func(t *testing.T) {
		t.Parallel()

		repo := &fakeRepo{renameErr: fmt.Errorf("%w: CS101", ErrCourseNotFound)}
		res, err := NewCourseService(repo).Update(context.Background(), "CS101", "x")

		require.NoError(t, err)
		assert.False(t, res.Updated)
	})

	t.Run("other errors propagate", func(t *testing.T) {
		t.Parallel()

		repo := &fakeRepo{renameErr: errors.New("deadlock detected")}
		_, err := NewCourseService(repo).Update(context.Background(), "CS101", "x")

		require.Error(t, err)
	})
}

func TestCanonicalCode(t *testing.T) {
	assert.Equal(t, "CS 101", canonicalCode("  cs 101 "))
	assert.Equal(t, "", canonicalCode("   "))
}
