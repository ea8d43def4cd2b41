package core_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/JonMunkholm/coursehub/internal/core"
	"github.com/JonMunkholm/coursehub/internal/core/mocks"
)

// memService is an in-memory CourseService keyed by normalized code.
type memService struct {
	mu      sync.Mutex
	courses map[string]string
	calls   int
	block   chan struct{}     // if set, each mutation waits for a receive
	hook    func(code string) // if set, runs before each mutation
}

func newMemService(initial ...core.CourseRecord) *memService {
	m := &memService{courses: make(map[string]string)}
	for _, c := range initial {
		m.courses[core.NormalizeCode(c.Code)] = c.Name
	}
	return m
}

func (m *memService) FetchAll(context.Context) (core.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := make(core.Snapshot, 0, len(m.courses))
	for code, name := range m.courses {
		snap = append(snap, core.CourseRecord{Code: code, Name: name})
	}
	sort.Slice(snap, func(i, j int) bool { return snap[i].Code < snap[j].Code })
	return snap, nil
}

func (m *memService) before(code string) {
	if m.block != nil {
		<-m.block
	}
	if m.hook != nil {
		m.hook(code)
	}
}

func (m *memService) Create(_ context.Context, code, name string) (core.CreateResult, error) {
	m.before(code)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	code = core.NormalizeCode(code)
	if _, ok := m.courses[code]; ok {
		return core.CreateResult{Status: core.AlreadyExists, Message: "Course already exists"}, nil
	}
	m.courses[code] = name
	return core.CreateResult{Status: core.Created, Message: "Course created successfully", Code: code}, nil
}

func (m *memService) Update(_ context.Context, code, name string) (core.UpdateResult, error) {
	m.before(code)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	code = core.NormalizeCode(code)
	if _, ok := m.courses[code]; !ok {
		return core.UpdateResult{}, nil
	}
	m.courses[code] = name
	return core.UpdateResult{Updated: true, Code: code, Name: name}, nil
}

func (m *memService) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestWorkflow_PrepareAndExecute(t *testing.T) {
	t.Parallel()

	svc := newMemService(
		core.CourseRecord{Code: "CS101", Name: "Intro"},
		core.CourseRecord{Code: "MA201", Name: "Old name"},
	)
	wf := core.NewWorkflow(svc)

	plan, err := wf.Prepare(context.Background(), "code,name\ncs101,Intro\nma 201,Linear Algebra\nph1,Physics")
	require.NoError(t, err)

	assert.True(t, plan.NeedsSync())
	assert.Equal(t, []core.CourseRecord{{Code: "PH1", Name: "Physics"}}, plan.Analysis.Missing)
	assert.Equal(t, []core.NameConflict{{Code: "MA201", CSVName: "Linear Algebra", DBName: "Old name"}}, plan.Analysis.NameConflicts)
	assert.Len(t, plan.Snapshot, 2)

	report, err := wf.Execute(context.Background(), plan, nil)
	require.NoError(t, err)
	require.NoError(t, report.RefreshErr)

	assert.Len(t, report.Result.Created, 1)
	assert.Len(t, report.Result.Updated, 1)
	assert.Equal(t, core.Snapshot{
		{Code: "CS101", Name: "Intro"},
		{Code: "MA201", Name: "Linear Algebra"},
		{Code: "PH1", Name: "Physics"},
	}, report.Snapshot)
}

func TestWorkflow_SecondRunIsIdempotent(t *testing.T) {
	t.Parallel()

	svc := newMemService(core.CourseRecord{Code: "CS101", Name: "Old"})
	wf := core.NewWorkflow(svc)
	csv := "code,name\ncs101,Intro\nma201,Algebra"

	plan, err := wf.Prepare(context.Background(), csv)
	require.NoError(t, err)
	_, err = wf.Execute(context.Background(), plan, nil)
	require.NoError(t, err)
	callsAfterFirst := svc.callCount()

	plan, err = wf.Prepare(context.Background(), csv)
	require.NoError(t, err)

	assert.False(t, plan.NeedsSync())
	assert.Len(t, plan.Analysis.Unchanged, 2)

	var calls []progressCall
	report, err := wf.Execute(context.Background(), plan, recordProgress(&calls))
	require.NoError(t, err)

	assert.Equal(t, callsAfterFirst, svc.callCount(), "unchanged records must not trigger remote calls")
	assert.Equal(t, []progressCall{{0, 0}}, calls)
	assert.Empty(t, report.Result.Created)
}

func TestWorkflow_InvalidHeaderMakesNoRemoteCall(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	svc := mocks.NewMockCourseService(ctrl) // any call fails the test

	_, err := core.NewWorkflow(svc).Prepare(context.Background(), "code,title\ncs101,Intro")

	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "name")
}

func TestWorkflow_RowErrorsMakeNoRemoteCall(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	svc := mocks.NewMockCourseService(ctrl)

	_, err := core.NewWorkflow(svc).Prepare(context.Background(), "code,name\ncs101,\n,Intro")

	var rowErrs core.RowErrors
	require.ErrorAs(t, err, &rowErrs)
	assert.Len(t, rowErrs, 2)
}

func TestWorkflow_FetchFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	svc := mocks.NewMockCourseService(ctrl)
	svc.EXPECT().FetchAll(gomock.Any()).Return(nil, errors.New("status 503"))

	_, err := core.NewWorkflow(svc).Prepare(context.Background(), "code,name\ncs101,Intro")
	require.Error(t, err)
	assert.Equal(t, "SYNC004", core.MapError(err).Code)
}

func TestWorkflow_RefreshFailureKeepsResult(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	svc := mocks.NewMockCourseService(ctrl)
	gomock.InOrder(
		svc.EXPECT().FetchAll(gomock.Any()).Return(core.Snapshot{}, nil),
		svc.EXPECT().Create(gomock.Any(), "CS101", "Intro").Return(created("CS101"), nil),
		svc.EXPECT().FetchAll(gomock.Any()).Return(nil, errors.New("status 502")),
	)

	wf := core.NewWorkflow(svc)
	plan, err := wf.Prepare(context.Background(), "code,name\ncs101,Intro")
	require.NoError(t, err)

	report, err := wf.Execute(context.Background(), plan, nil)
	require.NoError(t, err)
	assert.Error(t, report.RefreshErr)
	assert.Nil(t, report.Snapshot)
	assert.Len(t, report.Result.Created, 1)
}
