package application

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/coursehub/internal/client"
	"github.com/JonMunkholm/coursehub/internal/core"
)

const testToken = "cli-test-token"

// fakeCourses serves the three course service endpoints from memory.
type fakeCourses struct {
	mu         sync.Mutex
	courses    []core.CourseRecord
	mutations  int
	failCreate map[string]bool
}

func (f *fakeCourses) find(code string) int {
	for i, c := range f.courses {
		if core.NormalizeCode(c.Code) == core.NormalizeCode(code) {
			return i
		}
	}
	return -1
}

func (f *fakeCourses) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/admin/dbcourses", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(f.courses)
	})

	mux.HandleFunc("POST /api/course/create/{code}", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Name string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		code := r.PathValue("code")

		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failCreate[code] {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"error":"database unavailable"}`)
			return
		}
		if f.find(code) >= 0 {
			_ = json.NewEncoder(w).Encode(map[string]string{"message": client.MsgCourseExists})
			return
		}
		f.mutations++
		f.courses = append(f.courses, core.CourseRecord{Code: code, Name: body.Name})
		_ = json.NewEncoder(w).Encode(map[string]string{"message": client.MsgCourseCreated, "code": code})
	})

	mux.HandleFunc("PATCH /api/admin/course/{code}", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Name string }
		_ = json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		defer f.mu.Unlock()
		i := f.find(r.PathValue("code"))
		if i < 0 {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":"course not found"}`)
			return
		}
		f.mutations++
		f.courses[i].Name = body.Name
		_ = json.NewEncoder(w).Encode(f.courses[i])
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func (f *fakeCourses) snapshot() []core.CourseRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.CourseRecord(nil), f.courses...)
}

func startFake(t *testing.T, courses ...core.CourseRecord) (*fakeCourses, string) {
	t.Helper()
	f := &fakeCourses{courses: courses, failCreate: map[string]bool{}}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return f, srv.URL
}

type result struct {
	stdout string
	stderr string
	err    error
}

func runCLI(t *testing.T, stdin string, args ...string) result {
	t.Helper()

	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func withTerminal(t *testing.T) {
	t.Helper()
	orig := isTerminal
	isTerminal = func(io.Reader) bool { return true }
	t.Cleanup(func() { isTerminal = orig })
}

const sampleCSV = "code,name\ncs101,Intro to CS\nph 1,Physics\n"

func TestSync_DryRunChangesNothing(t *testing.T) {
	fake, url := startFake(t, core.CourseRecord{Code: "CS101", Name: "Intro"})
	path := writeFile(t, "courses.csv", sampleCSV)

	res := runCLI(t, "", "sync", path, "--dry-run", "--url", url, "--token", testToken)

	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "PH1")
	assert.Contains(t, res.stdout, "Intro to CS")
	assert.Contains(t, res.stdout, "1 to create, 1 to rename, 0 unchanged")
	assert.Zero(t, fake.mutations)
}

func TestSync_YesAppliesChanges(t *testing.T) {
	fake, url := startFake(t, core.CourseRecord{Code: "CS101", Name: "Intro"})
	path := writeFile(t, "courses.csv", sampleCSV)

	res := runCLI(t, "", "sync", path, "--yes", "--url", url, "--token", testToken)

	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Created 1, updated 1, failed 0")
	assert.Contains(t, res.stderr, "Syncing 2/2")
	assert.Equal(t, []core.CourseRecord{
		{Code: "CS101", Name: "Intro to CS"},
		{Code: "PH1", Name: "Physics"},
	}, fake.snapshot())
}

func TestSync_SecondRunIsUpToDate(t *testing.T) {
	fake, url := startFake(t,
		core.CourseRecord{Code: "CS101", Name: "Intro to CS"},
		core.CourseRecord{Code: "PH1", Name: "Physics"},
	)
	path := writeFile(t, "courses.csv", sampleCSV)

	res := runCLI(t, "", "sync", path, "--url", url, "--token", testToken)

	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Everything is up to date.")
	assert.Zero(t, fake.mutations)
}

func TestSync_RefusesToPromptWithoutTerminal(t *testing.T) {
	fake, url := startFake(t)
	path := writeFile(t, "courses.csv", sampleCSV)

	res := runCLI(t, "y\n", "sync", path, "--url", url, "--token", testToken)

	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "--yes")
	assert.Zero(t, fake.mutations)
}

func TestSync_Prompt(t *testing.T) {
	tests := []struct {
		answer        string
		wantErr       error
		wantMutations int
	}{
		{answer: "y\n", wantMutations: 2},
		{answer: "YES\n", wantMutations: 2},
		{answer: "n\n", wantErr: errAborted},
		{answer: "", wantErr: errAborted},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.answer), func(t *testing.T) {
			withTerminal(t)
			fake, url := startFake(t)
			path := writeFile(t, "courses.csv", sampleCSV)

			res := runCLI(t, tt.answer, "sync", path, "--url", url, "--token", testToken)

			if tt.wantErr != nil {
				assert.ErrorIs(t, res.err, tt.wantErr)
			} else {
				require.NoError(t, res.err)
			}
			assert.Contains(t, res.stdout, "Apply 2 changes? [y/N]")
			assert.Equal(t, tt.wantMutations, fake.mutations)
		})
	}
}

func TestSync_RowErrorsStopBeforeAnyRequest(t *testing.T) {
	fake, url := startFake(t)
	path := writeFile(t, "courses.csv", "code,name\ncs101,\n,Physics\nma1,Math\n")

	res := runCLI(t, "", "sync", path, "--yes", "--url", url, "--token", testToken)

	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "2 invalid rows")
	assert.Contains(t, res.stderr, "Row 2: Missing name")
	assert.Contains(t, res.stderr, "Row 3: Missing code")
	assert.Zero(t, fake.mutations)
}

func TestSync_BadHeader(t *testing.T) {
	_, url := startFake(t)
	path := writeFile(t, "courses.csv", "code,title\ncs101,Intro\n")

	res := runCLI(t, "", "sync", path, "--url", url, "--token", testToken)

	var verr *core.ValidationError
	require.ErrorAs(t, res.err, &verr)
}

func TestSync_ReportsFailedItems(t *testing.T) {
	fake, url := startFake(t)
	fake.failCreate["BAD1"] = true
	path := writeFile(t, "courses.csv", "code,name\nok1,Fine\nbad1,Broken\n")

	res := runCLI(t, "", "sync", path, "--yes", "--retries", "1", "--url", url, "--token", testToken)

	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "1 of 2 changes failed")
	assert.Contains(t, res.stdout, "Created 1, updated 0, failed 1")
	assert.Contains(t, res.stdout, "BAD1")
}

func TestSync_Workbook(t *testing.T) {
	fake, url := startFake(t)

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Name", "Code"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Biology", "bio 1"}))
	path := filepath.Join(t.TempDir(), "courses.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	res := runCLI(t, "", "sync", path, "--yes", "--url", url, "--token", testToken)

	require.NoError(t, res.err, res.stderr)
	assert.Equal(t, []core.CourseRecord{{Code: "BIO1", Name: "Biology"}}, fake.snapshot())
}

func TestList(t *testing.T) {
	_, url := startFake(t,
		core.CourseRecord{Code: "CS101", Name: "Intro"},
		core.CourseRecord{Code: "MA201", Name: "Algebra"},
	)

	t.Run("table", func(t *testing.T) {
		res := runCLI(t, "", "list", "--url", url, "--token", testToken)
		require.NoError(t, res.err)
		assert.Contains(t, res.stdout, "MA201")
		assert.Contains(t, res.stdout, "2 courses")
	})

	t.Run("json from env", func(t *testing.T) {
		t.Setenv("COURSEHUB_URL", url)
		t.Setenv("COURSEHUB_TOKEN", testToken)

		res := runCLI(t, "", "list", "--format", "json")
		require.NoError(t, res.err)

		var got []core.CourseRecord
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &got))
		assert.Len(t, got, 2)
	})
}

func TestList_WrongToken(t *testing.T) {
	_, url := startFake(t)

	res := runCLI(t, "", "list", "--url", url, "--token", "nope")

	var httpErr *client.HTTPError
	require.ErrorAs(t, res.err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
}

func TestDuplicates(t *testing.T) {
	_, url := startFake(t,
		core.CourseRecord{Code: "CS101", Name: "Intro"},
		core.CourseRecord{Code: "cs 101", Name: "Intro (old)"},
		core.CourseRecord{Code: "PH1", Name: "Physics"},
	)

	res := runCLI(t, "", "duplicates", "--url", url, "--token", testToken)

	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Intro (old)")
	assert.NotContains(t, res.stdout, "Physics")
}

func TestDuplicates_None(t *testing.T) {
	_, url := startFake(t, core.CourseRecord{Code: "PH1", Name: "Physics"})

	res := runCLI(t, "", "duplicates", "--url", url, "--token", testToken)

	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "No duplicate course codes.")
}

func TestMissingConnectionSettings(t *testing.T) {
	t.Setenv("COURSEHUB_URL", "")
	t.Setenv("COURSEHUB_TOKEN", "")

	res := runCLI(t, "", "list")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "COURSEHUB_URL")

	res = runCLI(t, "", "list", "--url", "http://localhost:1")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "COURSEHUB_TOKEN")
}

func TestVersion(t *testing.T) {
	res := runCLI(t, "", "version", "--format", "json")
	require.NoError(t, res.err)

	var info VersionInfo
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &info))
	assert.Equal(t, Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}
