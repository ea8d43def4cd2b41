package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/coursehub/internal/core"
	"github.com/JonMunkholm/coursehub/internal/logging"
	"github.com/JonMunkholm/coursehub/internal/store"
	"github.com/JonMunkholm/coursehub/internal/web/templates"
)

// createResponse mirrors the message contract the admin client keys on.
type createResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type deleteResponse struct {
	Message       string       `json:"message"`
	DeletedCourse store.Course `json:"deletedCourse"`
}

// handleListCourses returns every stored course.
func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := s.courses.List(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

// handleCreateCourse creates one course. An existing course is reported
// with 200 and the "already exists" message, not as an error.
func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req createCourseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	req.Code = chi.URLParam(r, "code")
	if err := validateStruct(&req); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	course, err := s.courses.Create(r.Context(), req.Code, req.Name)
	switch {
	case errors.Is(err, store.ErrCourseExists):
		writeJSON(w, http.StatusOK, createResponse{Message: store.MsgCourseExists})
		return
	case err != nil:
		s.respondError(w, r, err, statusFor(err))
		return
	}

	logging.FromContext(r.Context()).Info("course created",
		"code", course.Code,
		"actor", core.ActorFromContext(r.Context()),
	)
	writeJSON(w, http.StatusOK, createResponse{Message: store.MsgCourseCreated, Code: course.Code})
}

// handleRenameCourse changes a course's name and optionally its code.
func (s *Server) handleRenameCourse(w http.ResponseWriter, r *http.Request) {
	var req renameCourseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	req.Code = chi.URLParam(r, "code")
	if err := validateStruct(&req); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	course, err := s.courses.Rename(r.Context(), req.Code, req.Name, req.NewCode)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	logging.FromContext(r.Context()).Info("course renamed",
		"code", req.Code,
		"new_code", course.Code,
		"actor", core.ActorFromContext(r.Context()),
	)
	writeJSON(w, http.StatusOK, course)
}

// handleDeleteCourse removes a course and echoes it back.
func (s *Server) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if strings.TrimSpace(code) == "" {
		err := badRequest("course code required")
		s.respondError(w, r, err, statusFor(err))
		return
	}

	course, err := s.courses.Delete(r.Context(), code)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	logging.FromContext(r.Context()).Info("course deleted",
		"code", course.Code,
		"actor", core.ActorFromContext(r.Context()),
	)
	writeJSON(w, http.StatusOK, deleteResponse{Message: "Course deleted successfully", DeletedCourse: course})
}

// handleDuplicates lists stored courses whose normalized codes collide.
func (s *Server) handleDuplicates(w http.ResponseWriter, r *http.Request) {
	groups, err := s.courses.FindDuplicates(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

// handleCoursesFragment renders the course table for HTMX with optional
// ?filter=duplicates|nameless and ?q= search.
func (s *Server) handleCoursesFragment(w http.ResponseWriter, r *http.Request) {
	courses, err := s.courses.List(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	filter := r.URL.Query().Get("filter")
	if filter != "" && filter != "duplicates" && filter != "nameless" {
		err := badRequest("unknown filter %q", filter)
		s.respondError(w, r, err, statusFor(err))
		return
	}
	search := r.URL.Query().Get("q")

	params := templates.CourseTableParams{
		Rows:   templates.FilterCourses(store.Snapshot(courses), filter, search),
		Filter: filter,
		Search: search,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.CourseTable(params).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render course table", "error", err)
	}
}

// handleExportWorkbook downloads all courses as an xlsx workbook that can be
// uploaded again.
func (s *Server) handleExportWorkbook(w http.ResponseWriter, r *http.Request) {
	courses, err := s.courses.List(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	filename := fmt.Sprintf("courses_%s.xlsx", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	if err := writeCoursesWorkbook(w, courses); err != nil {
		logging.FromContext(r.Context()).Error("write workbook", "error", err)
	}
}

const workbookSheet = "Courses"

// writeCoursesWorkbook writes courses with a code,name header so the file
// parses with core.ParseWorkbook.
func writeCoursesWorkbook(w io.Writer, courses []store.Course) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", workbookSheet); err != nil {
		return err
	}

	headers := []any{"code", "name", "created_at", "updated_at"}
	if err := f.SetSheetRow(workbookSheet, "A1", &headers); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
	})
	if err == nil {
		_ = f.SetRowStyle(workbookSheet, 1, 1, headerStyle)
	}

	for i, c := range courses {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{c.Code, c.Name, c.CreatedAt.UTC().Format(time.RFC3339), c.UpdatedAt.UTC().Format(time.RFC3339)}
		if err := f.SetSheetRow(workbookSheet, cell, &row); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(workbookSheet, "A", "A", 16)
	_ = f.SetColWidth(workbookSheet, "B", "B", 48)
	_ = f.SetColWidth(workbookSheet, "C", "D", 22)

	return f.Write(w)
}
