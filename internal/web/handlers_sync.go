package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/coursehub/internal/core"
	"github.com/JonMunkholm/coursehub/internal/logging"
	"github.com/JonMunkholm/coursehub/internal/store"
)

// uploadResponse is returned by the server-side upsert.
type uploadResponse struct {
	Inserted  int            `json:"inserted"`
	Updated   int            `json:"updated"`
	RowErrors core.RowErrors `json:"rowErrors"`
	Courses   []store.Course `json:"courses"`
}

// previewResponse describes what a sync of the uploaded file would do.
type previewResponse struct {
	FileName  string             `json:"fileName"`
	TotalRows int                `json:"totalRows"`
	Analysis  core.DeltaAnalysis `json:"analysis"`
	RowErrors core.RowErrors     `json:"rowErrors"`
	WorkCount int                `json:"workCount"`
}

// readUpload parses the multipart "file" field as CSV or xlsx.
// Row errors are returned in the result, not as an error.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, core.ParseResult, error) {
	maxSize := s.cfg.Server.MaxUploadSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return "", core.ParseResult{}, fmt.Errorf("%w: limit is %d bytes", errFileTooLarge, maxSize)
		}
		return "", core.ParseResult{}, badRequest("invalid form: %v", err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", core.ParseResult{}, errNoFile
	}
	defer func() { _ = file.Close() }()

	res, err := parseUpload(file, header)
	return header.Filename, res, err
}

func parseUpload(file multipart.File, header *multipart.FileHeader) (core.ParseResult, error) {
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".xlsx":
		return core.ParseWorkbook(file)
	case ".csv", ".txt", "":
		data, err := io.ReadAll(file)
		if err != nil {
			return core.ParseResult{}, fmt.Errorf("read upload: %w", err)
		}
		return core.ParseCSVPartial(string(data))
	default:
		return core.ParseResult{}, fmt.Errorf("%w (got %s)", errUnsupported, header.Filename)
	}
}

// handleUploadCourses upserts every valid row in one transaction and
// returns the full course list. Rows missing a value are skipped and
// reported.
func (s *Server) handleUploadCourses(w http.ResponseWriter, r *http.Request) {
	fileName, parsed, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	res, err := s.courses.UpsertAll(r.Context(), parsed.Records)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	courses, err := s.courses.List(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	logging.FromContext(r.Context()).Info("courses uploaded",
		"file", fileName,
		"inserted", res.Inserted,
		"updated", res.Updated,
		"row_errors", len(parsed.RowErrors),
		"actor", core.ActorFromContext(r.Context()),
	)

	rowErrs := parsed.RowErrors
	if rowErrs == nil {
		rowErrs = core.RowErrors{}
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		Inserted:  res.Inserted,
		Updated:   res.Updated,
		RowErrors: rowErrs,
		Courses:   courses,
	})
}

// handlePreview analyzes an upload against the stored courses without
// changing anything. Valid rows are analyzed even when other rows fail.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	fileName, parsed, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	courses, err := s.courses.List(r.Context())
	if err != nil {
		s.respondError(w, r, fmt.Errorf("fetch courses: %w", err), http.StatusInternalServerError)
		return
	}

	analysis := core.Analyze(parsed.Records, store.Snapshot(courses))

	rowErrs := parsed.RowErrors
	if rowErrs == nil {
		rowErrs = core.RowErrors{}
	}
	writeJSON(w, http.StatusOK, previewResponse{
		FileName:  fileName,
		TotalRows: parsed.TotalRows,
		Analysis:  analysis,
		RowErrors: rowErrs,
		WorkCount: analysis.WorkCount(),
	})
}

// handleStartSync starts a background reconciliation of the uploaded file.
// Any row error rejects the whole file.
func (s *Server) handleStartSync(w http.ResponseWriter, r *http.Request) {
	fileName, parsed, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	records, err := parsed.Strict()
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	jobID, err := s.syncs.StartSync(r.Context(), fileName, records)
	if err != nil {
		if errors.Is(err, core.ErrTooManySyncs) {
			w.Header().Set("Retry-After", "10")
		}
		s.respondError(w, r, err, statusFor(err))
		return
	}

	logging.FromContext(r.Context()).Info("sync started",
		"job_id", jobID,
		"file", fileName,
		"records", len(records),
		"actor", core.ActorFromContext(r.Context()),
	)
	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID})
}

// handleSyncProgress streams job progress via Server-Sent Events.
// lastEventId lets a reconnecting client skip progress it already has.
func (s *Server) handleSyncProgress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	lastEventID := -1
	if v := r.URL.Query().Get("lastEventId"); v != "" {
		lastEventID, _ = strconv.Atoi(v)
	} else if v := r.Header.Get("Last-Event-ID"); v != "" {
		lastEventID, _ = strconv.Atoi(v)
	}

	progressCh, err := s.syncs.SubscribeProgress(jobID)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, r, errStreamingFail, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var last core.SyncProgress
	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				// The final phase tells the client whether the job failed or was cancelled
				data, _ := json.Marshal(syncStatus{SyncProgress: last, Percent: last.Percent()})
				fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
				flusher.Flush()
				return
			}
			last = progress

			// Event IDs are the processed count, so they only grow within a job
			if progress.Phase == core.PhaseSyncing && progress.Current <= lastEventID {
				continue
			}

			data, err := json.Marshal(progress)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", progress.Current, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// syncStatus is a progress snapshot with its completion percentage.
type syncStatus struct {
	core.SyncProgress
	Percent int `json:"percent"`
}

// handleSyncStatus reports a job's progress without waiting or streaming.
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	progress, err := s.syncs.GetSyncProgress(chi.URLParam(r, "jobID"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, syncStatus{SyncProgress: progress, Percent: progress.Percent()})
}

// handleSyncResult blocks until the job finishes or the client goes away.
func (s *Server) handleSyncResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.syncs.GetSyncResult(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleCancelSync cancels a running job.
func (s *Server) handleCancelSync(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := s.syncs.CancelSync(jobID); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	logging.FromContext(r.Context()).Info("sync cancel requested",
		"job_id", jobID,
		"actor", core.ActorFromContext(r.Context()),
	)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
