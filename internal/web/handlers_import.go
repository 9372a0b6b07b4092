package web

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/geoimport/internal/ags"
	"github.com/JonMunkholm/geoimport/internal/core"
)

// multipartOverhead is added to the file size limit to leave room for the
// multipart boundaries and headers around the file part.
const multipartOverhead = 64 << 10

var errNoFile = errors.New("no file provided")

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"imports": s.service.LimiterStatus(),
	})
}

type descriptorView struct {
	ID        string            `json:"id"`
	Group     string            `json:"group"`
	Label     string            `json:"label"`
	Parent    string            `json:"parent,omitempty"`
	UniqueKey []string          `json:"uniqueKey"`
	Columns   map[string]string `json:"columns"` // AGS heading -> field
}

func (s *Server) handleListDescriptors(w http.ResponseWriter, r *http.Request) {
	ordered := s.service.Registry().Ordered()
	views := make([]descriptorView, 0, len(ordered))
	for _, d := range ordered {
		v := descriptorView{
			ID:        d.ID,
			Group:     d.Group,
			Label:     d.Label,
			UniqueKey: d.UniqueKey,
			Columns:   make(map[string]string, len(d.Fields)),
		}
		if d.Parent != nil {
			v.Parent = d.Parent.ID
		}
		for _, f := range d.Fields {
			v.Columns[f.Column] = f.Field
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, views)
}

type groupView struct {
	Name     string        `json:"name"`
	Rows     int           `json:"rows"`
	Headings []ags.Heading `json:"headings"`
}

// handleInspect parses an upload and lists its groups without touching the store.
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	file, err := s.uploadedFile(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer file.Close()

	doc, err := s.service.Inspect(file)
	if err != nil {
		respondError(w, r, err)
		return
	}

	groups := make([]groupView, 0, len(doc.Names()))
	for _, name := range doc.Names() {
		g := doc.Group(name)
		groups = append(groups, groupView{Name: name, Rows: g.Rows(), Headings: g.Headings()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

type runResponse struct {
	RunID     uuid.UUID              `json:"runId"`
	Scope     string                 `json:"scope"`
	CreatedAt time.Time              `json:"createdAt"`
	Entries   []core.SummaryEntry    `json:"entries"`
	Totals    map[string]int         `json:"totals"`
	Batches   map[string]*core.Batch `json:"batches,omitempty"`
}

func newRunResponse(summary *core.ImportSummary, withBatches bool) runResponse {
	created, updated := summary.Totals()
	resp := runResponse{
		RunID:     summary.RunID,
		Scope:     summary.Scope,
		CreatedAt: summary.CreatedAt,
		Entries:   summary.Entries,
		Totals:    map[string]int{"new": created, "updated": updated},
	}
	if withBatches {
		resp.Batches = summary.Batches
	}
	return resp
}

// handleSummarize reconciles an uploaded AGS file against a project and
// stages the result for a later commit.
func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	file, err := s.uploadedFile(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer file.Close()

	summary, err := s.service.Summarize(r.Context(), file, chi.URLParam(r, "projectID"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/imports/"+summary.RunID.String())
	writeJSON(w, http.StatusCreated, newRunResponse(summary, false))
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseRunID(w, r)
	if !ok {
		return
	}

	summary, err := s.service.Run(r.Context(), runID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	withBatches, _ := strconv.ParseBool(r.URL.Query().Get("batches"))
	writeJSON(w, http.StatusOK, newRunResponse(summary, withBatches))
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseRunID(w, r)
	if !ok {
		return
	}

	result, err := s.service.Commit(r.Context(), runID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// parseRunID reads the runID URL parameter. Malformed IDs cannot name a
// staged run, so they are reported as not found.
func parseRunID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	runID, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, core.ErrRunNotFound)
		return uuid.Nil, false
	}
	return runID, true
}

// uploadedFile returns the "file" part of a multipart form, or the raw
// request body for any other content type. The body is capped at the
// configured file size.
func (s *Server) uploadedFile(w http.ResponseWriter, r *http.Request) (io.ReadCloser, error) {
	if limit := s.cfg.Import.MaxFileSize; limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if r.ContentLength == 0 {
			return nil, errNoFile
		}
		return r.Body, nil
	}

	file, _, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, errNoFile
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}
