package server

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/matzehuels/flowmerge/pkg/candidate"
	"github.com/matzehuels/flowmerge/pkg/errors"
	"github.com/matzehuels/flowmerge/pkg/merge"
	"github.com/matzehuels/flowmerge/pkg/pipeline"
	"github.com/matzehuels/flowmerge/pkg/refs"
	"github.com/matzehuels/flowmerge/pkg/render"
	"github.com/matzehuels/flowmerge/pkg/store"
	"github.com/matzehuels/flowmerge/pkg/workflow"
)

const (
	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"
)

// =============================================================================
// Response Bodies
// =============================================================================

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Issues  []candidate.Issue `json:"issues,omitempty"`
}

type validateResponse struct {
	Valid  bool              `json:"valid"`
	Issues []candidate.Issue `json:"issues"`
}

type mergeResponse struct {
	Document *workflow.Document `json:"document"`
	Report   merge.Report       `json:"report"`
	IDMap    refs.Map           `json:"idMap"`
	Stats    pipeline.Stats     `json:"stats"`
}

type reviewRequest struct {
	Accept    []string `json:"accept"`
	Reject    []string `json:"reject"`
	AcceptAll bool     `json:"acceptAll"`
	RejectAll bool     `json:"rejectAll"`
}

func newMergeResponse(res *pipeline.Result) mergeResponse {
	return mergeResponse{
		Document: res.Document,
		Report:   res.Merge.Report,
		IDMap:    res.Merge.IDMap,
		Stats:    res.Stats,
	}
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	issues := s.runner.Validate(body, candidateFormat(r))
	if issues == nil {
		issues = []candidate.Issue{}
	}
	s.writeJSON(w, http.StatusOK, validateResponse{Valid: len(issues) == 0, Issues: issues})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := s.runner.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"workflows": list})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		id = uuid.NewString()
	}
	res, err := s.runner.Import(r.Context(), pipeline.ImportRequest{
		WorkflowID: id,
		Payload:    body,
		Format:     candidateFormat(r),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Location", "/v1/workflows/"+id)
	s.writeJSON(w, http.StatusCreated, newMergeResponse(res))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	doc, err := s.runner.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.runner.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.runner.Generate(r.Context(), pipeline.GenerateRequest{
		WorkflowID: chi.URLParam(r, "id"),
		Payload:    body,
		Format:     candidateFormat(r),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newMergeResponse(res))
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	res, err := s.runner.Layout(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"document": res.Document, "stats": res.Stats})
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req reviewRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "review body is not valid JSON"))
		return
	}
	res, err := s.runner.Review(r.Context(), pipeline.ReviewRequest{
		WorkflowID: chi.URLParam(r, "id"),
		Accept:     req.Accept,
		Reject:     req.Reject,
		AcceptAll:  req.AcceptAll,
		RejectAll:  req.RejectAll,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var changes store.Structure
	if err := json.Unmarshal(body, &changes); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "edit body is not valid JSON"))
		return
	}
	doc, err := s.runner.Edit(r.Context(), pipeline.EditRequest{
		WorkflowID: chi.URLParam(r, "id"),
		Changes:    changes,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = render.FormatDOT
	}
	out, err := s.runner.Export(r.Context(), chi.URLParam(r, "id"), format)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if format == render.FormatSVG {
		w.Header().Set(headerContentType, "image/svg+xml")
	} else {
		w.Header().Set(headerContentType, "text/vnd.graphviz; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// =============================================================================
// Helpers
// =============================================================================

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read request body")
	}
	if len(body) > maxBodyBytes {
		return nil, errors.New(errors.ErrCodeInvalidInput, "request body exceeds %d bytes", maxBodyBytes)
	}
	return body, nil
}

// candidateFormat picks the candidate encoding from ?format= or the
// Content-Type header.
func candidateFormat(r *http.Request) string {
	if f := strings.ToLower(r.URL.Query().Get("format")); f == workflow.FormatYAML || f == "yml" {
		return workflow.FormatYAML
	}
	mt, _, _ := mime.ParseMediaType(r.Header.Get(headerContentType))
	if strings.Contains(mt, "yaml") {
		return workflow.FormatYAML
	}
	return workflow.FormatJSON
}

// statusFor maps error codes to HTTP statuses.
func statusFor(err error) int {
	code := errors.GetCode(err)
	switch {
	case errors.IsInvalid(err):
		return http.StatusBadRequest
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case code == errors.ErrCodeConflict:
		return http.StatusConflict
	case code == errors.ErrCodeGraphCycle:
		return http.StatusUnprocessableEntity
	case code == errors.ErrCodeUnsupported:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	code := string(errors.GetCode(err))
	if code == "" {
		code = string(errors.ErrCodeInternal)
	}
	detail := errorDetail{
		Code:    code,
		Message: errors.UserMessage(err),
		Issues:  candidate.Issues(err),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "code", code, "err", err)
		if errors.GetCode(err) == "" {
			detail.Message = "internal error"
		}
	}
	s.writeJSON(w, status, errorBody{Error: detail})
}
