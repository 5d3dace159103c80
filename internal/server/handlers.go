package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hyperjump/docreader/internal/errs"
	"github.com/hyperjump/docreader/internal/models"
)

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req models.ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, errs.Code(errs.ErrInvalidArgument), "invalid request body")
		return
	}
	text, err := s.svc.ExtractText(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.ExtractResponse{Text: text})
}

// handleExtractStream writes one JSON object per line and flushes after each chunk.
// A failure after the first chunk is reported as a final {"error", "code"} line.
func (s *Server) handleExtractStream(w http.ResponseWriter, r *http.Request) {
	var req models.StreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, errs.Code(errs.ErrInvalidArgument), "invalid request body")
		return
	}
	seq, err := s.svc.StreamText(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	index := 0
	for chunk, err := range seq {
		if err != nil {
			s.logger.Warn("stream failed", zap.String("path", req.Path), zap.Error(err))
			_ = enc.Encode(errorBody{Error: err.Error(), Code: errs.Code(err)})
			return
		}
		if err := enc.Encode(models.StreamChunk{Index: index, Text: chunk.Text, Notice: chunk.Notice}); err != nil {
			return
		}
		index++
		if flusher != nil {
			flusher.Flush()
		}
		if r.Context().Err() != nil {
			return
		}
	}
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req models.ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, errs.Code(errs.ErrInvalidArgument), "invalid request body")
		return
	}
	res, err := s.svc.ConvertToMarkdown(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":                "ok",
		"rate_limit_per_minute": s.svc.RateLimit(),
	})
}

// statusFor maps error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, errs.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errs.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, errs.ErrDependencyMissing):
		return http.StatusNotImplemented
	case errors.Is(err, errs.ErrDecode), errors.Is(err, errs.ErrMalformedInput):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.respondError(w, status, errs.Code(err), err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorBody{Error: message, Code: code})
}
