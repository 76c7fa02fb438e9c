package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"strconv"
	"time"

	"mercator-hq/toolgate/pkg/limits"
	"mercator-hq/toolgate/pkg/limits/export"
	"mercator-hq/toolgate/pkg/limits/storage"
	"mercator-hq/toolgate/pkg/server/middleware"
)

const (
	maxViolationsPerPage = 1000
	maxViolationsExport  = 100000
)

// handleCheck runs one admission check. A deny is a 200 response with
// "allowed": false; only malformed requests are errors.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req limits.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrorTypeInvalidRequest,
			fmt.Sprintf("invalid JSON body: %v", err))
		return
	}

	decision, err := s.opts.Manager.Check(r.Context(), req)
	if err != nil {
		if errors.Is(err, limits.ErrInvalidRequest) {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrorTypeInvalidRequest, err.Error())
			return
		}
		middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrorTypeServerError, "admission check failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, decision)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.opts.Manager.Sessions()
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].SessionID < sessions[j].SessionID
	})
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	info, ok := s.opts.Manager.SessionStats(id)
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrorTypeNotFound,
			fmt.Sprintf("session %q not found", id))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, info)
}

// handleCleanup accepts max_age as a Go duration ("30m") or whole seconds
// ("1800"). Without it the configured session max age applies.
func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	maxAge := s.opts.SessionMaxAge
	if raw := r.URL.Query().Get("max_age"); raw != "" {
		d, err := parseMaxAge(raw)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrorTypeInvalidRequest, err.Error())
			return
		}
		maxAge = d
	}

	removed := s.opts.Manager.CleanupExpiredSessions(maxAge)
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"removed": removed,
		"max_age": maxAge.String(),
	})
}

func parseMaxAge(raw string) (time.Duration, error) {
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("max_age must be non-negative")
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid max_age %q", raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("max_age must be non-negative")
	}
	return d, nil
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, s.opts.Manager.SystemStats())
}

// flushJournal waits for queued denials so a listing includes them. A
// failed flush still serves what is already written.
func (s *Server) flushJournal(r *http.Request) {
	if err := s.opts.Manager.Flush(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "failed to flush violation journal", "error", err)
	}
}

// handleViolations lists journal entries, newest first. Query parameters:
// session_id, dimension, since (RFC 3339), limit.
func (s *Server) handleViolations(w http.ResponseWriter, r *http.Request) {
	if s.opts.Journal == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, middleware.ErrorTypeUnavailable, "violation journal is disabled")
		return
	}

	filter, err := parseViolationFilter(r, 100, maxViolationsPerPage)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrorTypeInvalidRequest, err.Error())
		return
	}

	s.flushJournal(r)
	violations, err := s.opts.Journal.List(r.Context(), filter)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to list violations", "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrorTypeServerError, "failed to list violations")
		return
	}
	total, err := s.opts.Journal.Count(r.Context(), filter)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to count violations", "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrorTypeServerError, "failed to count violations")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"violations": violations,
		"count":      len(violations),
		"total":      total,
	})
}

// handleExportViolations streams journal entries as a download. Query
// parameters match /v1/violations plus format (json or csv).
func (s *Server) handleExportViolations(w http.ResponseWriter, r *http.Request) {
	if s.opts.Journal == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, middleware.ErrorTypeUnavailable, "violation journal is disabled")
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = export.FormatJSON
	}
	exporter, err := export.New(format, false)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrorTypeInvalidRequest, err.Error())
		return
	}

	filter, err := parseViolationFilter(r, maxViolationsExport, maxViolationsExport)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrorTypeInvalidRequest, err.Error())
		return
	}

	s.flushJournal(r)
	violations, err := s.opts.Journal.List(r.Context(), filter)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to list violations", "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrorTypeServerError, "failed to list violations")
		return
	}

	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="violations-%s.%s"`, time.Now().UTC().Format("20060102T150405Z"), format))
	w.WriteHeader(http.StatusOK)

	// Headers are gone by now; a failed write can only be logged.
	if err := exporter.Export(r.Context(), violations, w); err != nil {
		s.logger.ErrorContext(r.Context(), "violation export failed", "format", format, "error", err)
	}
}

func parseViolationFilter(r *http.Request, defaultLimit, maxLimit int) (storage.Filter, error) {
	q := r.URL.Query()
	filter := storage.Filter{
		SessionID: q.Get("session_id"),
		Dimension: q.Get("dimension"),
		Limit:     defaultLimit,
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, fmt.Errorf("invalid since %q: must be RFC 3339", raw)
		}
		filter.Since = since
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return filter, fmt.Errorf("invalid limit %q", raw)
		}
		filter.Limit = min(n, maxLimit)
	}
	return filter, nil
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"version":    s.opts.Version,
		"go_version": runtime.Version(),
	})
}
