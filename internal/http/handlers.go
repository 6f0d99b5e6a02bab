package http

import (
	"net/http"
	"sync/atomic"

	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/sources"
)

type healthResponse struct {
	Status             string `json:"status"`
	Sessions           int    `json:"sessions"`
	RateLimitHits      int64  `json:"rateLimitHits"`
	SuspiciousRequests int64  `json:"suspiciousRequests"`
	Error              string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:             "ready",
		Sessions:           s.sessions.Len(),
		RateLimitHits:      atomic.LoadInt64(&s.metrics.rateLimitHits),
		SuspiciousRequests: atomic.LoadInt64(&s.metrics.suspiciousRequests),
	}
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			resp.Status = "unavailable"
			resp.Error = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	svc, err := s.sessions.For(userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := parsePeriod(r, s.now(), s.loc)
	if err != nil {
		writeError(w, r, err)
		return
	}

	d, err := svc.Dashboard(r.Context(), p, parseRefresh(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type entityResponse struct {
	Entity sources.Entity `json:"entity"`
	Period *periodJSON    `json:"period,omitempty"`
	Data   any            `json:"data"`
}

type periodJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (s *Server) handleEntity(w http.ResponseWriter, r *http.Request) {
	svc, err := s.sessions.For(userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := parseEntity(r.PathValue("entity"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := entityResponse{Entity: e}
	var p core.Period
	if e == sources.Expenses || e == sources.Incomes {
		if p, err = parsePeriod(r, s.now(), s.loc); err != nil {
			writeError(w, r, err)
			return
		}
		resp.Period = &periodJSON{Start: p.Start.Format(dateLayout), End: p.End.Format(dateLayout)}
	}

	resp.Data, err = svc.Entity(r.Context(), e, p, parseRefresh(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if err := s.sessions.Clear(user); err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Cleared user cache", log.FieldOperation, log.OpClear)
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

type invalidateResponse struct {
	Entity    sources.Entity `json:"entity"`
	AllUsers  bool           `json:"allUsers"`
	Published bool           `json:"published"`
}

// handleInvalidate drops an entity from the caller's cache, or from every
// user's with all=1, and tells other instances when a publisher is wired.
func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userID(r)
	if _, err := s.sessions.For(user); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := parseEntity(r.URL.Query().Get("entity"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := invalidateResponse{Entity: e, AllUsers: r.URL.Query().Get("all") == "1"}
	target := user
	if resp.AllUsers {
		target = ""
	}

	if err := s.sessions.Invalidate(target, e); err != nil {
		log.FromContext(ctx).LogError(ctx, "Failed to purge persisted entries", log.OpInvalidate, err, log.FieldEntity, e)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishInvalidation(ctx, string(e), target); err != nil {
			log.FromContext(ctx).LogError(ctx, "Failed to publish invalidation", log.OpPublish, err, log.FieldEntity, e)
		} else {
			resp.Published = true
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
