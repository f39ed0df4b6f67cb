package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/clinsight/internal/export"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDemoQuestions(w http.ResponseWriter, r *http.Request) {
	if s.demo == nil {
		writeJSON(w, http.StatusOK, map[string]any{"questions": []string{}})
		return
	}
	qs, err := s.demo(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": qs})
}

type submitRequest struct {
	Question string `json:"question"`
}

// handleSubmit launches a pipeline. With ?wait=1 the response carries
// the finished tab instead of just its id.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	m, err := s.manager(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	id, err := m.Submit(r.Context(), req.Question)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if r.URL.Query().Get("wait") != "" {
		if err := m.Wait(r.Context(), id); err != nil {
			writeError(w, http.StatusGatewayTimeout, err)
			return
		}
		tab, ok := m.Tab(id)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("tab %s closed while waiting", id))
			return
		}
		writeJSON(w, http.StatusOK, tab)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"tab_id": id})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	m, err := s.manager(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, m.View())
}

func (s *Server) handleListTabs(w http.ResponseWriter, r *http.Request) {
	m, err := s.manager(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tabs":   m.Tabs(),
		"active": m.ActiveTabID(),
	})
}

func (s *Server) handleGetTab(w http.ResponseWriter, r *http.Request) {
	m, err := s.manager(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	tab, ok := m.Tab(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown tab"))
		return
	}
	writeJSON(w, http.StatusOK, tab)
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	m, err := s.manager(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := m.Activate(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, m.View())
}

func (s *Server) handleCloseTab(w http.ResponseWriter, r *http.Request) {
	m, err := s.manager(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := m.CloseTab(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, m.View())
}

type editedSQLRequest struct {
	SQL string `json:"sql"`
}

// handleEditedSQL re-runs user-edited SQL as a sibling tab.
func (s *Server) handleEditedSQL(w http.ResponseWriter, r *http.Request) {
	m, err := s.manager(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	var req editedSQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	id, err := m.ExecuteEdited(r.Context(), chi.URLParam(r, "id"), req.SQL)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if r.URL.Query().Get("wait") != "" {
		if err := m.Wait(r.Context(), id); err != nil {
			writeError(w, http.StatusGatewayTimeout, err)
			return
		}
		tab, ok := m.Tab(id)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("tab %s closed while waiting", id))
			return
		}
		writeJSON(w, http.StatusOK, tab)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"tab_id": id})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	m, err := s.manager(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	tab, ok := m.Tab(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown tab"))
		return
	}
	pv := tab.Preview()
	if pv == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("tab has no result"))
		return
	}

	name := export.Filename(tab.Question)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s"`, strings.ReplaceAll(name, `"`, "")))
	if err := export.WriteCSV(w, pv); err != nil {
		s.logger.Warn("csv export failed", "tab", tab.ID, "err", err)
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	m, err := s.manager(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := m.Reset(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
