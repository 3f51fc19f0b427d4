package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/viniciushammett/go-weblog-analyzer/internal/report"
)

type savePayload struct {
	Filename string          `json:"filename"`
	Stats    report.Summary  `json:"stats"`
	Threats  []report.Threat `json:"threats"`
}

func historyID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	list, err := s.d.Store.ListScans()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := historyID(w, r)
	if !ok {
		return
	}
	sc, err := s.d.Store.GetScan(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) saveHistory(w http.ResponseWriter, r *http.Request) {
	var p savePayload
	if !decode(w, r, &p) {
		return
	}
	if p.Filename == "" {
		http.Error(w, "filename is required", http.StatusBadRequest)
		return
	}
	id, err := s.d.Store.SaveScan(p.Filename, p.Stats, p.Threats)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "history_id": id, "id": id})
}

func (s *Server) clearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.d.Store.ClearScans(); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "All data cleared and IDs reset"})
}

func (s *Server) deleteHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := historyID(w, r)
	if !ok {
		return
	}
	if err := s.d.Store.DeleteScan(id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "deleted_id": id})
}
