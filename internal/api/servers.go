package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/viniciushammett/go-weblog-analyzer/internal/detector"
	"github.com/viniciushammett/go-weblog-analyzer/internal/store"
)

type createServerReq struct {
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
	IPv4    string `json:"ipv4"`
}

func (s *Server) createServer(w http.ResponseWriter, r *http.Request) {
	var req createServerReq
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.OwnerID) == "" || strings.TrimSpace(req.Name) == "" {
		http.Error(w, "owner_id and name are required", http.StatusBadRequest)
		return
	}
	srv, err := s.d.Store.CreateServer(req.OwnerID, req.Name, req.IPv4)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "server_id": srv.ID, "server": srv})
}

func (s *Server) listServers(w http.ResponseWriter, r *http.Request) {
	list, err := s.d.Store.ListServersByOwner(chi.URLParam(r, "ownerID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getServer(w http.ResponseWriter, r *http.Request) {
	srv, err := s.d.Store.GetServer(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, srv)
}

func (s *Server) deleteServer(w http.ResponseWriter, r *http.Request) {
	if err := s.d.Store.DeleteServer(chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Server deleted successfully"})
}

// serverWithLogs loads a server and its logs, newest first.
func (s *Server) serverWithLogs(w http.ResponseWriter, r *http.Request) (store.Server, []store.ServerLog, bool) {
	srv, err := s.d.Store.GetServer(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return store.Server{}, nil, false
	}
	logs, err := s.d.Store.ListServerLogs(srv.ID)
	if err != nil {
		s.fail(w, r, err)
		return store.Server{}, nil, false
	}
	return srv, logs, true
}

func (s *Server) serverLogs(w http.ResponseWriter, r *http.Request) {
	srv, logs, ok := s.serverWithLogs(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"server": srv, "logs": logs, "total_logs": len(logs)})
}

func (s *Server) serverStats(w http.ResponseWriter, r *http.Request) {
	srv, logs, ok := s.serverWithLogs(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Server store.Server `json:"server"`
		store.ServerStats
	}{srv, store.StatsFor(logs)})
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	srv, err := s.d.Store.GetServer(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var e detector.Entry
	if !decode(w, r, &e) {
		return
	}
	a, err := s.d.Detector.AnalyzeEntry(r.Context(), srv, e)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		detector.Analysis
	}{"success", "Log analyzed and saved as '" + a.LogStatus + "'", a})
}
