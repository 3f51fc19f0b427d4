package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"

	"github.com/viniciushammett/go-weblog-analyzer/internal/report"
)

func (s *Server) modelStatus(w http.ResponseWriter, _ *http.Request) {
	sc := s.d.Detector.Scorer()
	writeJSON(w, http.StatusOK, map[string]any{
		"state":     sc.State().String(),
		"threshold": sc.Threshold(),
		"artifacts": sc.Status(),
	})
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.c.MaxUploadBytes)
	f, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "no file uploaded", http.StatusBadRequest)
		return
	}
	defer f.Close()
	name, n, err := s.d.Files.Save(hdr.Filename, f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.d.Log.Info().Str("file", name).Int64("bytes", n).Msg("upload stored")
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "filename": name, "bytes": n})
}

func (s *Server) scan(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "POST /api/scan")
	defer span.End()

	name := chi.URLParam(r, "filename")
	res, cached, err := s.d.Files.Parse(name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	span.SetAttributes(
		attribute.String("file", name),
		attribute.Bool("cached", cached),
		attribute.Int("records", len(res.Records)),
	)
	rep := s.d.Detector.Scan(ctx, res)
	w.Header().Set(SkippedLinesHeader, strconv.Itoa(res.Skipped))
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	res, _, err := s.d.Files.Parse(chi.URLParam(r, "filename"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report.Summarize(res.Records))
}
