// Package api serves stored evaluation runs and box extraction jobs over
// HTTP.
package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mitchellh/colorstring"

	"github.com/banshee-data/scenario.report/internal/db"
	"github.com/banshee-data/scenario.report/internal/httputil"
	"github.com/banshee-data/scenario.report/internal/report"
	"github.com/banshee-data/scenario.report/internal/security"
)

const defaultListLimit = 100

type Server struct {
	db *db.DB
	// AssetsHost overrides where chart pages load echarts from.
	AssetsHost string
}

func NewServer(database *db.DB) *Server {
	return &Server{db: database}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(code int) string {
	switch {
	case code >= 200 && code < 300:
		return colorstring.Color("[bold][green]" + strconv.Itoa(code))
	case code >= 300 && code < 400:
		return colorstring.Color("[yellow]" + strconv.Itoa(code))
	case code >= 400:
		return colorstring.Color("[bold][red]" + strconv.Itoa(code))
	default:
		return strconv.Itoa(code)
	}
}

// LoggingMiddleware logs method, path, status and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf("[%s] %s %s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorstring.Color("[cyan]"+r.RequestURI),
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/runs", s.listRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.getRun)
	mux.HandleFunc("DELETE /api/runs/{id}", s.deleteRun)
	mux.HandleFunc("GET /api/runs/{id}/points", s.listPoints)
	mux.HandleFunc("GET /runs/{id}/chart", s.runChart)
	mux.HandleFunc("GET /api/bbox-jobs", s.listBoxJobs)
	return mux
}

func parseLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid 'limit' parameter")
	}
	return n, nil
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	runs, err := s.db.ListRuns(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list runs: %v", err))
		return
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.db.GetRun(r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteJSONOK(w, run)
}

func (s *Server) deleteRun(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteRun(r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listPoints(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.db.GetRun(id); err != nil {
		writeStoreError(w, err)
		return
	}
	points, err := s.db.Points(id)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to load points: %v", err))
		return
	}
	httputil.WriteJSONOK(w, points)
}

func (s *Server) runChart(w http.ResponseWriter, r *http.Request) {
	run, err := s.db.GetRun(r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	stored, err := s.db.Points(run.RunID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to load points: %v", err))
		return
	}
	if len(stored) == 0 {
		httputil.NotFound(w, "run has no points")
		return
	}

	meta := report.ChartMeta{
		Title:      fmt.Sprintf("%s evaluation", run.Mode),
		Subtitle:   chartSubtitle(run),
		AssetsHost: s.AssetsHost,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if r.URL.Query().Get("download") != "" {
		name := security.SanitizeFilename(run.Mode+"-"+filepath.Base(run.RiskFile)+"-"+shortID(run.RunID)) + ".html"
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	}
	if err := report.RenderCurveHTML(w, meta, db.CurveFromPoints(stored)); err != nil {
		log.Printf("failed to render chart for run %s: %v", run.RunID, err)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func chartSubtitle(run *db.EvalRun) string {
	sub := fmt.Sprintf("%s vs %s, %d scenarios", run.RiskFile, run.GTFile, run.Scenarios)
	if run.Mode == "scenario" {
		sub += fmt.Sprintf(", window %d", run.WindowFrames)
	}
	if run.GoThreshold != nil {
		sub += fmt.Sprintf(", go < %g", *run.GoThreshold)
	}
	return sub
}

func (s *Server) listBoxJobs(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	jobs, err := s.db.BoxJobs(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list box jobs: %v", err))
		return
	}
	httputil.WriteJSONOK(w, jobs)
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	httputil.InternalServerError(w, err.Error())
}
