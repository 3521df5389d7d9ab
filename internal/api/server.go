// Package api serves the localization results over HTTP: the latest per-frame
// estimate, recent history from the store, and a command passthrough to the
// sensor CLI.
package api

import (
	"database/sql"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/radian-data/presence.report/internal/db"
	"github.com/radian-data/presence.report/internal/httputil"
	"github.com/radian-data/presence.report/internal/monitoring"
	"github.com/radian-data/presence.report/internal/output"
	"github.com/radian-data/presence.report/internal/presence"
	"github.com/radian-data/presence.report/internal/serialmux"
	"github.com/radian-data/presence.report/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	m      serialmux.SerialMuxInterface
	db     *db.DB
	latest *output.LatestSink
	runID  string
	params presence.Params
}

// NewServer wires the API over the live snapshot, the store, and the command
// mux. db may be nil when persistence is disabled; history endpoints then
// answer 404.
func NewServer(m serialmux.SerialMuxInterface, database *db.DB, latest *output.LatestSink, runID string, params presence.Params) *Server {
	return &Server{
		m:      m,
		db:     database,
		latest: latest,
		runID:  runID,
		params: params,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/presence", s.showLatest)
	mux.HandleFunc("/api/presence/recent", s.listRecent)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/params", s.showParams)
	mux.HandleFunc("/api/version", s.showVersion)
	mux.HandleFunc("/command", s.sendCommandHandler)
	return mux
}

// showLatest answers with the most recent frame record. Before the first
// frame arrives there is nothing to report and the endpoint answers 404.
func (s *Server) showLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	rec := s.latest.Latest()
	if rec == nil {
		httputil.NotFound(w, "no frames received yet")
		return
	}
	httputil.WriteJSONOK(w, rec)
}

func (s *Server) listRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.NotFound(w, "persistence disabled")
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > 1000 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	runID := s.runID
	if q := r.URL.Query().Get("run_id"); q != "" {
		runID = q
	}

	frames, err := s.db.RecentFrames(runID, limit)
	if err != nil {
		monitoring.Logf("recent frames query: %v", err)
		httputil.InternalServerError(w, "query failed")
		return
	}
	if frames == nil {
		frames = []db.StoredFrame{}
	}
	httputil.WriteJSONOK(w, frames)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.NotFound(w, "persistence disabled")
		return
	}

	runs, err := s.db.Runs(100)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			runs = nil
		} else {
			monitoring.Logf("runs query: %v", err)
			httputil.InternalServerError(w, "query failed")
			return
		}
	}
	if runs == nil {
		runs = []db.Run{}
	}
	httputil.WriteJSONOK(w, runs)
}

// showParams reports the pipeline tuning in effect for this run.
func (s *Server) showParams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.params)
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}

func (s *Server) sendCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	command := r.FormValue("command")
	if command == "" {
		http.Error(w, "Missing command", http.StatusBadRequest)
		return
	}

	if err := s.m.SendCommand(command); err != nil {
		http.Error(w, "Failed to send command", http.StatusInternalServerError)
		return
	}
	io.WriteString(w, "Command sent successfully")
}
