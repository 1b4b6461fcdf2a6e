// Package server implements the job API defined in api/openapi.yaml: jobs
// are started, observed and cancelled over REST, with a websocket stream
// for live progress. Routing and wire types come from the generated
// internal/api package; this package layers validation and job management
// on top.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/muimaps/muitiles/internal/api"
	"github.com/muimaps/muitiles/internal/pipeline"
)

// Server owns the set of running and finished jobs. It implements the
// generated api.ServerInterface.
type Server struct {
	log       zerolog.Logger
	version   string
	userAgent string
	startTime time.Time

	mu   sync.Mutex
	jobs map[string]*job
}

type job struct {
	id     string
	runner *pipeline.Runner
	cancel context.CancelFunc

	done    chan struct{}
	summary pipeline.Summary // valid once done is closed
}

// New creates a server.
func New(version, userAgent string, log zerolog.Logger) *Server {
	return &Server{
		log:       log,
		version:   version,
		userAgent: userAgent,
		startTime: time.Now(),
		jobs:      make(map[string]*job),
	}
}

// Router builds the chi router with the generated API mounted under
// /api/v1.
func Router(s *Server, timeout time.Duration) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(streamAwareTimeout(timeout))
		api.HandlerWithOptions(s, api.ChiServerOptions{
			BaseRouter: r,
			ErrorHandlerFunc: func(w http.ResponseWriter, r *http.Request, err error) {
				writeError(w, http.StatusBadRequest, "INVALID_PARAMETER", err.Error())
			},
		})
	})

	return r
}

// streamAwareTimeout applies the request timeout to every route except the
// websocket event stream, which outlives any sensible request deadline.
func streamAwareTimeout(d time.Duration) func(http.Handler) http.Handler {
	timeout := middleware.Timeout(d)
	return func(next http.Handler) http.Handler {
		withTimeout := timeout(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/events") {
				next.ServeHTTP(w, r)
				return
			}
			withTimeout.ServeHTTP(w, r)
		})
	}
}

// toRequest converts the wire form into a pipeline request, resolving the
// style or custom template.
func toRequest(jr *api.JobRequest) (pipeline.Request, error) {
	var style pipeline.Style
	if jr.Template != nil && *jr.Template != "" {
		name := "custom"
		if jr.Style != nil && *jr.Style != "" {
			name = *jr.Style
		}
		style = pipeline.Style{Name: name, Folder: name, Template: *jr.Template}
	} else {
		name := ""
		if jr.Style != nil {
			name = *jr.Style
		}
		var err error
		style, err = pipeline.StyleByName(name)
		if err != nil {
			return pipeline.Request{}, err
		}
	}

	req := pipeline.Request{
		Lat:        jr.Lat,
		Lon:        jr.Lon,
		MinZoom:    jr.MinZoom,
		MaxZoom:    jr.MaxZoom,
		Style:      style,
		OutputRoot: jr.Output,
	}
	if jr.Radius != nil {
		req.Radius = *jr.Radius
	}
	if jr.Bbox != nil {
		req.BBox = &pipeline.BoundingBox{
			West:  jr.Bbox.West,
			South: jr.Bbox.South,
			East:  jr.Bbox.East,
			North: jr.Bbox.North,
		}
	}
	if jr.KeepSource != nil {
		req.KeepSource = *jr.KeepSource
	}
	if jr.DelayMs != nil {
		req.Delay = time.Duration(*jr.DelayMs) * time.Millisecond
	}
	if jr.Workers != nil {
		req.Workers = *jr.Workers
	}
	if jr.IncludeWorld != nil {
		req.IncludeWorld = *jr.IncludeWorld
	}
	return req, nil
}

// toProgress converts a pipeline snapshot into the wire form.
func toProgress(snap pipeline.Snapshot) api.Progress {
	p := api.Progress{
		State:      snap.State,
		Total:      snap.Total,
		Downloaded: snap.Downloaded,
		Skipped:    snap.Skipped,
		Converted:  snap.Converted,
		Failed:     snap.Failed,
	}
	if snap.Current != "" {
		current := snap.Current
		p.Current = &current
	}
	if snap.LastError != "" {
		lastErr := snap.LastError
		p.LastError = &lastErr
	}
	return p
}

// GetHealth implements the health check endpoint.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	uptime := int(time.Since(s.startTime).Seconds())
	writeJSON(w, http.StatusOK, api.HealthResponse{
		Status:        api.Healthy,
		Version:       &s.version,
		UptimeSeconds: &uptime,
	})
}

// ListStyles implements the style listing endpoint.
func (s *Server) ListStyles(w http.ResponseWriter, r *http.Request) {
	styles := pipeline.Styles()
	out := make([]api.Style, 0, len(styles))
	for _, st := range styles {
		out = append(out, api.Style{Name: st.Name, Folder: st.Folder, Template: st.Template})
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateEstimate implements the pre-flight estimate endpoint.
func (s *Server) CreateEstimate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	count, size, err := pipeline.Estimate(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, api.EstimateResponse{Tiles: count, ApproxBytes: size})
}

// CreateJob starts a background download job.
func (s *Server) CreateJob(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	count, size, err := pipeline.Estimate(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		id:     uuid.NewString(),
		runner: pipeline.New(s.userAgent, s.log),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.jobs[j.id] = j
	s.mu.Unlock()

	go func() {
		defer cancel()
		summary, err := j.runner.Run(ctx, req)
		if err != nil {
			s.log.Error().Str("job", j.id).Err(err).Msg("job aborted")
		}
		j.summary = summary
		close(j.done)
	}()

	w.Header().Set("Location", "/api/v1/jobs/"+j.id)
	writeJSON(w, http.StatusAccepted, api.JobResponse{
		Id:          j.id,
		Tiles:       count,
		ApproxBytes: size,
		Progress:    toProgress(j.runner.Progress()),
	})
}

// GetJob reports a progress snapshot, plus the output folder once the job
// has finished.
func (s *Server) GetJob(w http.ResponseWriter, r *http.Request, id string) {
	j, ok := s.job(w, id)
	if !ok {
		return
	}

	resp := api.JobStatusResponse{Id: j.id, Progress: toProgress(j.runner.Progress())}
	select {
	case <-j.done:
		resp.Output = &j.summary.OutputDir
	default:
	}
	writeJSON(w, http.StatusOK, resp)
}

// CancelJob requests cooperative cancellation.
func (s *Server) CancelJob(w http.ResponseWriter, r *http.Request, id string) {
	j, ok := s.job(w, id)
	if !ok {
		return
	}

	j.cancel()
	writeJSON(w, http.StatusAccepted, api.JobStatusResponse{
		Id:       j.id,
		Progress: toProgress(j.runner.Progress()),
	})
}

func (s *Server) job(w http.ResponseWriter, id string) (*job, bool) {
	s.mu.Lock()
	j, ok := s.jobs[id]
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "JOB_NOT_FOUND", "no job with id "+id)
		return nil, false
	}
	return j, true
}

func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (pipeline.Request, bool) {
	var jr api.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&jr); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON in request body")
		return pipeline.Request{}, false
	}

	req, err := toRequest(&jr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return pipeline.Request{}, false
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return pipeline.Request{}, false
	}
	return req, true
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, api.ErrorResponse{Error: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
