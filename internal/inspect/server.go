// Package inspect serves a read-only HTTP view of a blueprint: the declared
// repositories, the plan a resynthesis would apply to each, the ownership
// file on disk, and Prometheus metrics.
//
// Nothing served here writes to disk. Plans are computed with
// blueprint.PreviewRepository on every request.
package inspect

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/blueprint/internal/errors"
	"github.com/vango-dev/blueprint/pkg/blueprint"
	"github.com/vango-dev/blueprint/pkg/ownership"
	"github.com/vango-dev/blueprint/pkg/repository"
	"github.com/vango-dev/blueprint/pkg/resynth"
)

const tracerName = "github.com/vango-dev/blueprint/internal/inspect"

// Options configures a Server.
type Options struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Registry receives the request collectors and is served on /metrics.
	// Default: a fresh registry.
	Registry *prometheus.Registry

	// Tracer defaults to the global OpenTelemetry tracer provider.
	Tracer trace.Tracer
}

// Server is the inspection HTTP handler for one blueprint.
type Server struct {
	bp       *blueprint.Blueprint
	logger   *slog.Logger
	registry *prometheus.Registry
	router   chi.Router
}

// New builds the router.
func New(bp *blueprint.Blueprint, opts Options) *Server {
	s := &Server{
		bp:       bp,
		logger:   opts.Logger,
		registry: opts.Registry,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(instrument(s.logger, tracer, newRequestMetrics(s.registry)))

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.Route("/repositories", func(r chi.Router) {
		r.Get("/", s.listRepositories)
		r.Get("/{title}/plan", s.plan)
		r.Get("/{title}/ownership", s.ownership)
	})
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("inspection server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// RepositoryInfo describes one declared repository.
type RepositoryInfo struct {
	Title  string `json:"title"`
	Folder string `json:"folder"`
	Path   string `json:"path"`
}

func (s *Server) listRepositories(w http.ResponseWriter, _ *http.Request) {
	cfg := s.bp.Config()
	out := make([]RepositoryInfo, 0, len(cfg.Repositories))
	for _, rc := range cfg.Repositories {
		folder := repository.ValidFolder(rc.Title)
		out = append(out, RepositoryInfo{
			Title:  rc.Title,
			Folder: folder,
			Path:   filepath.Join(cfg.OutputPath(), repository.SourceRoot, folder),
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

// PlanEntry is one resolved path of a plan.
type PlanEntry struct {
	Path     string `json:"path"`
	Strategy string `json:"strategy"`
	Merge    string `json:"merge"`
	Outcome  string `json:"outcome"`
	Overrode bool   `json:"overrode,omitempty"`
}

// PlanResponse is the body of GET /repositories/{title}/plan.
type PlanResponse struct {
	Repository string         `json:"repository"`
	Counts     map[string]int `json:"counts"`
	Entries    []PlanEntry    `json:"entries"`
}

// plan previews one repository. ?format=text returns the aligned report
// printed by the CLI; ?all=true includes unchanged paths.
func (s *Server) plan(w http.ResponseWriter, r *http.Request) {
	title := chi.URLParam(r, "title")
	verbose := r.URL.Query().Get("all") == "true"

	res, err := s.bp.PreviewRepository(r.Context(), title)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "text" {
		var buf bytes.Buffer
		if err := res.Plan.WriteReport(&buf, verbose); err != nil {
			s.writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write(buf.Bytes())
		return
	}

	s.writeJSON(w, http.StatusOK, planResponse(res, verbose))
}

func planResponse(res *resynth.Result, verbose bool) PlanResponse {
	resp := PlanResponse{
		Repository: res.Repository,
		Counts:     make(map[string]int),
		Entries:    []PlanEntry{},
	}
	for outcome, n := range res.Plan.Counts() {
		resp.Counts[string(outcome)] = n
	}
	for _, rs := range res.Plan.Resolutions {
		if !verbose && !rs.Outcome.Changes() {
			continue
		}
		resp.Entries = append(resp.Entries, PlanEntry{
			Path:     rs.Path,
			Strategy: rs.Strategy,
			Merge:    rs.Merge,
			Outcome:  string(rs.Outcome),
			Overrode: rs.Overrode,
		})
	}
	return resp
}

// ownership returns the ownership file of a synthesized repository as JSON.
// A repository that was never synthesized has no strategies.
func (s *Server) ownership(w http.ResponseWriter, r *http.Request) {
	title := chi.URLParam(r, "title")
	cfg := s.bp.Config()

	var folder string
	for _, rc := range cfg.Repositories {
		if rc.Title == title || repository.ValidFolder(rc.Title) == title {
			folder = repository.ValidFolder(rc.Title)
			break
		}
	}
	if folder == "" {
		s.writeError(w, errors.New(errors.CodeInvalidRepository).WithDetailf("no repository titled %q", title))
		return
	}

	path := filepath.Join(cfg.OutputPath(), repository.SourceRoot, folder, ownership.FileName)
	d, err := ownership.ReadFile(path)
	if err != nil {
		s.writeError(w, err)
		return
	}
	strategies := d.Strategies
	if strategies == nil {
		strategies = []ownership.Strategy{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"repository": folder,
		"strategies": strategies,
	})
}

type errorBody struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func statusFor(err error) int {
	switch {
	case errors.HasCode(err, errors.CodeInvalidRepository):
		return http.StatusNotFound
	case errors.IsUnresolvedPath(err), errors.IsParse(err), errors.IsConfiguration(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := errorBody{Message: err.Error()}
	var be *errors.BlueprintError
	if stderrors.As(err, &be) {
		body.Code = be.Code
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("inspection request failed", "error", err)
	}
	s.writeJSON(w, status, body)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		s.logger.Warn("encode response", "error", err)
	}
}
