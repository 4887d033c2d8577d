package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/commonwf/internal/cli"
	"github.com/aretw0/commonwf/pkg/builder"
	"github.com/aretw0/commonwf/pkg/generator"
	"github.com/aretw0/commonwf/pkg/overrides"
	"github.com/aretw0/commonwf/pkg/ports"
	"github.com/aretw0/commonwf/pkg/protocol"
	"github.com/aretw0/commonwf/pkg/registry"
)

// Engine is the part of commonwf.Engine the server needs.
type Engine interface {
	WorkflowPlugins(workflow string) []string
	Generator(workflow, plugin string) (*generator.InputGenerator, error)
	GetBuilder(ctx context.Context, workflow, plugin string, kwargs map[string]any) (*builder.Builder, error)
	ApplyOverrides(ctx context.Context, b ports.Builder, list []overrides.Override) error
	Overrides() *overrides.Registry
}

// Server serves the input generators over a JSON API.
type Server struct {
	Engine  Engine
	Version string
	logger  *slog.Logger
	metrics prometheus.Gatherer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics exposes the gatherer on GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.metrics = g }
}

// WithVersion sets the version reported by GET /info.
func WithVersion(v string) Option {
	return func(s *Server) { s.Version = v }
}

// BuilderRequest is the body of POST .../builder.
// Structure, when present, is decoded like a structure file. Every requested
// optional feature must be supported by the engine.
type BuilderRequest struct {
	Structure        json.RawMessage      `json:"structure,omitempty"`
	Inputs           map[string]any       `json:"inputs"`
	Overrides        []overrides.Override `json:"overrides,omitempty"`
	OptionalFeatures []string             `json:"optional_features,omitempty"`
}

// BuilderResponse is the generated builder.
type BuilderResponse struct {
	Process string           `json:"process"`
	Inputs  *builder.Builder `json:"inputs"`
}

type protocolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type errorResponse struct {
	Error string   `json:"error"`
	Ports []string `json:"ports,omitempty"`
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{Engine: engine, Version: "dev"}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/overrides", s.ListOverrides)
	r.Route("/workflows/{workflow}/plugins", func(r chi.Router) {
		r.Get("/", s.ListPlugins)
		r.Get("/{plugin}/protocols", s.ListProtocols)
		r.Get("/{plugin}/spec", s.GetSpec)
		r.Post("/{plugin}/builder", s.CreateBuilder)
	})
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "commonwf-http",
		"version": s.Version,
	})
}

// ListOverrides handles GET /overrides.
func (s *Server) ListOverrides(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"overrides": s.Engine.Overrides().Definitions()})
}

// ListPlugins handles GET /workflows/{workflow}/plugins.
func (s *Server) ListPlugins(w http.ResponseWriter, r *http.Request) {
	plugins := s.Engine.WorkflowPlugins(chi.URLParam(r, "workflow"))
	if plugins == nil {
		plugins = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"plugins": plugins})
}

// ListProtocols handles GET /workflows/{workflow}/plugins/{plugin}/protocols.
func (s *Server) ListProtocols(w http.ResponseWriter, r *http.Request) {
	gen, ok := s.generator(w, r)
	if !ok {
		return
	}
	reg, ok := gen.Protocols()
	if !ok {
		s.writeJSON(w, http.StatusOK, map[string]any{"protocols": []protocolInfo{}})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"default":   reg.DefaultName(),
		"protocols": describeProtocols(reg),
	})
}

// GetSpec handles GET /workflows/{workflow}/plugins/{plugin}/spec.
func (s *Server) GetSpec(w http.ResponseWriter, r *http.Request) {
	gen, ok := s.generator(w, r)
	if !ok {
		return
	}
	spec, err := gen.Spec()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, spec.Inputs())
}

// CreateBuilder handles POST /workflows/{workflow}/plugins/{plugin}/builder.
func (s *Server) CreateBuilder(w http.ResponseWriter, r *http.Request) {
	var body BuilderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if body.Inputs == nil {
		body.Inputs = map[string]any{}
	}
	if len(body.Structure) > 0 {
		structure, err := cli.ParseStructure(body.Structure)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		body.Inputs["structure"] = structure
	}

	workflow, plugin := chi.URLParam(r, "workflow"), chi.URLParam(r, "plugin")
	if len(body.OptionalFeatures) > 0 {
		gen, ok := s.generator(w, r)
		if !ok {
			return
		}
		if err := gen.ValidateOptionalFeatures(body.OptionalFeatures...); err != nil {
			s.writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
	}
	b, err := s.Engine.GetBuilder(r.Context(), workflow, plugin, body.Inputs)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	if err := s.Engine.ApplyOverrides(r.Context(), b, body.Overrides); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.logger.Info("builder generated", "workflow", workflow, "plugin", plugin, "overrides", len(body.Overrides))
	s.writeJSON(w, http.StatusOK, BuilderResponse{Process: b.Process(), Inputs: b})
}

func (s *Server) generator(w http.ResponseWriter, r *http.Request) (*generator.InputGenerator, bool) {
	gen, err := s.Engine.Generator(chi.URLParam(r, "workflow"), chi.URLParam(r, "plugin"))
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return nil, false
	}
	return gen, true
}

func describeProtocols(reg *protocol.Registry) []protocolInfo {
	names := reg.Names()
	out := make([]protocolInfo, 0, len(names))
	for _, name := range names {
		desc, _ := reg.Description(name)
		out = append(out, protocolInfo{Name: name, Description: desc})
	}
	return out
}

// statusFor maps unknown plugins to 404 and every other generation failure to 422.
func statusFor(err error) int {
	if errors.Is(err, registry.ErrPluginNotFound) {
		return http.StatusNotFound
	}
	return http.StatusUnprocessableEntity
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	resp := errorResponse{Error: err.Error()}
	var validation *generator.ValidationError
	if errors.As(err, &validation) {
		resp.Ports = validation.Ports()
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}
