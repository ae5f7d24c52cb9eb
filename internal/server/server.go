package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/kartoza/gem-pricer/internal/api"
	"github.com/kartoza/gem-pricer/internal/config"
	"github.com/kartoza/gem-pricer/internal/features"
	"github.com/kartoza/gem-pricer/internal/history"
	"github.com/kartoza/gem-pricer/internal/metrics"
	"github.com/kartoza/gem-pricer/internal/model"
	"github.com/kartoza/gem-pricer/internal/predict"
)

//go:embed templates/*.html
var templateFS embed.FS

// WarningModelMissing is shown on the index page while predictions are disabled
const WarningModelMissing = "Model files not found! Prediction API is disabled."

// Server holds all the components for the web application
type Server struct {
	cfg        config.Config
	httpServer *http.Server
	router     *mux.Router
	svc        *predict.Service
	history    *history.Store
	metrics    *metrics.Metrics
	pages      map[string]*template.Template
}

// New creates a new Server. Missing artifacts or an unreachable history
// database are logged and leave the corresponding component unavailable.
func New(cfg config.Config) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		router:  mux.NewRouter(),
		metrics: metrics.New(),
	}

	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	s.pages = pages

	schema, err := features.LoadSchema(cfg.FeaturesPath)
	if err != nil {
		log.Printf("Warning: feature schema not available: %v", err)
	} else {
		log.Printf("Loaded %d feature names from %s", schema.Len(), cfg.FeaturesPath)
		if missing := schema.Missing(); len(missing) > 0 {
			log.Printf("Warning: feature schema has no columns for %v", missing)
		}
	}

	m, err := model.Load(cfg.ModelPath)
	if err != nil {
		log.Printf("Warning: model not available: %v", err)
	} else {
		log.Printf("Loaded model from %s", cfg.ModelPath)
	}

	if schema != nil && m != nil {
		if dim := model.InputDim(m); dim > 0 && dim != schema.Len() {
			log.Printf("Warning: model expects %d features but the schema has %d", dim, schema.Len())
		}
	}

	if cfg.History.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		store, err := history.Open(ctx, cfg.History.Driver, cfg.History.DSN)
		cancel()
		if err != nil {
			log.Printf("Warning: prediction history not available: %v", err)
		} else {
			s.history = store
		}
	}

	opts := []predict.Option{
		predict.WithPolicy(cfg.Policy),
		predict.WithObserver(s.metrics),
	}
	if s.history != nil {
		opts = append(opts, predict.WithObserver(s.history))
	}
	s.svc = predict.NewService(schema, m, opts...)
	s.metrics.SetModelLoaded(s.svc.Ready())

	s.setupRoutes()

	return s, nil
}

func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{"index.html", "dashboard.html"} {
		t, err := template.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.metrics.Middleware)

	// API routes
	apiRouter := s.router.PathPrefix("/api").Subrouter()
	apiHandler := api.NewHandler(s.svc, s.history, s.cfg)
	apiHandler.RegisterRoutes(apiRouter)

	// Form page and its prediction endpoint
	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
	s.router.Handle("/predict", api.RequestID(http.HandlerFunc(apiHandler.HandlePredict))).Methods("POST")

	// Interactive dashboard
	s.router.HandleFunc("/dashboard", s.handleDashboard).Methods("GET", "POST")

	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
}

// Handler returns the server's router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Service returns the prediction service
func (s *Server) Service() *predict.Service {
	return s.svc
}

// Start begins listening for HTTP connections
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Server listening on http://localhost:%d", s.cfg.Port)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	// Close stores
	if s.history != nil {
		if cerr := s.history.Close(); cerr != nil {
			log.Printf("Error closing history: %v", cerr)
		}
	}

	return err
}

func (s *Server) render(w http.ResponseWriter, page string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.pages[page].Execute(w, data); err != nil {
		log.Printf("Error rendering %s: %v", page, err)
	}
}

type indexPage struct {
	Cut     []features.Option
	Color   []features.Option
	Clarity []features.Option
	Warning string
}

// handleIndex renders the form page
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page := indexPage{
		Cut:     features.CutOptions,
		Color:   features.ColorOptions,
		Clarity: features.ClarityOptions,
	}
	if !s.svc.Ready() {
		page.Warning = WarningModelMissing
	}
	s.render(w, "index.html", page)
}
