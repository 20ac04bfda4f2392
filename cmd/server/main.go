package main

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/ishitaakhatri/claims-iq/claims"
	"github.com/ishitaakhatri/claims-iq/claims/extract"
	"github.com/ishitaakhatri/claims-iq/internal/logger"
	"github.com/ishitaakhatri/claims-iq/rules"
	"github.com/ishitaakhatri/claims-iq/workflow"
)

type Server struct {
	db        *sql.DB // nil when running on the in-memory store
	engine    *rules.Engine
	processor *claims.Processor
	router    *chi.Mux
}

func newServer(db *sql.DB, engine *rules.Engine, text claims.TextExtractor, fields claims.FieldExtractor, history claims.ClaimHistory) *Server {
	s := &Server{
		db:        db,
		engine:    engine,
		processor: claims.NewProcessor(engine, text, fields, history, logger.Logger),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/api/v1/health", s.handleHealth)

	r.Post("/api/v1/claims", s.handleProcessClaim)
	r.Post("/api/v1/claims/stream", s.handleProcessClaimStream)

	r.Route("/api/v1/rules", func(r chi.Router) {
		r.Get("/", s.handleListRules)
		r.Post("/", s.handleCreateRule)
		r.Get("/{ruleId}", s.handleGetRule)
		r.Put("/{ruleId}", s.handleUpdateRule)
		r.Delete("/{ruleId}", s.handleDeleteRule)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	active, err := s.engine.ActiveRules()
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "failed to load rules", err)
		return
	}

	respondJSON(w, http.StatusOK, HealthResponse{
		Status:      "healthy",
		RulesLoaded: len(active),
		Errors:      logger.TotalErrors.Load(),
		Warnings:    logger.TotalWarnings.Load(),
	})
}

func (s *Server) decodeClaimRequest(r *http.Request) (claims.Request, error) {
	var req ProcessClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return claims.Request{}, fmt.Errorf("invalid request body: %w", err)
	}
	if req.Document == "" {
		return claims.Request{}, errors.New("document is required")
	}
	if req.DocumentName == "" {
		return claims.Request{}, errors.New("documentName is required")
	}

	document, err := base64.StdEncoding.DecodeString(req.Document)
	if err != nil {
		return claims.Request{}, fmt.Errorf("document is not valid base64: %w", err)
	}

	return claims.Request{
		Document:     document,
		ContentType:  req.ContentType,
		DocumentName: req.DocumentName,
		RuleOverride: req.Rules,
	}, nil
}

func (s *Server) handleProcessClaim(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeClaimRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid claim request", err)
		return
	}

	evaluation, err := s.processor.Process(r.Context(), req)
	if err != nil {
		s.respondProcessError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, evaluation)
}

// handleProcessClaimStream runs the pipeline while streaming stage
// progress as server-sent events. The final event carries the full
// evaluation result; an error event replaces it on failure.
func (s *Server) handleProcessClaimStream(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeClaimRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid claim request", err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Progress events come from the executor's goroutines; a channel
	// funnels them onto this handler's goroutine for writing.
	events := make(chan workflow.Event, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			writeSSE(w, "progress", map[string]any{
				"stage":  ev.Stage,
				"status": ev.Status,
			})
			flusher.Flush()
		}
	}()

	evaluation, err := s.processor.ProcessWithProgress(r.Context(), req, func(ev workflow.Event) {
		select {
		case events <- ev:
		default: // a slow client must not block the pipeline
		}
	})
	close(events)
	<-done

	if err != nil {
		logger.Error("claim stream failed", "error", err.Error())
		writeSSE(w, "error", map[string]string{"error": processErrorMessage(err)})
		flusher.Flush()
		return
	}

	writeSSE(w, "result", evaluation)
	flusher.Flush()
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	active, err := s.engine.ActiveRules()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list rules", err)
		return
	}
	respondJSON(w, http.StatusOK, RulesListResponse{Rules: active})
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	rule := req.toRule(uuid.NewString(), time.Now())
	if err := s.engine.AddRule(rule); err != nil {
		respondError(w, http.StatusBadRequest, "failed to add rule", err)
		return
	}

	respondJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.engine.GetRule(chi.URLParam(r, "ruleId"))
	if err != nil {
		respondError(w, http.StatusNotFound, "rule not found", err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "ruleId")

	var req UpdateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	rule := req.toRule(ruleID, time.Now())
	if err := s.engine.UpdateRule(rule); err != nil {
		respondError(w, http.StatusBadRequest, "failed to update rule", err)
		return
	}

	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteRule(chi.URLParam(r, "ruleId")); err != nil {
		respondError(w, http.StatusNotFound, "rule not found", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) respondProcessError(w http.ResponseWriter, err error) {
	var upstream *claims.UpstreamError
	if errors.As(err, &upstream) {
		// Client-visible: which stage failed and why.
		respondError(w, http.StatusBadGateway, fmt.Sprintf("%s failed", upstream.Stage), upstream.Err)
		return
	}

	logger.Error("claim processing failed", "error", err.Error())
	respondError(w, http.StatusInternalServerError, "claim processing failed", nil)
}

func processErrorMessage(err error) string {
	var upstream *claims.UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Error()
	}
	return "claim processing failed"
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	logger.CountHTTPStatus(status)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}
	respondJSON(w, status, response)
}

func writeSSE(w http.ResponseWriter, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}

func buildRuleStore(databaseURL string) (rules.RuleStore, *sql.DB, error) {
	if databaseURL == "" {
		logger.Info("DATABASE_URL not set, using in-memory rule store with default rules")
		return rules.NewSeededRuleStore(rules.DefaultRules()), nil, nil
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return rules.NewPostgresRuleStore(db), db, nil
}

func main() {
	store, db, err := buildRuleStore(os.Getenv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("failed to initialize rule store", "error", err.Error())
	}
	if db != nil {
		defer db.Close()
	}

	engine, err := rules.NewEngine(store)
	if err != nil {
		logger.Fatal("failed to create rules engine", "error", err.Error())
	}

	ocr, err := extract.NewAzureClient(extract.AzureConfig{
		Endpoint: os.Getenv("AZURE_DOC_INTELLIGENCE_ENDPOINT"),
		APIKey:   os.Getenv("AZURE_DOC_INTELLIGENCE_KEY"),
	}, nil)
	if err != nil {
		logger.Fatal("failed to create OCR client", "error", err.Error())
	}

	llm, err := extract.NewOpenAIClient(extract.OpenAIConfig{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
		Model:   os.Getenv("OPENAI_MODEL"),
	}, nil)
	if err != nil {
		logger.Fatal("failed to create extraction client", "error", err.Error())
	}

	server := newServer(db, engine, ocr, llm, claims.NewMemoryClaimHistory())

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // streaming responses outlive the usual write window
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err.Error())
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err.Error())
	}
	if err := logger.Shutdown(ctx); err != nil {
		logger.Error("logger shutdown error", "error", err.Error())
	}
}
