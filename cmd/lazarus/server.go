package main

import (
	"encoding/json"
	"net/http"

	"github.com/lazarus-engine/lazarus"
	"github.com/lazarus-engine/lazarus/config"
	"github.com/lazarus-engine/lazarus/githost"
	"github.com/lazarus-engine/lazarus/llm"
	"github.com/lazarus-engine/lazarus/log"
	"github.com/lazarus-engine/lazarus/memory"
	"github.com/lazarus-engine/lazarus/sandbox"
	"github.com/lazarus-engine/lazarus/scanner"
)

// server exposes the resurrection engine over HTTP. The resurrect endpoint
// streams newline-delimited JSON events; the remaining endpoints are plain
// request-response JSON.
type server struct {
	cfg    *config.Config
	logger log.Logger
	client llm.Client
	host   *githost.Client
	store  *memory.Store
	mux    *http.ServeMux
}

func newServer(cfg *config.Config, logger log.Logger) (*server, error) {
	var client llm.Client
	switch cfg.LLM.Provider {
	case "openai":
		client = llm.NewOpenAI(cfg.LLM.APIKey, cfg.LLM.Model)
	default:
		opts := []llm.GeminiOption{llm.WithGeminiAPIKey(cfg.LLM.APIKey)}
		if cfg.LLM.Model != "" {
			opts = append(opts, llm.WithGeminiModel(cfg.LLM.Model))
		}
		client = llm.NewGemini(opts...)
	}

	hostOpts := []githost.ClientOption{githost.WithLogger(logger)}
	if cfg.GitHub.BaseURL != "" {
		hostOpts = append(hostOpts, githost.WithBaseURL(cfg.GitHub.BaseURL))
	}

	s := &server{
		cfg:    cfg,
		logger: logger,
		client: client,
		host:   githost.NewClient(cfg.GitHub.Token, hostOpts...),
		store:  memory.NewStore(cfg.Memory.Dir, logger),
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("/api/resurrect", s.handleResurrect)
	s.mux.HandleFunc("/api/commit", s.handleCommit)
	s.mux.HandleFunc("/api/memory", s.handleMemory)
	s.mux.HandleFunc("/api/scan", s.handleScan)
	return s, nil
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	s.mux.ServeHTTP(w, r)
}

// newEngine builds one engine per run: the sandbox driver holds a single
// live session, so concurrent requests each get their own.
func (s *server) newEngine() (*lazarus.Engine, error) {
	image := s.cfg.Sandbox.Image
	if image == "" {
		image = sandbox.DefaultImage
	}
	timeout := s.cfg.Sandbox.SessionTimeout
	if timeout <= 0 {
		timeout = sandbox.DefaultSessionTimeout
	}
	provisioner := sandbox.NewDockerProvisioner(image, timeout, s.logger)
	if !provisioner.Available() {
		s.logger.Warn("container runtime unavailable, deployments will fail", "image", image)
	}
	var driverOpts []sandbox.DriverOption
	if s.cfg.Sandbox.HealthAttempts > 0 && s.cfg.Sandbox.HealthInterval > 0 {
		driverOpts = append(driverOpts, sandbox.WithHealthPolicy(
			s.cfg.Sandbox.HealthAttempts, s.cfg.Sandbox.HealthInterval))
	}
	return lazarus.NewEngine(lazarus.EngineOptions{
		Client:              s.client,
		Scanner:             scanner.New(s.host, s.logger),
		Memory:              s.store,
		Driver:              sandbox.NewDriver(provisioner, s.logger, driverOpts...),
		Logger:              s.logger,
		MaxRetries:          s.cfg.Engine.MaxRetries,
		ErrorContextEntries: s.cfg.Engine.ErrorContextEntries,
		ErrorContextChars:   s.cfg.Engine.ErrorContextChars,
	})
}

type resurrectRequest struct {
	RepoURL      string `json:"repo_url"`
	Instructions string `json:"vibe_instructions"`
}

func (s *server) handleResurrect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req resurrectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.RepoURL == "" {
		http.Error(w, "repo_url is required", http.StatusBadRequest)
		return
	}

	engine, err := s.newEngine()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	encoder := json.NewEncoder(w)

	ctx := r.Context()
	stream := engine.Run(ctx, req.RepoURL, req.Instructions)
	defer stream.Close()

	for stream.Next(ctx) {
		if err := encoder.Encode(stream.Event()); err != nil {
			s.logger.Warn("event write failed", "error", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	if err := stream.Err(); err != nil {
		s.logger.Warn("event stream ended early", "error", err)
	}
}

type commitRequest struct {
	RepoURL string `json:"repo_url"`
	Files   []struct {
		Filename string `json:"filename"`
		Content  string `json:"content"`
	} `json:"files"`

	// Single-file form, kept for older clients.
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

func (s *server) handleCommit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	files := make([]githost.CommitFile, 0, len(req.Files)+1)
	for _, f := range req.Files {
		files = append(files, githost.CommitFile{Filename: f.Filename, Content: f.Content})
	}
	if req.Filename != "" {
		files = append(files, githost.CommitFile{Filename: req.Filename, Content: req.Content})
	}
	if req.RepoURL == "" || len(files) == 0 {
		http.Error(w, "repo_url and at least one file are required", http.StatusBadRequest)
		return
	}

	result := s.host.Commit(r.Context(), req.RepoURL, files)
	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	repoURL := r.URL.Query().Get("repo_url")
	if repoURL == "" {
		http.Error(w, "repo_url query parameter is required", http.StatusBadRequest)
		return
	}
	paths := scanner.New(s.host, s.logger).ScanPaths(r.Context(), repoURL)
	writeJSON(w, http.StatusOK, map[string][]string{"paths": paths})
}

func (s *server) handleMemory(w http.ResponseWriter, r *http.Request) {
	repoURL := r.URL.Query().Get("repo_url")
	if repoURL == "" {
		http.Error(w, "repo_url query parameter is required", http.StatusBadRequest)
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.store.Summarize(repoURL))
	case http.MethodDelete:
		if err := s.store.Clear(repoURL); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
