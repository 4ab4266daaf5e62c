// Package server exposes the translation pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GrxyScxr1/vertana-sub000/internal/chunker"
	"github.com/GrxyScxr1/vertana-sub000/internal/contextsource"
	"github.com/GrxyScxr1/vertana-sub000/internal/errs"
	"github.com/GrxyScxr1/vertana-sub000/internal/glossary"
	"github.com/GrxyScxr1/vertana-sub000/internal/llm"
	"github.com/GrxyScxr1/vertana-sub000/internal/logger"
	"github.com/GrxyScxr1/vertana-sub000/internal/markdown"
	"github.com/GrxyScxr1/vertana-sub000/internal/refiner"
	"github.com/GrxyScxr1/vertana-sub000/internal/store"
	"github.com/GrxyScxr1/vertana-sub000/internal/tokens"
	"github.com/GrxyScxr1/vertana-sub000/internal/translation"
)

// Defaults fill fields a request leaves empty.
type Defaults struct {
	SourceLanguage  string
	TargetLanguage  string
	Tone            string
	Domain          string
	MaxTokens       int
	DynamicGlossary bool
	MaxTerms        int
	Refinement      *refiner.Options
}

type Options struct {
	Models         []llm.Model
	EvaluatorModel llm.Model
	Defaults       Defaults
	// Store, if set, supplies the stored glossary and the glossary lookup
	// tool for each request.
	Store *store.Store
}

type Server struct {
	opts   Options
	engine *gin.Engine
}

// TranslateRequest is the body of the translate endpoints.
type TranslateRequest struct {
	Text            string            `json:"text" binding:"required"`
	TargetLanguage  string            `json:"target"`
	SourceLanguage  string            `json:"source"`
	Tone            string            `json:"tone"`
	Domain          string            `json:"domain"`
	MediaType       string            `json:"media_type"`
	Context         string            `json:"context"`
	Title           string            `json:"title"`
	Glossary        glossary.Glossary `json:"glossary"`
	DynamicGlossary *bool             `json:"dynamic_glossary"`
	Refine          *bool             `json:"refine"`
	Boundaries      bool              `json:"boundaries"`
	ProtectCode     bool              `json:"protect_code"`
	MaxTokens       int               `json:"max_tokens"`
}

// TranslateResponse is the translation plus its HTML rendering when a
// Markdown document is requested with ?render=html.
type TranslateResponse struct {
	*translation.Translation
	HTML string `json:"html,omitempty"`
}

// ChunkResponse describes one chunk of a preview.
type ChunkResponse struct {
	Index   int          `json:"index"`
	Type    chunker.Type `json:"type"`
	Content string       `json:"content"`
	Tokens  int          `json:"tokens"`
}

func New(opts Options) *Server {
	s := &Server{opts: opts, engine: gin.New()}
	s.engine.Use(gin.Recovery(), requestLogger())

	s.engine.GET("/healthz", s.health)
	v1 := s.engine.Group("/v1")
	{
		v1.POST("/translate", s.translate)
		v1.POST("/translate/stream", s.stream)
		v1.POST("/chunks", s.chunks)
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}

func (s *Server) health(c *gin.Context) {
	names := make([]string, 0, len(s.opts.Models))
	for _, m := range s.opts.Models {
		names = append(names, m.Name())
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "models": names})
}

func (s *Server) translate(c *gin.Context) {
	var req TranslateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	opts, err := s.options(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	result, err := translation.Translate(c.Request.Context(), req.Text, opts)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := TranslateResponse{Translation: result}
	if c.Query("render") == "html" && chunker.NormalizeMediaType(opts.MediaType) == chunker.MediaTypeMarkdown {
		resp.HTML = markdown.ToHTML([]byte(result.Text))
	}
	c.JSON(http.StatusOK, resp)
}

// stream sends one "chunk" event per chunk and a final "complete" event,
// or an "error" event when the pipeline fails.
func (s *Server) stream(c *gin.Context) {
	var req TranslateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	opts, err := s.options(ctx, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	for ev, err := range translation.Stream(ctx, req.Text, opts) {
		if err != nil {
			c.SSEvent("error", gin.H{"error": err.Error(), "kind": errorKind(err)})
			c.Writer.Flush()
			return
		}
		c.SSEvent(ev.Kind(), ev)
		c.Writer.Flush()
	}
}

func (s *Server) chunks(c *gin.Context) {
	var req TranslateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	opts := translation.Options{MediaType: req.MediaType, MaxTokens: s.maxTokens(req)}
	chunks, err := translation.Chunk(c.Request.Context(), req.Text, opts)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]ChunkResponse, 0, len(chunks))
	for _, ch := range chunks {
		out = append(out, ChunkResponse{Index: ch.Index, Type: ch.Type, Content: ch.Content, Tokens: tokens.Count(ch.Content)})
	}
	c.JSON(http.StatusOK, gin.H{"chunks": out})
}

func (s *Server) maxTokens(req TranslateRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return s.opts.Defaults.MaxTokens
}

func (s *Server) options(ctx context.Context, req TranslateRequest) (translation.Options, error) {
	d := s.opts.Defaults
	opts := translation.Options{
		TargetLanguage:  firstNonEmpty(req.TargetLanguage, d.TargetLanguage),
		SourceLanguage:  firstNonEmpty(req.SourceLanguage, d.SourceLanguage),
		Tone:            firstNonEmpty(req.Tone, d.Tone),
		Domain:          firstNonEmpty(req.Domain, d.Domain),
		MediaType:       req.MediaType,
		Context:         req.Context,
		Title:           req.Title,
		Glossary:        req.Glossary,
		Models:          s.opts.Models,
		EvaluatorModel:  s.opts.EvaluatorModel,
		DynamicGlossary: d.DynamicGlossary,
		MaxTerms:        d.MaxTerms,
		Refinement:      d.Refinement,
		MaxTokens:       s.maxTokens(req),
		ProtectCode:     req.ProtectCode,
	}
	if opts.SourceLanguage == "auto" {
		opts.SourceLanguage = ""
	}
	if req.DynamicGlossary != nil {
		opts.DynamicGlossary = *req.DynamicGlossary
	}
	if req.Refine != nil {
		opts.Refinement = nil
		if *req.Refine {
			r := refiner.Options{}
			if d.Refinement != nil {
				r = *d.Refinement
			}
			opts.Refinement = &r
		}
	}
	if opts.Refinement != nil && req.Boundaries {
		r := *opts.Refinement
		r.EvaluateBoundaries = true
		opts.Refinement = &r
	}

	if s.opts.Store != nil && opts.SourceLanguage != "" && opts.TargetLanguage != "" {
		stored, err := s.opts.Store.Glossary(ctx, opts.SourceLanguage, opts.TargetLanguage)
		if err != nil {
			return opts, err
		}
		opts.Glossary = glossary.Merge(stored, opts.Glossary)
		opts.PassiveSources = append(opts.PassiveSources,
			contextsource.GlossaryLookup(s.opts.Store, opts.SourceLanguage, opts.TargetLanguage))
	}
	return opts, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, errs.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, errs.ErrPrecondition):
		return "precondition"
	case errors.Is(err, errs.ErrAborted):
		return "aborted"
	case errors.Is(err, errs.ErrMalformedOutput):
		return "malformed_output"
	case errors.Is(err, errs.ErrUpstream):
		return "upstream"
	default:
		return "internal"
	}
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch errorKind(err) {
	case "invalid_argument":
		status = http.StatusBadRequest
	case "precondition":
		status = http.StatusUnprocessableEntity
	case "aborted":
		status = http.StatusServiceUnavailable
	case "malformed_output", "upstream":
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed: %v", err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": errorKind(err)})
}
