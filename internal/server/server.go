// Package server wires the downstream HTTP surface: a chi router exposing
// POST /v1/messages and GET /healthz, and the per-request orchestration
// described at spec §4.5 — decode, translate, relay upstream, and stream
// the translated response back as SSE.
//
// The middleware stack (request logging, panic recovery, a bounded
// per-request timeout, permissive CORS) follows the teacher's
// examples/chi-server/main.go exactly; everything past that point is this
// proxy's own orchestration, since the teacher's example handler is a
// single non-streaming round trip.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/openbridge/messages-gemini-proxy/internal/config"
	"github.com/openbridge/messages-gemini-proxy/internal/convstate"
	"github.com/openbridge/messages-gemini-proxy/internal/emit"
	"github.com/openbridge/messages-gemini-proxy/internal/gemini"
	"github.com/openbridge/messages-gemini-proxy/internal/messages"
	"github.com/openbridge/messages-gemini-proxy/internal/proxyerr"
	"github.com/openbridge/messages-gemini-proxy/internal/reassemble"
	"github.com/openbridge/messages-gemini-proxy/internal/telemetry"
	"github.com/openbridge/messages-gemini-proxy/internal/translate"
	"github.com/openbridge/messages-gemini-proxy/internal/upstreamhttp"
)

// readBodyBufferSize is the chunk size used when draining the upstream
// stream body into the reassembler.
const readBodyBufferSize = 32 << 10

// UpstreamClient is the subset of *upstreamhttp.Client the server depends
// on, narrowed so tests can substitute a fake.
type UpstreamClient interface {
	DoPost(ctx context.Context, url string, headers map[string]string, body []byte) (*upstreamhttp.Response, error)
	StreamTimeout() time.Duration
}

// Server holds every collaborator one inbound request needs.
type Server struct {
	cfg        *config.Config
	translator *translate.Translator
	store      *convstate.Store
	upstream   UpstreamClient
	tracer     trace.Tracer
	logger     *slog.Logger

	sem chan struct{}
}

// New builds a Server; Router builds its chi router. telemetrySettings may
// be nil (telemetry disabled).
func New(cfg *config.Config, translator *translate.Translator, store *convstate.Store, upstream UpstreamClient, telemetrySettings *telemetry.Settings, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		cfg:        cfg,
		translator: translator,
		store:      store,
		upstream:   upstream,
		tracer:     telemetry.GetTracer(telemetrySettings),
		logger:     logger,
		sem:        make(chan struct{}, cfg.ConcurrencyCap),
	}
}

// Router builds the chi router, following the teacher's
// examples/chi-server/main.go middleware stack (logger, recoverer, a
// per-request timeout, permissive CORS) with the timeout bound by the
// configured stream timeout rather than the teacher's fixed 60s, since a
// long-lived SSE stream must not be cut off by a blanket request deadline
// shorter than what the upstream call itself is allowed to take.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.upstream.StreamTimeout() + 10*time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type", "x-api-key", "Authorization", "anthropic-version"},
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Post("/v1/messages", s.handleMessages)
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleMessages implements the §4.5 request flow.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	start := time.Now()

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	default:
		s.writePreStreamError(w, proxyerr.RateLimited("at capacity: %d requests already in flight", s.cfg.ConcurrencyCap))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxRequestBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writePreStreamError(w, proxyerr.InvalidRequest("body", "request body exceeds %d bytes or could not be read: %v", s.cfg.MaxRequestBodyBytes, err))
		return
	}

	var req messages.Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.writePreStreamError(w, proxyerr.InvalidRequest("body", "invalid JSON: %v", err))
		return
	}

	apiKey := extractAPIKey(r)
	if apiKey == "" {
		s.writePreStreamError(w, &proxyerr.Error{Kind: proxyerr.KindAuthentication, Message: "missing x-api-key or Authorization header"})
		return
	}

	upstreamReq, model, err := s.translator.Translate(&req, s.cfg)
	if err != nil {
		s.writePreStreamError(w, err)
		return
	}

	upstreamBody, err := json.Marshal(upstreamReq)
	if err != nil {
		s.writePreStreamError(w, proxyerr.Internal("marshal upstream request: %v", err))
		return
	}

	ctx, span := telemetry.StartRequestSpan(r.Context(), s.tracer, telemetry.RequestAttributes{RequestID: requestID, Model: model})
	ctx, cancel := context.WithTimeout(ctx, s.upstream.StreamTimeout())
	defer cancel()

	url := fmt.Sprintf("https://%s/v1beta/models/%s:streamGenerateContent?key=%s", s.cfg.UpstreamHost, model, apiKey)
	headers := map[string]string{"Content-Type": "application/json"}

	resp, err := s.upstream.DoPost(ctx, url, headers, upstreamBody)
	if err != nil {
		pe := proxyerr.FromTransportError(err)
		telemetry.FinishRequestSpan(span, telemetry.ResponseAttributes{}, pe)
		s.writePreStreamError(w, pe)
		return
	}
	defer resp.Body.Close()

	// From here on, the downstream response has committed to 200 + SSE
	// headers: the upstream call was successfully issued, so any remaining
	// failure (a non-2xx upstream status, a mid-stream read error) is
	// surfaced through the SSE error event, never a changed HTTP status.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	outcome := s.stream(ctx, w, flusher, resp, model)
	telemetry.FinishRequestSpan(span, outcome, nil)

	s.logger.Info("request complete",
		"request_id", requestID,
		"model", model,
		"upstream_status", outcome.UpstreamStatus,
		"input_tokens", outcome.InputTokens,
		"output_tokens", outcome.OutputTokens,
		"elapsed", time.Since(start),
	)
}

// stream drains the upstream body through the reassembler and emitter,
// flushing each produced SSE event immediately, and returns the response
// attributes telemetry and logging need.
func (s *Server) stream(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, resp *upstreamhttp.Response, model string) telemetry.ResponseAttributes {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(resp.Body)
		pe := proxyerr.FromUpstreamStatus(resp.StatusCode, strings.TrimSpace(string(errBody)))
		s.writeAndFlush(w, flusher, emit.EmitError(string(pe.Kind), pe.Message))
		return telemetry.ResponseAttributes{UpstreamStatus: resp.StatusCode}
	}

	emitter := emit.New(model, s.store, s.logger)
	reassembler := reassemble.New(reassemble.DefaultInitialCap, reassemble.DefaultSoftCap, s.logger)

	// resp.Body's Read unblocks on its own once ctx is canceled (the
	// underlying transport tears down the connection), so no separate
	// ctx.Done() select is needed here — ctx cancellation surfaces as a
	// read error on the next call.
	buf := make([]byte, readBodyBufferSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			for _, raw := range reassembler.Feed(buf[:n]) {
				var chunk gemini.ResponseChunk
				if uerr := json.Unmarshal(raw, &chunk); uerr != nil {
					s.logger.Warn("dropping unparseable upstream chunk", "error", uerr)
					continue
				}
				for _, event := range emitter.Feed(&chunk) {
					s.writeAndFlush(w, flusher, event)
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Warn("upstream read error", "error", err)
				if !emitter.IsClosed() {
					s.writeAndFlush(w, flusher, emit.EmitError(string(proxyerr.KindAPI), fmt.Sprintf("upstream stream read failed: %v", err)))
					return telemetry.ResponseAttributes{
						UpstreamStatus: resp.StatusCode,
						InputTokens:    emitter.InputTokens(),
						OutputTokens:   emitter.OutputTokens(),
					}
				}
			}
			break
		}
	}
	if err := reassembler.Finish(); err != nil {
		s.logger.Warn("reassembler finished with pending bytes", "error", err)
	}
	for _, event := range emitter.FinishIncomplete() {
		s.writeAndFlush(w, flusher, event)
	}

	return telemetry.ResponseAttributes{
		UpstreamStatus: resp.StatusCode,
		InputTokens:    emitter.InputTokens(),
		OutputTokens:   emitter.OutputTokens(),
	}
}

func (s *Server) writeAndFlush(w http.ResponseWriter, flusher http.Flusher, event string) {
	_, _ = io.WriteString(w, event)
	if flusher != nil {
		flusher.Flush()
	}
}

// writePreStreamError renders the structured JSON error body for a failure
// that happened before any streaming began (§7 "Pre-stream failures").
func (s *Server) writePreStreamError(w http.ResponseWriter, err error) {
	pe, ok := proxyerr.As(err)
	if !ok {
		pe = proxyerr.Internal("%v", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(pe.HTTPStatus())
	_ = json.NewEncoder(w).Encode(pe.ToJSON())
}

// extractAPIKey reads the downstream credential from x-api-key or a Bearer
// Authorization header, never logging it, and never forwarding it upstream
// as a header — it becomes the upstream URL's ?key= query parameter, and a
// fresh header map is built for the upstream call, which alone satisfies
// "remove any downstream credential headers before relay".
func extractAPIKey(r *http.Request) string {
	if key := r.Header.Get("x-api-key"); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
