// File: internal/relayserver/server.go
// Brief: HTTP relay listener (health, heartbeat, envelope intake, metrics).

// Package relayserver accepts tool envelopes over HTTP and records them in an
// append-only custody ledger. It performs no stack resolution and produces no
// advisories; envelopes are validated for shape only.
package relayserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxLedgerKeys caps the key list recorded for invalid envelopes.
const maxLedgerKeys = 50

const shutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	LedgerPath string
	Log        logr.Logger
	// Registry defaults to a fresh registry so servers never collide on the
	// global one.
	Registry *prometheus.Registry
	Now      func() time.Time
}

// Server is the relay listener.
type Server struct {
	router  *gin.Engine
	ledger  *Ledger
	metrics *Metrics
	log     logr.Logger
	now     func() time.Time
	started time.Time
}

// New builds a Server with all routes registered.
func New(opts Options) *Server {
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ledger := NewLedger(opts.LedgerPath)
	ledger.now = now

	s := &Server{
		router:  gin.New(),
		ledger:  ledger,
		metrics: NewMetrics(reg),
		log:     opts.Log,
		now:     now,
		started: now(),
	}
	s.router.Use(gin.Recovery())
	s.router.GET("/health", s.health)
	s.router.GET("/heartbeat", s.heartbeat)
	s.router.POST("/relay", s.relay)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

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
		s.log.Info("relay listener started", "addr", addr, "ledger", s.ledger.Path())
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Info("relay listener stopping")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) heartbeat(c *gin.Context) {
	pulse := newPulse(s.started, s.now())
	if !s.record(c, EventHeartbeat, pulse) {
		return
	}
	s.metrics.Heartbeats.Inc()
	c.JSON(http.StatusOK, pulse)
}

func (s *Server) relay(c *gin.Context) {
	body, err := decodeBody(c.Request.Body)
	if err != nil {
		s.reject(c, outcomeInvalidJSON, gin.H{"body_type": "invalid_json"}, "Invalid JSON body")
		return
	}

	obj, ok := body.(map[string]any)
	if !ok {
		s.reject(c, outcomeInvalid, gin.H{"body_type": bodyType(body)}, "Invalid envelope")
		return
	}

	envelope, tool := obj["envelope"], obj["tool"]
	hasEnvelope, hasTool := truthy(envelope), truthy(tool)
	if !hasEnvelope || !hasTool {
		data := gin.H{
			"body_type":    "dict",
			"keys":         sortedKeys(obj, maxLedgerKeys),
			"has_envelope": hasEnvelope,
			"has_tool":     hasTool,
		}
		s.reject(c, outcomeInvalid, data, "Invalid envelope")
		return
	}

	if !s.record(c, EventRelayReceived, gin.H{"tool": tool, "envelope": envelope}) {
		return
	}
	s.metrics.RelayRequests.WithLabelValues(outcomeReceived).Inc()
	s.log.V(1).Info("relay envelope received", "tool", tool)
	c.JSON(http.StatusOK, gin.H{"status": "received", "tool": tool})
}

// reject records an invalid request and answers 400. The outcome is counted
// only once the ledger holds the event.
func (s *Server) reject(c *gin.Context, outcome string, data any, detail string) {
	if !s.record(c, EventRelayInvalid, data) {
		return
	}
	s.metrics.RelayRequests.WithLabelValues(outcome).Inc()
	c.JSON(http.StatusBadRequest, gin.H{"detail": detail})
}

// record appends to the custody ledger. On failure it answers 500 and
// returns false; an unrecorded envelope is never acknowledged.
func (s *Server) record(c *gin.Context, event string, data any) bool {
	if err := s.ledger.Append(event, data); err != nil {
		s.log.Error(err, "custody ledger write failed", "event", event)
		s.metrics.RelayRequests.WithLabelValues(outcomeLedgerError).Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Custody ledger unavailable"})
		return false
	}
	return true
}

func decodeBody(r io.Reader) (any, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON body")
	}
	return v, nil
}

// bodyType names a decoded JSON value the way envelope producers report it.
func bodyType(v any) string {
	switch t := v.(type) {
	case nil:
		return "NoneType"
	case []any:
		return "list"
	case string:
		return "str"
	case bool:
		return "bool"
	case json.Number:
		if strings.ContainsAny(t.String(), ".eE") {
			return "float"
		}
		return "int"
	case map[string]any:
		return "dict"
	default:
		return "unknown"
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

func sortedKeys(m map[string]any, limit int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}
