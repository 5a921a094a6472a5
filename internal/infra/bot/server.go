package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voicegate/internal/domain"
	"voicegate/internal/metrics"
)

const (
	maxActivityBody = 1 << 20
	turnTimeout     = 3 * time.Minute
)

// TurnHandler resolves one inbound message to reply text ("" means no reply).
type TurnHandler interface {
	HandleTurn(ctx context.Context, msg domain.Message) string
}

// ReplySender delivers a reply back into the conversation.
type ReplySender interface {
	Reply(ctx context.Context, inbound *Activity, text string) error
}

// Server is the inbound message listener. Each message activity is
// acknowledged immediately and processed as an independent turn on its own
// goroutine.
type Server struct {
	addr    string
	turns   TurnHandler
	replies ReplySender
	metrics *metrics.Metrics
	logger  *slog.Logger

	server      *http.Server
	rateLimiter *RateLimiter
	mu          sync.Mutex
	running     bool
	wg          sync.WaitGroup
}

func NewServer(addr string, turns TurnHandler, replies ReplySender, ratePerMinute int, m *metrics.Metrics, logger *slog.Logger) *Server {
	if ratePerMinute <= 0 {
		ratePerMinute = 60
	}
	return &Server{
		addr:        addr,
		turns:       turns,
		replies:     replies,
		metrics:     m,
		logger:      logger,
		rateLimiter: NewRateLimiter(ratePerMinute, time.Minute),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))
	r.Use(s.observe)

	r.Post("/api/messages", s.rateLimiter.Middleware(s.handleMessages))
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.Info("listener starting", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("listener error", "error", err)
		}
	}()

	s.running = true
	return nil
}

// Stop shuts the listener down and waits for in-flight turns to finish,
// bounded by ctx.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
		if err := s.server.Close(); err != nil {
			return fmt.Errorf("closing server: %w", err)
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("turns still in flight: %w", ctx.Err())
	}
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var activity Activity
	if err := json.NewDecoder(io.LimitReader(r.Body, maxActivityBody)).Decode(&activity); err != nil {
		s.logger.Warn("unparseable activity", "error", err)
		http.Error(w, "invalid activity", http.StatusBadRequest)
		return
	}

	// Membership events, typing indicators and the like need no reply.
	if activity.Type != "message" {
		w.WriteHeader(http.StatusOK)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.processTurn(&activity)
	}()

	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) processTurn(activity *Activity) {
	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()

	reply := s.turns.HandleTurn(ctx, activity.Message())
	if reply == "" {
		return
	}

	if err := s.replies.Reply(ctx, activity, reply); err != nil {
		s.logger.Error("sending reply", "error", err, "conversation", conversationID(activity))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"ok"}`)
}

// observe records request metrics per route.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Label with the matched route pattern, not the raw path: unmatched
		// requests would otherwise mint one label pair per probed path.
		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				path = p
			}
		}
		s.metrics.RecordHTTPRequest(
			r.Method,
			path,
			strconv.Itoa(ww.Status()),
			time.Since(start).Seconds(),
		)
	})
}

func conversationID(a *Activity) string {
	if a.Conversation == nil {
		return ""
	}
	return a.Conversation.ID
}
