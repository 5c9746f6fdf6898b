package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/goliatone/go-formrunner/internal/config"
	"github.com/goliatone/go-formrunner/internal/render"
	"github.com/goliatone/go-formrunner/pkg/form"
	"github.com/goliatone/go-formrunner/pkg/session"
	"github.com/goliatone/go-formrunner/pkg/summary"
	"github.com/goliatone/go-formrunner/pkg/transport"
)

// Enqueuer hands a submission to an out-of-process delivery worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload any, url string, allowRetry bool) (string, error)
}

// Server serves published forms as a multi-page wizard.
type Server struct {
	cfg      config.Config
	registry *form.Registry
	store    session.Store
	engine   *render.Engine
	logger   *zap.Logger

	webhook  *transport.WebhookClient
	notifier transport.Notifier
	uploads  *transport.UploadService
	queue    Enqueuer

	router chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithStore swaps the session store.
func WithStore(store session.Store) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithWebhookClient swaps the webhook client.
func WithWebhookClient(client *transport.WebhookClient) Option {
	return func(s *Server) {
		s.webhook = client
	}
}

// WithNotifier swaps the notification client.
func WithNotifier(notifier transport.Notifier) Option {
	return func(s *Server) {
		s.notifier = notifier
	}
}

// WithQueue routes webhook submissions through a queue instead of direct
// delivery.
func WithQueue(queue Enqueuer) Option {
	return func(s *Server) {
		s.queue = queue
	}
}

// WithEngine swaps the template engine.
func WithEngine(engine *render.Engine) Option {
	return func(s *Server) {
		s.engine = engine
	}
}

// New wires the server. The registry is shared with whatever seeds it.
func New(cfg config.Config, registry *form.Registry, opts ...Option) (*Server, error) {
	engine, err := render.New(render.WithGlobalData(map[string]any{
		"serviceName": cfg.ServiceName,
	}))
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		registry: registry,
		store:    session.NewMemoryStore(),
		engine:   engine,
		logger:   zap.NewNop(),
		webhook:  transport.NewWebhookClient(),
		uploads:  transport.NewUploadService(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = s.routes()
	return s, nil
}

// Handler exposes the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Post("/publish", s.handlePublish)
	r.Get("/published", s.handlePublishedList)
	r.Get("/published/{formID}", s.handlePublished)

	r.Get("/{formID}", s.handleFormRoot)
	r.Get("/{formID}/*", s.handlePageGet)
	r.Post("/{formID}/*", s.handlePagePost)

	return r
}

// requestLogger logs every request with its status and duration.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}

var _ transport.Notifier = (*transport.NotifyClient)(nil)

// dispatchNotifier is nil-safe: a server without a notifier logs and drops
// notifications instead of failing submissions.
func (s *Server) sendNotifications(ctx context.Context, outputs []summary.NotifyOutput) {
	for _, output := range outputs {
		if s.notifier == nil {
			s.logger.Warn("no notifier configured, dropping notification",
				zap.String("output", output.Name))
			continue
		}
		if err := s.notifier.Send(ctx, output); err != nil {
			s.logger.Error("notification failed",
				zap.String("output", output.Name),
				zap.Error(err))
		}
	}
}
