package api

import (
	"context"
	"net"
	"net/http"
	"purrbin/cfg"
	"purrbin/svc/svc"
	"purrbin/svc/util"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/hlog"
)

type Server struct {
	router     *chi.Mux
	paste      *svc.Paste
	cfg        *cfg.Cfg
	httpServer *http.Server
}

func NewServer(c *cfg.Cfg, p *svc.Paste) *Server {
	s := &Server{paste: p, cfg: c}
	r := chi.NewRouter()
	mw := NewMw(c)
	r.Group(func(r chi.Router) {
		r.Use(mw.Recoverer)
		r.Get("/health", s.Health)
		r.Get("/ready", s.Ready)
	})
	r.Group(func(r chi.Router) {
		r.Use(mw.Recoverer)
		r.Handle("/metrics", mw.BasicAuthMetrics(promhttp.Handler()))
	})
	if c.EnableProfiler {
		r.Mount("/debug", middleware.Profiler())
	}

	r.Group(func(r chi.Router) {
		r.Use(mw.RequestID)
		r.Use(mw.Recoverer)
		r.Use(hlog.NewHandler(util.GetLogger()))
		r.Use(hlog.AccessHandler(func(req *http.Request, status, size int, dur time.Duration) {
			hlog.FromRequest(req).Info().
				Str("method", req.Method).
				Str("url", req.URL.String()).
				Int("status", status).
				Int("size", size).
				Dur("duration", dur).
				Str("ip", util.RedactIP(req.RemoteAddr)).
				Str("request_id", util.GetRequestID(req.Context())).
				Msg("http request")
		}))
		if c.TrustProxy {
			r.Use(middleware.RealIP)
		}
		r.Use(mw.SecurityHeaders)
		r.Use(mw.Metrics)
		hdl := &Hdl{paste: p, cfg: c}
		r.Post("/", hdl.CreatePaste)
		if c.ServePastes {
			r.Get("/{slug}", hdl.GetPaste)
		}
	})
	s.router = r
	s.httpServer = &http.Server{
		Addr:           c.Addr(),
		Handler:        r,
		ReadTimeout:    c.ReadTimeout,
		WriteTimeout:   c.WriteTimeout,
		IdleTimeout:    c.IdleTimeout,
		MaxHeaderBytes: 64 * 1024,
	}
	return s
}
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Serve accepts connections on l until Shutdown. The listener is opened by
// the caller so bind errors surface before anything is served.
func (s *Server) Serve(l net.Listener) error {
	util.Info().Str("addr", l.Addr().String()).Msg("starting server")
	if err := s.httpServer.Serve(l); err != nil && err != http.ErrServerClosed {
		util.Error().Err(err).Str("addr", l.Addr().String()).Msg("server stopped")
		return err
	}
	return nil
}
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
