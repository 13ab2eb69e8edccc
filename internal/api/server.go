// Package api is the HTTP control surface: runtime status, device
// listing, focus and test pattern posts, SSE event and log streams, the
// MJPEG preview, and the Prometheus scrape endpoint. Control posts only
// enqueue; every sub-device write still happens on the capture loop
// goroutine.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/viewfinder/internal/capture"
	"github.com/smazurov/viewfinder/internal/controls"
	"github.com/smazurov/viewfinder/internal/events"
	"github.com/smazurov/viewfinder/internal/logging"
	"github.com/smazurov/viewfinder/internal/version"
)

// Options wires the server to the rest of the process. Nil fields
// disable their routes instead of failing: a run without a sub-device
// has no controller, a run without --record has no recording state.
type Options struct {
	Bus        *events.Bus
	Stats      func() capture.Stats
	Controller *controls.Controller

	// Recording reports the active recording, if any.
	Recording func() (RecordingStatus, bool)

	// Raw handlers mounted outside the OpenAPI surface.
	PrometheusHandler http.Handler
	PreviewStream     http.Handler
	PreviewSnapshot   http.Handler
}

// Server hosts the huma API on a plain http.ServeMux.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	log        *slog.Logger
}

func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("Viewfinder API", version.String())
	config.Info.Description = "Control and observe the NV12 capture preview"
	// An empty server list keeps OpenAPI paths relative, so the docs work
	// from any host the viewfinder is reached on.
	config.Servers = []*huma.Server{}

	s := &Server{
		api:     humago.New(mux, config),
		mux:     mux,
		options: opts,
		log:     logging.GetLogger("api"),
	}

	s.api.UseMiddleware(NewCORSMiddleware(corsConfig))
	s.api.UseMiddleware(LoggingMiddleware)

	// Raw endpoints bypass huma: multipart streams and the Prometheus text
	// format have no OpenAPI schema worth declaring.
	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}
	if opts.PreviewStream != nil {
		mux.Handle("GET /api/preview.mjpeg", opts.PreviewStream)
	}
	if opts.PreviewSnapshot != nil {
		mux.Handle("GET /api/preview.jpg", opts.PreviewSnapshot)
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.registerStatusRoutes()
	s.registerDeviceRoutes()
	s.registerControlRoutes()
	if s.options.Bus != nil {
		s.registerEventRoutes()
		s.registerLogRoutes()
	}
}

// Start blocks serving HTTP until Stop or a listen error.
func (s *Server) Start(addr string) error {
	s.log.Info("api listening", "addr", addr, "docs", "http://"+addr+"/docs")
	s.httpServer = &http.Server{Addr: addr, Handler: s.mux}
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop closes the server immediately. SSE clients hold their connections
// open indefinitely, so a graceful drain would never finish.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	s.log.Info("stopping api server")
	return s.httpServer.Close()
}
