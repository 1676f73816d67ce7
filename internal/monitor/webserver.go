// Package monitor serves the HTTP status API, the obstacle debug charts and
// the gRPC health service for a running detection controller.
package monitor

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/banshee-data/wayfinder/internal/detection"
	"github.com/banshee-data/wayfinder/internal/httputil"
	"github.com/banshee-data/wayfinder/internal/version"
	"tailscale.com/tsweb"
)

// Detector is the controller surface the monitor drives.
type Detector interface {
	Start(ctx context.Context) error
	Stop()
	State() detection.State
	Session() *detection.Session
	Result() detection.Result
	Stats() detection.Stats
	Summary() string
	Subscribe() (string, <-chan detection.Result)
	Unsubscribe(id string)
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address  string
	Detector Detector
	// SessionContext bounds sessions started over HTTP. Defaults to
	// context.Background.
	SessionContext context.Context
}

// WebServer handles the HTTP interface for the detection controller.
type WebServer struct {
	address    string
	detector   Detector
	sessionCtx context.Context
	mux        *http.ServeMux
	server     *http.Server
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address:    config.Address,
		detector:   config.Detector,
		sessionCtx: config.SessionContext,
	}
	if ws.sessionCtx == nil {
		ws.sessionCtx = context.Background()
	}
	ws.mux = ws.setupRoutes()
	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           ws.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws
}

// ServeMux returns the route table so callers can mount admin routes.
func (ws *WebServer) ServeMux() *http.ServeMux { return ws.mux }

// Start serves HTTP until ctx is cancelled, then shuts down.
func (ws *WebServer) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err, ok := <-errc:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	log.Printf("HTTP server routine stopped")
	return nil
}

// Close shuts down the web server.
func (ws *WebServer) Close() error {
	return ws.server.Close()
}

func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/status", ws.handleStatus)
	mux.HandleFunc("/api/summary", ws.handleSummary)
	mux.HandleFunc("/api/result", ws.handleResult)
	mux.HandleFunc("/api/start", ws.handleStart)
	mux.HandleFunc("/api/stop", ws.handleStop)

	debug := tsweb.Debugger(mux)
	debug.HandleFunc("obstacles", "Top-down obstacle chart", ws.handleObstacleChart)
	debug.KV("Version", version.Version)
	return mux
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"status":    "ok",
		"service":   "wayfinder",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// StatusResponse is the /api/status body.
type StatusResponse struct {
	State   detection.State    `json:"state"`
	Session *detection.Session `json:"session"`
	Stats   detection.Stats    `json:"stats"`
	Version string             `json:"version"`
	GitSHA  string             `json:"git_sha"`
}

func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, StatusResponse{
		State:   ws.detector.State(),
		Session: ws.detector.Session(),
		Stats:   ws.detector.Stats(),
		Version: version.Version,
		GitSHA:  version.GitSHA,
	})
}

func (ws *WebServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"summary": ws.detector.Summary()})
}

func (ws *WebServer) handleResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, ws.detector.Result())
}

func (ws *WebServer) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	// The request context ends with the response; sessions outlive it.
	if err := ws.detector.Start(ws.sessionCtx); err != nil {
		if errors.Is(err, detection.ErrSensorUnavailable) {
			httputil.ServiceUnavailable(w, err.Error())
			return
		}
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]detection.State{"state": ws.detector.State()})
}

func (ws *WebServer) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	ws.detector.Stop()
	httputil.WriteJSONOK(w, map[string]detection.State{"state": ws.detector.State()})
}
