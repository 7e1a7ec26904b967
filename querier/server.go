// server.go
package querier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gigapi/gigapi-zoomview/config"
	"github.com/gigapi/gigapi-zoomview/core"
	"github.com/gigapi/gigapi-zoomview/metrics"
	"github.com/gigapi/gigapi-zoomview/navigator"
	"github.com/gigapi/gigapi-zoomview/planner"
	"github.com/gigapi/gigapi-zoomview/store"
	"github.com/gigapi/gigapi-zoomview/supplier"
	"github.com/go-chi/cors"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server binds the view engine to HTTP
type Server struct {
	Store      *store.Client
	Planner    *planner.Planner
	Supplier   *supplier.Supplier
	Navigator  *navigator.Navigator
	DefaultNbv int
}

// NewServer opens the store and wires the planner, the supplier and the navigator on top of it
func NewServer(ctx context.Context, settings *config.Settings) (*Server, error) {
	client := store.NewClient(settings.DBPath, settings.MaxConns)
	if err := client.Initialize(ctx); err != nil {
		return nil, err
	}
	sup := supplier.New(client.Metadata(), client.Observations(), client.Catalog())
	nav := navigator.New(sup, client.Metadata(), navigator.Options{
		QueueSize: settings.PrefetchQueue,
		Timeout:   settings.QueryTimeout,
	})
	return &Server{
		Store:      client,
		Planner:    planner.New(client.Metadata(), client.Catalog(), store.TableName),
		Supplier:   sup,
		Navigator:  nav,
		DefaultNbv: settings.DefaultNbv,
	}, nil
}

// Route is one endpoint of the server
type Route struct {
	Name    string
	Path    string
	Methods []string
	Handler http.HandlerFunc
}

// Routes lists the endpoints, instrumented but without the CORS and gzip middleware
func (s *Server) Routes() []Route {
	routes := []Route{
		{"config-data", "/config-data/{name}", []string{"POST", "OPTIONS"}, s.HandleConfigData},
		{"get-initview", "/get-initview", []string{"GET", "POST", "OPTIONS"}, s.HandleInitView},
		{"get-views", "/get-views/{name}", []string{"GET", "POST", "OPTIONS"}, s.HandleViews},
		{"get-data", "/get-data/{name}", []string{"GET", "OPTIONS"}, s.HandleData},
		{"delete-configuration", "/delete-configuration/{config}", []string{"DELETE", "OPTIONS"}, s.HandleDeleteConfiguration},
		{"get-configurations", "/get-configurations", []string{"GET", "OPTIONS"}, s.HandleConfigurations},
		{"get-metadata", "/get-metadata/{name}", []string{"GET", "OPTIONS"}, s.HandleMetadata},
		{"get-all-metadataname", "/get-all-metadataname", []string{"GET", "OPTIONS"}, s.HandleMetadataNames},
		{"health", "/health", []string{"GET", "OPTIONS"}, s.HandleHealth},
	}
	for i := range routes {
		routes[i].Handler = instrument(routes[i].Name, routes[i].Methods, routes[i].Handler)
	}
	return routes
}

// Handler serves every route and /metrics on a standalone mux
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	for _, r := range s.Routes() {
		mux.HandleFunc(r.Path, r.Handler)
	}
	mux.Handle("/metrics", promhttp.Handler())
	return Middleware(mux)
}

// Middleware adds CORS headers and compresses responses for clients accepting gzip
func Middleware(h http.Handler) http.Handler {
	return gzhttp.GzipHandler(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})(h))
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

var reqId int32

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument attaches a request logger, rejects unlisted methods and records the request duration
func instrument(name string, methods []string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			metrics.RequestDuration.WithLabelValues(name, strconv.Itoa(rec.code)).Observe(time.Since(start).Seconds())
		}()

		if r.Method == http.MethodOptions {
			rec.WriteHeader(http.StatusOK)
			return
		}
		allowed := false
		for _, m := range methods {
			if m == r.Method {
				allowed = true
				break
			}
		}
		if !allowed {
			sendErrorResponse(rec, "Method not allowed", "", http.StatusMethodNotAllowed)
			return
		}
		ctx := core.WithDefaultLogger(r.Context(), fmt.Sprintf("req-%d", atomic.AddInt32(&reqId, 1)))
		h(rec, r.WithContext(ctx))
	}
}

// statusOf maps an error kind to the HTTP status of the response
func statusOf(err error) int {
	switch core.KindOf(err) {
	case core.KindInvalidInput:
		return http.StatusBadRequest
	case core.KindUnknownSeries, core.KindEmptyResult, core.KindNotConfigured:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(ctx context.Context, w http.ResponseWriter, err error) {
	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		core.Errorf(ctx, "Request failed: %v", err)
	} else {
		core.Debugf(ctx, "Request rejected: %v", err)
	}
	kind := ""
	if k := core.KindOf(err); k != core.KindUnknown {
		kind = k.String()
	}
	sendErrorResponse(w, err.Error(), kind, code)
}

// Send an error response in JSON format
func sendErrorResponse(w http.ResponseWriter, message, kind string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
		Kind:  kind,
	})
}

func sendJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}

func (s *Server) respond(ctx context.Context, w http.ResponseWriter, r *http.Request, res *core.ViewResult) {
	format, err := formatterFor(r.URL.Query().Get("format"))
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	if err := format(res, w); err != nil {
		core.Errorf(ctx, "Failed to write response: %v", err)
	}
}

// HandleHealth pings the store
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.Store.Ping(r.Context()); err != nil {
		core.Errorf(r.Context(), "Health check failed: %v", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// Close stops the prefetch worker and closes the store
func (s *Server) Close() error {
	s.Navigator.Close()
	return s.Store.Close()
}
