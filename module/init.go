package module

import (
	"context"
	"net/http"

	gcfg "github.com/gigapi/gigapi-config/config"
	"github.com/gigapi/gigapi-zoomview/config"
	"github.com/gigapi/gigapi-zoomview/core"
	"github.com/gigapi/gigapi-zoomview/querier"
	"github.com/gigapi/gigapi/v2/modules"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var server *querier.Server

func WithNoError(hndl http.Handler) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		hndl.ServeHTTP(w, r)
		return nil
	}
}

// Init registers the view routes into a gigapi process running in readonly or aio mode
func Init(api modules.Api) {
	if gcfg.Config.Gigapi.Mode != "readonly" && gcfg.Config.Gigapi.Mode != "aio" {
		return
	}
	ctx := core.WithDefaultLogger(context.Background(), "zoomview")
	settings, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := core.SetLogLevel(settings.LogLevel); err != nil {
		core.Warnf(ctx, "Ignoring log level %q: %v", settings.LogLevel, err)
	}
	server, err = querier.NewServer(ctx, settings)
	if err != nil {
		panic(err)
	}
	for _, route := range server.Routes() {
		api.RegisterRoute(&modules.Route{
			Path:    route.Path,
			Methods: route.Methods,
			Handler: WithNoError(querier.Middleware(route.Handler)),
		})
	}
	api.RegisterRoute(&modules.Route{
		Path:    "/zoomview/metrics",
		Methods: []string{"GET"},
		Handler: WithNoError(promhttp.Handler()),
	})
	core.Infof(ctx, "Registered zoomview routes on database %q", settings.DBPath)
}

func Close() {
	if server == nil {
		return
	}
	server.Close()
	core.Sync()
}
