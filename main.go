package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gigapi/gigapi-zoomview/config"
	"github.com/gigapi/gigapi-zoomview/core"
	"github.com/gigapi/gigapi-zoomview/querier"
	"github.com/spf13/afero"
)

var (
	loadFlag      = flag.String("load", "", "Load a JSON fixture of series and observations before serving")
	configureFlag = flag.String("configure", "", "Materialize the zoom tiers of a series and exit")
	viewFlag      = flag.String("view", "", "Print the initial view of a series and exit")
	dataFlag      = flag.String("data", "AVG", "Statistics for -configure and -view")
	nbvFlag       = flag.Int("nbv", 0, "Buckets per view for -configure and -view, ZOOMVIEW_DEFAULT_NBV when 0")
	zoomFlag      = flag.String("zoom", `{"2":"co"}`, "Zoom spec for -configure and -view")
)

func main() {
	flag.Parse()
	ctx := core.WithDefaultLogger(context.Background(), "main")
	if err := run(ctx); err != nil {
		core.Errorf(ctx, "%v", err)
		core.Sync()
		os.Exit(1)
	}
	core.Sync()
}

func run(ctx context.Context) error {
	settings, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := core.SetLogLevel(settings.LogLevel); err != nil {
		core.Warnf(ctx, "Ignoring log level %q: %v", settings.LogLevel, err)
	}

	server, err := querier.NewServer(ctx, settings)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	defer server.Close()

	if *loadFlag != "" {
		n, err := server.Store.LoadFile(ctx, afero.NewOsFs(), *loadFlag)
		if err != nil {
			return err
		}
		core.Infof(ctx, "Loaded %d observations from %s", n, *loadFlag)
	}
	if *configureFlag != "" || *viewFlag != "" {
		return oneShot(ctx, server, settings)
	}
	return serve(ctx, server, settings)
}

// oneShot runs -configure or -view against the store and returns
func oneShot(ctx context.Context, server *querier.Server, settings *config.Settings) error {
	stats, err := core.ParseStatistics([]string{*dataFlag})
	if err != nil {
		return err
	}
	zoom, err := core.ParseZoomSpec([]byte(*zoomFlag))
	if err != nil {
		return err
	}
	nbv := *nbvFlag
	if nbv == 0 {
		nbv = settings.DefaultNbv
	}

	if *configureFlag != "" {
		if err := server.Planner.Configure(ctx, *configureFlag, stats, nbv, zoom); err != nil {
			return err
		}
		entries, err := server.Planner.Configurations(ctx)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.Series == *configureFlag {
				fmt.Printf("%s %s %d %s delta=%ds table=%s\n", e.Series, e.Statistic, e.Multiplier, e.Unit, e.Delta, e.Table)
			}
		}
		return nil
	}

	res, err := server.Navigator.InitialView(ctx, *viewFlag, stats[0], nbv, zoom)
	if err != nil {
		return err
	}
	fmt.Printf("# %s %s\n", res.Series, res.Window())
	return core.EncodeText(os.Stdout, res.Sets)
}

func serve(ctx context.Context, server *querier.Server, settings *config.Settings) error {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", settings.Port),
		Handler: server.Handler(),
	}
	errs := make(chan error, 2)
	go func() {
		core.Infof(ctx, "Zoomview server running at http://localhost:%d", settings.Port)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("failed to start main server: %w", err)
		}
	}()
	flightDone := make(chan struct{})
	if settings.FlightPort > 0 {
		go func() {
			defer close(flightDone)
			core.Infof(ctx, "Flight server running on port %d", settings.FlightPort)
			if err := querier.StartFlightServer(sigCtx, settings.FlightPort, server); err != nil {
				errs <- fmt.Errorf("failed to start Flight server: %w", err)
			}
		}()
	} else {
		close(flightDone)
	}

	select {
	case <-sigCtx.Done():
		core.Infof(ctx, "Shutting down")
	case err := <-errs:
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := httpServer.Shutdown(shutdownCtx)
	select {
	case <-flightDone:
	case <-shutdownCtx.Done():
		core.Warnf(ctx, "Flight server did not stop in time")
	}
	return err
}
