package cli

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/cors"

	"github.com/timeshipd/timeship/internal/clock"
	"github.com/timeshipd/timeship/internal/logging"
	"github.com/timeshipd/timeship/internal/server"
	"github.com/timeshipd/timeship/storage"
	"github.com/timeshipd/timeship/storage/localfs"
)

const (
	httpReadTimeout     = 15 * time.Second
	httpWriteTimeout    = 15 * time.Second
	httpIdleTimeout     = 60 * time.Second
	httpShutdownTimeout = 30 * time.Second
)

// rootContext returns the context used for the server lifetime, with
// console logging attached.
func rootContext() context.Context {
	rootLogger = consoleLogger(*logLevel)

	return logging.WithLogger(context.Background(), rootLogger)
}

// rootLogger is the logger factory attached to every request context.
var rootLogger logging.LoggerForModuleFunc

func printBanner() {
	color.New(color.FgCyan).Fprintf(os.Stderr, "timeship %v\n", BuildVersion) //nolint:errcheck
}

func runServer(ctx context.Context) error {
	t0 := clock.Now()

	printBanner()

	dir, err := resolveRootDir()
	if err != nil {
		return errors.Wrap(err, "unable to resolve root directory")
	}

	st, err := localfs.New(dir)
	if err != nil {
		return errors.Wrap(err, "unable to open root directory")
	}

	registry := storage.NewRegistry()
	if err := registry.Register("local", st); err != nil {
		return err
	}

	if err := registry.SetDefault("local"); err != nil {
		return err
	}

	defer func() {
		if cerr := registry.CloseAll(ctx); cerr != nil {
			log(ctx).Errorf("unable to close storages: %v", cerr)
		}
	}()

	srv := server.New(registry, server.Options{
		LogRequests: *logLevel == "debug",
	})

	router := mux.NewRouter()
	srv.SetupAPIHandlers(router.PathPrefix(normalizePrefix(*apiPrefix)).Subrouter())

	c := cors.New(cors.Options{
		AllowedOrigins: strings.Split(*corsAllowedOrigins, ","),
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
	})

	httpServer := &http.Server{
		Addr:         *serverAddress,
		Handler:      c.Handler(requestContext(router)),
		ReadTimeout:  httpReadTimeout,
		WriteTimeout: httpWriteTimeout,
		IdleTimeout:  httpIdleTimeout,
	}

	listener, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		return errors.Wrap(err, "unable to listen")
	}

	log(ctx).Infof("serving %v", dir)
	log(ctx).Infof("API: http://%v%v (started in %v)", listener.Addr(), normalizePrefix(*apiPrefix), clock.Since(t0))

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- httpServer.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		return errors.Wrap(err, "server failed")
	case sig := <-interrupted():
		log(ctx).Infof("received %v, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, httpShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "unable to shut down")
	}

	log(ctx).Infof("server stopped")

	return nil
}

// requestContext attaches the root logger to every request context.
func requestContext(inner http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner.ServeHTTP(w, r.WithContext(logging.WithLogger(r.Context(), rootLogger)))
	})
}

func normalizePrefix(prefix string) string {
	if prefix == "" || prefix == "/" {
		return "/"
	}

	return "/" + strings.Trim(prefix, "/")
}

func interrupted() <-chan os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	return quit
}
