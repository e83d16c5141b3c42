// Package cli implements the timeship command-line entry point.
package cli

import (
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/timeshipd/timeship/internal/logging"
)

// Build information, overridden at link time.
var (
	BuildVersion = "dev"
	BuildCommit  = "none"
	BuildDate    = "unknown"
)

var log = logging.Module("timeship/cli")

var (
	app = kingpin.New("timeship", "Browse a directory tree and every snapshot version of it over HTTP.")

	serverAddress = app.Flag("address", "Server listen address").
			Envar("TIMESHIP_ADDRESS").Default(":8080").String()
	rootDir = app.Flag("root", "Root directory to serve (defaults to the working directory)").
		Envar("TIMESHIP_ROOT").String()
	apiPrefix = app.Flag("api-prefix", "Prefix under which API routes live").
			Envar("TIMESHIP_API_PREFIX").Default("/api").String()
	corsAllowedOrigins = app.Flag("cors-allowed-origins", "Comma-separated list of allowed CORS origins").
				Envar("TIMESHIP_CORS_ALLOWED_ORIGINS").Default("http://localhost:8080").String()
	logLevel = app.Flag("log-level", "Console log level").
			Envar("TIMESHIP_LOG_LEVEL").Default("info").Enum("debug", "info", "warning", "error")
)

// App returns the kingpin application for the timeship command.
func App() *kingpin.Application {
	return app
}

// Run parses arguments and runs the server until interrupted.
func Run(args []string) error {
	godotenv.Load() //nolint:errcheck

	app.Version(BuildVersion + " commit: " + BuildCommit + " built: " + BuildDate)

	if _, err := app.Parse(args); err != nil {
		return err
	}

	return runServer(rootContext())
}

func resolveRootDir() (string, error) {
	if *rootDir != "" {
		return *rootDir, nil
	}

	return os.Getwd() //nolint:wrapcheck
}
