package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/scenario.report/internal/api"
	"github.com/banshee-data/scenario.report/internal/config"
	"github.com/banshee-data/scenario.report/internal/db"
	"github.com/banshee-data/scenario.report/internal/version"
)

const defaultDBPath = "scenario_results.db"

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	switch command {
	case "serve":
		handleServe(args)
	case "migrate":
		handleMigrate(args)
	case "version":
		fmt.Println(version.String("report"))
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`report - results server for scenario evaluations

Usage: report <command> [options]

Commands:
  serve      Serve stored runs, curves and box jobs over HTTP
  migrate    Manage the results database schema (up, down, status, force)
  version    Show version
  help       Show this help message

Run 'report <command> -h' for command flags.`)
}

// resolveDBPath picks the -db flag, then db_path from the tool config,
// then the default file name.
func resolveDBPath(flagValue, configPath string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return "", err
	}
	if p := cfg.GetDBPath(); p != "" {
		return p, nil
	}
	return defaultDBPath, nil
}

func handleMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dbFlag := fs.String("db", "", "Results database (default db_path or "+defaultDBPath+")")
	configPath := fs.String("config", "", "JSON tool config")
	fs.Parse(args)

	path, err := resolveDBPath(*dbFlag, *configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := db.RunMigrateCommand(fs.Args(), path, os.Stdout, os.Stdin); err != nil {
		log.Fatalf("migrate: %v", err)
	}
}

func handleServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	listen := fs.String("listen", ":8080", "Listen address")
	dbFlag := fs.String("db", "", "Results database (default db_path or "+defaultDBPath+")")
	configPath := fs.String("config", "", "JSON tool config")
	assetsHost := fs.String("assets-host", "", "Serve echarts javascript from this host instead of the CDN")
	fs.Parse(args)

	path, err := resolveDBPath(*dbFlag, *configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	database, err := db.NewDB(path)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler, err := newHandler(database, *assetsHost)
	if err != nil {
		log.Fatalf("failed to set up routes: %v", err)
	}
	if err := serve(ctx, *listen, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}

func newHandler(database *db.DB, assetsHost string) (http.Handler, error) {
	srv := api.NewServer(database)
	srv.AssetsHost = assetsHost
	mux := srv.ServeMux()
	if err := database.AttachAdminRoutes(mux); err != nil {
		return nil, err
	}
	return api.LoggingMiddleware(mux), nil
}

// serve runs an HTTP server until ctx is cancelled.
func serve(ctx context.Context, addr string, h http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	return <-errc
}
