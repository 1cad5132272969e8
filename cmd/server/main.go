/*
main.go - Production tracking server entrypoint

USAGE:
  go run ./cmd/server [-port 8080] [-db ./data/producao.db]

CONFIGURATION:
  Flags override environment, environment overrides defaults. A .env file
  in the working directory is loaded if present.

    PORT             listen port            (default 8080)
    DATABASE_PATH    SQLite database file   (default ./data/producao.db)
    JWT_SECRET       HS256 signing secret   (required)
*/
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/warp/production-engine/api"
	"github.com/warp/production-engine/store/sqlite"
)

func main() {
	godotenv.Load()

	port := flag.String("port", envOr("PORT", "8080"), "HTTP listen port")
	dbPath := flag.String("db", envOr("DATABASE_PATH", "./data/producao.db"), "SQLite database path")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	if dir := filepath.Dir(*dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("failed to create data directory: %v", err)
		}
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	handler := api.NewHandler(store, []byte(secret))
	srv := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("listening on :%s (db=%s)", *port, *dbPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
