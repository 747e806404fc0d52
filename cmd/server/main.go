/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the delivery management server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Wire services (delivery, master) over the shared store
  4. Configure HTTP router
  5. Start server with graceful shutdown

CONFIGURATION:
  Flags, with environment fallbacks:
  -port       HTTP server port       (PORT, default 8080)
  -db         SQLite database path   (DATABASE_PATH, default milkdelivery.db)
              Use ":memory:" for an in-memory database
  -scenarios  Demo fixture directory (SCENARIO_DIR, default ./scenarios)
              Set to "" to disable the scenario endpoints

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/JETKIDS/trae-milk2-sub002/api"
	"github.com/JETKIDS/trae-milk2-sub002/delivery"
	"github.com/JETKIDS/trae-milk2-sub002/master"
	"github.com/JETKIDS/trae-milk2-sub002/store/sqlite"
)

func main() {
	// .env is optional; flags beat environment.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envString("DATABASE_PATH", "milkdelivery.db"), "SQLite database path")
	scenarioDir := flag.String("scenarios", envString("SCENARIO_DIR", "./scenarios"), "demo fixture directory (empty to disable)")
	flag.Parse()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	deliveries := delivery.NewService(store, store, store)
	masters := master.NewService(store, store)

	handler, err := api.NewHandler(deliveries, masters, store, *scenarioDir)
	if err != nil {
		log.Fatalf("Failed to initialize handler: %v", err)
	}
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
