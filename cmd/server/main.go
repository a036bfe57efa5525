/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the rental fulfillment engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Wire the total calculator (setup + delivery + routing)
  4. Create API handler and router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port            HTTP server port (default: 8080)
  -db              SQLite database path (default: rental.db)
                   Use ":memory:" for in-memory database
  -warehouse       Dispatch origin address for delivery pricing
  -static-km       Fixed one-way routing distance for dev setups; a real
                   routing provider replaces this in production
  -routing-timeout Per-request routing provider timeout

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/rental.db" -warehouse="Industriestr. 1, Hamburg"

  # Run with in-memory database and fixed routing
  ./server -db=":memory:" -static-km=25

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
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
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/rental-engine/api"
	"github.com/warp/rental-engine/order"
	"github.com/warp/rental-engine/routing"
	"github.com/warp/rental-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "rental.db", "SQLite database path")
	warehouse := flag.String("warehouse", "", "warehouse address (delivery pricing origin)")
	staticKm := flag.Float64("static-km", 0, "fixed one-way routing distance in km (dev)")
	routingTimeout := flag.Duration("routing-timeout", routing.DefaultTimeout, "routing provider timeout")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Routing: a fixed distance for dev; production plugs a real provider
	// and geocoder in here.
	resolver := &routing.Resolver{Timeout: *routingTimeout}
	if *staticKm > 0 {
		resolver.Router = routing.Static{Km: decimal.NewFromFloat(*staticKm)}
	}

	totals := &order.TotalCalculator{
		Catalog:          store,
		Routing:          resolver,
		WarehouseAddress: *warehouse,
	}

	// Initialize handler and router
	handler := api.NewHandler(store, totals)
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
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
