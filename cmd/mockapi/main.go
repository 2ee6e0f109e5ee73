// Command mockapi serves the fake admin backend used by the tests, for trying
// adminctl by hand.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"ytd.app/adminctl/internal/testutil/mockapi"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	accessTTL := flag.Duration("access-ttl", 15*time.Minute, "access token lifetime")
	csrfTTL := flag.Duration("csrf-ttl", time.Hour, "CSRF token lifetime")
	secret := flag.String("secret", os.Getenv("MOCKAPI_SECRET"), "HS256 signing key")
	flag.Parse()

	logger := log.New(os.Stderr, "[mockapi] ", log.LstdFlags)
	srv := mockapi.New(mockapi.Options{
		Secret:    []byte(*secret),
		AccessTTL: *accessTTL,
		CsrfTTL:   *csrfTTL,
		Logger:    &middleware.DefaultLogFormatter{Logger: logger, NoColor: true},
	})
	server := &http.Server{Addr: *addr, Handler: srv, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Printf("listening on %s (accounts %s, %s)", *addr, mockapi.AdminEmail, mockapi.ViewerEmail)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %v", err)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
}
