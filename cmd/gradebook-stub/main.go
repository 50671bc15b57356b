// cmd/gradebook-stub/main.go
//
// A local in-memory gradebook backend. It serves the same REST routes and
// average stream the client expects, which is handy for demos and manual
// testing without the real service.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gantu78/WebReactivaFront/internal/logging"
	"github.com/Gantu78/WebReactivaFront/internal/stubserver"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	accessLog := flag.Bool("access-log", true, "log every request")
	flag.Parse()

	logger := logging.NewWriter(os.Stdout)
	opts := []stubserver.Option{stubserver.WithLogger(logger)}
	if *accessLog {
		opts = append(opts, stubserver.WithRequestLog())
	}
	srv := stubserver.New(opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(*addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error running stub server: %v\n", err)
			os.Exit(1)
		}
		return
	case <-ctx.Done():
	}

	logger.Printf("stub: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error stopping stub server: %v\n", err)
		os.Exit(1)
	}
}
