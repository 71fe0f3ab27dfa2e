package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"
)

// Routes carries the wired handlers and the auth middleware protecting them.
// Wiring happens in main so handlers stay constructable with fakes.
type Routes struct {
	WhaleWebhook  http.HandlerFunc
	Fills         http.HandlerFunc
	Candidates    http.HandlerFunc
	MiningRuns    http.HandlerFunc
	ActiveFilters http.HandlerFunc

	IngestAuth func(http.Handler) http.Handler
	ReaderAuth func(http.Handler) http.Handler
}

func StartServer(port string, routes Routes) {
	r := chi.NewRouter()

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error(" \"/health error")
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(routes.IngestAuth)
		r.Post("/webhook/whale", routes.WhaleWebhook)
		r.Post("/fills", routes.Fills)
	})

	r.Group(func(r chi.Router) {
		r.Use(routes.ReaderAuth)
		r.Get("/candidates", routes.Candidates)
		r.Get("/mining/runs", routes.MiningRuns)
		r.Get("/filters/active", routes.ActiveFilters)
	})

	// Graceful server
	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
