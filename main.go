package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Gin_postgres_redis_tool_lending/app"
	"Gin_postgres_redis_tool_lending/config"
	"Gin_postgres_redis_tool_lending/db"
	"Gin_postgres_redis_tool_lending/routes"
)

func main() {
	config.LoadEnv()
	application := app.MustNew()
	defer application.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	app.BootstrapFirstAdmin(ctx, application.Config, db.NewRepo(application.DB))
	cancel()

	routes.RegisterRoutes(application.Router, application)

	srv := &http.Server{
		Addr:              ":" + config.Get("PORT", "3001"),
		Handler:           application.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Printf("received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server: %v", err)
			return
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
