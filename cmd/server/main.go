package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"message-board/internal/api"
	"message-board/internal/chat"
	"message-board/internal/config"
	"message-board/internal/middleware"
	"message-board/internal/repository"
	tasks "message-board/internal/Tasks"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg := config.Load()

	// refuse to start without a usable message file
	repo, err := repository.NewMessagesRepo(cfg.StoragePath)
	if err != nil {
		log.Fatalf("Failed to initialize message storage: %v", err)
	}

	renderer, err := api.NewTemplateRenderer(filepath.Join(cfg.WebDir, "templates"))
	if err != nil {
		log.Fatalf("Failed to load templates: %v", err)
	}

	h := chat.NewHub()
	go h.Run()

	cleaner := tasks.NewMessageCleaner(repo, cfg.MessageLimit, cfg.RetentionSchedule)
	if err := cleaner.Start(); err != nil {
		log.Fatalf("Failed to start message retention: %v", err)
	}

	router := api.NewRouter(repo, renderer, filepath.Join(cfg.WebDir, "static"),
		api.WithLiveFeed(h, chat.ServeWS(h)),
	)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           middleware.RequestLogger(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server at http://localhost:%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop
	log.Println("Shutdown signal received. Cleaning up...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	<-cleaner.Stop().Done()
	h.Stop()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down server: %v", err)
	}
	log.Println("Server is stopped.")
}
