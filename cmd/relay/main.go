package main

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"syncspace/backend/internal/config"
	"syncspace/backend/internal/database"
	"syncspace/backend/internal/execute"
	"syncspace/backend/internal/handlers"
	"syncspace/backend/internal/middleware"
	"syncspace/backend/internal/relay"
	"syncspace/backend/internal/workspace"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}
	cfg := config.Load()

	hub := relay.NewHub()
	go hub.Run()

	executeHandler := handlers.NewExecuteHandler(execute.New(cfg.ExecuteAPIURL))

	var workspaceHandler *handlers.WorkspaceHandler
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Unable to connect to database: %v", err)
		}
		defer pool.Close()
		workspaceHandler = handlers.NewWorkspaceHandler(workspace.NewStore(pool))
	} else {
		log.Println("DATABASE_URL not set, workspace persistence disabled")
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ws/{roomId}", func(w http.ResponseWriter, r *http.Request) {
		handlers.ServeWs(hub, w, r)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)
			r.Post("/execute", executeHandler.ServeHTTP)
			if workspaceHandler != nil {
				r.Put("/workspace/{roomId}", workspaceHandler.Save)
				r.Get("/workspace/{roomId}", workspaceHandler.Load)
			}
		})
	})

	log.Printf("Starting relay on %s", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, r); err != nil {
		log.Fatalf("Could not start server: %s\n", err)
	}
}
