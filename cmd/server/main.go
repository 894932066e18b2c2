package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"go.uber.org/zap"
	"chatrelay-backend/internal/auth"
	"chatrelay-backend/internal/config"
	"chatrelay-backend/internal/database"
	postgresrepo "chatrelay-backend/internal/repository/postgres"
	"chatrelay-backend/internal/service"
	"chatrelay-backend/internal/transport/http/handlers"
	"chatrelay-backend/internal/transport/http/middleware"
	"chatrelay-backend/internal/transport/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	// Database
	pool, err := database.Connect(context.Background(), cfg)
	if err != nil {
		sugar.Fatal(err)
	}
	defer pool.Close()

	if err := database.Migrate(context.Background(), pool); err != nil {
		sugar.Fatal(err)
	}
	sugar.Info("connected to database")

	// Repositories
	userRepo := postgresrepo.NewUserRepo(pool)
	channelRepo := postgresrepo.NewChannelRepo(pool)
	messageRepo := postgresrepo.NewMessageRepo(pool)

	// Auth
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)

	// Services
	authService := service.NewAuthService(userRepo, tokens)
	userService := service.NewUserService(userRepo)
	channelService := service.NewChannelService(channelRepo, userRepo)
	messageService := service.NewMessageService(messageRepo, channelRepo, userRepo)

	// Realtime gateway, wired as the message service's broadcaster.
	gateway := ws.NewGateway(sugar)
	messageService.SetBroadcaster(gateway)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, sugar)
	userHandler := handlers.NewUserHandler(userService, sugar)
	channelHandler := handlers.NewChannelHandler(channelService, sugar)
	messageHandler := handlers.NewMessageHandler(messageService, sugar)

	authn := middleware.Auth(tokens)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})

	// Auth
	mux.HandleFunc("POST /auth/signup", authHandler.Signup)
	mux.HandleFunc("POST /auth/login", authHandler.Login)

	// Users
	mux.Handle("GET /users", authn(http.HandlerFunc(userHandler.List)))
	mux.Handle("GET /users/{id}", authn(http.HandlerFunc(userHandler.Get)))
	mux.Handle("PATCH /users/me", authn(http.HandlerFunc(userHandler.UpdateMe)))
	mux.Handle("PATCH /users/me/password", authn(http.HandlerFunc(userHandler.ChangePassword)))
	mux.Handle("POST /users/me/deactivate", authn(http.HandlerFunc(userHandler.DeactivateMe)))
	mux.Handle("PATCH /users/{id}/activate", authn(http.HandlerFunc(userHandler.Activate)))
	mux.Handle("DELETE /users/me", authn(http.HandlerFunc(userHandler.DeleteMe)))

	// Channels
	mux.Handle("POST /channels", authn(http.HandlerFunc(channelHandler.Create)))
	mux.HandleFunc("GET /channels", channelHandler.List)
	mux.Handle("GET /channels/my-channels", authn(http.HandlerFunc(channelHandler.ListMine)))
	mux.HandleFunc("GET /channels/{id}", channelHandler.Get)
	mux.Handle("GET /channels/{id}/members", authn(http.HandlerFunc(channelHandler.ListMembers)))
	mux.Handle("PATCH /channels/{id}", authn(http.HandlerFunc(channelHandler.Update)))
	mux.Handle("DELETE /channels/{id}", authn(http.HandlerFunc(channelHandler.Delete)))
	mux.Handle("POST /channels/{id}/join", authn(http.HandlerFunc(channelHandler.Join)))
	mux.Handle("POST /channels/{id}/leave", authn(http.HandlerFunc(channelHandler.Leave)))

	// Messages
	mux.Handle("POST /messages", authn(http.HandlerFunc(messageHandler.Create)))
	mux.Handle("GET /messages", authn(http.HandlerFunc(messageHandler.List)))
	mux.Handle("GET /messages/channel/{channelId}", authn(http.HandlerFunc(messageHandler.ListByChannel)))
	mux.Handle("PATCH /messages/{id}", authn(http.HandlerFunc(messageHandler.Update)))
	mux.Handle("DELETE /messages/{id}", authn(http.HandlerFunc(messageHandler.Delete)))

	// Realtime (does its own token handshake)
	mux.HandleFunc("GET /ws", ws.ServeWS(gateway, tokens, cfg.HandshakeTimeout))

	addr := fmt.Sprintf(":%s", cfg.ServerPort)
	sugar.Infow("starting server", "addr", addr)
	sugar.Fatal(http.ListenAndServe(addr, middleware.CORS(mux)))
}

func buildLogger(level string) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zapCfg.Level = lvl

	return zapCfg.Build()
}
