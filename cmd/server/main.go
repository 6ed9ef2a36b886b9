package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"

	"github.com/tontips/backend/internal/config"
	"github.com/tontips/backend/internal/database"
	"github.com/tontips/backend/internal/gateway"
	"github.com/tontips/backend/internal/handlers"
	mW "github.com/tontips/backend/internal/middleware"
	"github.com/tontips/backend/internal/services"
	"github.com/tontips/backend/internal/telegram"
	"github.com/tontips/backend/internal/worker"
)

func main() {
	// Initialize config
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("bot.token", "BOT_TOKEN")
	viper.BindEnv("wallet.address", "WALLET_ADDRESS")
	viper.BindEnv("wallet.private_key", "WALLET_PRIVATE_KEY")
	viper.BindEnv("gateway.url", "GATEWAY_URL")
	viper.BindEnv("gateway.callback_url", "GATEWAY_CALLBACK_URL")
	viper.BindEnv("gateway.tracking_token", "GATEWAY_TRACKING_TOKEN")
	viper.BindEnv("tips.fee_bps", "TIPS_FEE_BPS")
	viper.BindEnv("tips.min_withdraw", "TIPS_MIN_WITHDRAW")
	viper.BindEnv("tips.amounts", "TIPS_AMOUNTS")
	viper.BindEnv("tips.help_url", "TIPS_HELP_URL")
	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	cfg := config.LoadTipsConfig()

	// Initialize storage
	db := database.InitDatabase()
	defer db.Close()

	if err := database.EnsureSchema(db); err != nil {
		log.Fatalf("Failed to bootstrap schema: %v", err)
	}
	if err := database.SeedWallet(db, cfg.WalletAddress, cfg.WalletKey); err != nil {
		log.Fatalf("Failed to seed wallet: %v", err)
	}

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Initialize transport and services
	tgClient := telegram.NewClient(cfg.BotToken)
	owners := telegram.NewOwnerResolver(tgClient, redisClient)
	gwClient := gateway.NewClient(cfg.GatewayURL, cfg.CallbackURL)

	invoiceService := services.NewInvoiceService(db)
	withdrawalService := services.NewWithdrawalService(db, gwClient, cfg.MinWithdraw)
	bot := telegram.NewBot(tgClient, db, invoiceService, withdrawalService, cfg)
	creditService := services.NewCreditService(db, owners, bot, cfg.FeeBasisPoints)
	ledgerReader := services.NewLedgerReader(db)

	trackingHandler := handlers.NewTrackingHandler(db, creditService, cfg.TrackingToken)
	invoiceHandler := handlers.NewInvoiceHandler(db, invoiceService, ledgerReader, withdrawalService)

	// Setup router
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Payment gateway callback
	r.Post("/tracking", trackingHandler.HandleTracking)

	// Operator API
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/invoices/{invoiceId}", invoiceHandler.GetInvoice)
			r.Get("/invoices/{invoiceId}/qr", invoiceHandler.GetInvoiceQR)
			r.Get("/transactions", invoiceHandler.ListTransactions)
			r.Get("/users/{userId}/balance", invoiceHandler.GetBalance)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start webhook server
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Start update ingestion
	pollCtx, cancelPoll := context.WithCancel(context.Background())
	pool := worker.NewPool(64)
	pool.Start(context.Background(), 4)

	poller := telegram.NewPoller(tgClient, bot, pool, cfg.PollTimeout)
	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		poller.Run(pollCtx)
	}()

	// Register wallet tracking with the gateway
	tracker := gateway.NewTracker(db, gwClient)
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), time.Minute)
	if err := tracker.RegisterAll(startupCtx); err != nil {
		log.Printf("Warning: tracking registration failed: %v", err)
	}
	cancelStartup()
	tracker.StartRefresh(cfg.TrackingRefresh)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")

	// Stop pulling updates and wait for the poller to stop producing
	// before the pool closes its task channel, then let in-flight work
	// finish.
	cancelPoll()
	<-pollerDone
	pool.Shutdown()
	tracker.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
