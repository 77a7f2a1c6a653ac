package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"golang.org/x/time/rate"
	"worldlotto/internal/config"
	"worldlotto/internal/handlers"
	"worldlotto/internal/scheduler"
	"worldlotto/internal/services"
)

func main() {
	envFile := flag.String("env", ".env", "Path to an optional .env file")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.Load(*envFile)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// 2. Initialize logging
	var logFile io.Writer = io.Discard
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o660)
		if err != nil {
			logger.Fatalf("Failed to open log file: %v", err)
		}
		defer f.Close()
		logFile = f
	}
	defer logger.Init("worldlotto", cfg.LogVerbose, false, logFile).Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Initialize the stores and the Lottery Service
	tickets := services.NewMemoryTicketStore()
	drawings := services.NewMemoryDrawingStore()
	accounts := services.NewMemoryAccountStore()
	if cfg.SeedAccounts {
		if err := services.SeedDemoAccounts(ctx, accounts); err != nil {
			logger.Fatalf("Failed to seed accounts: %v", err)
		}
	}

	lotteryService := services.NewLotteryService(tickets, drawings, accounts, services.Options{
		TicketPrice:           cfg.TicketPrice,
		BaseJackpot:           cfg.BaseJackpot,
		MaxTicketsPerPurchase: cfg.MaxTicketsPerPurchase,
	})
	if _, err := lotteryService.EnsureActiveDrawing(ctx); err != nil {
		logger.Fatalf("Failed to open drawing: %v", err)
	}

	// 4. Start the auto-drawing scheduler
	weekday, _ := cfg.Weekday()
	location, _ := cfg.Location()
	autoDrawing, err := scheduler.New(lotteryService, scheduler.Config{
		Enabled:       cfg.AutoDrawingEnabled,
		Weekday:       weekday,
		Hour:          cfg.DrawHour,
		Minute:        cfg.DrawMinute,
		Location:      location,
		CheckInterval: cfg.CheckInterval,
	}, nil)
	if err != nil {
		logger.Fatalf("Failed to create scheduler: %v", err)
	}
	autoDrawing.Start(ctx)
	defer autoDrawing.Stop()

	// 5. Initialize the HTTP Handler and the Gin router
	if cfg.AdminToken == "" {
		logger.Warning("LOTTERY_ADMIN_TOKEN is not set, admin API disabled")
	}
	var limiter *rate.Limiter
	if cfg.PurchaseRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.PurchaseRate), cfg.PurchaseBurst)
	}
	httpHandler := handlers.NewHTTPHandler(lotteryService, autoDrawing, cfg.AdminToken, limiter)

	r := gin.Default()
	httpHandler.RegisterRoutes(r)

	// 6. Run the server until interrupted
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}
	go func() {
		logger.Infof("Server starting on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to run server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
}
