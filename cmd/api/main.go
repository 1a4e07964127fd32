package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SchoolPayments/internal/auth"
	"SchoolPayments/internal/config"
	"SchoolPayments/internal/db"
	"SchoolPayments/internal/events"
	"SchoolPayments/internal/gateway"
	internalhttp "SchoolPayments/internal/http"
	"SchoolPayments/internal/services"
	"SchoolPayments/internal/store"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found")
	}

	cfg, err := config.Load("")
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	var st services.Store
	switch cfg.DB.Driver {
	case config.DriverMemory:
		slog.Warn("using in-memory store; data is lost on restart")
		st = store.NewMemory()
	default:
		pool, err := db.Connect(ctx, cfg.DB.DSN)
		if err != nil {
			slog.Error("db connect failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		st = store.New(pool)
	}

	hub := events.NewHub()
	var publisher events.Publisher = hub
	if cfg.Events.NATSURL != "" {
		nc, err := events.Connect(cfg.Events.NATSURL)
		if err != nil {
			slog.Error("nats connect failed", "error", err)
			os.Exit(1)
		}
		defer nc.Close()
		sub, err := events.Bridge(nc, cfg.Events.Subject, hub)
		if err != nil {
			slog.Error("nats subscribe failed", "subject", cfg.Events.Subject, "error", err)
			os.Exit(1)
		}
		defer sub.Unsubscribe()
		publisher = events.NATSPublisher{Conn: nc, Subject: cfg.Events.Subject}
		slog.Info("status events via nats", "subject", cfg.Events.Subject)
	}

	gw := gateway.NewClient(gateway.Config{
		Endpoint:    cfg.Gateway.Endpoint,
		APIKey:      cfg.Gateway.APIKey,
		SecretKey:   cfg.Gateway.SecretKey,
		CallbackURL: cfg.Gateway.CallbackURL,
		SchoolID:    cfg.School.ID,
		Timeout:     cfg.GatewayTimeout(),
	})

	payments := &services.PaymentService{
		Store:       st,
		Gateway:     gw,
		SchoolID:    cfg.School.ID,
		GatewayName: cfg.School.GatewayName,
	}
	webhooks := &services.WebhookReconciler{Store: st, Events: publisher}
	txs := &services.TransactionService{Store: st}

	if cfg.Webhook.Secret == "" {
		slog.Warn("webhook signature verification disabled")
	}

	h := internalhttp.NewHandler(payments, webhooks, txs, hub)
	srv := internalhttp.NewServer(h, internalhttp.Options{
		Verifier:      auth.NewVerifier(cfg.Auth.JWTSecret),
		RateRPS:       cfg.RateLimit.RPS,
		RateBurst:     cfg.RateLimit.Burst,
		WebhookSecret: cfg.Webhook.Secret,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("api listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
}
