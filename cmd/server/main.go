package main

import (
	"context"
	"net/http"
	"time"

	"datebox-be/internal/cancellation"
	"datebox-be/internal/catalog"
	"datebox-be/internal/checkout"
	"datebox-be/internal/config"
	"datebox-be/internal/db"
	"datebox-be/internal/inventory"
	"datebox-be/internal/jobs"
	"datebox-be/internal/logger"
	"datebox-be/internal/middleware"
	"datebox-be/internal/notify"
	"datebox-be/internal/order"
	"datebox-be/internal/payment"
	"datebox-be/internal/payment/webhook"
	"datebox-be/internal/reconcile"
	"datebox-be/internal/registration"
	"datebox-be/internal/user"
	"datebox-be/internal/validation"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := db.InitDB(cfg)
	defer database.Close()

	validate := validation.New()

	catalogRepo := catalog.NewRepository(database)
	ledger := inventory.NewLedger(database)
	orderRepo := order.NewRepository(database)
	regRepo := registration.NewRepository(database)

	gateway := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	dispatcher := notify.NewDispatcher(notify.NewSMTPMailer(cfg), catalogRepo)

	checkoutSvc := checkout.NewService(catalogRepo, orderRepo, gateway)
	reconcileSvc := reconcile.NewService(orderRepo, ledger.ReserveTx, regRepo, gateway, dispatcher)
	cancelSvc := cancellation.NewService(orderRepo, ledger, regRepo, gateway, dispatcher)
	orderSvc := order.NewService(orderRepo, dispatcher)
	userSvc := user.NewService(user.NewRepository(database))

	checkoutHandler := checkout.NewHandler(checkoutSvc, validate)
	webhookHandler := webhook.NewHandler(reconcileSvc, gateway)
	cancelHandler := cancellation.NewHandler(cancelSvc, validate)
	orderHandler := order.NewHandler(orderSvc, validate)
	userHandler := user.NewHandler(userSvc, validate, cfg.AppEnv == "production")

	mux := http.NewServeMux()
	mux.HandleFunc("/api/checkout/session", checkoutHandler.CreateSession)
	mux.Handle("/webhook/stripe", webhookHandler)
	mux.HandleFunc("/api/admin/login", userHandler.Login)
	mux.Handle("/api/admin/orders/cancel",
		middleware.RequireAdmin(http.HandlerFunc(cancelHandler.CancelOrder)))
	mux.Handle("/api/admin/orders/cancel-item",
		middleware.RequireAdmin(http.HandlerFunc(cancelHandler.CancelOrderItem)))
	mux.Handle("/api/admin/orders/ship",
		middleware.RequireAdmin(http.HandlerFunc(orderHandler.MarkShipped)))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := logger.RequestIDMiddleware(
		logger.LoggingMiddleware(
			middleware.AuthMiddleware(
				middleware.RateLimitMiddleware(mux))))

	sweeper := jobs.NewEventSweeper(catalogRepo, time.Hour)
	go sweeper.Run(context.Background())

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.L().Info("server listening", zap.String("port", cfg.AppPort))
	if err := srv.ListenAndServe(); err != nil {
		logger.L().Fatal("server exited", zap.Error(err))
	}
}
