package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/tiffinbox/platform/internal/meals"
	"github.com/tiffinbox/platform/internal/notifier"
	"github.com/tiffinbox/platform/internal/orders"
	"github.com/tiffinbox/platform/internal/subscriptions"
	"github.com/tiffinbox/platform/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "api", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("api", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := runtime.Start(); err != nil {
		logger.Error("failed to start runtime metrics", "error", err)
		os.Exit(1)
	}

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", postgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var dispatcher notifier.Dispatcher = notifier.Noop{}
	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers != "" {
		kafka := notifier.NewKafka(strings.Split(kafkaBrokers, ","))
		defer func() { _ = kafka.Close() }()
		dispatcher = kafka
	} else {
		logger.Warn("KAFKA_BROKERS not set, order events will not be published")
	}

	orderService := orders.NewService(orders.NewOrderRepository(db), dispatcher, logger)
	orderHandler := orders.NewHandler(orderService, logger)

	mealService := meals.NewService(meals.NewMealRepository(db), logger)
	mealHandler := meals.NewHandler(mealService, logger)

	subscriptionService := subscriptions.NewService(subscriptions.NewSubscriptionRepository(db), logger)
	subscriptionHandler := subscriptions.NewHandler(subscriptionService, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /orders", telemetry.WithHTTPRoute(orderHandler.HandleCreate))
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(orderHandler.HandleList))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(orderHandler.HandleGet))
	mux.HandleFunc("PUT /orders/{id}", telemetry.WithHTTPRoute(orderHandler.HandleUpdate))
	mux.HandleFunc("DELETE /orders/{id}", telemetry.WithHTTPRoute(orderHandler.HandleDelete))
	mux.HandleFunc("PATCH /orders/{id}/status", telemetry.WithHTTPRoute(orderHandler.HandleUpdateStatus))
	mux.HandleFunc("PATCH /orders/{id}/paid", telemetry.WithHTTPRoute(orderHandler.HandleMarkPaid))
	mux.HandleFunc("PATCH /orders/{id}/review", telemetry.WithHTTPRoute(orderHandler.HandleAddReview))

	mux.HandleFunc("POST /meals", telemetry.WithHTTPRoute(mealHandler.HandleCreate))
	mux.HandleFunc("GET /meals", telemetry.WithHTTPRoute(mealHandler.HandleList))
	mux.HandleFunc("GET /meals/{id}", telemetry.WithHTTPRoute(mealHandler.HandleGet))
	mux.HandleFunc("PATCH /meals/{id}/status", telemetry.WithHTTPRoute(mealHandler.HandleUpdateStatus))
	mux.HandleFunc("POST /meals/{id}/skip", telemetry.WithHTTPRoute(mealHandler.HandleSkip))
	mux.HandleFunc("POST /meals/{id}/rating", telemetry.WithHTTPRoute(mealHandler.HandleRate))

	mux.HandleFunc("POST /subscriptions", telemetry.WithHTTPRoute(subscriptionHandler.HandleCreate))
	mux.HandleFunc("GET /subscriptions", telemetry.WithHTTPRoute(subscriptionHandler.HandleList))
	mux.HandleFunc("GET /subscriptions/{id}", telemetry.WithHTTPRoute(subscriptionHandler.HandleGet))
	mux.HandleFunc("PATCH /subscriptions/{id}/status", telemetry.WithHTTPRoute(subscriptionHandler.HandleUpdateStatus))
	mux.HandleFunc("POST /subscriptions/{id}/pause", telemetry.WithHTTPRoute(subscriptionHandler.HandlePause))
	mux.HandleFunc("POST /subscriptions/{id}/resume", telemetry.WithHTTPRoute(subscriptionHandler.HandleResume))
	mux.HandleFunc("POST /subscriptions/{id}/cancel", telemetry.WithHTTPRoute(subscriptionHandler.HandleCancel))

	mux.Handle("GET /metrics", metricsHandler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "api",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting api service", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
