package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tiffinbox/platform/internal/gateway"
	"github.com/tiffinbox/platform/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "gateway", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	apiServiceURL := os.Getenv("API_SERVICE_URL")
	if apiServiceURL == "" {
		logger.Error("API_SERVICE_URL is required")
		os.Exit(1)
	}

	emailServiceURL := os.Getenv("EMAIL_SERVICE_URL")
	if emailServiceURL == "" {
		logger.Error("EMAIL_SERVICE_URL is required")
		os.Exit(1)
	}

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	apiProxy := gateway.NewServiceProxy(apiServiceURL, httpClient)
	emailProxy := gateway.NewServiceProxy(emailServiceURL, httpClient)
	handler := gateway.NewHandler(apiProxy, emailProxy, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(handler.HandleAPI))
	mux.HandleFunc("POST /orders", telemetry.WithHTTPRoute(handler.HandleAPI))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(handler.HandleAPI))
	mux.HandleFunc("PUT /orders/{id}", telemetry.WithHTTPRoute(handler.HandleAPI))
	mux.HandleFunc("DELETE /orders/{id}", telemetry.WithHTTPRoute(handler.HandleAPI))
	mux.HandleFunc("PATCH /orders/{id}/status", telemetry.WithHTTPRoute(handler.HandleAPI))
	mux.HandleFunc("PATCH /orders/{id}/paid", telemetry.WithHTTPRoute(handler.HandleAPI))
	mux.HandleFunc("PATCH /orders/{id}/review", telemetry.WithHTTPRoute(handler.HandleAPI))
	mux.HandleFunc("POST /meals", telemetry.WithHTTPRoute(handler.HandleAPI))
	mux.HandleFunc("GET /meals", telemetry.WithHTTPRoute(handler.HandleAPI))
	mux.HandleFunc("GET /meals/{id}", telemetry.WithHTTPRoute(handler.HandleAPI))
	mux.HandleFunc("PATCH /meals/{id}/status", telemetry.WithHTTPRoute(handler.HandleAPI))
	mux.HandleFunc("POST /meals/{id}/skip", telemetry.WithHTTPRoute(handler.HandleAPI))
	mux.HandleFunc("POST /meals/{id}/rating", telemetry.WithHTTPRoute(handler.HandleAPI))
	mux.HandleFunc("POST /subscriptions", telemetry.WithHTTPRoute(handler.HandleAPI))
	mux.HandleFunc("GET /subscriptions", telemetry.WithHTTPRoute(handler.HandleAPI))
	mux.HandleFunc("GET /subscriptions/{id}", telemetry.WithHTTPRoute(handler.HandleAPI))
	mux.HandleFunc("PATCH /subscriptions/{id}/status", telemetry.WithHTTPRoute(handler.HandleAPI))
	mux.HandleFunc("POST /subscriptions/{id}/pause", telemetry.WithHTTPRoute(handler.HandleAPI))
	mux.HandleFunc("POST /subscriptions/{id}/resume", telemetry.WithHTTPRoute(handler.HandleAPI))
	mux.HandleFunc("POST /subscriptions/{id}/cancel", telemetry.WithHTTPRoute(handler.HandleAPI))
	mux.HandleFunc("POST /notifications/send", telemetry.WithHTTPRoute(handler.HandleNotifications))

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "gateway",
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
		logger.Info("starting gateway service", "port", port)
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
