// README: API gateway; registers gin routes and delegates to module services.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"fareflow/internal/http/handlers"
	"fareflow/internal/http/middleware"
	"fareflow/internal/infra"
)

type PricingService interface {
	handlers.Quoter
	handlers.OrderPricer
}

type ServerDeps struct {
	Pricing  PricingService
	Dispatch handlers.Queue
	Pipeline handlers.PipelineRunner
	Forecast handlers.Forecaster
	Verifier infra.TokenVerifier
}

type Server struct {
	deps ServerDeps
}

func NewServer(deps ServerDeps) *Server {
	return &Server{deps: deps}
}

func (s *Server) Routes() *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api", middleware.Auth(s.deps.Verifier))
	admin := middleware.RequireRole(middleware.RoleAdmin)

	pricingHandler := handlers.NewPricingHandler(s.deps.Pricing)
	api.POST("/pricing/quote", pricingHandler.Quote)

	dispatchHandler := handlers.NewDispatchHandler(s.deps.Pricing, s.deps.Dispatch)
	api.POST("/dispatch/orders", dispatchHandler.CreateOrder)
	api.GET("/dispatch/status", dispatchHandler.Status)
	api.GET("/dispatch/:tier", dispatchHandler.List)
	api.POST("/dispatch/:tier/next", dispatchHandler.Next)
	api.DELETE("/dispatch/:tier", admin, dispatchHandler.Clear)

	pipelineHandler := handlers.NewPipelineHandler(s.deps.Pipeline)
	api.POST("/pipeline/runs", admin, pipelineHandler.Trigger)
	api.GET("/pipeline/runs", pipelineHandler.List)
	api.GET("/pipeline/runs/last", pipelineHandler.Last)
	api.GET("/pipeline/runs/:id", pipelineHandler.Get)

	forecastHandler := handlers.NewForecastHandler(s.deps.Forecast)
	api.POST("/forecast", admin, forecastHandler.Run)

	return r
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("http: listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "http: listen")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "http: shutdown")
		}
		return nil
	}
}
