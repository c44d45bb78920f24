// Package http exposes the order service over REST. Order entry and
// book queries share one gin router; errors map onto conventional
// status codes so clients can distinguish bad input from backpressure.
package http

import (
	"context"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"tycho/pkg/logger"
	"tycho/service"
)

type Server struct {
	router *gin.Engine
	svc    *service.OrderService
	log    *logger.Logger
	http   *http.Server
}

func NewServer(svc *service.OrderService, log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(requestID())
	router.Use(ginzap.Ginzap(log.GetZap(), time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(log.GetZap(), true))

	s := &Server{router: router, svc: svc, log: log}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.health)

	v1 := s.router.Group("/v1")
	{
		v1.POST("/orders", s.submitOrder)
		v1.DELETE("/orders/:id", s.cancelOrder)
		v1.PATCH("/orders/:id", s.modifyOrder)

		v1.GET("/book/top", s.topOfBook)
		v1.GET("/book/depth", s.depth)
	}
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.http = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", logger.NewField("addr", addr))
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Request-Id", ulid.Make().String())
		c.Next()
	}
}
