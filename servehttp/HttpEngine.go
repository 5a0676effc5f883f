package servehttp

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"backoffice/bizerror"
	"backoffice/infra/tracing"
	"backoffice/metrics"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var ShutdownTimeout = 3 * time.Second

// ShutdownHook runs after the http server stopped accepting requests.
type ShutdownHook func(ctx context.Context) error

// NewEngine builds the gin engine with the middlewares shared by every API, a health endpoint and /metrics.
func NewEngine(serviceName string) *gin.Engine {
	engine := gin.Default()
	engine.Use(metrics.Middleware(), tracing.TracingIngress(), bizerror.ErrorHandling())

	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, serviceName)
	})
	metrics.RegisterMetricsHandler(engine)
	return engine
}

// StartHTTPServer serves until SIGINT or SIGTERM is received.
func StartHTTPServer(addr string, handler http.Handler, hooks ...ShutdownHook) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return Serve(ctx, &http.Server{Addr: addr, Handler: handler}, hooks...)
}

// Serve runs srv until ctx is done, then shuts it down gracefully and runs hooks in order.
func Serve(ctx context.Context, srv *http.Server, hooks ...ShutdownHook) error {
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err, ok := <-serveErr:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logrus.Info("[QUIT] shutdown signal has been received, the service will exit in ", ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("[QUIT] http server shutdown failed: %v", err)
		return err
	}
	logrus.Info("[QUIT] http server is shutdown gracefully, new request will be rejected.")

	var firstErr error
	for _, hook := range hooks {
		if err := hook(shutdownCtx); err != nil {
			logrus.Warnf("[QUIT] shutdown hook: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	logrus.Info("[QUIT] service exiting")
	return firstErr
}
