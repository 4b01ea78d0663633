package admin

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ridge/must/v2"
	"github.com/ridge/parallel"
	"github.com/ridge/quartz/tlog"
	"go.uber.org/zap"
)

const gracefulShutdownTimeout = 5 * time.Second

var lc = net.ListenConfig{
	KeepAlive: 3 * time.Minute,
}

// Listen opens a listener for the admin server.
//
// "unix:<path>" listens on a UNIX domain socket, "tcp:<address>" or a bare
// [host]:port on TCP.
func Listen(address string) (net.Listener, error) {
	network := "tcp"
	if proto, rest, ok := strings.Cut(address, ":"); ok {
		switch proto {
		case "unix":
			network = "unix"
			address = rest
		case "tcp":
			address = rest
		}
	}
	return lc.Listen(context.Background(), network, address)
}

// Server serves the admin handler on a listener
type Server struct {
	listener net.Listener
	handler  http.Handler
}

// NewServer creates a Server
func NewServer(listener net.Listener, handler http.Handler) *Server {
	return &Server{
		listener: listener,
		handler:  handler,
	}
}

// Addr returns the address the server listens on
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Run serves requests until the context is closed, then shuts down
// gracefully for up to gracefulShutdownTimeout
func (s *Server) Run(ctx context.Context) error {
	ctx = tlog.With(ctx, zap.Stringer("adminServer", s.listener.Addr()))
	logger := tlog.Get(ctx)

	// requests outlive ctx by the shutdown timeout, but keep its logger
	reqCtx, reqCancel := context.WithCancel(tlog.WithLogger(context.Background(), logger))
	defer reqCancel()

	server := http.Server{
		Handler:           s.handler,
		ErrorLog:          must.OK1(zap.NewStdLogAt(logger, zap.WarnLevel)),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return reqCtx },
		ConnContext: func(ctx context.Context, conn net.Conn) context.Context {
			return tlog.With(ctx, zap.Stringer("remoteAddr", conn.RemoteAddr()))
		},
	}

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("serve", parallel.Fail, func(ctx context.Context) error {
			logger.Info("Serving admin requests")
			err := server.Serve(s.listener)
			// ErrServerClosed only means Shutdown was called
			if errors.Is(err, http.ErrServerClosed) && ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		})

		spawn("shutdown", parallel.Fail, func(ctx context.Context) error {
			<-ctx.Done()
			logger.Info("Shutting down admin server")

			shutdownCtx, cancel := context.WithTimeout(reqCtx, gracefulShutdownTimeout)
			defer cancel()
			defer server.Close()

			if err := server.Shutdown(shutdownCtx); err != nil && shutdownCtx.Err() != nil {
				logger.Info("Shutdown canceled", zap.Error(err))
				return err
			}
			logger.Info("Shutdown complete")
			return ctx.Err()
		})
		return nil
	})
}

// Log is a middleware that logs before and after handling of each request
func Log(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ctx := tlog.With(r.Context(),
			zap.String("method", r.Method),
			zap.String("url", r.URL.String()),
		)
		logger := tlog.Get(ctx)
		logger.Debug("Admin request started")
		cs := &captureStatus{ResponseWriter: w}
		next.ServeHTTP(cs, r.WithContext(ctx))
		logger.Debug("Admin request ended", zap.Int("statusCode", cs.status), zap.Duration("elapsed", time.Since(started)))
	})
}

type captureStatus struct {
	http.ResponseWriter
	status int
}

func (cs *captureStatus) Write(b []byte) (int, error) {
	if cs.status == 0 {
		cs.status = http.StatusOK
	}
	return cs.ResponseWriter.Write(b)
}

func (cs *captureStatus) WriteHeader(statusCode int) {
	cs.status = statusCode
	cs.ResponseWriter.WriteHeader(statusCode)
}
