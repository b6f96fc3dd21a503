/*
Copyright © 2026 Bartłomiej Święcki (byo)

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"
)

type cfg struct {
	log                     *slog.Logger
	handler                 http.Handler
	listenAddr              string
	gracefulShutdownTimeout time.Duration
}

type Option func(c *cfg)

func ListenPort(port int) Option          { return func(c *cfg) { c.listenAddr = ":" + strconv.Itoa(port) } }
func ListenAddr(listenAddr string) Option { return func(c *cfg) { c.listenAddr = listenAddr } }
func Logger(log *slog.Logger) Option      { return func(c *cfg) { c.log = log } }

func ShutdownTimeout(timeout time.Duration) Option {
	return func(c *cfg) { c.gracefulShutdownTimeout = timeout }
}

// RunGracefully serves http requests until the context is done or the process
// receives SIGINT / SIGTERM, then waits for pending requests to finish
func RunGracefully(ctx context.Context, handler http.Handler, opt ...Option) error {
	c := cfg{
		handler:                 handler,
		listenAddr:              ":http",
		log:                     slog.Default(),
		gracefulShutdownTimeout: 5 * time.Second,
	}

	for _, o := range opt {
		o(&c)
	}

	listener, err := net.Listen("tcp", c.listenAddr)
	if err != nil {
		return err
	}

	c.log.Info("Starting http server", "listenAddr", listener.Addr().String())

	ctx, signalCtxCancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer signalCtxCancel()

	return runUntilContextNotDone(ctx, c, listener)
}

func runUntilContextNotDone(ctx context.Context, c cfg, listener net.Listener) error {
	server := &http.Server{
		Handler:           LogRequests(c.log, c.handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	wg := sync.WaitGroup{}
	wg.Go(func() {
		<-ctx.Done()

		c.log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), c.gracefulShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			c.log.Error("Failed to shutdown gracefully", "err", err)
			server.Close()
		} else {
			c.log.Info("Shutdown complete")
		}
	})
	defer wg.Wait()

	err := server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}

	return err
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// LogRequests wraps the handler with one log entry per served request
func LogRequests(log *slog.Logger, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		handler.ServeHTTP(rec, r)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		log.Info(
			"http request",
			slog.Group("req",
				slog.String("remoteAddr", r.RemoteAddr),
				slog.String("method", r.Method),
				slog.String("url", r.URL.String()),
			),
			slog.Group("resp",
				slog.Int("status", rec.status),
				slog.Int("size", rec.size),
				slog.Duration("duration", time.Since(start)),
			),
		)
	})
}
