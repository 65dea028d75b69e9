// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FrameCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modbus_rtu_frames_total",
		Help: "The total number of RTU frames sent and received",
	}, []string{"role", "direction"})

	ErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modbus_rtu_errors_total",
		Help: "The total number of failed exchanges or dropped frames",
	}, []string{"role", "type"})

	ExceptionCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modbus_rtu_exceptions_total",
		Help: "The total number of exception responses sent or received",
	}, []string{"role", "exception"})

	ExchangeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "modbus_rtu_exchange_duration_seconds",
		Help:    "Time from the start of a master request to its decoded response",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"function"})
)

// Role constants
const (
	RoleMaster = "master"
	RoleSlave  = "slave"
)

// Direction constants
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

func IncFrame(role, direction string) {
	FrameCount.WithLabelValues(role, direction).Inc()
}

func IncError(role, errType string) {
	ErrorCount.WithLabelValues(role, errType).Inc()
}

func IncException(role, exception string) {
	ExceptionCount.WithLabelValues(role, exception).Inc()
}

func ObserveExchange(function string, d time.Duration) {
	ExchangeDuration.WithLabelValues(function).Observe(d.Seconds())
}

// Serve exposes the default registry on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
