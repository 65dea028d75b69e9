// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/ffutop/modbus-rtu/internal/metrics"
	"github.com/ffutop/modbus-rtu/modbus/crc"
	rtupacket "github.com/ffutop/modbus-rtu/modbus/rtu"
	"github.com/ffutop/modbus-rtu/modbus/slave"
)

// Server acts as a Slave on the serial bus, answering requests from an
// external Master.
type Server struct {
	port     Port
	slave    *slave.Slave
	interval time.Duration
}

// NewServer serves s on a port already opened at baud.
func NewServer(port Port, s *slave.Slave, baud int) (*Server, error) {
	srv := &Server{port: port, slave: s, interval: rtupacket.SilentInterval(baud)}
	if err := port.SetReadTimeout(srv.interval); err != nil {
		return nil, &TransportError{Op: "set read timeout", Err: err}
	}
	return srv, nil
}

// Serve handles frames until ctx is done or the port fails.
func (s *Server) Serve(ctx context.Context) error {
	slog.Info("RTU Server listening", "slave_id", s.slave.ID(), "silent_interval", s.interval)
	buf := make([]byte, rtupacket.MaxSize)

	for {
		n, err := s.readFrame(ctx, buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return &TransportError{Op: "read", Err: err}
		}
		if n == 0 {
			continue
		}
		frame := buf[:n]
		metrics.IncFrame(metrics.RoleSlave, metrics.DirectionInbound)
		slog.Debug("recv from modbus master", "request", hex.EncodeToString(frame))

		reply, err := s.slave.Handle(frame)
		if err != nil {
			s.logDropped(frame, err)
		}
		if reply == nil {
			continue
		}

		if err := sleep(ctx, s.interval); err != nil {
			return nil
		}
		slog.Debug("send to modbus master", "response", hex.EncodeToString(reply))
		if _, err := s.port.Write(reply); err != nil {
			return &TransportError{Op: "write", Err: err}
		}
		metrics.IncFrame(metrics.RoleSlave, metrics.DirectionOutbound)
	}
}

// readFrame reads one request into buf. A frame ends when the line stays
// silent for one interval, or as soon as its announced length has arrived.
func (s *Server) readFrame(ctx context.Context, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		k, err := s.port.Read(buf[n:])
		if err != nil {
			return 0, err
		}
		if k == 0 {
			if n > 0 {
				return n, nil
			}
			continue
		}
		n += k
		if want, err := rtupacket.CalculateRequestLength(buf[:n]); err == nil && want > 0 && n >= want {
			return want, nil
		}
	}
	return n, nil
}

func (s *Server) logDropped(frame []byte, err error) {
	var (
		exErr    *slave.ExceptionError
		notMine  *slave.NotMyIDError
		mismatch *crc.MismatchError
	)
	switch {
	case errors.As(err, &exErr):
		metrics.IncException(metrics.RoleSlave, exErr.Exception.String())
		slog.Debug("request refused", "function", exErr.FunctionCode, "exception", exErr.Exception)
	case errors.As(err, &notMine):
		slog.Debug("frame for another slave", "slave_id", notMine.ID)
	case errors.As(err, &mismatch):
		metrics.IncError(metrics.RoleSlave, "crc")
		slog.Debug("dropping frame", "frame", hex.EncodeToString(frame), "err", err)
	default:
		metrics.IncError(metrics.RoleSlave, "malformed")
		slog.Debug("dropping frame", "frame", hex.EncodeToString(frame), "err", err)
	}
}
