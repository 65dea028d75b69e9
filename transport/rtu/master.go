// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ffutop/modbus-rtu/internal/metrics"
	"github.com/ffutop/modbus-rtu/modbus/crc"
	rtupacket "github.com/ffutop/modbus-rtu/modbus/rtu"
)

const DefaultTimeout = time.Second

// Master runs request/response exchanges over one Port and keeps at least
// one silent interval (T3.5) between consecutive frames on the line.
type Master struct {
	// Timeout is used for requests that carry none.
	Timeout time.Duration

	mu       sync.Mutex
	port     Port
	interval time.Duration
	lastTx   time.Time
}

// NewMaster takes a port already opened at baud.
func NewMaster(port Port, baud int) (*Master, error) {
	m := &Master{Timeout: DefaultTimeout, port: port}
	if err := m.setTiming(baud); err != nil {
		return nil, err
	}
	m.lastTx = time.Now().Add(-m.interval)
	return m, nil
}

// SetBaudRate changes the line speed and the silent interval derived from it.
func (m *Master) SetBaudRate(baud int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.port.SetBaudRate(baud); err != nil {
		return &TransportError{Op: "set baud rate", Err: err}
	}
	return m.setTiming(baud)
}

// setTiming makes a read of the port return as soon as the line has been
// silent for one interval.
func (m *Master) setTiming(baud int) error {
	m.interval = rtupacket.SilentInterval(baud)
	if err := m.port.SetReadTimeout(m.interval); err != nil {
		return &TransportError{Op: "set read timeout", Err: err}
	}
	return nil
}

// Send transmits req and returns the decoded response. Broadcast requests
// return Success as soon as they are written.
func (m *Master) Send(ctx context.Context, req *rtupacket.Request) (rtupacket.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	if err := sleep(ctx, time.Until(m.lastTx.Add(m.interval))); err != nil {
		return nil, err
	}

	adu, err := req.Encode()
	if err != nil {
		return nil, err
	}

	if err := m.port.ClearOutput(); err != nil {
		return nil, &TransportError{Op: "clear output", Err: err}
	}
	slog.Debug("send to modbus slave", "request", hex.EncodeToString(adu))
	_, err = m.port.Write(adu)
	m.lastTx = time.Now()
	if err != nil {
		metrics.IncError(metrics.RoleMaster, "write")
		return nil, &TransportError{Op: "write", Err: err}
	}
	metrics.IncFrame(metrics.RoleMaster, metrics.DirectionOutbound)

	if req.IsBroadcast() {
		return rtupacket.Success{}, nil
	}

	if err := sleep(ctx, m.interval); err != nil {
		return nil, err
	}
	data, err := m.readResponse(ctx, req)
	if err != nil {
		metrics.IncError(metrics.RoleMaster, errorType(err))
		return nil, err
	}
	slog.Debug("recv from modbus slave", "response", hex.EncodeToString(data))
	metrics.IncFrame(metrics.RoleMaster, metrics.DirectionInbound)

	resp, err := rtupacket.Decode(req, data)
	if err != nil {
		metrics.IncError(metrics.RoleMaster, errorType(err))
		return nil, err
	}
	if ex, ok := resp.(rtupacket.ExceptionResponse); ok {
		metrics.IncException(metrics.RoleMaster, ex.Exception.String())
	}
	metrics.ObserveExchange(req.Function.Kind.String(), time.Since(start))
	return resp, nil
}

// readResponse collects bytes until the line goes silent after the first
// one, the buffer is full, or the request times out.
func (m *Master) readResponse(ctx context.Context, req *rtupacket.Request) ([]byte, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = m.Timeout
	}
	deadline := time.Now().Add(timeout)

	buf := make([]byte, rtupacket.MaxSize)
	n := 0
	for n < len(buf) && time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		k, err := m.port.Read(buf[n:])
		if err != nil {
			return nil, &TransportError{Op: "read", Err: err}
		}
		if k == 0 && n > 0 {
			break
		}
		n += k
	}
	if n == 0 {
		return nil, &TransportError{Op: "read", Err: rtupacket.ErrRequestTimedOut}
	}
	return buf[:n], nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func errorType(err error) string {
	var (
		mismatch  *crc.MismatchError
		tooShort  *rtupacket.TooShortError
		responder *rtupacket.UnexpectedResponderError
	)
	switch {
	case errors.Is(err, rtupacket.ErrRequestTimedOut):
		return "timeout"
	case errors.As(err, &mismatch):
		return "crc"
	case errors.As(err, &tooShort):
		return "too_short"
	case errors.As(err, &responder):
		return "unexpected_responder"
	case errors.Is(err, rtupacket.ErrInvalidFormat):
		return "invalid_format"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "transport"
}

func (m *Master) send(ctx context.Context, slaveID byte, fn rtupacket.Function) (rtupacket.Response, error) {
	resp, err := m.Send(ctx, rtupacket.NewRequest(slaveID, fn, m.Timeout))
	if err != nil {
		return nil, err
	}
	if ex, ok := resp.(rtupacket.ExceptionResponse); ok && !rtupacket.IsSuccess(resp) {
		return nil, ex.Exception
	}
	return resp, nil
}

func (m *Master) readBits(ctx context.Context, slaveID byte, fn rtupacket.Function) ([]bool, error) {
	resp, err := m.send(ctx, slaveID, fn)
	if err != nil {
		return nil, err
	}
	bits, ok := resp.(rtupacket.Status)
	if !ok {
		return nil, unexpected(resp)
	}
	return bits, nil
}

func (m *Master) readRegisters(ctx context.Context, slaveID byte, fn rtupacket.Function) ([]uint16, error) {
	resp, err := m.send(ctx, slaveID, fn)
	if err != nil {
		return nil, err
	}
	values, ok := resp.(rtupacket.Value)
	if !ok {
		return nil, unexpected(resp)
	}
	return values, nil
}

func (m *Master) write(ctx context.Context, slaveID byte, fn rtupacket.Function) error {
	_, err := m.send(ctx, slaveID, fn)
	return err
}

// unexpected covers an Acknowledge to a read, which carries no data.
func unexpected(resp rtupacket.Response) error {
	if ex, ok := resp.(rtupacket.ExceptionResponse); ok {
		return ex.Exception
	}
	return fmt.Errorf("%w: %T", rtupacket.ErrInvalidFormat, resp)
}

func (m *Master) ReadCoils(ctx context.Context, slaveID byte, address, quantity uint16) ([]bool, error) {
	return m.readBits(ctx, slaveID, rtupacket.ReadCoils(address, quantity))
}

func (m *Master) ReadDiscreteInputs(ctx context.Context, slaveID byte, address, quantity uint16) ([]bool, error) {
	return m.readBits(ctx, slaveID, rtupacket.ReadDiscreteInputs(address, quantity))
}

func (m *Master) ReadHoldingRegisters(ctx context.Context, slaveID byte, address, quantity uint16) ([]uint16, error) {
	return m.readRegisters(ctx, slaveID, rtupacket.ReadHoldingRegisters(address, quantity))
}

func (m *Master) ReadInputRegisters(ctx context.Context, slaveID byte, address, quantity uint16) ([]uint16, error) {
	return m.readRegisters(ctx, slaveID, rtupacket.ReadInputRegisters(address, quantity))
}

func (m *Master) WriteSingleCoil(ctx context.Context, slaveID byte, address uint16, value bool) error {
	return m.write(ctx, slaveID, rtupacket.WriteSingleCoil(address, value))
}

func (m *Master) WriteSingleRegister(ctx context.Context, slaveID byte, address, value uint16) error {
	return m.write(ctx, slaveID, rtupacket.WriteSingleRegister(address, value))
}

func (m *Master) WriteMultipleCoils(ctx context.Context, slaveID byte, address uint16, values []bool) error {
	return m.write(ctx, slaveID, rtupacket.WriteMultipleCoils(address, values))
}

func (m *Master) WriteMultipleRegisters(ctx context.Context, slaveID byte, address uint16, values []uint16) error {
	return m.write(ctx, slaveID, rtupacket.WriteMultipleRegisters(address, values))
}
