// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/grid-x/serial"

	"github.com/ffutop/modbus-rtu/internal/config"
)

// gridxPort drives the line with github.com/grid-x/serial. The library fixes
// speed and timeout at open time, so changing either reopens the device.
type gridxPort struct {
	// Serial port configuration.
	serial.Config

	mu sync.Mutex
	// port is platform-dependent data structure for serial port.
	port io.ReadWriteCloser
}

func openGridxPort(cfg config.SerialConfig) (*gridxPort, error) {
	p := &gridxPort{}
	p.Config.Address = cfg.Device
	p.Config.BaudRate = cfg.BaudRate
	p.Config.DataBits = cfg.DataBits
	p.Config.StopBits = cfg.StopBits
	p.Config.Parity = cfg.Parity
	p.Config.Timeout = cfg.Timeout
	p.Config.RS485 = serial.RS485Config{
		Enabled:            cfg.RS485,
		DelayRtsBeforeSend: cfg.DelayRtsBeforeSend,
		DelayRtsAfterSend:  cfg.DelayRtsAfterSend,
		RtsHighDuringSend:  cfg.RtsHighDuringSend,
		RtsHighAfterSend:   cfg.RtsHighAfterSend,
		RxDuringTx:         cfg.RxDuringTx,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// connect opens the serial port if it is not open. Caller must hold the mutex.
func (p *gridxPort) connect() error {
	if p.port == nil {
		port, err := serial.Open(&p.Config)
		if err != nil {
			return fmt.Errorf("could not open %s: %w", p.Config.Address, err)
		}
		p.port = port
	}
	return nil
}

// reopen applies a changed Config. Caller must hold the mutex.
func (p *gridxPort) reopen() error {
	if err := p.close(); err != nil {
		slog.Debug("modbus: closing serial port before reopen", "err", err)
	}
	return p.connect()
}

func (p *gridxPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	port := p.port
	p.mu.Unlock()
	if port == nil {
		return 0, io.ErrClosedPipe
	}

	n, err := port.Read(b)
	if errors.Is(err, serial.ErrTimeout) {
		return n, nil
	}
	return n, err
}

func (p *gridxPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.port == nil {
		return 0, io.ErrClosedPipe
	}
	return p.port.Write(b)
}

func (p *gridxPort) SetBaudRate(baud int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Config.BaudRate = baud
	return p.reopen()
}

func (p *gridxPort) SetReadTimeout(d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Config.Timeout == d {
		return nil
	}
	p.Config.Timeout = d
	return p.reopen()
}

// ClearOutput is a no-op: the library writes synchronously and keeps no
// output queue of its own.
func (p *gridxPort) ClearOutput() error {
	return nil
}

func (p *gridxPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.close()
}

// close closes the serial port if it is open. Caller must hold the mutex.
func (p *gridxPort) close() (err error) {
	if p.port != nil {
		err = p.port.Close()
		p.port = nil
	}
	return
}
