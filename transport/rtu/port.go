// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"fmt"
	"io"
	"time"

	"github.com/ffutop/modbus-rtu/internal/config"
)

// Port is a half-duplex serial line. Read returns 0 and no error when
// nothing arrives within the read timeout.
type Port interface {
	io.ReadWriteCloser
	SetBaudRate(baud int) error
	SetReadTimeout(d time.Duration) error
	// ClearOutput drops bytes queued for transmission but not yet sent.
	ClearOutput() error
}

// OpenPort opens the serial device described by cfg with the configured driver.
func OpenPort(cfg config.SerialConfig) (Port, error) {
	switch cfg.Driver {
	case "", "bugst":
		return openBugstPort(cfg)
	case "gridx":
		return openGridxPort(cfg)
	}
	return nil, fmt.Errorf("unknown serial driver: %s", cfg.Driver)
}

// TransportError wraps an I/O failure of the underlying Port.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("modbus: transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
