// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"fmt"

	"go.bug.st/serial"

	"github.com/ffutop/modbus-rtu/internal/config"
)

// bugstPort drives the line with go.bug.st/serial, which can change speed
// and timeout in place and flush the output queue.
type bugstPort struct {
	serial.Port
	mode serial.Mode
}

func openBugstPort(cfg config.SerialConfig) (*bugstPort, error) {
	p := &bugstPort{
		mode: serial.Mode{
			BaudRate: cfg.BaudRate,
			DataBits: cfg.DataBits,
			Parity:   parseParity(cfg.Parity),
			StopBits: parseStopBits(cfg.StopBits),
		},
	}
	port, err := serial.Open(cfg.Device, &p.mode)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", cfg.Device, err)
	}
	p.Port = port
	if cfg.Timeout > 0 {
		if err := port.SetReadTimeout(cfg.Timeout); err != nil {
			port.Close()
			return nil, err
		}
	}
	return p, nil
}

func (p *bugstPort) SetBaudRate(baud int) error {
	p.mode.BaudRate = baud
	return p.Port.SetMode(&p.mode)
}

func (p *bugstPort) ClearOutput() error {
	return p.Port.ResetOutputBuffer()
}

func parseParity(parity string) serial.Parity {
	switch parity {
	case "E":
		return serial.EvenParity
	case "O":
		return serial.OddParity
	}
	return serial.NoParity
}

func parseStopBits(bits int) serial.StopBits {
	if bits == 2 {
		return serial.TwoStopBits
	}
	return serial.OneStopBit
}

var _ Port = (*bugstPort)(nil)
var _ Port = (*gridxPort)(nil)
