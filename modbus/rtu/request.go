// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"time"

	"github.com/ffutop/modbus-rtu/modbus/crc"
)

// Request is a Function addressed to one slave (or broadcast) with the time
// the master is willing to wait for its response.
type Request struct {
	SlaveID  byte
	Function Function
	Timeout  time.Duration
}

func NewRequest(slaveID byte, fn Function, timeout time.Duration) *Request {
	return &Request{SlaveID: slaveID, Function: fn, Timeout: timeout}
}

func (r *Request) IsBroadcast() bool {
	return r.SlaveID == BroadcastID
}

// Encode returns the full ADU: slave id, PDU and CRC (low byte first).
func (r *Request) Encode() ([]byte, error) {
	if r.IsBroadcast() && r.Function.Kind.IsRead() {
		return nil, ErrCannotBroadcast
	}
	pdu, err := r.Function.Encode()
	if err != nil {
		return nil, err
	}
	adu := make([]byte, 0, 1+len(pdu)+2)
	adu = append(adu, r.SlaveID)
	adu = append(adu, pdu...)
	return crc.Append(adu), nil
}
