// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"encoding/binary"

	"github.com/ffutop/modbus-rtu/modbus"
	"github.com/ffutop/modbus-rtu/modbus/crc"
)

// Response is one of Status, Value, Success or ExceptionResponse.
type Response interface {
	response()
}

// Status holds the bits of a coil or discrete input read.
type Status []bool

// Value holds the registers of a holding or input register read.
type Value []uint16

// Success acknowledges a write.
type Success struct{}

// ExceptionResponse is a device's refusal of the request.
type ExceptionResponse struct {
	Exception modbus.Exception
}

func (Status) response()            {}
func (Value) response()             {}
func (Success) response()           {}
func (ExceptionResponse) response() {}

// IsSuccess reports whether the device accepted the request. Acknowledge is
// the only exception counted as success: the device will finish the work later.
func IsSuccess(r Response) bool {
	switch r := r.(type) {
	case Status, Value, Success:
		return true
	case ExceptionResponse:
		return r.Exception == modbus.Acknowledge
	}
	return false
}

// Decode validates raw against req and extracts its payload.
func Decode(req *Request, raw []byte) (Response, error) {
	if len(raw) < ExceptionSize {
		return nil, &TooShortError{Length: len(raw)}
	}
	if err := crc.Validate(raw); err != nil {
		return nil, err
	}
	// An exception is accepted before matching the responder or function.
	if raw[1]&modbus.ExceptionFlag != 0 {
		return ExceptionResponse{Exception: modbus.ExceptionFromCode(raw[2])}, nil
	}
	if raw[0] != req.SlaveID {
		return nil, &UnexpectedResponderError{Expected: req.SlaveID, Received: raw[0]}
	}
	kind, err := modbus.ParseFunctionKind(raw[1])
	if err != nil {
		return nil, invalidFormat("%v", err)
	}
	fn := req.Function
	if kind != fn.Kind {
		return nil, invalidFormat("function %v, expected %v", kind, fn.Kind)
	}

	payload := raw[2 : len(raw)-2]
	switch kind {
	case modbus.ReadCoils, modbus.ReadDiscreteInputs:
		need := (int(fn.Quantity) + 7) / 8
		byteCount := int(payload[0])
		if byteCount < need || len(payload)-1 != byteCount {
			return nil, invalidFormat("byte count %d for %d bits", byteCount, fn.Quantity)
		}
		return Status(UnpackBits(payload[1:], int(fn.Quantity))), nil

	case modbus.ReadHoldingRegisters, modbus.ReadInputRegisters:
		byteCount := int(payload[0])
		if byteCount != 2*int(fn.Quantity) || len(payload)-1 != byteCount {
			return nil, invalidFormat("byte count %d for %d registers", byteCount, fn.Quantity)
		}
		values := make(Value, fn.Quantity)
		for i := range values {
			values[i] = binary.BigEndian.Uint16(payload[1+2*i:])
		}
		return values, nil

	case modbus.WriteSingleCoil, modbus.WriteSingleRegister:
		want, _ := fn.Encode()
		if len(payload) != 4 || string(payload) != string(want[1:]) {
			return nil, invalidFormat("echo % X does not match request", payload)
		}
		return Success{}, nil

	case modbus.WriteMultipleCoils, modbus.WriteMultipleRegisters:
		if len(payload) != 4 ||
			binary.BigEndian.Uint16(payload) != fn.Address ||
			int(binary.BigEndian.Uint16(payload[2:])) != fn.Count() {
			return nil, invalidFormat("echo % X does not match request", payload)
		}
		return Success{}, nil
	}
	return nil, invalidFormat("function %v", kind)
}
