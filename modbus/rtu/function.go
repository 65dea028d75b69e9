// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"encoding/binary"
	"fmt"

	"github.com/ffutop/modbus-rtu/modbus"
)

const (
	coilOn  = 0xFF00
	coilOff = 0x0000
)

// Function is a semantic Modbus operation. Only the fields relevant to Kind
// are used; build values with the constructors below.
type Function struct {
	Kind    modbus.FunctionKind
	Address uint16

	// Quantity is the number of bits or registers to read.
	Quantity uint16
	// Coil is the value of a WriteSingleCoil.
	Coil bool
	// Value is the value of a WriteSingleRegister.
	Value uint16

	Coils     []bool
	Registers []uint16
}

func ReadCoils(address, quantity uint16) Function {
	return Function{Kind: modbus.ReadCoils, Address: address, Quantity: quantity}
}

func ReadDiscreteInputs(address, quantity uint16) Function {
	return Function{Kind: modbus.ReadDiscreteInputs, Address: address, Quantity: quantity}
}

func ReadHoldingRegisters(address, quantity uint16) Function {
	return Function{Kind: modbus.ReadHoldingRegisters, Address: address, Quantity: quantity}
}

func ReadInputRegisters(address, quantity uint16) Function {
	return Function{Kind: modbus.ReadInputRegisters, Address: address, Quantity: quantity}
}

func WriteSingleCoil(address uint16, value bool) Function {
	return Function{Kind: modbus.WriteSingleCoil, Address: address, Coil: value}
}

func WriteSingleRegister(address, value uint16) Function {
	return Function{Kind: modbus.WriteSingleRegister, Address: address, Value: value}
}

func WriteMultipleCoils(address uint16, values []bool) Function {
	return Function{Kind: modbus.WriteMultipleCoils, Address: address, Coils: values}
}

func WriteMultipleRegisters(address uint16, values []uint16) Function {
	return Function{Kind: modbus.WriteMultipleRegisters, Address: address, Registers: values}
}

// Count returns the number of bits or registers the function touches.
func (f Function) Count() int {
	switch f.Kind {
	case modbus.WriteSingleCoil, modbus.WriteSingleRegister:
		return 1
	case modbus.WriteMultipleCoils:
		return len(f.Coils)
	case modbus.WriteMultipleRegisters:
		return len(f.Registers)
	}
	return int(f.Quantity)
}

// Encode returns the PDU: function code followed by its fields.
func (f Function) Encode() ([]byte, error) {
	switch f.Kind {
	case modbus.ReadCoils, modbus.ReadDiscreteInputs:
		if f.Quantity > MaxReadBits {
			return nil, ErrResponseTooBig
		}
		if err := checkRange(f.Address, int(f.Quantity)); err != nil {
			return nil, err
		}
		return fixedPDU(f.Kind, f.Address, f.Quantity), nil

	case modbus.ReadHoldingRegisters, modbus.ReadInputRegisters:
		if f.Quantity > MaxReadRegisters {
			return nil, ErrResponseTooBig
		}
		if err := checkRange(f.Address, int(f.Quantity)); err != nil {
			return nil, err
		}
		return fixedPDU(f.Kind, f.Address, f.Quantity), nil

	case modbus.WriteSingleCoil:
		value := uint16(coilOff)
		if f.Coil {
			value = coilOn
		}
		return fixedPDU(f.Kind, f.Address, value), nil

	case modbus.WriteSingleRegister:
		return fixedPDU(f.Kind, f.Address, f.Value), nil

	case modbus.WriteMultipleCoils:
		if len(f.Coils) > MaxWriteCoils {
			return nil, ErrRequestTooBig
		}
		if err := checkRange(f.Address, len(f.Coils)); err != nil {
			return nil, err
		}
		packed := PackBits(f.Coils)
		pdu := make([]byte, 6, 6+len(packed))
		pdu[0] = f.Kind.Code()
		binary.BigEndian.PutUint16(pdu[1:], f.Address)
		binary.BigEndian.PutUint16(pdu[3:], uint16(len(f.Coils)))
		pdu[5] = byte(len(packed))
		return append(pdu, packed...), nil

	case modbus.WriteMultipleRegisters:
		if len(f.Registers) > MaxWriteRegisters {
			return nil, ErrRequestTooBig
		}
		if err := checkRange(f.Address, len(f.Registers)); err != nil {
			return nil, err
		}
		pdu := make([]byte, 6+2*len(f.Registers))
		pdu[0] = f.Kind.Code()
		binary.BigEndian.PutUint16(pdu[1:], f.Address)
		binary.BigEndian.PutUint16(pdu[3:], uint16(len(f.Registers)))
		pdu[5] = byte(2 * len(f.Registers))
		for i, v := range f.Registers {
			binary.BigEndian.PutUint16(pdu[6+2*i:], v)
		}
		return pdu, nil
	}
	return nil, fmt.Errorf("modbus: cannot encode %v", f.Kind)
}

// checkRange fails when the inclusive last address of count items starting
// at address does not fit in 16 bits.
func checkRange(address uint16, count int) error {
	if count == 0 {
		return nil
	}
	if int(address)+count-1 > 0xFFFF {
		return ErrAddressOverflow
	}
	return nil
}

func fixedPDU(kind modbus.FunctionKind, a, b uint16) []byte {
	pdu := make([]byte, 5)
	pdu[0] = kind.Code()
	binary.BigEndian.PutUint16(pdu[1:], a)
	binary.BigEndian.PutUint16(pdu[3:], b)
	return pdu
}

// PackBits packs bits LSB first, zero padding the last byte.
func PackBits(bits []bool) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, bit := range bits {
		if bit {
			out[i/8] |= 1 << (i % 8)
		}
	}
	return out
}

// UnpackBits is the inverse of PackBits, returning exactly n bits.
func UnpackBits(data []byte, n int) []bool {
	bits := make([]bool, n)
	for i := range bits {
		bits[i] = data[i/8]&(1<<(i%8)) != 0
	}
	return bits
}
