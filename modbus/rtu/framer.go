// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"fmt"

	"github.com/ffutop/modbus-rtu/modbus"
)

// requestHeaderSize covers the byte count field of write-multiple requests.
const requestHeaderSize = 7

// CalculateRequestLength returns the expected total length of a request ADU
// from its first bytes. It returns 0 and no error when more bytes are needed
// to tell.
func CalculateRequestLength(header []byte) (int, error) {
	if len(header) < 2 {
		return 0, nil
	}
	funcCode := header[1]
	switch modbus.FunctionKind(funcCode) {
	case modbus.ReadCoils,
		modbus.ReadDiscreteInputs,
		modbus.ReadHoldingRegisters,
		modbus.ReadInputRegisters,
		modbus.WriteSingleCoil,
		modbus.WriteSingleRegister:
		// [SlaveID, Func, Addr(2), Val(2), CRC(2)]
		return 8, nil
	case modbus.WriteMultipleCoils,
		modbus.WriteMultipleRegisters:
		// [SlaveID, Func, Addr(2), Quant(2), ByteCount(1), Data(N), CRC(2)]
		if len(header) < requestHeaderSize {
			return 0, nil
		}
		n := requestHeaderSize + int(header[6]) + 2
		if n > MaxSize {
			return 0, fmt.Errorf("request length %d exceeds %d", n, MaxSize)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported function code: 0x%02X", funcCode)
	}
}
