// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

/*
Package modbus holds the protocol code tables shared by the RTU encoder,
the response decoder and the slave analyzer.
*/
package modbus

import "fmt"

// FunctionKind is a supported Modbus function code.
type FunctionKind byte

const (
	ReadCoils              FunctionKind = 0x01
	ReadDiscreteInputs     FunctionKind = 0x02
	ReadHoldingRegisters   FunctionKind = 0x03
	ReadInputRegisters     FunctionKind = 0x04
	WriteSingleCoil        FunctionKind = 0x05
	WriteSingleRegister    FunctionKind = 0x06
	WriteMultipleCoils     FunctionKind = 0x0F
	WriteMultipleRegisters FunctionKind = 0x10
)

// ExceptionFlag is set on the echoed function code of an exception response.
const ExceptionFlag = 0x80

// UnknownFunctionError is returned when a byte has no FunctionKind.
type UnknownFunctionError struct {
	Code byte
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("modbus: unknown function code 0x%02X", e.Code)
}

// ParseFunctionKind maps a wire byte to its FunctionKind.
func ParseFunctionKind(code byte) (FunctionKind, error) {
	switch k := FunctionKind(code); k {
	case ReadCoils, ReadDiscreteInputs, ReadHoldingRegisters, ReadInputRegisters,
		WriteSingleCoil, WriteSingleRegister, WriteMultipleCoils, WriteMultipleRegisters:
		return k, nil
	}
	return 0, &UnknownFunctionError{Code: code}
}

// Code returns the wire byte.
func (k FunctionKind) Code() byte {
	return byte(k)
}

// IsRead reports whether the function expects data back from the device.
func (k FunctionKind) IsRead() bool {
	switch k {
	case ReadCoils, ReadDiscreteInputs, ReadHoldingRegisters, ReadInputRegisters:
		return true
	}
	return false
}

func (k FunctionKind) String() string {
	switch k {
	case ReadCoils:
		return "ReadCoils"
	case ReadDiscreteInputs:
		return "ReadDiscreteInputs"
	case ReadHoldingRegisters:
		return "ReadHoldingRegisters"
	case ReadInputRegisters:
		return "ReadInputRegisters"
	case WriteSingleCoil:
		return "WriteSingleCoil"
	case WriteSingleRegister:
		return "WriteSingleRegister"
	case WriteMultipleCoils:
		return "WriteMultipleCoils"
	case WriteMultipleRegisters:
		return "WriteMultipleRegisters"
	}
	return fmt.Sprintf("FunctionKind(0x%02X)", byte(k))
}

// Exception is a protocol exception code. Every byte value is a valid
// Exception; codes outside the table are kept as-is and report !Defined().
type Exception byte

const (
	IllegalFunction                    Exception = 0x01
	IllegalDataAddress                 Exception = 0x02
	IllegalDataValue                   Exception = 0x03
	ServerDeviceFailure                Exception = 0x04
	Acknowledge                        Exception = 0x05
	ServerDeviceBusy                   Exception = 0x06
	MemoryParityError                  Exception = 0x08
	GatewayPathUnavailable             Exception = 0x0A
	GatewayTargetDeviceFailedToRespond Exception = 0x0B
)

var exceptionNames = map[Exception]string{
	IllegalFunction:                    "illegal function",
	IllegalDataAddress:                 "illegal data address",
	IllegalDataValue:                   "illegal data value",
	ServerDeviceFailure:                "server device failure",
	Acknowledge:                        "acknowledge",
	ServerDeviceBusy:                   "server device busy",
	MemoryParityError:                  "memory parity error",
	GatewayPathUnavailable:             "gateway path unavailable",
	GatewayTargetDeviceFailedToRespond: "gateway target device failed to respond",
}

// ExceptionFromCode never fails.
func ExceptionFromCode(code byte) Exception {
	return Exception(code)
}

// Code returns the wire byte, identical to the one the Exception was built from.
func (e Exception) Code() byte {
	return byte(e)
}

// Defined reports whether e is one of the tabled exception codes.
func (e Exception) Defined() bool {
	_, ok := exceptionNames[e]
	return ok
}

func (e Exception) String() string {
	if name, ok := exceptionNames[e]; ok {
		return name
	}
	return fmt.Sprintf("undefined exception 0x%02X", byte(e))
}

func (e Exception) Error() string {
	return "modbus: exception " + e.String()
}
