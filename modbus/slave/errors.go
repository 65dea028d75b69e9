// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package slave

import (
	"fmt"

	"github.com/ffutop/modbus-rtu/modbus"
)

// NotMyIDError reports a frame addressed to another slave. It is never answered.
type NotMyIDError struct {
	ID byte
}

func (e *NotMyIDError) Error() string {
	return fmt.Sprintf("slave: frame addressed to %d", e.ID)
}

// ExceptionError is a request the slave refuses with a Modbus exception.
type ExceptionError struct {
	FunctionCode byte
	Exception    modbus.Exception
}

func (e *ExceptionError) Error() string {
	return fmt.Sprintf("slave: function 0x%02X: %v", e.FunctionCode, e.Exception)
}

func (e *ExceptionError) Unwrap() error {
	return e.Exception
}

func exception(funcCode byte, ex modbus.Exception) error {
	return &ExceptionError{FunctionCode: funcCode, Exception: ex}
}
