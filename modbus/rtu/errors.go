// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"errors"
	"fmt"
)

// Request errors are raised before any byte leaves the encoder.
var (
	ErrRequestTooBig   = errors.New("modbus: request too big")
	ErrResponseTooBig  = errors.New("modbus: response would exceed packet limit")
	ErrAddressOverflow = errors.New("modbus: address range exceeds 0xFFFF")
	ErrCannotBroadcast = errors.New("modbus: cannot broadcast a read request")
)

// Response errors are raised while decoding.
var (
	ErrInvalidFormat   = errors.New("modbus: invalid response format")
	ErrRequestTimedOut = errors.New("modbus: request timed out")
)

// TooShortError reports a frame shorter than the smallest valid frame.
type TooShortError struct {
	Length int
}

func (e *TooShortError) Error() string {
	return fmt.Sprintf("modbus: frame too short: %d bytes", e.Length)
}

// UnexpectedResponderError reports a reply from a slave other than the addressed one.
type UnexpectedResponderError struct {
	Expected byte
	Received byte
}

func (e *UnexpectedResponderError) Error() string {
	return fmt.Sprintf("modbus: response from slave %d, expected %d", e.Received, e.Expected)
}

func invalidFormat(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidFormat}, args...)...)
}
