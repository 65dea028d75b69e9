// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package crc

import "fmt"

const (
	initial    = 0xFFFF
	polynomial = 0xA001
)

var table [256]uint16

func init() {
	for i := range table {
		v := uint16(i)
		for j := 0; j < 8; j++ {
			if v&1 != 0 {
				v = v>>1 ^ polynomial
			} else {
				v >>= 1
			}
		}
		table[i] = v
	}
}

// CRC is a CRC16/MODBUS accumulator.
type CRC struct {
	value uint16
}

func (crc *CRC) Reset() *CRC {
	crc.value = initial
	return crc
}

func (crc *CRC) PushBytes(bs []byte) *CRC {
	for _, b := range bs {
		crc.value = crc.value>>8 ^ table[byte(crc.value)^b]
	}
	return crc
}

func (crc *CRC) Value() uint16 {
	return crc.value
}

// Checksum returns the CRC of b. An empty input yields 0xFFFF.
func Checksum(b []byte) uint16 {
	var crc CRC
	return crc.Reset().PushBytes(b).Value()
}

// Append appends the checksum of frame in wire order (low byte first).
func Append(frame []byte) []byte {
	sum := Checksum(frame)
	return append(frame, byte(sum), byte(sum>>8))
}

// MismatchError reports a frame whose trailing checksum is wrong.
type MismatchError struct {
	Expected uint16
	Received uint16
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("modbus: crc mismatch: expected 0x%04X, received 0x%04X", e.Expected, e.Received)
}

// Validate checks the trailing two bytes of frame against the checksum of
// the rest of it.
func Validate(frame []byte) error {
	if len(frame) < 2 {
		return &MismatchError{Expected: Checksum(frame), Received: 0}
	}
	n := len(frame) - 2
	expected := Checksum(frame[:n])
	received := uint16(frame[n]) | uint16(frame[n+1])<<8
	if expected != received {
		return &MismatchError{Expected: expected, Received: received}
	}
	return nil
}
