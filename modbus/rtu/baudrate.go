// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"fmt"
	"time"
)

// Baudrate is one of the line speeds a device can be configured for.
type Baudrate int

const (
	BR1200   Baudrate = 1200
	BR2400   Baudrate = 2400
	BR4800   Baudrate = 4800
	BR9600   Baudrate = 9600
	BR19200  Baudrate = 19200
	BR38400  Baudrate = 38400
	BR57600  Baudrate = 57600
	BR115200 Baudrate = 115200
)

// baudrates is indexed by the stored configuration id.
var baudrates = [...]Baudrate{BR1200, BR2400, BR4800, BR9600, BR19200, BR38400, BR57600, BR115200}

// BaudrateFromID maps a stored id (as kept in a device register) back to a Baudrate.
func BaudrateFromID(id uint16) (Baudrate, bool) {
	if int(id) >= len(baudrates) {
		return 0, false
	}
	return baudrates[id], true
}

// ParseBaudrate accepts only the supported line speeds.
func ParseBaudrate(bps int) (Baudrate, error) {
	for _, br := range baudrates {
		if int(br) == bps {
			return br, nil
		}
	}
	return 0, fmt.Errorf("unsupported baud rate: %d", bps)
}

// ID returns the stored id of b, or 0xFFFF for an unsupported value.
func (b Baudrate) ID() uint16 {
	for i, br := range baudrates {
		if br == b {
			return uint16(i)
		}
	}
	return 0xFFFF
}

func (b Baudrate) SilentInterval() time.Duration {
	return SilentInterval(int(b))
}

// SilentInterval returns T3.5, the time to send 3.5 characters of 10 bits
// (8N1) at the given baud rate, rounded up to the microsecond.
func SilentInterval(baud int) time.Duration {
	if baud <= 0 {
		return 1750 * time.Microsecond
	}
	us := (35_000_000 + baud - 1) / baud
	return time.Duration(us) * time.Microsecond
}
