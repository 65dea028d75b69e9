// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

const (
	MinSize = 4
	MaxSize = 256

	ExceptionSize = 5

	// BroadcastID addresses every slave on the bus. Slaves never answer it.
	BroadcastID = 0
)

// Quantity ceilings derived from the MaxSize frame budget.
// A read response carries id, function code, byte count and CRC (5 bytes);
// a write-multiple request carries id, function code, address, quantity,
// byte count and CRC (9 bytes).
const (
	readOverhead  = 5
	writeOverhead = 9

	MaxReadBits       = (MaxSize - readOverhead) * 8
	MaxReadRegisters  = (MaxSize - readOverhead) / 2
	MaxWriteCoils     = (MaxSize - writeOverhead) * 8
	MaxWriteRegisters = (MaxSize - writeOverhead) / 2
)
