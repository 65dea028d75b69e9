// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"fmt"

	"github.com/ffutop/modbus-rtu/modbus/slave"
)

// BuildModel turns a register table into a slave register model. The table
// must list addresses in strictly increasing order.
func BuildModel(regs []RegisterConfig) (*slave.Model[uint16], error) {
	addrs := make([]uint16, len(regs))
	values := make([]uint16, len(regs))
	for i, r := range regs {
		addrs[i] = r.Address
		values[i] = r.Value
	}

	space, err := slave.NewAddressSpace(addrs...)
	if err != nil {
		return nil, fmt.Errorf("invalid register table: %w", err)
	}
	model, err := slave.NewModel(space, values)
	if err != nil {
		return nil, err
	}

	for _, r := range regs {
		var c slave.Constraint[uint16]
		switch {
		case r.Only != nil:
			c = slave.Only(*r.Only)
		case len(r.Range) == 2:
			c = slave.Range(r.Range[0], r.Range[1])
		default:
			continue
		}
		if err := model.SetConstraint(r.Address, c); err != nil {
			return nil, err
		}
	}
	return model, nil
}
