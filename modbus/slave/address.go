// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package slave

import (
	"fmt"
	"slices"
)

// AddressSpace is the fixed, strictly increasing set of register addresses
// a device exposes. Index i of a Model built on it holds address At(i).
type AddressSpace struct {
	addrs []uint16
}

// AddressOrderError reports a duplicate or out of order address.
type AddressOrderError struct {
	Index int
	Prev  uint16
	Next  uint16
}

func (e *AddressOrderError) Error() string {
	return fmt.Sprintf("address space: address %d at index %d does not follow %d", e.Next, e.Index, e.Prev)
}

// NewAddressSpace copies addrs and checks that they strictly increase.
func NewAddressSpace(addrs ...uint16) (*AddressSpace, error) {
	for i := 1; i < len(addrs); i++ {
		if addrs[i] <= addrs[i-1] {
			return nil, &AddressOrderError{Index: i, Prev: addrs[i-1], Next: addrs[i]}
		}
	}
	return &AddressSpace{addrs: slices.Clone(addrs)}, nil
}

// MustAddressSpace is like NewAddressSpace but panics on a bad table.
// It is meant for package level address tables.
func MustAddressSpace(addrs ...uint16) *AddressSpace {
	s, err := NewAddressSpace(addrs...)
	if err != nil {
		panic(err)
	}
	return s
}

// Get returns the index of addr, which must be in the space.
func (s *AddressSpace) Get(addr uint16) int {
	i, ok := s.Find(addr)
	if !ok {
		panic(fmt.Sprintf("address space: address %d not present", addr))
	}
	return i
}

// Find returns the index of addr. Use it for addresses read off the wire.
func (s *AddressSpace) Find(addr uint16) (int, bool) {
	return slices.BinarySearch(s.addrs, addr)
}

// findRange returns the index of first when every address of the inclusive
// range [first, last] is present.
func (s *AddressSpace) findRange(first, last uint16) (int, bool) {
	i, ok := s.Find(first)
	if !ok {
		return 0, false
	}
	j := i + int(last-first)
	if j >= len(s.addrs) || s.addrs[j] != last {
		return 0, false
	}
	return i, true
}

func (s *AddressSpace) Len() int {
	return len(s.addrs)
}

func (s *AddressSpace) At(i int) uint16 {
	return s.addrs[i]
}

// Addresses returns a copy of the table.
func (s *AddressSpace) Addresses() []uint16 {
	return slices.Clone(s.addrs)
}
