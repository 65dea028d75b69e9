// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package slave

import (
	"cmp"
	"errors"
	"fmt"
	"sync"
)

var ErrConstraintViolation = errors.New("register model: value violates constraint")

// Model pairs an AddressSpace with one value per address.
//
// A Model is not safe for concurrent use on its own. When it is attached to
// a Slave, mutate it through Slave.Update.
type Model[T cmp.Ordered] struct {
	mu sync.RWMutex

	space       *AddressSpace
	values      []T
	constraints []Constraint[T]
}

// NewModel copies initial, which must have one value per address of space.
func NewModel[T cmp.Ordered](space *AddressSpace, initial []T) (*Model[T], error) {
	if len(initial) != space.Len() {
		return nil, fmt.Errorf("register model: %d initial values for %d addresses", len(initial), space.Len())
	}
	values := make([]T, len(initial))
	copy(values, initial)
	return &Model[T]{
		space:       space,
		values:      values,
		constraints: make([]Constraint[T], len(initial)),
	}, nil
}

// EmptyModel is a model without any register, for banks a device does not implement.
func EmptyModel[T cmp.Ordered]() *Model[T] {
	return &Model[T]{space: &AddressSpace{}}
}

func (m *Model[T]) Space() *AddressSpace {
	return m.space
}

func (m *Model[T]) Len() int {
	return len(m.values)
}

func (m *Model[T]) IsEmpty() bool {
	return len(m.values) == 0
}

// Get returns the value at addr, which must be present.
func (m *Model[T]) Get(addr uint16) T {
	return m.values[m.space.Get(addr)]
}

func (m *Model[T]) Find(addr uint16) (T, bool) {
	i, ok := m.space.Find(addr)
	if !ok {
		var zero T
		return zero, false
	}
	return m.values[i], true
}

// Index is a shortcut for Space().Find.
func (m *Model[T]) Index(addr uint16) (int, bool) {
	return m.space.Find(addr)
}

func (m *Model[T]) At(i int) T {
	return m.values[i]
}

// Set stores v at index i without checking constraints.
func (m *Model[T]) Set(i int, v T) {
	m.values[i] = v
}

// Write stores v at index i if the constraint of that register allows it.
func (m *Model[T]) Write(i int, v T) error {
	if !m.constraints[i].Allows(v) {
		return fmt.Errorf("%w: %v at address %d", ErrConstraintViolation, v, m.space.At(i))
	}
	m.values[i] = v
	return nil
}

// Allows reports whether v may be written at index i.
func (m *Model[T]) Allows(i int, v T) bool {
	return m.constraints[i].Allows(v)
}

func (m *Model[T]) SetConstraint(addr uint16, c Constraint[T]) error {
	i, ok := m.space.Find(addr)
	if !ok {
		return fmt.Errorf("register model: address %d not present", addr)
	}
	m.constraints[i] = c
	return nil
}
