// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package slave

import "cmp"

type ConstraintKind int

const (
	ConstraintNone ConstraintKind = iota
	ConstraintOnly
	ConstraintRange
	ConstraintCustom
)

// Constraint restricts the values a master may write to a register.
// The zero Constraint allows everything.
type Constraint[T cmp.Ordered] struct {
	kind     ConstraintKind
	min, max T
	allow    func(T) bool
}

// Only allows exactly v.
func Only[T cmp.Ordered](v T) Constraint[T] {
	return Constraint[T]{kind: ConstraintOnly, min: v, max: v}
}

// Range allows min <= v <= max.
func Range[T cmp.Ordered](min, max T) Constraint[T] {
	return Constraint[T]{kind: ConstraintRange, min: min, max: max}
}

// Custom allows whatever fn accepts.
func Custom[T cmp.Ordered](fn func(T) bool) Constraint[T] {
	return Constraint[T]{kind: ConstraintCustom, allow: fn}
}

func (c Constraint[T]) Kind() ConstraintKind {
	return c.kind
}

func (c Constraint[T]) Allows(v T) bool {
	switch c.kind {
	case ConstraintOnly:
		return v == c.min
	case ConstraintRange:
		return c.min <= v && v <= c.max
	case ConstraintCustom:
		return c.allow == nil || c.allow(v)
	}
	return true
}
