// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package slave

import (
	"encoding/binary"
	"errors"

	"github.com/TheCount/go-multilocker/multilocker"

	"github.com/ffutop/modbus-rtu/modbus"
	"github.com/ffutop/modbus-rtu/modbus/crc"
	"github.com/ffutop/modbus-rtu/modbus/rtu"
)

// ListenAll as a slave id accepts frames for any id and never replies.
const ListenAll = 0

const (
	fixedRequestSize    = 8
	writeMultipleHeader = 7
)

// Slave implements the register side of a Modbus RTU device on top of a
// holding and an input register Model.
type Slave struct {
	id      byte
	holding *Model[uint16]
	input   *Model[uint16]
}

// Operation is a validated request. Values aliases the scratch buffer
// given to Analyze.
type Operation struct {
	SlaveID      byte
	FunctionCode byte
	Address      uint16
	Count        uint16
	Value        uint16
	Values       []uint16
}

// New creates a Slave. A nil model stands for a bank the device does not implement.
func New(id byte, holding, input *Model[uint16]) *Slave {
	if holding == nil {
		holding = EmptyModel[uint16]()
	}
	if input == nil {
		input = EmptyModel[uint16]()
	}
	return &Slave{id: id, holding: holding, input: input}
}

func (s *Slave) ID() byte {
	return s.id
}

// Update runs fn with both register banks locked for writing.
func (s *Slave) Update(fn func(holding, input *Model[uint16])) {
	l := multilocker.New(&s.holding.mu, &s.input.mu)
	l.Lock()
	defer l.Unlock()
	fn(s.holding, s.input)
}

// View runs fn with both register banks locked for reading.
func (s *Slave) View(fn func(holding, input *Model[uint16])) {
	l := multilocker.New(s.holding.mu.RLocker(), s.input.mu.RLocker())
	l.Lock()
	defer l.Unlock()
	fn(s.holding, s.input)
}

// Analyze validates frame and returns the operation it asks for. Errors are
// *rtu.TooShortError, *crc.MismatchError, *NotMyIDError or *ExceptionError.
// The values of a write multiple request are decoded into scratch, which
// should hold rtu.MaxWriteRegisters values.
func (s *Slave) Analyze(frame []byte, scratch []uint16) (Operation, error) {
	if len(frame) < rtu.MinSize {
		return Operation{}, &rtu.TooShortError{Length: len(frame)}
	}
	if err := crc.Validate(frame); err != nil {
		return Operation{}, err
	}
	if s.id != ListenAll && frame[0] != s.id {
		return Operation{}, &NotMyIDError{ID: frame[0]}
	}

	op := Operation{SlaveID: frame[0], FunctionCode: frame[1]}
	switch modbus.FunctionKind(op.FunctionCode) {
	case modbus.ReadHoldingRegisters:
		return s.analyzeRead(frame, op, s.holding)
	case modbus.ReadInputRegisters:
		return s.analyzeRead(frame, op, s.input)
	case modbus.WriteSingleRegister:
		return s.analyzeWriteSingle(frame, op)
	case modbus.WriteMultipleRegisters:
		return s.analyzeWriteMultiple(frame, op, scratch)
	}
	return op, exception(op.FunctionCode, modbus.IllegalFunction)
}

func (s *Slave) analyzeRead(frame []byte, op Operation, m *Model[uint16]) (Operation, error) {
	if m.IsEmpty() {
		return op, exception(op.FunctionCode, modbus.IllegalFunction)
	}
	if len(frame) < fixedRequestSize {
		return op, exception(op.FunctionCode, modbus.IllegalDataValue)
	}
	op.Address = binary.BigEndian.Uint16(frame[2:])
	op.Count = binary.BigEndian.Uint16(frame[4:])
	if op.Count == 0 || op.Count > rtu.MaxReadRegisters {
		return op, exception(op.FunctionCode, modbus.IllegalDataValue)
	}
	if !rangeResolves(m.space, op.Address, op.Count) {
		return op, exception(op.FunctionCode, modbus.IllegalDataAddress)
	}
	return op, nil
}

func (s *Slave) analyzeWriteSingle(frame []byte, op Operation) (Operation, error) {
	if s.holding.IsEmpty() {
		return op, exception(op.FunctionCode, modbus.IllegalFunction)
	}
	if len(frame) < fixedRequestSize {
		return op, exception(op.FunctionCode, modbus.IllegalDataValue)
	}
	op.Address = binary.BigEndian.Uint16(frame[2:])
	op.Value = binary.BigEndian.Uint16(frame[4:])
	op.Count = 1
	if _, ok := s.holding.space.Find(op.Address); !ok {
		return op, exception(op.FunctionCode, modbus.IllegalDataAddress)
	}
	return op, nil
}

func (s *Slave) analyzeWriteMultiple(frame []byte, op Operation, scratch []uint16) (Operation, error) {
	if s.holding.IsEmpty() {
		return op, exception(op.FunctionCode, modbus.IllegalFunction)
	}
	if len(frame) < writeMultipleHeader+2 {
		return op, exception(op.FunctionCode, modbus.IllegalDataValue)
	}
	op.Address = binary.BigEndian.Uint16(frame[2:])
	op.Count = binary.BigEndian.Uint16(frame[4:])
	byteCount := int(frame[6])
	if op.Count == 0 || op.Count > rtu.MaxWriteRegisters || int(op.Count) > len(scratch) ||
		byteCount != 2*int(op.Count) || len(frame) < writeMultipleHeader+byteCount+2 {
		return op, exception(op.FunctionCode, modbus.IllegalDataValue)
	}
	if !rangeResolves(s.holding.space, op.Address, op.Count) {
		return op, exception(op.FunctionCode, modbus.IllegalDataAddress)
	}
	op.Values = scratch[:op.Count]
	for i := range op.Values {
		op.Values[i] = binary.BigEndian.Uint16(frame[writeMultipleHeader+2*i:])
	}
	return op, nil
}

// rangeResolves checks the inclusive range [start, start+count].
func rangeResolves(space *AddressSpace, start, count uint16) bool {
	end := int(start) + int(count)
	if end > 0xFFFF {
		return false
	}
	_, ok := space.findRange(start, uint16(end))
	return ok
}

// Apply executes a validated operation against the register banks and
// returns the normal response frame.
func (s *Slave) Apply(op Operation) ([]byte, error) {
	switch modbus.FunctionKind(op.FunctionCode) {
	case modbus.ReadHoldingRegisters:
		return s.applyRead(op, s.holding), nil
	case modbus.ReadInputRegisters:
		return s.applyRead(op, s.input), nil
	case modbus.WriteSingleRegister:
		return s.applyWrite(op, []uint16{op.Value})
	case modbus.WriteMultipleRegisters:
		return s.applyWrite(op, op.Values)
	}
	return nil, exception(op.FunctionCode, modbus.IllegalFunction)
}

func (s *Slave) applyRead(op Operation, m *Model[uint16]) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	first, _ := m.space.Find(op.Address)
	resp := make([]byte, 3, 3+2*int(op.Count)+2)
	resp[0] = op.SlaveID
	resp[1] = op.FunctionCode
	resp[2] = byte(2 * op.Count)
	for i := 0; i < int(op.Count); i++ {
		resp = binary.BigEndian.AppendUint16(resp, m.values[first+i])
	}
	return crc.Append(resp)
}

func (s *Slave) applyWrite(op Operation, values []uint16) ([]byte, error) {
	m := s.holding
	m.mu.Lock()
	defer m.mu.Unlock()

	first, _ := m.space.Find(op.Address)
	for i, v := range values {
		if !m.Allows(first+i, v) {
			return nil, exception(op.FunctionCode, modbus.IllegalDataValue)
		}
	}
	for i, v := range values {
		m.Set(first+i, v)
	}

	resp := make([]byte, 2, 8)
	resp[0] = op.SlaveID
	resp[1] = op.FunctionCode
	resp = binary.BigEndian.AppendUint16(resp, op.Address)
	if op.FunctionCode == modbus.WriteSingleRegister.Code() {
		resp = binary.BigEndian.AppendUint16(resp, op.Value)
	} else {
		resp = binary.BigEndian.AppendUint16(resp, op.Count)
	}
	return crc.Append(resp), nil
}

// ExceptionFrame builds [id, fc|0x80, exception, crc_lo, crc_hi].
func (s *Slave) ExceptionFrame(funcCode byte, ex modbus.Exception) [rtu.ExceptionSize]byte {
	frame := [rtu.ExceptionSize]byte{s.id, funcCode | modbus.ExceptionFlag, ex.Code()}
	sum := crc.Checksum(frame[:3])
	frame[3] = byte(sum)
	frame[4] = byte(sum >> 8)
	return frame
}

// Handle processes one request frame and returns the reply to send, or nil
// when the frame must not be answered. err reports why a frame was dropped
// or refused.
func (s *Slave) Handle(frame []byte) (reply []byte, err error) {
	var scratch [rtu.MaxWriteRegisters]uint16
	op, err := s.Analyze(frame, scratch[:])
	if err == nil {
		reply, err = s.Apply(op)
	}
	if s.id == ListenAll {
		return nil, err
	}
	var exErr *ExceptionError
	if errors.As(err, &exErr) {
		ex := s.ExceptionFrame(exErr.FunctionCode, exErr.Exception)
		return ex[:], err
	}
	return reply, err
}
