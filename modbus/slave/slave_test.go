// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package slave

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ffutop/modbus-rtu/modbus"
	"github.com/ffutop/modbus-rtu/modbus/crc"
	"github.com/ffutop/modbus-rtu/modbus/rtu"
)

func newTestSlave(t *testing.T, id byte) *Slave {
	t.Helper()
	holding, err := NewModel(MustAddressSpace(1, 2, 3, 4, 10), []uint16{11, 12, 13, 14, 100})
	if err != nil {
		t.Fatal(err)
	}
	input, err := NewModel(MustAddressSpace(0, 1, 2), []uint16{7, 8, 9})
	if err != nil {
		t.Fatal(err)
	}
	return New(id, holding, input)
}

func frame(b ...byte) []byte {
	return crc.Append(b)
}

func TestSlave_Handle(t *testing.T) {
	tests := []struct {
		name string
		req  []byte
		want []byte
	}{
		{
			name: "ReadHolding",
			req:  frame(0x11, 0x03, 0x00, 0x01, 0x00, 0x02),
			want: []byte{0x11, 0x03, 0x04, 0x00, 0x0B, 0x00, 0x0C, 0x9A, 0x35},
		},
		{
			name: "ReadHoldingThree",
			req:  frame(0x11, 0x03, 0x00, 0x01, 0x00, 0x03),
			want: frame(0x11, 0x03, 0x06, 0x00, 0x0B, 0x00, 0x0C, 0x00, 0x0D),
		},
		{
			name: "ReadInput",
			req:  frame(0x11, 0x04, 0x00, 0x00, 0x00, 0x02),
			want: frame(0x11, 0x04, 0x04, 0x00, 0x07, 0x00, 0x08),
		},
		{
			// the range checked is one past the last register returned
			name: "ReadHoldingPastEnd",
			req:  frame(0x11, 0x03, 0x00, 0x04, 0x00, 0x01),
			want: []byte{0x11, 0x83, 0x02, 0xC1, 0x34},
		},
		{
			name: "ReadInputPastEnd",
			req:  frame(0x11, 0x04, 0x00, 0x00, 0x00, 0x03),
			want: frame(0x11, 0x84, 0x02),
		},
		{
			name: "ReadZeroCount",
			req:  frame(0x11, 0x03, 0x00, 0x01, 0x00, 0x00),
			want: frame(0x11, 0x83, 0x03),
		},
		{
			name: "ReadTooMany",
			req:  frame(0x11, 0x03, 0x00, 0x01, 0x00, 0x7E),
			want: frame(0x11, 0x83, 0x03),
		},
		{
			name: "ReadAddressOverflow",
			req:  frame(0x11, 0x03, 0xFF, 0xFF, 0x00, 0x01),
			want: frame(0x11, 0x83, 0x02),
		},
		{
			name: "ReadShortFrame",
			req:  frame(0x11, 0x03, 0x00, 0x01, 0x00),
			want: frame(0x11, 0x83, 0x03),
		},
		{
			name: "WriteSingle",
			req:  frame(0x11, 0x06, 0x00, 0x0A, 0x12, 0x34),
			want: frame(0x11, 0x06, 0x00, 0x0A, 0x12, 0x34),
		},
		{
			name: "WriteSingleUnknownAddress",
			req:  frame(0x11, 0x06, 0x00, 0x05, 0x12, 0x34),
			want: frame(0x11, 0x86, 0x02),
		},
		{
			name: "WriteMultiple",
			req:  frame(0x11, 0x10, 0x00, 0x01, 0x00, 0x02, 0x04, 0xAA, 0xAA, 0xBB, 0xBB),
			want: frame(0x11, 0x10, 0x00, 0x01, 0x00, 0x02),
		},
		{
			name: "WriteMultipleByteCount",
			req:  frame(0x11, 0x10, 0x00, 0x01, 0x00, 0x02, 0x03, 0xAA, 0xAA, 0xBB),
			want: frame(0x11, 0x90, 0x03),
		},
		{
			name: "WriteMultipleTruncated",
			req:  frame(0x11, 0x10, 0x00, 0x01, 0x00, 0x02, 0x04, 0xAA, 0xAA),
			want: frame(0x11, 0x90, 0x03),
		},
		{
			name: "WriteMultipleUnknownAddress",
			req:  frame(0x11, 0x10, 0x00, 0x03, 0x00, 0x02, 0x04, 0xAA, 0xAA, 0xBB, 0xBB),
			want: frame(0x11, 0x90, 0x02),
		},
		{
			name: "ReadCoilsUnsupported",
			req:  frame(0x11, 0x01, 0x00, 0x00, 0x00, 0x01),
			want: frame(0x11, 0x81, 0x01),
		},
		{
			name: "UnknownFunction",
			req:  frame(0x11, 0x2B, 0x0E, 0x01, 0x00),
			want: frame(0x11, 0xAB, 0x01),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := newTestSlave(t, 0x11).Handle(tt.req)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Handle() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSlave_HandleWrites(t *testing.T) {
	s := newTestSlave(t, 0x11)
	if _, err := s.Handle(frame(0x11, 0x10, 0x00, 0x01, 0x00, 0x02, 0x04, 0xAA, 0xAA, 0xBB, 0xBB)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if _, err := s.Handle(frame(0x11, 0x06, 0x00, 0x0A, 0x12, 0x34)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	s.View(func(holding, _ *Model[uint16]) {
		got := []uint16{holding.Get(1), holding.Get(2), holding.Get(3), holding.Get(10)}
		if diff := cmp.Diff([]uint16{0xAAAA, 0xBBBB, 13, 0x1234}, got); diff != "" {
			t.Errorf("holding registers mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestSlave_Constraint(t *testing.T) {
	s := newTestSlave(t, 0x11)
	s.Update(func(holding, _ *Model[uint16]) {
		if err := holding.SetConstraint(2, Range[uint16](0, 100)); err != nil {
			t.Fatal(err)
		}
	})

	reply, err := s.Handle(frame(0x11, 0x10, 0x00, 0x01, 0x00, 0x02, 0x04, 0x00, 0x01, 0x00, 0xC8))
	if diff := cmp.Diff(frame(0x11, 0x90, 0x03), reply); diff != "" {
		t.Errorf("Handle() mismatch (-want +got):\n%s", diff)
	}
	if !errors.Is(err, modbus.IllegalDataValue) {
		t.Errorf("Handle() error = %v, want IllegalDataValue", err)
	}
	s.View(func(holding, _ *Model[uint16]) {
		if holding.Get(1) != 11 || holding.Get(2) != 12 {
			t.Errorf("a refused write changed registers: %d %d", holding.Get(1), holding.Get(2))
		}
	})
}

func TestSlave_Analyze(t *testing.T) {
	s := newTestSlave(t, 0x11)
	scratch := make([]uint16, rtu.MaxWriteRegisters)

	op, err := s.Analyze(frame(0x11, 0x10, 0x00, 0x02, 0x00, 0x02, 0x04, 0x01, 0x02, 0x03, 0x04), scratch)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	want := Operation{SlaveID: 0x11, FunctionCode: 0x10, Address: 2, Count: 2, Values: []uint16{0x0102, 0x0304}}
	if diff := cmp.Diff(want, op); diff != "" {
		t.Errorf("Analyze() mismatch (-want +got):\n%s", diff)
	}

	var tooShort *rtu.TooShortError
	if _, err := s.Analyze([]byte{0x11, 0x03, 0x00}, scratch); !errors.As(err, &tooShort) {
		t.Errorf("short frame: error = %v, want TooShortError", err)
	}

	bad := frame(0x11, 0x03, 0x00, 0x01, 0x00, 0x02)
	bad[len(bad)-1] ^= 0x01
	var mismatch *crc.MismatchError
	if _, err := s.Analyze(bad, scratch); !errors.As(err, &mismatch) {
		t.Errorf("bad crc: error = %v, want MismatchError", err)
	}

	var notMine *NotMyIDError
	if _, err := s.Analyze(frame(0x12, 0x03, 0x00, 0x01, 0x00, 0x02), scratch); !errors.As(err, &notMine) || notMine.ID != 0x12 {
		t.Errorf("other id: error = %v, want NotMyIDError", err)
	}

	var exErr *ExceptionError
	if _, err := s.Analyze(frame(0x11, 0x10, 0x00, 0x01, 0x00, 0x02, 0x04, 0, 1, 0, 2), scratch[:1]); !errors.As(err, &exErr) || exErr.Exception != modbus.IllegalDataValue {
		t.Errorf("small scratch: error = %v, want IllegalDataValue", err)
	}
}

func TestSlave_DropsWithoutReply(t *testing.T) {
	s := newTestSlave(t, 0x11)
	bad := frame(0x11, 0x03, 0x00, 0x01, 0x00, 0x02)
	bad[2] ^= 0x80
	for name, req := range map[string][]byte{
		"TooShort":  {0x11, 0x03},
		"CRC":       bad,
		"OtherID":   frame(0x12, 0x03, 0x00, 0x01, 0x00, 0x02),
		"Broadcast": frame(0x00, 0x06, 0x00, 0x0A, 0x00, 0x01),
	} {
		if reply, err := s.Handle(req); reply != nil || err == nil {
			t.Errorf("%s: Handle() = % X, %v, want no reply and an error", name, reply, err)
		}
	}
}

func TestSlave_ListenAll(t *testing.T) {
	s := newTestSlave(t, ListenAll)
	reply, err := s.Handle(frame(0x07, 0x06, 0x00, 0x0A, 0x00, 0x2A))
	if reply != nil || err != nil {
		t.Fatalf("Handle() = % X, %v, want silent success", reply, err)
	}
	reply, err = s.Handle(frame(0x07, 0x03, 0x00, 0x20, 0x00, 0x01))
	if reply != nil || !errors.Is(err, modbus.IllegalDataAddress) {
		t.Errorf("Handle() = % X, %v, want silent IllegalDataAddress", reply, err)
	}
	s.View(func(holding, _ *Model[uint16]) {
		if holding.Get(10) != 0x2A {
			t.Errorf("Get(10) = %d, want 42", holding.Get(10))
		}
	})
}

func TestSlave_EmptyBank(t *testing.T) {
	s := New(0x01, nil, nil)
	reply, _ := s.Handle(frame(0x01, 0x06, 0x00, 0x00, 0x00, 0x01))
	if diff := cmp.Diff([]byte{0x01, 0x86, 0x01, 0x83, 0xA0}, reply); diff != "" {
		t.Errorf("Handle() mismatch (-want +got):\n%s", diff)
	}
}

func TestSlave_ExceptionFrame(t *testing.T) {
	got := newTestSlave(t, 0x11).ExceptionFrame(0x03, modbus.IllegalDataAddress)
	if diff := cmp.Diff([5]byte{0x11, 0x83, 0x02, 0xC1, 0x34}, got); diff != "" {
		t.Errorf("ExceptionFrame() mismatch (-want +got):\n%s", diff)
	}
}

func TestSlave_ConcurrentUpdate(t *testing.T) {
	s := newTestSlave(t, 0x11)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s.Update(func(_, input *Model[uint16]) {
				input.Set(0, input.At(0)+1)
			})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if _, err := s.Handle(frame(0x11, 0x04, 0x00, 0x00, 0x00, 0x01)); err != nil {
				t.Errorf("Handle() error = %v", err)
				return
			}
		}
	}()
	wg.Wait()
	s.View(func(_, input *Model[uint16]) {
		if input.Get(0) != 7+1000 {
			t.Errorf("Get(0) = %d, want %d", input.Get(0), 7+1000)
		}
	})
}
