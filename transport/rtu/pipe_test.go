// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import "time"

// pipe is one direction of a simulated serial line.
type pipe chan []byte

func newPipe() pipe {
	return make(pipe, 16)
}

// pipePort connects a master and a server in one process. Read waits at most
// the read timeout, like a serial device.
type pipePort struct {
	in, out     pipe
	pending     []byte
	readTimeout time.Duration
}

func (p *pipePort) Read(b []byte) (int, error) {
	if len(p.pending) == 0 {
		select {
		case chunk := <-p.in:
			p.pending = chunk
		case <-time.After(p.readTimeout):
			return 0, nil
		}
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *pipePort) Write(b []byte) (int, error) {
	p.out <- append([]byte(nil), b...)
	return len(b), nil
}

func (p *pipePort) SetBaudRate(int) error { return nil }

func (p *pipePort) SetReadTimeout(d time.Duration) error {
	p.readTimeout = d
	return nil
}

func (p *pipePort) ClearOutput() error { return nil }

func (p *pipePort) Close() error { return nil }
