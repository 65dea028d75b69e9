// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"sync"
	"time"
)

// mockPort replays scripted reads. A nil chunk is one silent read; once the
// script is drained every read is silent and onDrain is called.
type mockPort struct {
	mu sync.Mutex

	reads   [][]byte
	readErr error
	onDrain func()

	events      []string
	written     [][]byte
	writeTimes  []time.Time
	readTimes   []time.Time
	baud        int
	readTimeout time.Duration
}

func (p *mockPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if p.readErr != nil {
		p.mu.Unlock()
		return 0, p.readErr
	}
	if len(p.reads) == 0 {
		onDrain, timeout := p.onDrain, p.readTimeout
		p.mu.Unlock()
		if onDrain != nil {
			onDrain()
		}
		time.Sleep(timeout)
		return 0, nil
	}
	chunk := p.reads[0]
	p.reads = p.reads[1:]
	if chunk == nil {
		timeout := p.readTimeout
		p.mu.Unlock()
		time.Sleep(timeout)
		return 0, nil
	}
	n := copy(b, chunk)
	if n < len(chunk) {
		p.reads = append([][]byte{chunk[n:]}, p.reads...)
	}
	p.events = append(p.events, "read")
	p.readTimes = append(p.readTimes, time.Now())
	p.mu.Unlock()
	return n, nil
}

func (p *mockPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "write")
	p.written = append(p.written, append([]byte(nil), b...))
	p.writeTimes = append(p.writeTimes, time.Now())
	return len(b), nil
}

func (p *mockPort) SetBaudRate(baud int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.baud = baud
	return nil
}

func (p *mockPort) SetReadTimeout(d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readTimeout = d
	return nil
}

func (p *mockPort) ClearOutput() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "clear")
	return nil
}

func (p *mockPort) Close() error { return nil }

func (p *mockPort) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func (p *mockPort) Written() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.written...)
}
