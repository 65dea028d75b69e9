// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"

	"github.com/ffutop/modbus-rtu/modbus/slave"
)

const sampleConfig = `
log:
  level: debug
serial:
  device: /dev/ttyUSB0
  driver: gridx
  baud_rate: 19200
  parity: even
  timeout: 200ms
master:
  slave_id: 17
slave:
  id: 3
  holding:
    - address: 1
      value: 10
    - address: 2
      range: [0, 100]
    - address: 7
      only: 5
      value: 5
  input:
    - address: 0
      value: 42
metrics:
  listen: "127.0.0.1:9100"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig), nil)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	wantSerial := SerialConfig{
		Device:   "/dev/ttyUSB0",
		Driver:   "gridx",
		BaudRate: 19200,
		DataBits: 8,
		Parity:   "E",
		StopBits: 1,
		Timeout:  200 * time.Millisecond,
	}
	if diff := cmp.Diff(wantSerial, cfg.Serial); diff != "" {
		t.Errorf("Serial mismatch (-want +got):\n%s", diff)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.Master.SlaveID != 17 || cfg.Master.Timeout != time.Second {
		t.Errorf("Master = %+v", cfg.Master)
	}
	if cfg.Slave.ID != 3 || len(cfg.Slave.Holding) != 3 || len(cfg.Slave.Input) != 1 {
		t.Errorf("Slave = %+v", cfg.Slave)
	}
	if cfg.Metrics.Listen != "127.0.0.1:9100" {
		t.Errorf("Metrics.Listen = %q", cfg.Metrics.Listen)
	}
}

func TestLoadConfig_Flags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("baud", 9600, "")
	flags.String("device", "", "")
	if err := flags.Parse([]string{"--baud", "115200"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(writeConfig(t, sampleConfig), flags)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Serial.BaudRate != 115200 {
		t.Errorf("BaudRate = %d, want flag value 115200", cfg.Serial.BaudRate)
	}
	if cfg.Serial.Device != "/dev/ttyUSB0" {
		t.Errorf("Device = %q, an unset flag should not override the file", cfg.Serial.Device)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"NoDevice", "serial:\n  baud_rate: 9600\n"},
		{"BadBaud", "serial:\n  device: /dev/ttyS0\n  baud_rate: 9601\n"},
		{"BadDriver", "serial:\n  device: /dev/ttyS0\n  driver: usb\n"},
		{"BadLevel", "serial:\n  device: /dev/ttyS0\nlog:\n  level: loud\n"},
		{"BadRange", "serial:\n  device: /dev/ttyS0\nslave:\n  holding:\n    - address: 1\n      range: [1]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.content), nil); err == nil {
				t.Errorf("LoadConfig() should fail")
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), nil); err == nil {
		t.Errorf("LoadConfig() with a missing explicit file should fail")
	}
}

func TestBuildModel(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig), nil)
	if err != nil {
		t.Fatal(err)
	}
	holding, err := BuildModel(cfg.Slave.Holding)
	if err != nil {
		t.Fatalf("BuildModel() error = %v", err)
	}
	if diff := cmp.Diff([]uint16{1, 2, 7}, holding.Space().Addresses()); diff != "" {
		t.Errorf("addresses mismatch (-want +got):\n%s", diff)
	}
	if holding.Get(1) != 10 || holding.Get(7) != 5 {
		t.Errorf("values = %d, %d", holding.Get(1), holding.Get(7))
	}
	i2, _ := holding.Index(2)
	i7, _ := holding.Index(7)
	if holding.Allows(i2, 101) || !holding.Allows(i2, 100) {
		t.Errorf("range constraint not applied")
	}
	if holding.Allows(i7, 4) || !holding.Allows(i7, 5) {
		t.Errorf("only constraint not applied")
	}

	_, err = BuildModel([]RegisterConfig{{Address: 2}, {Address: 1}})
	var orderErr *slave.AddressOrderError
	if !errors.As(err, &orderErr) {
		t.Errorf("BuildModel() error = %v, want AddressOrderError", err)
	}
}
