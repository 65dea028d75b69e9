// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config defines the global configuration structure
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Serial  SerialConfig  `mapstructure:"serial"`
	Master  MasterConfig  `mapstructure:"master"`
	Slave   SlaveConfig   `mapstructure:"slave"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	File  string `mapstructure:"file"` // Log file path, "-" for stdout
}

// SerialConfig defines RTU settings
type SerialConfig struct {
	Device   string        `mapstructure:"device" validate:"required"`
	Driver   string        `mapstructure:"driver" validate:"oneof=bugst gridx"`
	BaudRate int           `mapstructure:"baud_rate" validate:"oneof=1200 2400 4800 9600 19200 38400 57600 115200"`
	DataBits int           `mapstructure:"data_bits" validate:"oneof=7 8"`
	Parity   string        `mapstructure:"parity" validate:"oneof=N E O"`
	StopBits int           `mapstructure:"stop_bits" validate:"oneof=1 2"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`

	// RS485 specific, gridx driver only
	RS485              bool          `mapstructure:"rs485"`
	DelayRtsBeforeSend time.Duration `mapstructure:"delay_rts_before_send"`
	DelayRtsAfterSend  time.Duration `mapstructure:"delay_rts_after_send"`
	RtsHighDuringSend  bool          `mapstructure:"rts_high_during_send"`
	RtsHighAfterSend   bool          `mapstructure:"rts_high_after_send"`
	RxDuringTx         bool          `mapstructure:"rx_during_tx"`
}

// MasterConfig defines the defaults of the read and write commands
type MasterConfig struct {
	SlaveID int           `mapstructure:"slave_id" validate:"min=0,max=255"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// SlaveConfig defines the register banks served by the serve command
type SlaveConfig struct {
	ID      int              `mapstructure:"id" validate:"min=0,max=255"`
	Holding []RegisterConfig `mapstructure:"holding" validate:"dive"`
	Input   []RegisterConfig `mapstructure:"input" validate:"dive"`
}

// RegisterConfig defines one register and the values a master may write to it
type RegisterConfig struct {
	Address uint16   `mapstructure:"address"`
	Value   uint16   `mapstructure:"value"`
	Only    *uint16  `mapstructure:"only"`
	Range   []uint16 `mapstructure:"range" validate:"omitempty,len=2"`
}

// MetricsConfig defines the prometheus endpoint, disabled when Listen is empty
type MetricsConfig struct {
	Listen string `mapstructure:"listen" validate:"omitempty,hostname_port"`
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"device":    "serial.device",
	"driver":    "serial.driver",
	"baud":      "serial.baud_rate",
	"parity":    "serial.parity",
	"stop-bits": "serial.stop_bits",
	"slave":     "master.slave_id",
	"timeout":   "master.timeout",
	"id":        "slave.id",
	"log-level": "log.level",
	"log-file":  "log.file",
	"metrics":   "metrics.listen",
}

// LoadConfig loads configuration from file, then applies flags on top.
// A missing default config file is not an error.
func LoadConfig(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/modbusrtu/")
		v.AddConfigPath("$HOME/.modbusrtu")
		v.AddConfigPath(".")
	}

	// Set defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("serial.driver", "bugst")
	v.SetDefault("serial.baud_rate", 9600)
	v.SetDefault("serial.data_bits", 8)
	v.SetDefault("serial.parity", "N")
	v.SetDefault("serial.stop_bits", 1)
	v.SetDefault("serial.timeout", 500*time.Millisecond)
	v.SetDefault("master.slave_id", 1)
	v.SetDefault("master.timeout", time.Second)
	v.SetDefault("slave.id", 1)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	fixupSerial(&config.Serial)

	if err := Validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the struct tags of cfg.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func fixupSerial(s *SerialConfig) {
	s.Parity = strings.ToUpper(s.Parity)
	if s.Parity != "" {
		s.Parity = s.Parity[:1]
	}
	s.Driver = strings.ToLower(s.Driver)
}
