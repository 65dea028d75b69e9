// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ffutop/modbus-rtu/internal/config"
	"github.com/ffutop/modbus-rtu/internal/metrics"
	"github.com/ffutop/modbus-rtu/modbus/slave"
	"github.com/ffutop/modbus-rtu/transport/rtu"
)

func newReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "read {coils|discrete|holding|input} ADDRESS QUANTITY",
		Short:     "Read bits or registers from a slave",
		Args:      cobra.ExactArgs(3),
		ValidArgs: []string{"coils", "discrete", "holding", "input"},
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := parseUint16(args[1])
			if err != nil {
				return fmt.Errorf("invalid address: %w", err)
			}
			quantity, err := parseUint16(args[2])
			if err != nil {
				return fmt.Errorf("invalid quantity: %w", err)
			}
			return withMaster(func(m *rtu.Master) error {
				return runRead(cmd.Context(), m, byte(cfg.Master.SlaveID), args[0], address, quantity, cmd.OutOrStdout())
			})
		},
	}
	addMasterFlags(cmd)
	return cmd
}

func newWriteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "write {coil|register|coils|registers} ADDRESS VALUE...",
		Short:     "Write bits or registers to a slave",
		Args:      cobra.MinimumNArgs(3),
		ValidArgs: []string{"coil", "register", "coils", "registers"},
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := parseUint16(args[1])
			if err != nil {
				return fmt.Errorf("invalid address: %w", err)
			}
			return withMaster(func(m *rtu.Master) error {
				return runWrite(cmd.Context(), m, byte(cfg.Master.SlaveID), args[0], address, args[2:])
			})
		},
	}
	addMasterFlags(cmd)
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured register banks as a slave",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	cmd.Flags().IntP("id", "i", 1, "Slave id to answer to, 0 to apply every frame without replying.")
	cmd.Flags().String("metrics", "", "Prometheus listen address, empty to disable.")
	return cmd
}

func withMaster(fn func(m *rtu.Master) error) error {
	port, err := rtu.OpenPort(cfg.Serial)
	if err != nil {
		return err
	}
	defer port.Close()

	m, err := rtu.NewMaster(port, cfg.Serial.BaudRate)
	if err != nil {
		return err
	}
	m.Timeout = cfg.Master.Timeout
	return fn(m)
}

func runRead(ctx context.Context, m *rtu.Master, slaveID byte, table string, address, quantity uint16, w io.Writer) error {
	switch table {
	case "coils", "discrete":
		read := m.ReadCoils
		if table == "discrete" {
			read = m.ReadDiscreteInputs
		}
		bits, err := read(ctx, slaveID, address, quantity)
		if err != nil {
			return err
		}
		for i, b := range bits {
			v := 0
			if b {
				v = 1
			}
			fmt.Fprintf(w, "%d\t%d\n", int(address)+i, v)
		}
	case "holding", "input":
		read := m.ReadHoldingRegisters
		if table == "input" {
			read = m.ReadInputRegisters
		}
		regs, err := read(ctx, slaveID, address, quantity)
		if err != nil {
			return err
		}
		for i, r := range regs {
			fmt.Fprintf(w, "%d\t%d\t0x%04X\n", int(address)+i, r, r)
		}
	default:
		return fmt.Errorf("unknown table %q", table)
	}
	return nil
}

func runWrite(ctx context.Context, m *rtu.Master, slaveID byte, table string, address uint16, args []string) error {
	switch table {
	case "coil", "coils":
		bits, err := parseBits(args)
		if err != nil {
			return err
		}
		if table == "coil" {
			if len(bits) != 1 {
				return fmt.Errorf("coil takes exactly one value, got %d", len(bits))
			}
			return m.WriteSingleCoil(ctx, slaveID, address, bits[0])
		}
		return m.WriteMultipleCoils(ctx, slaveID, address, bits)
	case "register", "registers":
		regs, err := parseRegisters(args)
		if err != nil {
			return err
		}
		if table == "register" {
			if len(regs) != 1 {
				return fmt.Errorf("register takes exactly one value, got %d", len(regs))
			}
			return m.WriteSingleRegister(ctx, slaveID, address, regs[0])
		}
		return m.WriteMultipleRegisters(ctx, slaveID, address, regs)
	default:
		return fmt.Errorf("unknown table %q", table)
	}
}

func runServe(parent context.Context) error {
	holding, err := config.BuildModel(cfg.Slave.Holding)
	if err != nil {
		return fmt.Errorf("holding registers: %w", err)
	}
	input, err := config.BuildModel(cfg.Slave.Input)
	if err != nil {
		return fmt.Errorf("input registers: %w", err)
	}

	port, err := rtu.OpenPort(cfg.Serial)
	if err != nil {
		return err
	}
	defer port.Close()

	srv, err := rtu.NewServer(port, slave.New(byte(cfg.Slave.ID), holding, input), cfg.Serial.BaudRate)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			slog.Info("Shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(ctx)
	})
	if cfg.Metrics.Listen != "" {
		g.Go(func() error {
			return metrics.Serve(ctx, cfg.Metrics.Listen)
		})
	}
	return g.Wait()
}

func parseUint16(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

func parseBits(args []string) ([]bool, error) {
	bits := make([]bool, len(args))
	for i, a := range args {
		switch strings.ToLower(a) {
		case "1", "on", "true":
			bits[i] = true
		case "0", "off", "false":
		default:
			return nil, fmt.Errorf("invalid coil value %q", a)
		}
	}
	return bits, nil
}

func parseRegisters(args []string) ([]uint16, error) {
	regs := make([]uint16, len(args))
	for i, a := range args {
		v, err := parseUint16(a)
		if err != nil {
			return nil, fmt.Errorf("invalid register value %q: %w", a, err)
		}
		regs[i] = v
	}
	return regs, nil
}
