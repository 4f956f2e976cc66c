// Copyright 2023 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package daq exposes SPI register peripherals as a TDAQ server: devices
// are discovered at /config, opened at /init and their registers polled
// into the /regs output stream during a run.
package daq // import "github.com/go-daq/spidev/daq"

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-daq/tdaq"

	"github.com/go-daq/spidev"
	"github.com/go-daq/spidev/ftdispi"
)

// Conn is the register-level connection the server drives. Both
// *spidev.Device and *ftdispi.Device satisfy it.
type Conn interface {
	ReadReg(reg uint8) (uint8, error)
	ReadRegs(reg uint8, n int) ([]byte, error)
	WriteReg(reg, v uint8) error
	Close() error
}

var (
	_ Conn = (*spidev.Device)(nil)
	_ Conn = (*ftdispi.Device)(nil)
)

var spiOpen = func(bus, cs int, opts ...spidev.Option) (Conn, error) {
	return spidev.Open(bus, cs, opts...)
}

// DeviceInfo describes one discovered SPI device node.
type DeviceInfo struct {
	Bus  int
	CS   int
	Path string
}

// Server drives a set of SPI register peripherals on behalf of a TDAQ
// run-control.
type Server struct {
	name string
	glob string // device-node pattern

	devs  []DeviceInfo
	conns map[string]Conn // path -> open connection

	reg  uint8 // first register polled during a run
	n    int   // registers per sample
	opts []spidev.Option

	cnt  int
	data chan []byte
}

// New creates a Server named name that, while running, polls n registers
// starting at reg from every discovered device. The options are applied
// to every device opened at /init.
func New(name string, reg uint8, n int, opts ...spidev.Option) *Server {
	return &Server{
		name: name,
		glob: "/dev/spidev*",
		reg:  reg,
		n:    n,
		opts: opts,
	}
}

func (srv *Server) scanDevices(ctx tdaq.Context) error {
	srv.devs = srv.devs[:0]

	matches, err := filepath.Glob(srv.glob)
	if err != nil {
		return fmt.Errorf("could not glob %q: %w", srv.glob, err)
	}

	for _, path := range matches {
		var bus, cs int
		_, err := fmt.Sscanf(filepath.Base(path), "spidev%d.%d", &bus, &cs)
		if err != nil {
			ctx.Msg.Warnf("could not parse device node %q: %+v", path, err)
			continue
		}
		ctx.Msg.Infof("found SPI device %s", path)
		srv.devs = append(srv.devs, DeviceInfo{Bus: bus, CS: cs, Path: path})
	}

	sort.Slice(srv.devs, func(i, j int) bool {
		if srv.devs[i].Bus != srv.devs[j].Bus {
			return srv.devs[i].Bus < srv.devs[j].Bus
		}
		return srv.devs[i].CS < srv.devs[j].CS
	})

	return nil
}

func (srv *Server) initialize(ctx tdaq.Context, dev DeviceInfo) error {
	if _, dup := srv.conns[dev.Path]; dup {
		ctx.Msg.Errorf("device %s already opened", dev.Path)
		return fmt.Errorf("device %s already opened", dev.Path)
	}

	conn, err := spiOpen(dev.Bus, dev.CS, srv.opts...)
	if err != nil {
		ctx.Msg.Errorf("could not open device %s: %+v", dev.Path, err)
		return fmt.Errorf("could not open device %s: %w", dev.Path, err)
	}

	srv.conns[dev.Path] = conn
	ctx.Msg.Infof("device %s: OK", dev.Path)

	return nil
}

func (srv *Server) closeConns() error {
	var err error
	for path, conn := range srv.conns {
		if e := conn.Close(); e != nil && err == nil {
			err = fmt.Errorf("could not close device %s: %w", path, e)
		}
	}
	srv.conns = nil
	return err
}

// OnConfig scans for SPI device nodes.
func (srv *Server) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	err := srv.scanDevices(ctx)
	if err != nil {
		ctx.Msg.Errorf("could not scan devices: %+v", err)
		return fmt.Errorf("could not scan devices: %w", err)
	}
	return nil
}

// OnInit opens every discovered device.
func (srv *Server) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	srv.conns = make(map[string]Conn, len(srv.devs))
	for _, dev := range srv.devs {
		err := srv.initialize(ctx, dev)
		if err != nil {
			return fmt.Errorf("could not initialize device %s: %w", dev.Path, err)
		}
	}
	srv.cnt = 0
	srv.data = make(chan []byte, 1024)
	return nil
}

// OnReset closes every open device; a following /init reopens them.
func (srv *Server) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	return srv.closeConns()
}

func (srv *Server) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	return nil
}

func (srv *Server) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /stop command... -> n=%d", srv.cnt)
	return nil
}

// OnQuit closes every open device.
func (srv *Server) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	return srv.closeConns()
}

// Regs feeds the /regs output stream with the samples collected by Run.
func (srv *Server) Regs(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-srv.data:
		dst.Body = data
	}
	return nil
}

// Run polls the configured register range of every open device until the
// run stops. Each sample is framed as [bus, cs, values...].
func (srv *Server) Run(ctx tdaq.Context) error {
	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		default:
			for _, dev := range srv.devs {
				conn, ok := srv.conns[dev.Path]
				if !ok {
					continue
				}
				vals, err := conn.ReadRegs(srv.reg, srv.n)
				if err != nil {
					ctx.Msg.Errorf("could not read %s: %+v", dev.Path, err)
					continue
				}
				raw := make([]byte, 0, len(vals)+2)
				raw = append(raw, byte(dev.Bus), byte(dev.CS))
				raw = append(raw, vals...)
				select {
				case srv.data <- raw:
					srv.cnt++
				default:
				}
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
}
