// Copyright 2023 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ftdispi drives an SPI peripheral wired behind an FTDI USB bridge
// in MPSSE mode, exposing the same duplex exchange and register operations
// as package spidev.
//
// Only clock modes 0 and 2 are supported: the MPSSE byte-exchange commands
// sample on a fixed clock edge and can not express CPHA=1.
package ftdispi // import "github.com/go-daq/spidev/ftdispi"

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-daq/spidev"
	"github.com/ziutek/ftdi"
)

// ErrClosed is returned by operations on a closed Device.
var ErrClosed = errors.New("ftdispi: device is closed")

// MPSSE command opcodes.
const (
	cmdSetBitsLow  = 0x80 // set ADBUS levels and directions
	cmdXferMode0   = 0x31 // bytes out on falling edge, in on rising
	cmdXferMode2   = 0x34 // bytes out on rising edge, in on falling
	cmdLoopbackOff = 0x85
	cmdSetClkDiv   = 0x86
	cmdDisableDiv5 = 0x8a
	cmdNo3Phase    = 0x8d
	cmdNoAdaptive  = 0x97
)

// ADBUS pin assignment for SPI.
const (
	pinSCK = 0x01
	pinDO  = 0x02
	pinDI  = 0x04
	pinCS  = 0x08

	pinDir = pinSCK | pinDO | pinCS // DI is the only input
)

// mpsseClock is the MPSSE base clock, in Hz, with the divide-by-5
// prescaler disabled.
const mpsseClock = 30000000

type ftdiDevice interface {
	Reset() error

	SetBitmode(iomask byte, mode ftdi.Mode) error
	SetFlowControl(flowctrl ftdi.FlowCtrl) error
	SetLatencyTimer(lt int) error
	SetWriteChunkSize(cs int) error
	SetReadChunkSize(cs int) error
	PurgeBuffers() error

	io.Writer
	io.Reader
	io.Closer
}

var ftdiOpen = ftdiOpenImpl

func ftdiOpenImpl(vid, pid uint16) (ftdiDevice, error) {
	dev, err := ftdi.OpenFirst(int(vid), int(pid), ftdi.ChannelAny)
	return dev, err
}

type config struct {
	mode  spidev.Mode
	speed uint32
}

// Option configures an FTDI SPI device at Open time.
type Option func(cfg *config)

// WithMode configures the SPI clock mode (Mode0 or Mode2).
func WithMode(mode spidev.Mode) Option {
	return func(cfg *config) {
		cfg.mode = mode
	}
}

// WithSpeed configures the SPI clock speed in Hz.
func WithSpeed(hz uint32) Option {
	return func(cfg *config) {
		cfg.speed = hz
	}
}

// Device is an open connection to an SPI peripheral behind an FTDI MPSSE
// bridge. Like spidev.Device, it is not safe for concurrent use.
type Device struct {
	ft  ftdiDevice
	vid uint16
	pid uint16

	mode  spidev.Mode
	speed uint32

	clk  byte // byte-exchange opcode for the selected mode
	idle byte // pin levels between transfers: CS high, SCK at CPOL
	busy byte // pin levels with CS asserted
}

// Open opens the first FTDI device matching (vid, pid), switches it to
// MPSSE mode and configures the SPI clock. The device is released and an
// error returned if any initialization step fails.
func Open(vid, pid uint16, opts ...Option) (*Device, error) {
	cfg := config{mode: spidev.Mode0, speed: spidev.DefaultSpeed}
	for _, opt := range opts {
		opt(&cfg)
	}

	dev := &Device{vid: vid, pid: pid, mode: cfg.mode, speed: cfg.speed}
	switch cfg.mode {
	case spidev.Mode0:
		dev.clk = cmdXferMode0
		dev.idle = pinCS
		dev.busy = 0
	case spidev.Mode2:
		dev.clk = cmdXferMode2
		dev.idle = pinCS | pinSCK
		dev.busy = pinSCK
	default:
		return nil, fmt.Errorf("ftdispi: clock mode %d not supported by MPSSE", cfg.mode)
	}

	ft, err := ftdiOpen(vid, pid)
	if err != nil {
		return nil, fmt.Errorf("ftdispi: could not open FTDI device (vid=0x%x, pid=0x%x): %w",
			vid, pid, err,
		)
	}
	dev.ft = ft

	err = dev.init()
	if err != nil {
		ft.Close()
		return nil, fmt.Errorf("ftdispi: could not initialize FTDI device (vid=0x%x, pid=0x%x): %w",
			vid, pid, err,
		)
	}

	return dev, nil
}

func (dev *Device) init() error {
	var err error

	err = dev.ft.Reset()
	if err != nil {
		return fmt.Errorf("could not reset USB: %w", err)
	}

	err = dev.ft.SetBitmode(0, ftdi.ModeReset)
	if err != nil {
		return fmt.Errorf("could not reset bit mode: %w", err)
	}

	err = dev.ft.SetBitmode(0, ftdi.ModeMPSSE)
	if err != nil {
		return fmt.Errorf("could not enable MPSSE mode: %w", err)
	}

	err = dev.ft.SetFlowControl(ftdi.FlowCtrlDisable)
	if err != nil {
		return fmt.Errorf("could not disable flow control: %w", err)
	}

	err = dev.ft.SetLatencyTimer(2)
	if err != nil {
		return fmt.Errorf("could not set latency timer to 2: %w", err)
	}

	err = dev.ft.SetWriteChunkSize(0xffff)
	if err != nil {
		return fmt.Errorf("could not set write chunk-size to 0xffff: %w", err)
	}

	err = dev.ft.SetReadChunkSize(0xffff)
	if err != nil {
		return fmt.Errorf("could not set read chunk-size to 0xffff: %w", err)
	}

	err = dev.ft.PurgeBuffers()
	if err != nil {
		return fmt.Errorf("could not purge buffers: %w", err)
	}

	div := mpsseClock/(2*int(dev.speed)) - 1
	if div < 0 {
		div = 0
	}
	if div > 0xffff {
		div = 0xffff
	}

	_, err = dev.ft.Write([]byte{
		cmdDisableDiv5,
		cmdNoAdaptive,
		cmdNo3Phase,
		cmdLoopbackOff,
		cmdSetClkDiv, byte(div), byte(div >> 8),
		cmdSetBitsLow, dev.idle, pinDir,
	})
	if err != nil {
		return fmt.Errorf("could not setup MPSSE: %w", err)
	}

	return nil
}

// Xfer performs one full-duplex exchange: chip-select is asserted, the
// bytes of tx are clocked out while the same number of bytes are clocked
// into rx, and chip-select is released.
func (dev *Device) Xfer(tx, rx []byte) error {
	if dev.ft == nil {
		return ErrClosed
	}
	if len(tx) != len(rx) {
		return fmt.Errorf("ftdispi: tx/rx length mismatch (tx=%d, rx=%d)", len(tx), len(rx))
	}
	if len(tx) == 0 {
		return nil
	}
	if len(tx) > 0x10000 {
		return fmt.Errorf("ftdispi: transfer too long (%d bytes)", len(tx))
	}

	n := len(tx) - 1 // MPSSE length field is length-1

	buf := make([]byte, 0, len(tx)+9)
	buf = append(buf, cmdSetBitsLow, dev.busy, pinDir)
	buf = append(buf, dev.clk, byte(n), byte(n>>8))
	buf = append(buf, tx...)
	buf = append(buf, cmdSetBitsLow, dev.idle, pinDir)

	_, err := dev.ft.Write(buf)
	if err != nil {
		return fmt.Errorf("ftdispi: could not clock out %d bytes: %w", len(tx), err)
	}

	_, err = io.ReadFull(dev.ft, rx)
	if err != nil {
		return fmt.Errorf("ftdispi: could not clock in %d bytes: %w", len(rx), err)
	}

	return nil
}

// Mode returns the configured clock mode.
func (dev *Device) Mode() spidev.Mode { return dev.mode }

// Speed returns the configured clock speed in Hz.
func (dev *Device) Speed() uint32 { return dev.speed }

// Close releases the FTDI device. Closing an already closed Device is a
// no-op; any other operation on it fails with ErrClosed.
func (dev *Device) Close() error {
	if dev.ft == nil {
		return nil
	}
	ft := dev.ft
	dev.ft = nil
	return ft.Close()
}
