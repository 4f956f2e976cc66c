// Copyright 2023 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spidev

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Mode is an SPI clock mode, a combination of clock polarity (CPOL, high
// order bit) and clock phase (CPHA, low order bit).
type Mode uint8

const (
	Mode0 Mode = 0x0 // CPOL=0, CPHA=0
	Mode1 Mode = 0x1 // CPOL=0, CPHA=1
	Mode2 Mode = 0x2 // CPOL=1, CPHA=0
	Mode3 Mode = 0x3 // CPOL=1, CPHA=1
)

// Defaults applied by Open when no Option overrides them.
const (
	DefaultSpeed       = 10000 // Hz
	DefaultBitsPerWord = 8
)

type config struct {
	mode  Mode
	speed uint32
	bits  uint8
}

func newConfig() config {
	return config{
		mode:  Mode0,
		speed: DefaultSpeed,
		bits:  DefaultBitsPerWord,
	}
}

// Option configures an SPI device at Open time.
type Option func(cfg *config)

// WithMode configures the SPI clock mode of a device.
func WithMode(mode Mode) Option {
	return func(cfg *config) {
		cfg.mode = mode
	}
}

// WithSpeed configures the maximum clock speed, in Hz, of a device.
func WithSpeed(hz uint32) Option {
	return func(cfg *config) {
		cfg.speed = hz
	}
}

// WithBitsPerWord configures the word size, in bits, of a device.
func WithBitsPerWord(n uint8) Option {
	return func(cfg *config) {
		cfg.bits = n
	}
}

// sysdev abstracts the underlying character device so tests can exercise
// the configuration and transfer paths without hardware.
type sysdev interface {
	Ioctl(req uintptr, arg unsafe.Pointer) error
	Close() error
}

var sysOpen = sysOpenImpl

func sysOpenImpl(path string) (sysdev, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &osdev{f: f}, nil
}

type osdev struct {
	f *os.File
}

func (dev *osdev) Ioctl(req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, dev.f.Fd(), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func (dev *osdev) Close() error { return dev.f.Close() }

// Device is an open connection to one SPI device node.
//
// The mode, speed and word size carried by a Device are the values read
// back from the driver at Open time; every transfer uses them.
type Device struct {
	dev  sysdev
	path string

	mode  Mode
	speed uint32 // Hz
	bits  uint8  // bits per word
}

// Open opens the SPI device node /dev/spidev<bus>.<cs> and applies the
// provided options (defaults: Mode0, 10 kHz, 8-bit words).
//
// Each of the three parameters is set and then read back from the driver;
// the first step that fails releases the device node and makes Open return
// a *ConfigError naming the parameter. No partially configured Device is
// ever returned and no step is retried.
func Open(bus, cs int, opts ...Option) (*Device, error) {
	path := fmt.Sprintf("/dev/spidev%d.%d", bus, cs)
	sys, err := sysOpen(path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}

	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	dev := &Device{dev: sys, path: path}
	err = dev.configure(cfg)
	if err != nil {
		_ = sys.Close()
		return nil, err
	}

	return dev, nil
}

func (dev *Device) configure(cfg config) error {
	var (
		mode  = uint8(cfg.mode)
		speed = cfg.speed
		bits  = cfg.bits
	)

	err := dev.setThenGet("mode", iocWrMode, iocRdMode, unsafe.Pointer(&mode))
	if err != nil {
		return err
	}
	dev.mode = Mode(mode)

	err = dev.setThenGet("speed", iocWrMaxSpeedHz, iocRdMaxSpeedHz, unsafe.Pointer(&speed))
	if err != nil {
		return err
	}
	dev.speed = speed

	err = dev.setThenGet("bits-per-word", iocWrBitsPerWord, iocRdBitsPerWord, unsafe.Pointer(&bits))
	if err != nil {
		return err
	}
	dev.bits = bits

	return nil
}

// setThenGet writes a configuration parameter to the driver and reads it
// back through arg, so the Device ends up holding the effective value.
func (dev *Device) setThenGet(param string, wr, rd uintptr, arg unsafe.Pointer) error {
	err := dev.dev.Ioctl(wr, arg)
	if err != nil {
		return &ConfigError{Param: param, Op: "set", Err: err}
	}
	err = dev.dev.Ioctl(rd, arg)
	if err != nil {
		return &ConfigError{Param: param, Op: "get", Err: err}
	}
	return nil
}

// Path returns the device node this Device was opened from.
func (dev *Device) Path() string { return dev.path }

// Mode returns the clock mode read back from the driver.
func (dev *Device) Mode() Mode { return dev.mode }

// Speed returns the maximum clock speed, in Hz, read back from the driver.
func (dev *Device) Speed() uint32 { return dev.speed }

// BitsPerWord returns the word size, in bits, read back from the driver.
func (dev *Device) BitsPerWord() uint8 { return dev.bits }

// Close releases the underlying device node. Closing an already closed
// Device is a no-op; any other operation on it fails with ErrClosed.
func (dev *Device) Close() error {
	if dev.dev == nil {
		return nil
	}
	sys := dev.dev
	dev.dev = nil
	return sys.Close()
}
