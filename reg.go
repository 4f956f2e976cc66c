// Copyright 2023 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spidev

import "fmt"

// Register addresses occupy bits 0-5 of the first transmitted byte; the two
// top bits carry the read and burst flags.
const (
	FlagRead  = 0x80 // bit 7: read access
	FlagBurst = 0x40 // bit 6: multi-byte access

	MaxReg = 0x3f // highest addressable register
)

// ReadReg reads the value of register reg.
//
// The exchange is two bytes long: reg with the read flag set, then a
// placeholder clocked out while the peripheral echoes the register value.
func (dev *Device) ReadReg(reg uint8) (uint8, error) {
	var (
		tx = [2]byte{reg | FlagRead, 0x00}
		rx [2]byte
	)
	err := dev.Xfer(tx[:], rx[:])
	if err != nil {
		return 0, fmt.Errorf("spidev: could not read register 0x%02x: %w", reg, err)
	}
	return rx[1], nil
}

// ReadRegs reads n consecutive registers starting at reg, in one burst
// exchange of n+1 bytes. The returned slice is freshly allocated, owned by
// the caller and exactly n bytes long; the echoed address byte is skipped.
// n == 0 performs a 1-byte exchange and returns an empty slice.
func (dev *Device) ReadRegs(reg uint8, n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("spidev: invalid read length %d", n)
	}

	tx := make([]byte, n+1)
	rx := make([]byte, n+1)
	tx[0] = reg | FlagRead | FlagBurst

	err := dev.Xfer(tx, rx)
	if err != nil {
		return nil, fmt.Errorf("spidev: could not read %d registers from 0x%02x: %w", n, reg, err)
	}

	data := make([]byte, n)
	copy(data, rx[1:])
	return data, nil
}

// WriteReg writes v to register reg. The received bytes are discarded.
func (dev *Device) WriteReg(reg, v uint8) error {
	var (
		tx = [2]byte{reg, v}
		rx [2]byte
	)
	err := dev.Xfer(tx[:], rx[:])
	if err != nil {
		return fmt.Errorf("spidev: could not write register 0x%02x: %w", reg, err)
	}
	return nil
}

// WriteRegs clocks out data verbatim: the caller supplies the leading
// address or command byte as data[0]. A receive buffer of the same length
// is allocated and discarded after the exchange.
func (dev *Device) WriteRegs(data []byte) error {
	rx := make([]byte, len(data))
	err := dev.Xfer(data, rx)
	if err != nil {
		return fmt.Errorf("spidev: could not write %d bytes: %w", len(data), err)
	}
	return nil
}
