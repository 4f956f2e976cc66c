// Copyright 2023 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ftdispi

import (
	"fmt"

	"github.com/go-daq/spidev"
)

// ReadReg reads the value of register reg, using the same addressing
// convention as spidev: bit 7 flags the read, the value comes back in the
// second received byte.
func (dev *Device) ReadReg(reg uint8) (uint8, error) {
	var (
		tx = [2]byte{reg | spidev.FlagRead, 0x00}
		rx [2]byte
	)
	err := dev.Xfer(tx[:], rx[:])
	if err != nil {
		return 0, fmt.Errorf("ftdispi: could not read register 0x%02x: %w", reg, err)
	}
	return rx[1], nil
}

// ReadRegs reads n consecutive registers starting at reg in one burst
// exchange. The returned slice is freshly allocated and exactly n bytes
// long.
func (dev *Device) ReadRegs(reg uint8, n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("ftdispi: invalid read length %d", n)
	}

	tx := make([]byte, n+1)
	rx := make([]byte, n+1)
	tx[0] = reg | spidev.FlagRead | spidev.FlagBurst

	err := dev.Xfer(tx, rx)
	if err != nil {
		return nil, fmt.Errorf("ftdispi: could not read %d registers from 0x%02x: %w", n, reg, err)
	}

	data := make([]byte, n)
	copy(data, rx[1:])
	return data, nil
}

// WriteReg writes v to register reg.
func (dev *Device) WriteReg(reg, v uint8) error {
	var (
		tx = [2]byte{reg, v}
		rx [2]byte
	)
	err := dev.Xfer(tx[:], rx[:])
	if err != nil {
		return fmt.Errorf("ftdispi: could not write register 0x%02x: %w", reg, err)
	}
	return nil
}

// WriteRegs clocks out data verbatim, with the address or command byte
// supplied by the caller as data[0].
func (dev *Device) WriteRegs(data []byte) error {
	rx := make([]byte, len(data))
	err := dev.Xfer(data, rx)
	if err != nil {
		return fmt.Errorf("ftdispi: could not write %d bytes: %w", len(data), err)
	}
	return nil
}
