// Copyright 2023 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spidev

import (
	"fmt"
	"unsafe"
)

// xfer mirrors the kernel's struct spi_ioc_transfer (32 bytes).
type xfer struct {
	txBuf       uint64
	rxBuf       uint64
	len         uint32
	speedHz     uint32
	delayUsecs  uint16
	bitsPerWord uint8
	csChange    uint8
	txNBits     uint8
	rxNBits     uint8
	pad         uint16
}

// Xfer performs one full-duplex exchange: the bytes of tx are clocked out
// while the same number of bytes are clocked into rx. Both slices must have
// the same length. The exchange runs at the speed and word size the Device
// was configured with.
//
// Xfer blocks until the underlying driver completes or fails the exchange;
// there is no cancellation and no retry.
func (dev *Device) Xfer(tx, rx []byte) error {
	if dev.dev == nil {
		return ErrClosed
	}
	if len(tx) != len(rx) {
		return fmt.Errorf("spidev: tx/rx length mismatch (tx=%d, rx=%d)", len(tx), len(rx))
	}
	if len(tx) == 0 {
		return nil
	}

	msg := xfer{
		txBuf:       uint64(uintptr(unsafe.Pointer(&tx[0]))),
		rxBuf:       uint64(uintptr(unsafe.Pointer(&rx[0]))),
		len:         uint32(len(tx)),
		speedHz:     dev.speed,
		bitsPerWord: dev.bits,
	}

	err := dev.dev.Ioctl(iocMessage1, unsafe.Pointer(&msg))
	if err != nil {
		return &XferError{Err: err}
	}
	return nil
}
