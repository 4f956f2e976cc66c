// Copyright 2023 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spidev

import "unsafe"

// ioctl request numbers from <linux/spi/spidev.h>, encoded with the usual
// _IOR/_IOW scheme: dir(2b) | size(14b) | type(8b) | nr(8b).
const (
	iocMagic = 0x6b // 'k', the spidev ioctl type

	iocWrite = 1
	iocRead  = 2

	nrShift   = 0
	typeShift = 8
	sizeShift = 16
	dirShift  = 30
)

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<dirShift | size<<sizeShift | iocMagic<<typeShift | nr<<nrShift
}

var (
	iocWrMode        = ioc(iocWrite, 1, 1) // SPI_IOC_WR_MODE
	iocRdMode        = ioc(iocRead, 1, 1)  // SPI_IOC_RD_MODE
	iocWrBitsPerWord = ioc(iocWrite, 3, 1) // SPI_IOC_WR_BITS_PER_WORD
	iocRdBitsPerWord = ioc(iocRead, 3, 1)  // SPI_IOC_RD_BITS_PER_WORD
	iocWrMaxSpeedHz  = ioc(iocWrite, 4, 4) // SPI_IOC_WR_MAX_SPEED_HZ
	iocRdMaxSpeedHz  = ioc(iocRead, 4, 4)  // SPI_IOC_RD_MAX_SPEED_HZ

	iocMessage1 = ioc(iocWrite, 0, unsafe.Sizeof(xfer{})) // SPI_IOC_MESSAGE(1)
)
