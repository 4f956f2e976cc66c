// Copyright 2023 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package spidev provides register-level access to SPI peripherals through
// the Linux spidev character-device interface.
//
// A Device is opened from a (bus, chip-select) pair and fully configured
// before it is returned: clock mode, clock speed and word size are each
// written to the driver and read back.
// Register operations (ReadReg, ReadRegs, WriteReg, WriteRegs) are built on
// a single full-duplex exchange primitive, Xfer, using the usual peripheral
// addressing convention: bit 7 of the first transmitted byte flags a read,
// bit 6 a multi-byte burst, bits 0-5 carry the register number.
//
// A Device is not safe for concurrent use: the physical bus carries one
// transfer at a time and callers must serialize access themselves.
package spidev // import "github.com/go-daq/spidev"

import (
	"fmt"
	"runtime/debug"
)

// Version returns the version of spidev and its checksum.
// The returned values are only valid in binaries built with module support.
func Version() (version, sum string) {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	return versionOf(b)
}

func versionOf(b *debug.BuildInfo) (version, sum string) {
	if b == nil {
		return "", ""
	}

	const root = "github.com/go-daq/spidev"
	for _, m := range b.Deps {
		if m.Path != root {
			continue
		}
		if m.Replace != nil {
			switch {
			case m.Replace.Version != "" && m.Replace.Path != "":
				return fmt.Sprintf("%s %s", m.Replace.Path, m.Replace.Version), m.Replace.Sum
			case m.Replace.Version != "":
				return m.Replace.Version, m.Replace.Sum
			case m.Replace.Path != "":
				return m.Replace.Path, m.Replace.Sum
			default:
				return m.Version + "*", ""
			}
		}
		return m.Version, m.Sum
	}
	return "", ""
}
