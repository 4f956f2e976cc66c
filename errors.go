// Copyright 2023 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spidev

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on a closed Device.
var ErrClosed = errors.New("spidev: device is closed")

// OpenError reports that a device node could not be opened.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("spidev: could not open %q: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// ConfigError reports that a configuration parameter could not be applied
// at Open time. Param is one of "mode", "speed" or "bits-per-word"; Op is
// "set" or "get", depending on which half of the set-then-confirm sequence
// failed.
type ConfigError struct {
	Param string
	Op    string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("spidev: could not %s %s: %v", e.Op, e.Param, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// XferError reports that the underlying full-duplex exchange failed.
type XferError struct {
	Err error
}

func (e *XferError) Error() string {
	return fmt.Sprintf("spidev: could not transfer: %v", e.Err)
}

func (e *XferError) Unwrap() error { return e.Err }
