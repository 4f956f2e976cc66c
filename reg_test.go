// Copyright 2023 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spidev

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestReadReg(t *testing.T) {
	fake := newFakeDev()
	withFakeDev(t, fake)

	dev, err := Open(0, 0)
	if err != nil {
		t.Fatalf("could not open device: %+v", err)
	}
	defer dev.Close()

	for reg := uint8(0); reg <= MaxReg; reg++ {
		fake.regs[reg] = ^reg

		v, err := dev.ReadReg(reg)
		if err != nil {
			t.Fatalf("could not read register 0x%02x: %+v", reg, err)
		}
		if got, want := v, ^reg; got != want {
			t.Fatalf("reg 0x%02x: invalid value: got=0x%02x, want=0x%02x", reg, got, want)
		}

		frame := fake.frames[len(fake.frames)-1]
		want := []byte{reg | FlagRead, 0x00}
		if !bytes.Equal(frame.tx, want) {
			t.Fatalf("reg 0x%02x: invalid frame: got=%v, want=%v", reg, frame.tx, want)
		}
	}
}

func TestReadRegs(t *testing.T) {
	fake := newFakeDev()
	withFakeDev(t, fake)

	dev, err := Open(0, 0)
	if err != nil {
		t.Fatalf("could not open device: %+v", err)
	}
	defer dev.Close()

	for i := range fake.regs {
		fake.regs[i] = uint8(0xc3 ^ i)
	}

	for _, n := range []int{1, 2, 7, 16, 32} {
		for _, reg := range []uint8{0x00, 0x15, MaxReg} {
			data, err := dev.ReadRegs(reg, n)
			if err != nil {
				t.Fatalf("could not read %d registers from 0x%02x: %+v", n, reg, err)
			}
			if got, want := len(data), n; got != want {
				t.Fatalf("invalid buffer length: got=%d, want=%d", got, want)
			}
			for i := range data {
				if got, want := data[i], fake.regs[(int(reg)+i)%len(fake.regs)]; got != want {
					t.Fatalf("reg 0x%02x+%d: invalid value: got=0x%02x, want=0x%02x",
						reg, i, got, want,
					)
				}
			}

			frame := fake.frames[len(fake.frames)-1]
			if got, want := len(frame.tx), n+1; got != want {
				t.Fatalf("invalid frame length: got=%d, want=%d", got, want)
			}
			if got, want := frame.tx[0], reg|FlagRead|FlagBurst; got != want {
				t.Fatalf("invalid address byte: got=0x%02x, want=0x%02x", got, want)
			}
			for i, v := range frame.tx[1:] {
				if v != 0 {
					t.Fatalf("placeholder byte %d is not zero: 0x%02x", i+1, v)
				}
			}
		}
	}
}

func TestReadRegsEmpty(t *testing.T) {
	fake := newFakeDev()
	withFakeDev(t, fake)

	dev, err := Open(0, 0)
	if err != nil {
		t.Fatalf("could not open device: %+v", err)
	}
	defer dev.Close()

	data, err := dev.ReadRegs(0x2a, 0)
	if err != nil {
		t.Fatalf("could not read 0 registers: %+v", err)
	}
	if len(data) != 0 {
		t.Fatalf("invalid buffer length: got=%d, want=0", len(data))
	}

	// the address byte is still clocked out.
	frame := fake.frames[len(fake.frames)-1]
	want := []byte{0x2a | FlagRead | FlagBurst}
	if !bytes.Equal(frame.tx, want) {
		t.Fatalf("invalid frame: got=%v, want=%v", frame.tx, want)
	}
}

func TestReadRegsInvalidLength(t *testing.T) {
	fake := newFakeDev()
	withFakeDev(t, fake)

	dev, err := Open(0, 0)
	if err != nil {
		t.Fatalf("could not open device: %+v", err)
	}
	defer dev.Close()

	_, err = dev.ReadRegs(0x00, -1)
	if err == nil {
		t.Fatalf("expected an error for a negative length")
	}
	if got, want := len(fake.frames), 0; got != want {
		t.Fatalf("invalid read reached the device: frames=%d", got)
	}
}

func TestWriteReg(t *testing.T) {
	fake := newFakeDev()
	withFakeDev(t, fake)

	dev, err := Open(0, 0)
	if err != nil {
		t.Fatalf("could not open device: %+v", err)
	}
	defer dev.Close()

	err = dev.WriteReg(0x1f, 0xab)
	if err != nil {
		t.Fatalf("could not write register: %+v", err)
	}

	frame := fake.frames[len(fake.frames)-1]
	want := []byte{0x1f, 0xab} // no read nor burst flag
	if !bytes.Equal(frame.tx, want) {
		t.Fatalf("invalid frame: got=%v, want=%v", frame.tx, want)
	}
}

func TestWriteRegs(t *testing.T) {
	fake := newFakeDev()
	withFakeDev(t, fake)

	dev, err := Open(0, 0)
	if err != nil {
		t.Fatalf("could not open device: %+v", err)
	}
	defer dev.Close()

	data := []byte{0x12, 0xde, 0xad, 0xbe, 0xef}
	err = dev.WriteRegs(data)
	if err != nil {
		t.Fatalf("could not write registers: %+v", err)
	}

	frame := fake.frames[len(fake.frames)-1]
	if !bytes.Equal(frame.tx, data) {
		t.Fatalf("invalid frame: got=%v, want=%v", frame.tx, data)
	}
}

func TestRegRoundTrip(t *testing.T) {
	fake := newFakeDev()
	withFakeDev(t, fake)

	dev, err := Open(0, 0)
	if err != nil {
		t.Fatalf("could not open device: %+v", err)
	}
	defer dev.Close()

	for _, tc := range []struct {
		reg uint8
		v   uint8
	}{
		{0x00, 0x00},
		{0x00, 0xff},
		{0x0a, 0x42},
		{0x2b, 0x80},
		{MaxReg, 0x7f},
	} {
		err := dev.WriteReg(tc.reg, tc.v)
		if err != nil {
			t.Fatalf("could not write 0x%02x to 0x%02x: %+v", tc.v, tc.reg, err)
		}
		v, err := dev.ReadReg(tc.reg)
		if err != nil {
			t.Fatalf("could not read back 0x%02x: %+v", tc.reg, err)
		}
		if got, want := v, tc.v; got != want {
			t.Fatalf("reg 0x%02x: round-trip mismatch: got=0x%02x, want=0x%02x",
				tc.reg, got, want,
			)
		}
	}
}

func TestRegXferFailed(t *testing.T) {
	fake := newFakeDev()
	fake.fails[iocMessage1] = io.ErrUnexpectedEOF
	withFakeDev(t, fake)

	dev, err := Open(0, 0)
	if err != nil {
		t.Fatalf("could not open device: %+v", err)
	}
	defer dev.Close()

	// every helper surfaces the transfer failure.
	if _, err := dev.ReadReg(0x01); err == nil {
		t.Fatalf("ReadReg: expected a transfer error")
	}
	if _, err := dev.ReadRegs(0x01, 4); err == nil {
		t.Fatalf("ReadRegs: expected a transfer error")
	}
	if err := dev.WriteReg(0x01, 0x02); err == nil {
		t.Fatalf("WriteReg: expected a transfer error")
	}
	if err := dev.WriteRegs([]byte{0x01, 0x02}); err == nil {
		t.Fatalf("WriteRegs: expected a transfer error")
	}

	var xerr *XferError
	_, err = dev.ReadReg(0x01)
	if !errors.As(err, &xerr) {
		t.Fatalf("error does not wrap *XferError: %+v", err)
	}
}
