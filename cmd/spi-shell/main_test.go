// Copyright 2023 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/go-daq/spidev/regdb"
)

type fakeConn struct {
	regs [64]uint8
}

func (c *fakeConn) ReadReg(reg uint8) (uint8, error) {
	return c.regs[reg], nil
}

func (c *fakeConn) ReadRegs(reg uint8, n int) ([]byte, error) {
	data := make([]byte, n)
	for i := range data {
		data[i] = c.regs[(int(reg)+i)%len(c.regs)]
	}
	return data, nil
}

func (c *fakeConn) WriteReg(reg, v uint8) error {
	c.regs[reg] = v
	return nil
}

type fakeDB struct {
	presets map[string][]regdb.Register
}

func (db *fakeDB) Registers(ctx context.Context, preset string) ([]regdb.Register, error) {
	regs, ok := db.presets[preset]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q", preset)
	}
	return regs, nil
}

func TestInterpret(t *testing.T) {
	for _, tc := range []struct {
		lines []string
		want  string
	}{
		{
			lines: []string{"set 0x20 0x6a", "get 0x20"},
			want:  "0x20: 0x6a\n",
		},
		{
			lines: []string{"set 0x10 1", "set 0x11 2", "set 0x12 3", "dump 0x10 3"},
			want:  "0x10: 0x01 0x02 0x03\n",
		},
		{
			lines: []string{"load imu", "get 0x2a"},
			want:  "loaded preset \"imu\" (2 registers)\n0x2a: 0xff\n",
		},
		{
			lines: []string{"get"},
			want:  "", // usage error, no output
		},
		{
			lines: []string{"get 0x40"},
			want:  "", // out of range
		},
		{
			lines: []string{"frobnicate"},
			want:  "", // unknown command
		},
	} {
		t.Run(strings.Join(tc.lines, ";"), func(t *testing.T) {
			out := new(bytes.Buffer)
			sh := &shell{
				dev: &fakeConn{},
				db: &fakeDB{presets: map[string][]regdb.Register{
					"imu": {
						{Reg: 0x29, Value: 0x01},
						{Reg: 0x2a, Value: 0xff},
					},
				}},
				out: out,
			}

			var lastErr error
			for _, line := range tc.lines {
				quit, err := sh.interpret(line)
				if quit {
					t.Fatalf("line %q quit the shell", line)
				}
				lastErr = err
			}

			if tc.want == "" {
				if lastErr == nil {
					t.Fatalf("expected an error")
				}
				return
			}
			if lastErr != nil {
				t.Fatalf("could not interpret: %+v", lastErr)
			}
			if got := out.String(); got != tc.want {
				t.Fatalf("invalid output:\ngot = %q\nwant= %q", got, tc.want)
			}
		})
	}
}

func TestInterpretQuit(t *testing.T) {
	sh := &shell{dev: &fakeConn{}, out: new(bytes.Buffer)}
	quit, err := sh.interpret("quit")
	if err != nil {
		t.Fatalf("could not interpret quit: %+v", err)
	}
	if !quit {
		t.Fatalf("quit command did not quit")
	}
}
