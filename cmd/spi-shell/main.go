// Copyright 2023 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command spi-shell provides an interactive shell to inspect and modify
// the registers of an SPI peripheral.
//
//	$> spi-shell -bus=0 -cs=0
//	spi> get 0x20
//	0x20: 0x6a
//	spi> set 0x20 0x80
//	spi> dump 0x20 4
//	0x20: 0x80 0x00 0x1c 0x07
//	spi> load imu-2023a
//	spi> quit
//
// The load command replays a named register preset from the configuration
// database (see package regdb).
package main // import "github.com/go-daq/spidev/cmd/spi-shell"

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/go-daq/spidev"
	"github.com/go-daq/spidev/regdb"
)

func main() {
	log.SetPrefix("spi-shell: ")
	log.SetFlags(0)

	var (
		bus    = flag.Int("bus", 0, "bus number")
		cs     = flag.Int("cs", 0, "chip-select number")
		speed  = flag.Uint("speed", spidev.DefaultSpeed, "SPI clock speed (Hz)")
		mode   = flag.Uint("mode", 0, "SPI clock mode (0-3)")
		dbname = flag.String("db", "", "configuration database with register presets")
	)

	flag.Parse()

	dev, err := spidev.Open(*bus, *cs,
		spidev.WithSpeed(uint32(*speed)),
		spidev.WithMode(spidev.Mode(*mode)),
	)
	if err != nil {
		log.Fatalf("could not open device: %+v", err)
	}
	defer dev.Close()

	sh := &shell{dev: dev, out: log.Writer()}
	if *dbname != "" {
		db, err := regdb.Open(*dbname)
		if err != nil {
			log.Fatalf("could not open %q db: %+v", *dbname, err)
		}
		defer db.Close()
		sh.db = db
	}

	err = sh.loop()
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

// conn is the register-level connection the shell drives.
type conn interface {
	ReadReg(reg uint8) (uint8, error)
	ReadRegs(reg uint8, n int) ([]byte, error)
	WriteReg(reg, v uint8) error
}

// presetdb is the subset of regdb.DB the shell uses.
type presetdb interface {
	Registers(ctx context.Context, preset string) ([]regdb.Register, error)
}

type shell struct {
	dev conn
	db  presetdb
	out io.Writer
}

func (sh *shell) loop() error {
	term := liner.NewLiner()
	defer term.Close()

	term.SetCtrlCAborts(true)

	for {
		line, err := term.Prompt("spi> ")
		switch err {
		case nil:
			// ok
		case io.EOF, liner.ErrPromptAborted:
			fmt.Fprintf(sh.out, "\n")
			return nil
		default:
			return fmt.Errorf("could not read line: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		term.AppendHistory(line)

		quit, err := sh.interpret(line)
		if err != nil {
			fmt.Fprintf(sh.out, "error: %+v\n", err)
			continue
		}
		if quit {
			return nil
		}
	}
}

func (sh *shell) interpret(line string) (quit bool, err error) {
	toks := strings.Fields(line)
	switch toks[0] {
	case "get":
		err = sh.cmdGet(toks[1:])
	case "set":
		err = sh.cmdSet(toks[1:])
	case "dump":
		err = sh.cmdDump(toks[1:])
	case "load":
		err = sh.cmdLoad(toks[1:])
	case "help":
		fmt.Fprintf(sh.out, `commands:
  get  <reg>        read one register
  set  <reg> <val>  write one register
  dump <reg> <n>    read n consecutive registers
  load <preset>     replay a register preset from the db
  quit              exit the shell
`)
	case "quit", "exit":
		quit = true
	default:
		err = fmt.Errorf("unknown command %q", toks[0])
	}
	return quit, err
}

func (sh *shell) cmdGet(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: get <reg>")
	}
	reg, err := parseReg(args[0])
	if err != nil {
		return err
	}
	v, err := sh.dev.ReadReg(reg)
	if err != nil {
		return fmt.Errorf("could not read register 0x%02x: %w", reg, err)
	}
	fmt.Fprintf(sh.out, "0x%02x: 0x%02x\n", reg, v)
	return nil
}

func (sh *shell) cmdSet(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: set <reg> <val>")
	}
	reg, err := parseReg(args[0])
	if err != nil {
		return err
	}
	v, err := strconv.ParseUint(args[1], 0, 8)
	if err != nil {
		return fmt.Errorf("could not parse value %q: %w", args[1], err)
	}
	err = sh.dev.WriteReg(reg, uint8(v))
	if err != nil {
		return fmt.Errorf("could not write register 0x%02x: %w", reg, err)
	}
	return nil
}

func (sh *shell) cmdDump(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: dump <reg> <n>")
	}
	reg, err := parseReg(args[0])
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n < 0 {
		return fmt.Errorf("could not parse length %q", args[1])
	}
	data, err := sh.dev.ReadRegs(reg, n)
	if err != nil {
		return fmt.Errorf("could not read %d registers from 0x%02x: %w", n, reg, err)
	}
	fmt.Fprintf(sh.out, "0x%02x:", reg)
	for _, v := range data {
		fmt.Fprintf(sh.out, " 0x%02x", v)
	}
	fmt.Fprintf(sh.out, "\n")
	return nil
}

func (sh *shell) cmdLoad(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: load <preset>")
	}
	if sh.db == nil {
		return fmt.Errorf("no configuration database (use -db)")
	}
	regs, err := sh.db.Registers(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("could not retrieve preset %q: %w", args[0], err)
	}
	for _, reg := range regs {
		err = sh.dev.WriteReg(reg.Reg, reg.Value)
		if err != nil {
			return fmt.Errorf("could not apply preset %q at register 0x%02x: %w",
				args[0], reg.Reg, err,
			)
		}
	}
	fmt.Fprintf(sh.out, "loaded preset %q (%d registers)\n", args[0], len(regs))
	return nil
}

func parseReg(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("could not parse register %q: %w", s, err)
	}
	if v > spidev.MaxReg {
		return 0, fmt.Errorf("invalid register 0x%02x (max=0x%02x)", v, spidev.MaxReg)
	}
	return uint8(v), nil
}
