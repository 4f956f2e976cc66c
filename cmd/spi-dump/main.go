// Copyright 2023 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command spi-dump reads a range of registers from a peripheral and prints
// them as a hexadecimal table.
//
// By default the peripheral is addressed over SPI:
//
//	$> spi-dump -bus=0 -cs=0 -reg=0x20 -n=16
//
// Boards that wire the peripheral to an I2C bus instead can use the SMBus
// register protocol:
//
//	$> spi-dump -i2c -bus=1 -addr=0x68 -reg=0x20 -n=16
package main // import "github.com/go-daq/spidev/cmd/spi-dump"

import (
	"flag"
	"fmt"
	"log"

	"github.com/go-daq/smbus"

	"github.com/go-daq/spidev"
)

func main() {
	log.SetPrefix("spi-dump: ")
	log.SetFlags(0)

	var (
		bus   = flag.Int("bus", 0, "bus number")
		cs    = flag.Int("cs", 0, "chip-select number (SPI)")
		addr  = flag.Uint("addr", 0, "device address (I2C)")
		reg   = flag.Uint("reg", 0, "first register to read")
		n     = flag.Int("n", 1, "number of registers to read")
		speed = flag.Uint("speed", spidev.DefaultSpeed, "SPI clock speed (Hz)")
		mode  = flag.Uint("mode", 0, "SPI clock mode (0-3)")
		i2c   = flag.Bool("i2c", false, "address the peripheral over I2C/SMBus")
	)

	flag.Parse()

	if *reg > spidev.MaxReg {
		log.Fatalf("invalid register 0x%02x (max=0x%02x)", *reg, spidev.MaxReg)
	}

	var (
		data []byte
		err  error
	)
	switch {
	case *i2c:
		data, err = dumpI2C(*bus, uint8(*addr), uint8(*reg), *n)
	default:
		data, err = dumpSPI(*bus, *cs, uint8(*reg), *n,
			spidev.WithSpeed(uint32(*speed)),
			spidev.WithMode(spidev.Mode(*mode)),
		)
	}
	if err != nil {
		log.Fatalf("could not dump registers: %+v", err)
	}

	for i, v := range data {
		fmt.Printf("0x%02x: 0x%02x\n", int(*reg)+i, v)
	}
}

func dumpSPI(bus, cs int, reg uint8, n int, opts ...spidev.Option) ([]byte, error) {
	dev, err := spidev.Open(bus, cs, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not open SPI device: %w", err)
	}
	defer dev.Close()

	data, err := dev.ReadRegs(reg, n)
	if err != nil {
		return nil, fmt.Errorf("could not read registers: %w", err)
	}
	return data, nil
}

func dumpI2C(bus int, addr, reg uint8, n int) ([]byte, error) {
	conn, err := smbus.Open(bus, addr)
	if err != nil {
		return nil, fmt.Errorf("could not open I2C bus: %w", err)
	}
	defer conn.Close()

	data := make([]byte, n)
	for i := range data {
		v, err := conn.ReadReg(addr, reg+uint8(i))
		if err != nil {
			return nil, fmt.Errorf("could not read register 0x%02x: %w", reg+uint8(i), err)
		}
		data[i] = v
	}
	return data, nil
}
