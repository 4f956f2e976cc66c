// Copyright 2023 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command spi-daq starts a TDAQ server exposing the SPI register devices
// of this node.
package main // import "github.com/go-daq/spidev/cmd/spi-daq"

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"

	"github.com/go-daq/spidev"
	"github.com/go-daq/spidev/daq"
)

func main() {
	var (
		reg   = flag.Uint("reg", 0x00, "first register polled during a run")
		n     = flag.Int("n", 1, "number of registers per sample")
		speed = flag.Uint("speed", spidev.DefaultSpeed, "SPI clock speed (Hz)")
		mode  = flag.Uint("mode", 0, "SPI clock mode (0-3)")
	)

	cmd := flags.New()
	if len(cmd.Args) != 1 {
		log.Fatalf("usage: spi-daq [options] <name>")
	}

	srv := daq.New(cmd.Args[0], uint8(*reg), *n,
		spidev.WithSpeed(uint32(*speed)),
		spidev.WithMode(spidev.Mode(*mode)),
	)

	run := tdaq.New(cmd, os.Stdout)
	run.CmdHandle("/config", srv.OnConfig)
	run.CmdHandle("/init", srv.OnInit)
	run.CmdHandle("/reset", srv.OnReset)
	run.CmdHandle("/start", srv.OnStart)
	run.CmdHandle("/stop", srv.OnStop)
	run.CmdHandle("/quit", srv.OnQuit)

	run.OutputHandle("/regs", srv.Regs)

	run.RunHandle(srv.Run)

	err := run.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}
