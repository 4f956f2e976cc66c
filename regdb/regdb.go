// Copyright 2023 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package regdb retrieves named register presets from the configuration
// database. A preset is an ordered list of (register, value) pairs that is
// replayed onto a peripheral with WriteReg.
package regdb // import "github.com/go-daq/spidev/regdb"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

const (
	host = "localhost"
)

var (
	usr = "username"
	pwd = "s3cr3t"

	drvName = "mysql"
)

// DB exposes convenience methods to retrieve register presets from the
// configuration database.
type DB struct {
	db   *sql.DB
	name string
}

// Open opens a connection to the configuration database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("regdb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		return nil, fmt.Errorf("regdb: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("regdb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// Register is one entry of a preset: the value to write to a register.
type Register struct {
	Reg   uint8
	Value uint8
}

// LastPreset returns the name of the most recently recorded preset.
func (db *DB) LastPreset(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	name := ""
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT name FROM presets ORDER BY created DESC LIMIT 1",
	)
	if err != nil {
		return name, fmt.Errorf("regdb: could not query last preset: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&name)
		if err != nil {
			return name, fmt.Errorf("regdb: could not get preset name: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return name, fmt.Errorf("regdb: could not scan db for last preset: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return name, fmt.Errorf("regdb: context error while retrieving last preset: %w", err)
	}

	return name, nil
}

// Registers returns the ordered register writes of the named preset.
func (db *DB) Registers(ctx context.Context, preset string) ([]Register, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var regs []Register
	rows, err := db.db.QueryContext(
		ctx,
		`
SELECT registers.reg, registers.value FROM registers
JOIN presets ON presets.identifier=registers.preset
WHERE presets.name=?
ORDER BY registers.pos
`,
		preset,
	)
	if err != nil {
		return regs, fmt.Errorf("regdb: could not run preset query: %w", err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		var reg Register
		err = rows.Scan(&reg.Reg, &reg.Value)
		if err != nil {
			return regs, fmt.Errorf("regdb: could not scan row %d of preset %q: %w", i, preset, err)
		}
		i++

		regs = append(regs, reg)
	}

	if err := rows.Err(); err != nil {
		return regs, fmt.Errorf("regdb: could not scan db for preset %q: %w", preset, err)
	}

	if err := ctx.Err(); err != nil {
		return regs, fmt.Errorf("regdb: context error while retrieving preset %q: %w", preset, err)
	}

	return regs, nil
}
