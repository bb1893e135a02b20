package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"tip-ledger/internal/db"
	"tip-ledger/internal/repository"
	"tip-ledger/internal/snapshot"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
)

var _FlagExportOut = &cli.StringFlag{
	Name:     "out",
	Aliases:  []string{"o"},
	Usage:    "snapshot file to write",
	Required: true,
}

var ExportCommand = &cli.Command{
	Name:  "export",
	Usage: "writes the full ledger state to a CBOR snapshot",
	Flags: []cli.Flag{
		_FlagExportOut,
	},
	Action: func(ctx *cli.Context) error {
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		gdb, err := db.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		if sqlDB, err := gdb.DB(); err == nil {
			defer sqlDB.Close()
		}

		state, err := repository.NewLedgerRepository(gdb).Load(ctx.Context)
		if err != nil {
			return fmt.Errorf("load ledger state: %w", err)
		}
		snap := snapshot.Build(state, time.Now())

		path := ctx.String("out")
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		w := bufio.NewWriter(f)
		if err := snapshot.Encode(w, snap); err != nil {
			f.Close()
			return err
		}
		if err := w.Flush(); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}

		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		fmt.Printf("✅ Wrote %s (%s)\n", path, humanize.Bytes(uint64(info.Size())))
		fmt.Print(snapshot.Summary(snap))
		return nil
	},
}
