// go-arq
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-arq.
//
// go-arq is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-arq is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-arq; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Command arqrecv accepts one transfer from arqsend and saves it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/pterm/pterm"

	arq "github.com/ZaparooProject/go-arq"
	"github.com/ZaparooProject/go-arq/internal/cli"
	"github.com/ZaparooProject/go-arq/store"
)

type config struct {
	link *cli.LinkFlags
	out  *string
	wait *time.Duration
}

func parseFlags() *config {
	cfg := &config{
		link: cli.RegisterLinkFlags(flag.CommandLine, "server_log.txt"),
		out:  flag.String("out", "", "Where to save the received file"),
		wait: flag.Duration("wait", 0, "Give up if no transfer completes within this time (0 = wait forever)"),
	}
	flag.Parse()
	cfg.link.Apply()
	return cfg
}

func newLink(cfg *config, progress *cli.Progress) (*arq.Link, func(), error) {
	transport, err := cfg.link.NewTransport()
	if err != nil {
		return nil, nil, err
	}

	opts := cfg.link.LinkOptions()
	opts = append(opts, arq.WithFragmentHook(progress.Hook))

	rec, err := cfg.link.OpenEventLog()
	if err != nil {
		return nil, nil, err
	}
	if rec != nil {
		opts = append(opts, arq.WithEventRecorder(rec))
	}

	link, err := arq.New(transport, opts...)
	if err != nil {
		if rec != nil {
			_ = rec.Close()
		}
		return nil, nil, err
	}
	cleanup := func() {
		_ = link.Close()
		if rec != nil {
			_ = rec.Close()
		}
	}
	return link, cleanup, nil
}

func run(ctx context.Context, cfg *config, dst store.Store) error {
	progress := cli.NewProgress("Receiving " + *cfg.out)
	link, cleanup, err := newLink(cfg, progress)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := cfg.link.OpenLink(ctx, link); err != nil {
		return err
	}

	spinner, _ := pterm.DefaultSpinner.Start("Waiting for handshake...")
	if err := link.AcceptHandshake(ctx); err != nil {
		spinner.Fail("Handshake failed")
		return err
	}
	spinner.Success("Link established")

	receiver, err := link.NewReceiver()
	if err != nil {
		return err
	}
	start := time.Now()
	data, err := receiver.Run(ctx)
	progress.Stop()
	printStats(receiver, time.Since(start))
	if err != nil {
		return fmt.Errorf("transfer failed: %w", err)
	}

	if err := dst.Save(data, *cfg.out); err != nil {
		return err
	}
	pterm.Success.Printfln("Received %d bytes into %s", len(data), *cfg.out)
	return nil
}

func printStats(r *arq.Receiver, elapsed time.Duration) {
	st := r.Stats()
	total, _ := r.TotalFragments()
	_ = pterm.DefaultTable.WithData([][]string{
		{"Bytes", fmt.Sprint(len(r.Bytes()))},
		{"Fragments", fmt.Sprintf("%d/%d", st.Accepted, total)},
		{"Out of sequence", fmt.Sprint(st.OutOfSequence)},
		{"Length errors", fmt.Sprint(st.LengthErrors)},
		{"Checksum errors", fmt.Sprint(st.ChecksumErrors)},
		{"Undecodable", fmt.Sprint(st.Undecodable)},
		{"Idle reads", fmt.Sprint(st.Idle)},
		{"Elapsed", elapsed.Round(time.Millisecond).String()},
	}).Render()
}

func main() {
	cfg := parseFlags()

	if *cfg.link.List {
		if err := cli.PrintPorts(); err != nil {
			cli.Fail("Failed to list ports", err)
			os.Exit(1)
		}
		return
	}
	if *cfg.out == "" {
		_, _ = fmt.Fprintln(os.Stderr, "usage: arqrecv -out <path> [-device <port> | -transport ws -listen <addr>]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if *cfg.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *cfg.wait)
		defer cancel()
	}

	if err := run(ctx, cfg, store.NewFileStore()); err != nil {
		cli.Fail("Receive failed", err)
		stop()
		os.Exit(1)
	}
}
