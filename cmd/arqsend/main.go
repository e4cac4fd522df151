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

// Command arqsend transfers a file to an arqrecv peer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/pterm/pterm"

	arq "github.com/ZaparooProject/go-arq"
	"github.com/ZaparooProject/go-arq/internal/cli"
	"github.com/ZaparooProject/go-arq/internal/retry"
)

// errDeclined is returned when the operator chooses not to retry.
var errDeclined = errors.New("retry declined")

type config struct {
	link             *cli.LinkFlags
	file             *string
	backoff          *time.Duration
	fragmentSize     *int
	handshakeRetries *int
	faultSkip        *int
	faultCRC         *int
	faultLength      *int
	faultInterrupt   *int
	interruptPause   *time.Duration
}

func parseFlags() *config {
	cfg := &config{
		link: cli.RegisterLinkFlags(flag.CommandLine, "client_log.txt"),
		file: flag.String("file", "", "File to send"),
		backoff: flag.Duration("backoff", 0,
			"Delay before each retransmission (default: retransmit at once)"),
		fragmentSize:     flag.Int("fragment-size", 50, "Payload bytes per fragment (1-50)"),
		handshakeRetries: flag.Int("handshake-retries", 3, "Handshake attempts after the first one"),
		faultSkip:        flag.Int("fault-skip", 0, "Send fragment N+1 in place of the first transmission of N"),
		faultCRC:         flag.Int("fault-crc", 0, "Corrupt the payload of the first transmission of fragment N"),
		faultLength:      flag.Int("fault-length", 0, "Declare a wrong length on the first transmission of fragment N"),
		faultInterrupt:   flag.Int("fault-interrupt", 0, "Close and reopen the line before fragment N"),
		interruptPause:   flag.Duration("interrupt-pause", 5*time.Second, "How long the line stays closed for -fault-interrupt"),
	}
	flag.Parse()
	cfg.link.Apply()
	return cfg
}

// faults builds the injector selected by the -fault-* flags.
func faults(cfg *config) arq.FaultInjector {
	var chain []arq.FaultInjector
	if n := *cfg.faultSkip; n > 0 {
		chain = append(chain, arq.SendOutOfOrder(uint16(n)))
	}
	if n := *cfg.faultCRC; n > 0 {
		chain = append(chain, arq.CorruptPayload(uint16(n)))
	}
	if n := *cfg.faultLength; n > 0 {
		chain = append(chain, arq.FakeLength(uint16(n), uint16(*cfg.fragmentSize+1)))
	}
	if n := *cfg.faultInterrupt; n > 0 {
		chain = append(chain, arq.InterruptLine(uint16(n), *cfg.interruptPause))
	}
	if len(chain) == 0 {
		return nil
	}
	pterm.Warning.Println("Fault injection enabled")
	return arq.ChainFaults(chain...)
}

func newLink(cfg *config, progress *cli.Progress) (*arq.Link, func(), error) {
	transport, err := cfg.link.NewTransport()
	if err != nil {
		return nil, nil, err
	}

	opts := cfg.link.LinkOptions()
	opts = append(opts,
		arq.WithMaxFragmentSize(*cfg.fragmentSize),
		arq.WithRetryBackoff(*cfg.backoff, 1),
		arq.WithFragmentHook(progress.Hook),
		arq.WithFaultInjector(faults(cfg)),
	)

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

// handshake retries the handshake, asking the operator before each new
// attempt when interactive.
func handshake(ctx context.Context, cfg *config, link *arq.Link) error {
	_, err := retry.WithRetry(ctx, retry.Config{
		Description: "handshake",
		MaxRetries:  *cfg.handshakeRetries,
		RetryDelay:  500 * time.Millisecond,
		OnRetry: func(attempt int, lastErr error) error {
			pterm.Warning.Printfln("Handshake failed: %v", lastErr)
			if !*cfg.link.Interactive {
				pterm.Info.Printfln("Retrying (attempt %d)", attempt)
				return nil
			}
			ok, err := pterm.DefaultInteractiveConfirm.
				WithDefaultValue(true).
				Show(fmt.Sprintf("Retry the handshake (attempt %d)?", attempt))
			if err != nil {
				return fmt.Errorf("prompt: %w", err)
			}
			if !ok {
				return fmt.Errorf("%w: %w", errDeclined, lastErr)
			}
			return nil
		},
	}, func() (struct{}, bool, error) {
		err := link.Handshake(ctx)
		var hsErr *arq.HandshakeError
		if errors.As(err, &hsErr) {
			return struct{}{}, true, err
		}
		return struct{}{}, false, err
	})
	return err
}

func run(ctx context.Context, cfg *config) error {
	data, err := os.ReadFile(*cfg.file)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	progress := cli.NewProgress("Sending " + *cfg.file)
	link, cleanup, err := newLink(cfg, progress)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := cfg.link.OpenLink(ctx, link); err != nil {
		return err
	}

	spinner, _ := pterm.DefaultSpinner.Start("Handshaking...")
	if err := handshake(ctx, cfg, link); err != nil {
		spinner.Fail("Handshake failed")
		return err
	}
	spinner.Success("Link established")

	sender, err := link.NewSender(data)
	if err != nil {
		return err
	}
	start := time.Now()
	err = sender.Run(ctx)
	progress.Stop()
	printStats(sender, len(data), time.Since(start))
	if err != nil {
		return fmt.Errorf("transfer failed: %w", err)
	}
	pterm.Success.Printfln("Sent %d bytes in %d fragments", len(data), sender.Total())
	return nil
}

func printStats(s *arq.Sender, size int, elapsed time.Duration) {
	st := s.Stats()
	_ = pterm.DefaultTable.WithData([][]string{
		{"Bytes", fmt.Sprint(size)},
		{"Fragments", fmt.Sprintf("%d/%d", min(s.Current()-1, int(s.Total())), s.Total())},
		{"Frames sent", fmt.Sprint(st.FramesSent)},
		{"Retransmissions", fmt.Sprint(st.Retransmissions)},
		{"Acks / Nacks", fmt.Sprintf("%d / %d", st.Acks, st.Nacks)},
		{"No response", fmt.Sprint(st.NoResponse)},
		{"Malformed / unexpected", fmt.Sprintf("%d / %d", st.Undecodable, st.Unexpected)},
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
	if *cfg.file == "" {
		_, _ = fmt.Fprintln(os.Stderr, "usage: arqsend -file <path> [-device <port> | -transport ws -url <url>]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		cli.Fail("Send failed", err)
		stop()
		os.Exit(1)
	}
}
