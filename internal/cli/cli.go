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

// Package cli holds the flag and transport plumbing shared by the commands.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"

	arq "github.com/ZaparooProject/go-arq"
	"github.com/ZaparooProject/go-arq/detection"
	"github.com/ZaparooProject/go-arq/eventlog"
	"github.com/ZaparooProject/go-arq/internal/retry"
	"github.com/ZaparooProject/go-arq/transport/uart"
	"github.com/ZaparooProject/go-arq/transport/ws"
)

// ErrNoPort is returned when auto-detection finds no usable serial port.
var ErrNoPort = errors.New("no serial port found")

// openRetryInterval paces attempts to open a busy port.
const openRetryInterval = 250 * time.Millisecond

// LinkFlags are the transport and protocol flags common to both commands.
type LinkFlags struct {
	Transport   *string
	Device      *string
	URL         *string
	Listen      *string
	LogPath     *string
	Baud        *int
	MaxRetries  *int
	Timeout     *time.Duration
	OpenTimeout *time.Duration
	StrictAck   *bool
	Debug       *bool
	List        *bool
	Interactive *bool
}

// RegisterLinkFlags defines the common flags on fs.
func RegisterLinkFlags(fs *flag.FlagSet, logName string) *LinkFlags {
	return &LinkFlags{
		Transport: fs.String("transport", "uart", "Transport: uart or ws"),
		Device: fs.String("device", "",
			"Serial device path (e.g., /dev/ttyUSB0 or COM3) or USB VID:PID. Leave empty for auto-detection."),
		URL:         fs.String("url", "", "WebSocket URL to dial (ws transport)"),
		Listen:      fs.String("listen", "", "Address to accept a WebSocket peer on, e.g. :8765 (ws transport)"),
		LogPath:     fs.String("log", logName, "Event log file (empty disables)"),
		Baud:        fs.Int("baud", uart.DefaultBaudRate, "Serial baud rate"),
		MaxRetries:  fs.Int("max-retries", 0, "Consecutive failed attempts per fragment before giving up (0 = unbounded)"),
		Timeout:     fs.Duration("timeout", time.Second, "Read timeout for each response"),
		OpenTimeout: fs.Duration("open-timeout", 5*time.Second, "How long to wait for a busy port or a WebSocket peer"),
		StrictAck:   fs.Bool("strict-ack", false, "Require Ack sequence numbers to match the fragment in flight"),
		Debug:       fs.Bool("debug", false, "Enable debug output"),
		List:        fs.Bool("list", false, "List serial ports and exit"),
		Interactive: fs.Bool("interactive", true, "Prompt when a choice or confirmation is needed"),
	}
}

// Apply enables debugging if requested.
func (f *LinkFlags) Apply() {
	if *f.Debug {
		arq.SetDebugEnabled(true)
	}
}

// NewTransport creates the transport selected by the flags.
func (f *LinkFlags) NewTransport() (arq.Transport, error) {
	switch strings.ToLower(*f.Transport) {
	case "uart", "serial":
		device, err := detection.ResolvePort(*f.Device, detection.DefaultOptions())
		if err != nil {
			return nil, err
		}
		if device == "" {
			device, err = f.detectPort()
			if err != nil {
				return nil, err
			}
		}
		t, err := uart.New(device, uart.WithBaudRate(*f.Baud), uart.WithReadTimeout(*f.Timeout))
		if err != nil {
			return nil, fmt.Errorf("failed to create UART transport: %w", err)
		}
		return t, nil
	case "ws", "websocket":
		switch {
		case *f.Listen != "" && *f.URL != "":
			return nil, errors.New("-url and -listen are mutually exclusive")
		case *f.Listen != "":
			t, err := ws.Listen(*f.Listen, "/arq", ws.WithTimeout(*f.Timeout))
			if err != nil {
				return nil, fmt.Errorf("failed to create WebSocket transport: %w", err)
			}
			pterm.Info.Printfln("Waiting for a peer on %s", t.URL())
			return t, nil
		case *f.URL != "":
			return ws.Dial(*f.URL, ws.WithTimeout(*f.Timeout)), nil
		default:
			return nil, errors.New("ws transport needs -url or -listen")
		}
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", *f.Transport)
	}
}

// LinkOptions returns the protocol options selected by the flags.
func (f *LinkFlags) LinkOptions() []arq.Option {
	return []arq.Option{
		arq.WithMaxRetries(*f.MaxRetries),
		arq.WithStrictAck(*f.StrictAck),
	}
}

// OpenEventLog opens the event log named by the flags. It returns a nil
// recorder when logging is disabled.
func (f *LinkFlags) OpenEventLog() (*eventlog.Recorder, error) {
	if *f.LogPath == "" {
		return nil, nil
	}
	rec, err := eventlog.Open(*f.LogPath)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

type contextOpener interface {
	OpenContext(ctx context.Context) error
}

// OpenLink opens the link's transport. A busy serial port is retried until
// the open timeout; a listening WebSocket waits that long for its peer.
func (f *LinkFlags) OpenLink(ctx context.Context, link *arq.Link) error {
	ctx, cancel := context.WithTimeout(ctx, *f.OpenTimeout)
	defer cancel()

	if o, ok := link.Transport().(contextOpener); ok {
		if err := o.OpenContext(ctx); err != nil {
			return fmt.Errorf("failed to open transport: %w", err)
		}
	}

	_, err := retry.TimeoutRetry(ctx, *f.OpenTimeout, openRetryInterval, func() (struct{}, bool, error) {
		err := link.Open()
		if err != nil && arq.IsRetryable(err) {
			arq.Debugf("open failed, retrying: %v", err)
			return struct{}{}, true, err
		}
		return struct{}{}, false, err
	})
	return err
}

func (f *LinkFlags) detectPort() (string, error) {
	ports, err := detection.ListSerialPorts(detection.DefaultOptions())
	if err != nil {
		return "", err
	}
	switch {
	case len(ports) == 0:
		return "", ErrNoPort
	case len(ports) == 1:
		pterm.Info.Printfln("Using %s", ports[0])
		return ports[0].Path, nil
	case !*f.Interactive:
		pterm.Info.Printfln("Several ports found, using %s", ports[0])
		return ports[0].Path, nil
	}

	options := make([]string, 0, len(ports))
	byLabel := make(map[string]string, len(ports))
	for _, p := range ports {
		label := p.String()
		options = append(options, label)
		byLabel[label] = p.Path
	}
	choice, err := pterm.DefaultInteractiveSelect.
		WithDefaultText("Select the serial port").
		WithOptions(options).
		Show()
	if err != nil {
		return "", fmt.Errorf("port selection: %w", err)
	}
	return byLabel[choice], nil
}

// PrintPorts renders the detected serial ports as a table.
func PrintPorts() error {
	ports, err := detection.ListSerialPorts(detection.Options{})
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		pterm.Warning.Println("No serial ports found")
		return nil
	}

	data := [][]string{{"Path", "VID:PID", "Product", "Serial"}}
	for _, p := range ports {
		blocked := ""
		if p.VIDPID != "" && detection.IsBlocked(p.VIDPID, detection.DefaultBlocklist()) {
			blocked = " (blocklisted)"
		}
		data = append(data, []string{p.Path + blocked, p.VIDPID, p.Product, p.SerialNumber})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return fmt.Errorf("failed to render port table: %w", err)
	}
	return nil
}

// Progress drives a progress bar from the link's fragment hook.
type Progress struct {
	bar   *pterm.ProgressbarPrinter
	title string
}

// NewProgress returns a progress bar that starts on the first fragment.
func NewProgress(title string) *Progress {
	return &Progress{title: title}
}

// Hook is an arq.WithFragmentHook callback.
func (p *Progress) Hook(_, total uint16) {
	if p.bar == nil {
		bar, err := pterm.DefaultProgressbar.WithTotal(int(total)).WithTitle(p.title).Start()
		if err != nil {
			return
		}
		p.bar = bar
	}
	p.bar.Increment()
}

// Stop ends the progress bar.
func (p *Progress) Stop() {
	if p.bar != nil {
		_, _ = p.bar.Stop()
	}
}

// Fail prints err and explains transport errors a user can act on.
func Fail(what string, err error) {
	pterm.Error.Printfln("%s: %v", what, err)
	var te *arq.TransportError
	if errors.As(err, &te) && te.Port != "" {
		pterm.Info.Printfln("Check the connection on %s (%s error)", te.Port, te.Type)
	}
}
