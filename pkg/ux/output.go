// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the Praetor CLI.
//
// Styling degrades gracefully: when stdout is not a terminal (piped
// output, CI logs), all color codes are suppressed and plain text is
// emitted instead.
package ux

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// ANSI color codes used by the CLI. Applied only on interactive
// terminals.
const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiDim    = "\033[2m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

// Printer writes styled output to a terminal-aware destination.
//
// Thread Safety: Printer methods are not synchronized; callers writing
// from multiple goroutines must serialize externally.
type Printer struct {
	w     io.Writer
	color bool
}

// NewPrinter creates a Printer for the given writer. Color output is
// enabled only when the writer is os.Stdout or os.Stderr attached to a
// terminal.
func NewPrinter(w io.Writer) *Printer {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Printer{w: w, color: color}
}

// StdoutPrinter returns a Printer bound to os.Stdout.
func StdoutPrinter() *Printer {
	return NewPrinter(os.Stdout)
}

// Success prints a green check line.
func (p *Printer) Success(format string, args ...any) {
	p.line(ansiGreen, "✓", format, args...)
}

// Warn prints a yellow warning line.
func (p *Printer) Warn(format string, args ...any) {
	p.line(ansiYellow, "⚠", format, args...)
}

// Error prints a red error line.
func (p *Printer) Error(format string, args ...any) {
	p.line(ansiRed, "✗", format, args...)
}

// Info prints a cyan informational line.
func (p *Printer) Info(format string, args ...any) {
	p.line(ansiCyan, "→", format, args...)
}

// Plain prints an unstyled line.
func (p *Printer) Plain(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Title prints a bold heading.
func (p *Printer) Title(text string) {
	if p.color {
		fmt.Fprintf(p.w, "%s%s%s\n", ansiBold, text, ansiReset)
		return
	}
	fmt.Fprintln(p.w, text)
}

// Muted prints a dim secondary line.
func (p *Printer) Muted(format string, args ...any) {
	if p.color {
		fmt.Fprintf(p.w, "%s%s%s\n", ansiDim, fmt.Sprintf(format, args...), ansiReset)
		return
	}
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *Printer) line(color, icon, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if p.color {
		fmt.Fprintf(p.w, "%s%s%s %s\n", color, icon, ansiReset, msg)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", icon, msg)
}
