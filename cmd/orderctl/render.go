// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/lapaisee/orderdesk/services/orders/datatypes"
)

// printer writes command output, styled only when stdout is a terminal.
type printer struct {
	out    io.Writer
	styled bool

	title lipgloss.Style
	ok    lipgloss.Style
	bad   lipgloss.Style
	dim   lipgloss.Style
}

func newPrinter(out io.Writer) *printer {
	styled := false
	if f, ok := out.(*os.File); ok {
		styled = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &printer{
		out:    out,
		styled: styled,
		title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		ok:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		bad:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		dim:    lipgloss.NewStyle().Faint(true),
	}
}

func (p *printer) render(style lipgloss.Style, s string) string {
	if !p.styled {
		return s
	}
	return style.Render(s)
}

func (p *printer) JSON(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func (p *printer) Title(s string) {
	fmt.Fprintln(p.out, p.render(p.title, s))
}

func (p *printer) Line(s string) {
	fmt.Fprintln(p.out, s)
}

func (p *printer) Note(s string) {
	fmt.Fprintln(p.out, p.render(p.dim, s))
}

// Order prints extracted items, one per line.
func (p *printer) Order(order datatypes.ParsedOrder) {
	if order.IsEmpty() {
		p.Line(p.render(p.bad, "no items recognised"))
		return
	}
	p.Title(fmt.Sprintf("%d item(s)", len(order.Items)))
	for _, it := range order.Items {
		p.Line("  " + it.String())
	}
	if order.Greeting || order.Polite {
		p.Note(fmt.Sprintf("greeting=%t polite=%t", order.Greeting, order.Polite))
	}
}

// Verdicts prints one coloured line per verdict.
func (p *printer) Verdicts(verdicts []datatypes.StockVerdict) {
	for _, v := range verdicts {
		style := p.bad
		if v.Available {
			style = p.ok
		}
		p.Line(p.render(style, v.Message))
	}
}
