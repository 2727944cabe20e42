package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"swc/internal/job"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusStyles = [...]struct {
	label string
	color string
}{
	statusInfo:  {"INFO", "\x1b[34m"},
	statusOK:    {"OK", "\x1b[32m"},
	statusWarn:  {"WARN", "\x1b[33m"},
	statusError: {"ERROR", "\x1b[31m"},
}

const ansiReset = "\x1b[0m"

// statusPrinter writes aligned "label: [KIND] detail" lines, coloured only
// when the destination is a terminal.
type statusPrinter struct {
	w          io.Writer
	color      bool
	labelWidth int
}

func newStatusPrinter(w io.Writer) *statusPrinter {
	return &statusPrinter{w: w, color: isTerminal(w), labelWidth: 22}
}

func (p *statusPrinter) section(title string) {
	heading := "== " + strings.TrimSpace(title) + " =="
	fmt.Fprintln(p.w, p.paint(statusInfo, heading))
	fmt.Fprintln(p.w, p.paint(statusInfo, strings.Repeat("-", len(heading))))
}

func (p *statusPrinter) line(label string, kind statusKind, detail string) {
	text := "[" + statusStyles[kind].label + "]"
	if detail != "" {
		text += " " + detail
	}
	fmt.Fprintln(p.w, p.paint(kind, fmt.Sprintf("  %-*s %s", p.labelWidth, label+":", text)))
}

// outcome prints the one-line report for a finished job.
func (p *statusPrinter) outcome(o job.Outcome) {
	detail := o.Summary()
	if o.State != job.StateSucceeded && o.Stage != "" {
		detail = string(o.Stage) + ": " + detail
	}
	p.line(truncateRunes(o.Request.Source, 60), outcomeStatus(o.State), detail)
}

func (p *statusPrinter) blank() {
	fmt.Fprintln(p.w)
}

func (p *statusPrinter) paint(kind statusKind, s string) string {
	if !p.color {
		return s
	}
	return statusStyles[kind].color + s + ansiReset
}

func outcomeStatus(state job.State) statusKind {
	switch state {
	case job.StateSucceeded:
		return statusOK
	case job.StateCancelled:
		return statusWarn
	case job.StateFailed:
		return statusError
	default:
		return statusInfo
	}
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
