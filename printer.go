package main

import (
	"fmt"
	"io"
	"math"

	"pdf-translator/internal/conversion"
	"pdf-translator/internal/types"
)

var _ conversion.Sink = (*consolePrinter)(nil)

// consolePrinter shows classified worker output on a terminal. Percentage
// lines are only printed when the whole percent changes.
type consolePrinter struct {
	out, errOut io.Writer
	lastPercent int
}

func newConsolePrinter(out, errOut io.Writer) *consolePrinter {
	return &consolePrinter{out: out, errOut: errOut, lastPercent: -1}
}

func (p *consolePrinter) Output(string, types.Stream, string) {}

func (p *consolePrinter) Progress(ev types.ProgressEvent) {
	switch ev.Kind {
	case types.EventStage:
		p.lastPercent = int(math.Round(ev.Value))
		fmt.Fprintf(p.out, "[%3d%%] %s\n", p.lastPercent, ev.Stage)
	case types.EventPercentage:
		pct := int(math.Round(ev.Value))
		if pct == p.lastPercent {
			return
		}
		p.lastPercent = pct
		if ev.Total > 0 {
			fmt.Fprintf(p.out, "[%3d%%] %d/%d\n", pct, ev.Current, ev.Total)
		} else {
			fmt.Fprintf(p.out, "[%3d%%]\n", pct)
		}
	case types.EventError:
		fmt.Fprintf(p.errOut, "  ! %s\n", ev.Text)
	}
}
