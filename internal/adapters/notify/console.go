// Package notify implements the console notifier: human-readable
// event lines plus an on-demand tabular status report, grounded on the
// teacher's console printer.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rangekeeper/rangekeeper/internal/core"
)

// Console implements ports.Notifier and prints a richer tabular report on
// demand.
type Console struct {
	out io.Writer
}

// NewConsole creates a notifier that writes to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter creates a notifier for tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Notify prints a single timestamped event line.
func (c *Console) Notify(_ context.Context, msg string) error {
	fmt.Fprintf(c.out, "[%s] %s\n", time.Now().Format("15:04:05"), msg)
	return nil
}

// PrintStatusReport prints a boxed status report for one pool: its health
// snapshot and its current bands, in the teacher's box-drawing + tablewriter
// style.
func (c *Console) PrintStatusReport(status core.HealthStatus, bands []core.Band) {
	fmt.Fprintf(c.out, "\n╔══════════════════════════════════════════════════════════════╗\n")
	fmt.Fprintf(c.out, "║                  RANGEKEEPER STATUS REPORT                    ║\n")
	fmt.Fprintf(c.out, "╚══════════════════════════════════════════════════════════════╝\n\n")

	fmt.Fprintf(c.out, "  Pool:              %s\n", status.PoolID)
	fmt.Fprintf(c.out, "  State:             %s\n", status.State)
	fmt.Fprintf(c.out, "  Bands:             %d\n", status.BandsCount)
	fmt.Fprintf(c.out, "  Consecutive errs:  %d\n", status.ConsecutiveErrors)
	if status.LastError != "" {
		fmt.Fprintf(c.out, "  Last error:        %s\n", status.LastError)
	}
	fmt.Fprintf(c.out, "  Cumulative gas:    $%.4f\n", status.CumulativeGasCostUsd)

	fmt.Fprintf(c.out, "\n── BANDS (%d) ──\n", len(bands))
	if len(bands) > 0 {
		table := tablewriter.NewWriter(c.out)
		table.Header("#", "TokenID", "TickLower", "TickUpper", "Width")
		for _, b := range bands {
			table.Append(
				fmt.Sprintf("%d", b.Index),
				b.TokenID,
				fmt.Sprintf("%d", b.TickLower),
				fmt.Sprintf("%d", b.TickUpper),
				fmt.Sprintf("%d", b.Width()),
			)
		}
		table.Render()
	} else {
		fmt.Fprintln(c.out, "  (none)")
	}
	fmt.Fprintln(c.out)
}
