// Package alerts implements the alert transports below: console output
// for local runs and a no-op sink for environments with no configured
// transport. Delivery is best-effort; neither implementation can fail the
// session that calls it.
package alerts

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/lmoretti-dev/whitelight/internal/ports"
)

// Console writes alerts to an io.Writer (stdout by default), one line per
// alert, timestamped and tagged with severity.
type Console struct {
	out io.Writer
}

// NewConsole returns a Console writing to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter returns a Console writing to w, for tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Send implements ports.AlertTransport.
func (c *Console) Send(_ context.Context, severity ports.Severity, title, body string) error {
	_, err := fmt.Fprintf(c.out, "[%s][%s] %s: %s\n", time.Now().Format(time.RFC3339), severity, title, body)
	return err
}

// NoOp implements ports.AlertTransport by discarding everything.
type NoOp struct{}

// Send implements ports.AlertTransport.
func (NoOp) Send(context.Context, ports.Severity, string, string) error { return nil }
