package alerts_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmoretti-dev/whitelight/internal/adapters/alerts"
	"github.com/lmoretti-dev/whitelight/internal/ports"
)

func TestConsole_Send_WritesSeverityTitleAndBody(t *testing.T) {
	var buf bytes.Buffer
	c := alerts.NewConsoleWriter(&buf)

	err := c.Send(context.Background(), ports.SeverityWarn, "order rejected", "TQQQ 10 BUY: insufficient buying power")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "order rejected")
	assert.Contains(t, out, "insufficient buying power")
}

func TestConsole_Send_MultipleAlertsAreNewlineSeparated(t *testing.T) {
	var buf bytes.Buffer
	c := alerts.NewConsoleWriter(&buf)

	require.NoError(t, c.Send(context.Background(), ports.SeverityInfo, "first", "a"))
	require.NoError(t, c.Send(context.Background(), ports.SeverityCritical, "second", "b"))

	lines := bytes.Split(bytes.TrimRight(buf.Bytes(), "\n"), []byte("\n"))
	assert.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), "first")
	assert.Contains(t, string(lines[1]), "second")
}

func TestNoOp_Send_NeverErrors(t *testing.T) {
	var n alerts.NoOp
	err := n.Send(context.Background(), ports.SeverityCritical, "ignored", "ignored")
	assert.NoError(t, err)
}
