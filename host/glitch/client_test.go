package glitch

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptPort is an in-memory serial port: written command lines are handed
// to respond, whose output becomes readable. An empty read buffer behaves
// like a native port hitting its read timeout.
type scriptPort struct {
	sent    []string
	respond func(cmd string) string

	partial bytes.Buffer
	out     bytes.Buffer
	closed  bool
}

func (p *scriptPort) Write(b []byte) (int, error) {
	p.partial.Write(b)
	for {
		data := p.partial.String()
		i := strings.Index(data, "\r\n")
		if i < 0 {
			break
		}
		cmd := data[:i]
		p.partial.Reset()
		p.partial.WriteString(data[i+2:])
		p.sent = append(p.sent, cmd)
		if p.respond != nil {
			p.out.WriteString(p.respond(cmd))
		}
	}
	return len(b), nil
}

func (p *scriptPort) Read(b []byte) (int, error) {
	if p.out.Len() == 0 {
		return 0, io.EOF // read timeout
	}
	return p.out.Read(b)
}

func (p *scriptPort) Close() error { p.closed = true; return nil }
func (p *scriptPort) Flush() error { return nil }

func okResponder(t *testing.T) func(string) string {
	t.Helper()
	return func(cmd string) string {
		return "OK: " + cmd + " accepted\r\n"
	}
}

func TestSetCommandFormatting(t *testing.T) {
	port := &scriptPort{respond: okResponder(t)}
	c := NewClient(port)

	require.NoError(t, c.SetPause(7000))
	require.NoError(t, c.SetWidth(150))
	require.NoError(t, c.SetGap(80))
	require.NoError(t, c.SetCount(3))
	require.NoError(t, c.TriggerUART(0x0d))
	require.NoError(t, c.TriggerGPIO("rising"))
	require.NoError(t, c.Arm())
	require.NoError(t, c.Glitch())
	require.NoError(t, c.Disarm())
	require.NoError(t, c.Reset())

	assert.Equal(t, []string{
		"SET PAUSE 7000",
		"SET WIDTH 150",
		"SET GAP 80",
		"SET COUNT 3",
		"TRIGGER UART 0x0D",
		"TRIGGER GPIO RISING",
		"ARM ON",
		"GLITCH",
		"ARM OFF",
		"RESET",
	}, port.sent)
}

func TestErrorAcknowledgement(t *testing.T) {
	port := &scriptPort{respond: func(cmd string) string {
		return "ERROR: Failed to arm system\r\n"
	}}
	c := NewClient(port)

	err := c.Arm()
	require.Error(t, err)

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, "ARM ON", cmdErr.Cmd)
	assert.Equal(t, "Failed to arm system", cmdErr.Message)
}

func TestCommandCollectsLinesBeforeAck(t *testing.T) {
	port := &scriptPort{respond: func(cmd string) string {
		return "Raiden Pico Glitcher v0.3\r\nBuild: whatever\r\nOK\r\n"
	}}
	c := NewClient(port)

	lines, err := c.Command("VERSION")
	require.NoError(t, err)
	assert.Equal(t, []string{"Raiden Pico Glitcher v0.3", "Build: whatever"}, lines)
}

func TestCommandMissingAckIsAnError(t *testing.T) {
	port := &scriptPort{respond: func(cmd string) string {
		return "half a response\r\n"
	}}
	c := NewClient(port)

	_, err := c.Command("GLITCH")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no acknowledgement")
}

func TestStatusParsing(t *testing.T) {
	report := strings.Join([]string{
		"Chip:        RP2350 - Variant A (PIO works correctly)",
		"Armed:       YES",
		"Glitch Count: 17",
		"Pause:       7000 cycles (46.67 us)",
		"Width:       150 cycles (1.00 us)",
		"Gap:         80 cycles (0.53 us)",
		"Count:       3",
		"Trigger:     UART",
		"UART Byte:   0x0D",
		"Output Pin:  2",
		"",
	}, "\r\n")
	port := &scriptPort{respond: func(cmd string) string { return report }}
	c := NewClient(port)

	st, err := c.Status()
	require.NoError(t, err)
	assert.True(t, st.Armed)
	assert.Equal(t, uint32(17), st.GlitchCount)
	assert.Equal(t, uint32(7000), st.Pause)
	assert.Equal(t, uint32(150), st.Width)
	assert.Equal(t, uint32(80), st.Gap)
	assert.Equal(t, uint32(3), st.Count)
	assert.Equal(t, "UART", st.Trigger)
	assert.Equal(t, byte(0x0d), st.TriggerByte)
}

func TestStatusDisarmed(t *testing.T) {
	port := &scriptPort{respond: func(cmd string) string {
		return "Armed:       NO\r\nGlitch Count: 0\r\n"
	}}
	c := NewClient(port)

	st, err := c.Status()
	require.NoError(t, err)
	assert.False(t, st.Armed)
	assert.Equal(t, uint32(0), st.GlitchCount)
}

func TestQueryStopsWhenQuiet(t *testing.T) {
	port := &scriptPort{respond: func(cmd string) string {
		return "100 cycles (0.67 us)\r\n"
	}}
	c := NewClient(port)

	lines, err := c.Query("GET WIDTH")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, uint32(100), leadingUint(lines[0]))
}
