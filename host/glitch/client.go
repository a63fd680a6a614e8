// Package glitch is the host-side client for the glitch controller's
// line-oriented serial console.
package glitch

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/golang/glog"

	"glitcher/host/serial"
)

// CommandError is an ERROR acknowledgement from the controller.
type CommandError struct {
	Cmd     string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Cmd, e.Message)
}

// Client speaks the controller console protocol: one command per line,
// CRLF-terminated, acknowledged with "OK ..." or "ERROR: ...". Query-style
// commands (GET, STATUS) report values without an acknowledgement line and
// are collected until the port goes quiet.
type Client struct {
	port serial.Port
	r    *bufio.Reader
}

// NewClient wraps an open port. Callers own the port's lifetime until Close.
func NewClient(port serial.Port) *Client {
	return &Client{port: port, r: bufio.NewReader(port)}
}

// Dial opens the controller console on a serial device and drains any
// pending output (boot banner, debug chatter).
func Dial(device string) (*Client, error) {
	port, err := serial.Open(serial.DefaultConfig(device))
	if err != nil {
		return nil, err
	}
	c := NewClient(port)
	c.drain()
	return c, nil
}

// Close closes the underlying port.
func (c *Client) Close() error {
	return c.port.Close()
}

// send writes one console line.
func (c *Client) send(cmd string) error {
	glog.V(2).Infof("SND %q", cmd)
	if _, err := io.WriteString(c.port, cmd+"\r\n"); err != nil {
		return fmt.Errorf("send %q: %w", cmd, err)
	}
	return c.port.Flush()
}

// readLine returns the next CRLF-terminated line, or io.EOF once the port's
// read timeout expires with nothing buffered.
func (c *Client) readLine() (string, error) {
	line, err := c.r.ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if err != nil && line == "" {
		return "", err
	}
	glog.V(2).Infof("RCV %q", line)
	return line, nil
}

// drain discards buffered output until the port goes quiet.
func (c *Client) drain() {
	for {
		if _, err := c.readLine(); err != nil {
			return
		}
	}
}

// Command sends a console line and collects the response up to its OK/ERROR
// acknowledgement. The returned lines exclude the acknowledgement itself; an
// ERROR acknowledgement is surfaced as a *CommandError.
func (c *Client) Command(cmd string) ([]string, error) {
	if err := c.send(cmd); err != nil {
		return nil, err
	}
	var lines []string
	for {
		line, err := c.readLine()
		if err != nil {
			return lines, fmt.Errorf("%s: no acknowledgement: %w", cmd, err)
		}
		switch {
		case strings.HasPrefix(line, "OK"):
			return lines, nil
		case strings.HasPrefix(line, "ERROR"):
			msg := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(line, "ERROR"), ":"))
			return lines, &CommandError{Cmd: cmd, Message: msg}
		default:
			lines = append(lines, line)
		}
	}
}

// Query sends a console line and collects response lines until the port
// goes quiet. Used for commands that report values without an OK line.
func (c *Client) Query(cmd string) ([]string, error) {
	if err := c.send(cmd); err != nil {
		return nil, err
	}
	var lines []string
	for {
		line, err := c.readLine()
		if err != nil {
			return lines, nil
		}
		lines = append(lines, line)
	}
}

// SetPause sets the trigger-to-pulse delay in clock cycles.
func (c *Client) SetPause(cycles uint32) error {
	_, err := c.Command(fmt.Sprintf("SET PAUSE %d", cycles))
	return err
}

// SetWidth sets the pulse width in clock cycles.
func (c *Client) SetWidth(cycles uint32) error {
	_, err := c.Command(fmt.Sprintf("SET WIDTH %d", cycles))
	return err
}

// SetGap sets the inter-pulse gap in clock cycles.
func (c *Client) SetGap(cycles uint32) error {
	_, err := c.Command(fmt.Sprintf("SET GAP %d", cycles))
	return err
}

// SetCount sets the number of pulses per trigger.
func (c *Client) SetCount(n uint32) error {
	_, err := c.Command(fmt.Sprintf("SET COUNT %d", n))
	return err
}

// TriggerNone disables hardware triggering (manual fire only).
func (c *Client) TriggerNone() error {
	_, err := c.Command("TRIGGER NONE")
	return err
}

// TriggerGPIO arms the edge trigger; edge is "RISING" or "FALLING".
func (c *Client) TriggerGPIO(edge string) error {
	_, err := c.Command("TRIGGER GPIO " + strings.ToUpper(edge))
	return err
}

// TriggerUART arms the UART byte-match trigger.
func (c *Client) TriggerUART(b byte) error {
	_, err := c.Command(fmt.Sprintf("TRIGGER UART 0x%02X", b))
	return err
}

// Arm arms the controller.
func (c *Client) Arm() error {
	_, err := c.Command("ARM ON")
	return err
}

// Disarm disarms the controller.
func (c *Client) Disarm() error {
	_, err := c.Command("ARM OFF")
	return err
}

// Glitch fires one pulse sequence immediately. The controller disarms after
// the fire.
func (c *Client) Glitch() error {
	_, err := c.Command("GLITCH")
	return err
}

// Reset restores the controller to power-on defaults.
func (c *Client) Reset() error {
	_, err := c.Command("RESET")
	return err
}

// Status is the parsed STATUS report.
type Status struct {
	Armed       bool
	GlitchCount uint32
	Pause       uint32
	Width       uint32
	Gap         uint32
	Count       uint32
	Trigger     string
	TriggerByte byte
}

// Status fetches and parses the controller's STATUS report.
func (c *Client) Status() (*Status, error) {
	lines, err := c.Query("STATUS")
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("STATUS: empty response")
	}

	st := &Status{}
	for _, line := range lines {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "Armed":
			st.Armed = value == "YES"
		case "Glitch Count":
			st.GlitchCount = leadingUint(value)
		case "Pause":
			st.Pause = leadingUint(value)
		case "Width":
			st.Width = leadingUint(value)
		case "Gap":
			st.Gap = leadingUint(value)
		case "Count":
			st.Count = leadingUint(value)
		case "Trigger":
			st.Trigger = value
		case "UART Byte":
			st.TriggerByte = byte(parseHex(value))
		}
	}
	return st, nil
}

// leadingUint parses the integer prefix of strings like "7000 cycles (46.67 us)".
func leadingUint(s string) uint32 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	v, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}

func parseHex(s string) uint64 {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 32)
	if err != nil {
		return 0
	}
	return v
}
