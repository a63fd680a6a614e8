// glitch-host is an interactive console for a glitch controller attached
// over a serial port.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"
	"github.com/google/shlex"

	"glitcher/host/glitch"
)

var device = flag.String("device", "/dev/ttyACM0", "Serial device of the controller")

func main() {
	flag.Parse()
	defer glog.Flush()

	client, err := glitch.Dial(*device)
	if err != nil {
		glog.Exitf("connect %s: %v", *device, err)
	}
	defer client.Close()

	shell := ishell.New()
	shell.Println("glitch controller on", *device)
	shell.SetPrompt(*device + " > ")

	shell.AddCmd(&ishell.Cmd{
		Name: "status",
		Help: "show armed state, counters and timing parameters",
		Func: func(c *ishell.Context) {
			st, err := client.Status()
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("armed=%v fired=%d trigger=%s\n", st.Armed, st.GlitchCount, st.Trigger)
			c.Printf("pause=%d width=%d gap=%d count=%d\n", st.Pause, st.Width, st.Gap, st.Count)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "set",
		Help: "set pause|width|gap|count <value>",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 2 {
				c.Err(fmt.Errorf("usage: set pause|width|gap|count <value>"))
				return
			}
			value, err := strconv.ParseUint(c.Args[1], 10, 32)
			if err != nil {
				c.Err(fmt.Errorf("bad value %q: %w", c.Args[1], err))
				return
			}
			if err := setParam(client, c.Args[0], uint32(value)); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "trigger",
		Help: "trigger none | gpio rising|falling | uart <byte>",
		Func: func(c *ishell.Context) {
			if err := setTrigger(client, c.Args); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "arm",
		Help: "arm the controller",
		Func: reportErr(client.Arm),
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "disarm",
		Help: "disarm the controller",
		Func: reportErr(client.Disarm),
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "fire",
		Help: "fire one pulse sequence immediately (requires armed)",
		Func: reportErr(client.Glitch),
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "reset",
		Help: "restore controller power-on defaults",
		Func: reportErr(client.Reset),
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "raw",
		Help: "send a raw console line and print the response",
		Func: func(c *ishell.Context) {
			lines, err := client.Query(strings.Join(c.Args, " "))
			for _, l := range lines {
				c.Println(l)
			}
			if err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "script",
		Help: "run shell commands from a file",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("usage: script <file>"))
				return
			}
			if err := runScript(shell, c.Args[0]); err != nil {
				c.Err(err)
			}
		},
	})

	shell.Run()
}

// reportErr adapts a no-argument client call into a shell command.
func reportErr(fn func() error) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if err := fn(); err != nil {
			c.Err(err)
		}
	}
}

func setParam(client *glitch.Client, name string, value uint32) error {
	switch strings.ToLower(name) {
	case "pause":
		return client.SetPause(value)
	case "width":
		return client.SetWidth(value)
	case "gap":
		return client.SetGap(value)
	case "count":
		return client.SetCount(value)
	}
	return fmt.Errorf("unknown parameter %q", name)
}

func setTrigger(client *glitch.Client, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: trigger none | gpio rising|falling | uart <byte>")
	}
	switch strings.ToLower(args[0]) {
	case "none":
		return client.TriggerNone()
	case "gpio":
		if len(args) != 2 {
			return fmt.Errorf("usage: trigger gpio rising|falling")
		}
		return client.TriggerGPIO(args[1])
	case "uart":
		if len(args) != 2 {
			return fmt.Errorf("usage: trigger uart <byte>")
		}
		b, err := strconv.ParseUint(strings.TrimPrefix(args[1], "0x"), 16, 8)
		if err != nil {
			return fmt.Errorf("bad trigger byte %q: %w", args[1], err)
		}
		return client.TriggerUART(byte(b))
	}
	return fmt.Errorf("unknown trigger source %q", args[0])
}

// runScript executes shell commands from a file, one per line. Lines are
// shlex-split so quoted arguments survive; blank lines and #-comments are
// skipped.
func runScript(shell *ishell.Shell, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		args, err := shlex.Split(line)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		glog.V(1).Infof("script: %v", args)
		if err := shell.Process(args...); err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
	}
	return scanner.Err()
}
