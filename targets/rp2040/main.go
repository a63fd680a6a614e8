//go:build rp2040

package main

import (
	"time"

	"glitcher/core"

	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// Loop period for the housekeeping poll. The completion heuristic only has
// to notice a fire before the operator asks for the count, so 100us of
// latency is plenty and keeps the core mostly idle.
const pollPeriod = 100 * time.Microsecond

func main() {
	// Register hardware drivers before any core code runs.
	core.SetGPIODriver(NewRPGPIODriver())
	core.SetPIODriver(core.GlitchBlock, NewPIOBlockDriver(rp2pio.PIO0))
	core.SetPIODriver(core.ClockBlock, NewPIOBlockDriver(rp2pio.PIO1))

	core.SetSystemClockHz(uint32(machine.CPUFrequency()))
	core.BusyWaitMicros = busyWaitMicros

	// Debug output over the USB CDC console, off until requested.
	core.SetDebugWriter(func(s string) {
		machine.Serial.Write([]byte(s))
		machine.Serial.Write([]byte("\r\n"))
	})

	glitcher := core.NewGlitcher()
	clock := core.NewClockGen()
	glitcher.AttachClock(clock)

	led := machine.Pin(core.PinStatusLED)
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})

	if err := glitcher.Init(); err != nil {
		// Resident programs failed to load; nothing sensible to do but
		// signal on the LED.
		for {
			led.Set(true)
			time.Sleep(50 * time.Millisecond)
			led.Set(false)
			time.Sleep(50 * time.Millisecond)
		}
	}

	led.Set(true)

	heartbeat := 0
	for {
		glitcher.UpdateFlags()

		// Slow heartbeat so a wedged main loop is visible on the board.
		heartbeat++
		if heartbeat >= 5000 {
			heartbeat = 0
			led.Set(!led.Get())
		}

		time.Sleep(pollPeriod)
	}
}

// busyWaitMicros spins instead of sleeping: the scheduler tick is far too
// coarse for the microsecond settling waits on the fire path.
func busyWaitMicros(us uint32) {
	start := time.Now()
	d := time.Duration(us) * time.Microsecond
	for time.Since(start) < d {
	}
}
