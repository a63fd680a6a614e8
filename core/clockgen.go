package core

// ClockGen drives a free-running square wave on its own pin from the clock
// PIO block, independent of the glitch path except for one coupling: when
// armed, the generator doubles its frequency for a bounded number of cycles
// the moment the shared FIRED semaphore rises, synchronising a clock glitch
// to the same trigger event as the voltage/EM glitch.
type ClockGen struct {
	pin     GPIOPin
	freqHz  uint32
	enabled bool
	boost   bool
}

// NewClockGen returns a disabled clock generator on the default clock pin.
func NewClockGen() *ClockGen {
	return &ClockGen{pin: PinClockOut}
}

// SetFrequency updates the output frequency. A running generator is
// restarted: disable, reconfigure, re-enable.
func (c *ClockGen) SetFrequency(hz uint32) {
	was := c.enabled
	if was {
		c.Disable()
	}
	c.freqHz = hz
	if was {
		c.Enable()
	}
}

// halfPeriod returns the half-period loop count for the current frequency.
func (c *ClockGen) halfPeriod() uint32 {
	hp := (SystemClockHz() / 2) / c.freqHz
	if hp == 0 {
		hp = 1
	}
	return hp
}

// Enable starts the generator. No-op while enabled or when no frequency has
// been set. The normal half-period is preloaded into Y and the boosted
// (double-rate) one into ISR; boost repeat parameters arrive via the FIFO
// only on arm transitions.
func (c *ClockGen) Enable() error {
	if c.enabled || c.freqHz == 0 {
		return nil
	}

	p := MustPIO(ClockBlock)
	p.SetEnabled(smClockGen, false)
	p.ClearFIFOs(smClockGen)

	p.RemoveProgram(clockBoostProgram)
	if err := p.AddProgram(clockBoostProgram); err != nil {
		return err
	}

	if err := p.BindOutput(smClockGen, c.pin, false); err != nil {
		return err
	}
	// FIRED is driven from the glitch block; this block only watches it.
	if err := p.ObserveInput(PinFired); err != nil {
		return err
	}

	p.Restart(smClockGen)
	if err := p.Configure(smClockGen, SMConfig{
		Program:   clockBoostProgram,
		SetPin:    c.pin,
		SetCount:  1,
		InPin:     PinFired,
		HasInPin:  true,
		JmpPin:    PinFired,
		HasJmpPin: true,
	}); err != nil {
		return err
	}

	hp := c.halfPeriod()
	p.PreloadY(smClockGen, hp-1)
	fast := hp / 2
	if fast == 0 {
		fast = 1
	}
	p.PreloadISR(smClockGen, fast-1)

	p.SetEnabled(smClockGen, true)
	c.enabled = true
	c.boost = true
	debugf("clock: enabled %d Hz, half-period %d cycles", c.freqHz, hp)
	return nil
}

// Disable stops the generator and parks the pin low. No-op while disabled.
func (c *ClockGen) Disable() {
	if !c.enabled {
		return
	}
	c.boost = false

	p := MustPIO(ClockBlock)
	p.SetEnabled(smClockGen, false)
	p.ClearFIFOs(smClockGen)

	_ = MustGPIO().SetPin(c.pin, false)
	c.enabled = false
	debugf("clock: disabled")
}

// IsEnabled reports whether the generator is running.
func (c *ClockGen) IsEnabled() bool {
	return c.enabled
}

// Frequency returns the configured output frequency in Hz.
func (c *ClockGen) Frequency() uint32 {
	return c.freqHz
}

// armBoost queues one boost: the repeat count and the normal half-period to
// restore afterwards. Called by the glitch engine during the Disarmed->Armed
// transition only; the parameters are consumed when FIRED rises, so a stale
// enable can never boost without a fresh arm. A fire-less disarm leaves the
// pair queued for the next fire; the 4-deep FIFO holds two such pairs.
func (c *ClockGen) armBoost(count uint32) {
	if !c.enabled || !c.boost {
		return
	}
	p := MustPIO(ClockBlock)
	p.TxPut(smClockGen, count)
	p.TxPut(smClockGen, c.halfPeriod()-1)
}
